package table

import "errors"

// Engine errors. Validation errors are returned without mutating state; the
// transport layer maps them onto the wire error taxonomy.
var (
	ErrNotYourTurn   = errors.New("table: not your turn")
	ErrStaleToken    = errors.New("table: stale turn token")
	ErrInvalidAction = errors.New("table: invalid action")
	ErrHandComplete  = errors.New("table: hand already complete")
	ErrNoHand        = errors.New("table: no hand in progress")
	ErrTableFull     = errors.New("table: table full")
	ErrAlreadySeated = errors.New("table: agent already seated")
	ErrNotSeated     = errors.New("table: agent not seated")
	ErrTableEnded    = errors.New("table: table ended")
	ErrNotRunning    = errors.New("table: table not running")
)
