package table

// Phase is the hand phase.
type Phase int

const (
	PhasePreflop Phase = iota
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
	PhaseComplete
)

func (p Phase) String() string {
	return [...]string{"preflop", "flop", "turn", "river", "showdown", "complete"}[p]
}

// ActionKind is a player action on the wire.
type ActionKind string

const (
	ActionFold    ActionKind = "fold"
	ActionCheck   ActionKind = "check"
	ActionCall    ActionKind = "call"
	ActionRaiseTo ActionKind = "raiseTo"
)

// Round holds the betting state for one street.
//
// actedSinceFullRaise tracks, per seat, whether the seat has acted since the
// last full raise. Only a full raise clears it; a short all-in raise does
// not, which is what prevents already-acted players from re-raising (they
// may only call or fold). Round closing is the explicit predicate Closed:
// every live, non-all-in seat has matched the high bet and has acted since
// the last full raise.
type Round struct {
	HighBet             int
	MinRaise            int // size of the last full raise, floored at the big blind
	LastAggressor       int // seat index, -1 if none
	actedSinceFullRaise []bool
	bigBlind            int
}

// NewRound creates the betting state for a street. numSeats is the table
// seat vector length, not the number of players in the hand.
func NewRound(numSeats, bigBlind int) *Round {
	return &Round{
		MinRaise:            bigBlind,
		LastAggressor:       -1,
		actedSinceFullRaise: make([]bool, numSeats),
		bigBlind:            bigBlind,
	}
}

// ResetForStreet clears per-street state for the next betting round.
func (r *Round) ResetForStreet() {
	r.HighBet = 0
	r.MinRaise = r.bigBlind
	r.LastAggressor = -1
	for i := range r.actedSinceFullRaise {
		r.actedSinceFullRaise[i] = false
	}
}

// MarkActed records that a seat has acted since the last full raise.
func (r *Round) MarkActed(seat int) {
	r.actedSinceFullRaise[seat] = true
}

// HasActed reports whether a seat has acted since the last full raise.
func (r *Round) HasActed(seat int) bool {
	return r.actedSinceFullRaise[seat]
}

// ApplyRaise records a raise to amount by seat. A full raise (at least
// MinRaise above the previous high bet) re-opens the action: everyone else
// must act again. A short all-in raises the high bet without re-opening and
// leaves MinRaise unchanged.
func (r *Round) ApplyRaise(seat, amount int) {
	full := amount >= r.HighBet+r.MinRaise
	if full {
		r.MinRaise = amount - r.HighBet
		for i := range r.actedSinceFullRaise {
			r.actedSinceFullRaise[i] = false
		}
	}
	r.HighBet = amount
	r.LastAggressor = seat
	r.actedSinceFullRaise[seat] = true
}

// Closed is the round-closing predicate: all live, non-all-in seats have
// matched the high bet AND have had an opportunity to act since the last
// re-opening raise. Blinds are posted without marking the poster as acted,
// which is what gives the big blind its preflop option.
func (r *Round) Closed(seats []*Seat) bool {
	for _, s := range seats {
		if s == nil || !s.CanAct() {
			continue
		}
		if s.Bet != r.HighBet {
			return false
		}
		if !r.actedSinceFullRaise[s.Index] {
			return false
		}
	}
	return true
}

// LegalActions describes what the current actor may do.
type LegalActions struct {
	CanFold    bool `json:"can_fold"`
	CanCheck   bool `json:"can_check"`
	CanCall    bool `json:"can_call"`
	CallAmount int  `json:"call_amount,omitempty"` // additional chips, capped at stack
	CanRaise   bool `json:"can_raise"`
	MinRaiseTo int  `json:"min_raise_to,omitempty"` // new high bet, not the delta
	MaxRaiseTo int  `json:"max_raise_to,omitempty"` // all-in level
}

// Legal computes the legal actions for a seat. raiseTo amounts name the new
// high bet; a short all-in below the minimum raise is legal when it is the
// seat's whole stack.
func (r *Round) Legal(s *Seat) LegalActions {
	var la LegalActions
	if !s.CanAct() {
		return la
	}

	toCall := r.HighBet - s.Bet
	maxTo := s.Bet + s.Stack

	if toCall <= 0 {
		la.CanCheck = true
	} else {
		la.CanFold = true
		la.CanCall = true
		la.CallAmount = min(toCall, s.Stack)
	}

	// A seat that has already acted since the last full raise may not
	// re-raise; a short all-in does not re-open the betting for it.
	if !r.actedSinceFullRaise[s.Index] && maxTo > r.HighBet {
		la.CanRaise = true
		la.MinRaiseTo = min(r.HighBet+r.MinRaise, maxTo)
		la.MaxRaiseTo = maxTo
	}

	return la
}
