package table

import "github.com/lox/pokerforagents/poker"

// Seat is one seated agent. (table, seat index) uniquely identifies a
// player; an agent occupies at most one seat per table.
type Seat struct {
	Index   int
	AgentID string
	Stack   int

	// Per-hand state, reset at hand start.
	InHand    bool
	Bet       int // chips committed this betting round
	TotalBet  int // chips committed this hand
	Folded    bool
	AllIn     bool
	HoleCards []poker.Card
}

// Live reports whether the seat is still contesting the current hand.
func (s *Seat) Live() bool {
	return s != nil && s.InHand && !s.Folded
}

// CanAct reports whether the seat can still take actions this hand.
func (s *Seat) CanAct() bool {
	return s.Live() && !s.AllIn
}

// resetForHand clears per-hand state.
func (s *Seat) resetForHand() {
	s.InHand = false
	s.Bet = 0
	s.TotalBet = 0
	s.Folded = false
	s.AllIn = false
	s.HoleCards = nil
}

// commit moves up to n chips from the stack into the current bet, marking
// the seat all-in when the stack empties. Returns the amount actually moved.
func (s *Seat) commit(n int) int {
	if n > s.Stack {
		n = s.Stack
	}
	s.Stack -= n
	s.Bet += n
	s.TotalBet += n
	if s.Stack == 0 {
		s.AllIn = true
	}
	return n
}
