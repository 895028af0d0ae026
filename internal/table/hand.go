package table

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand/v2"
	"strconv"

	"github.com/lox/pokerforagents/internal/event"
	"github.com/lox/pokerforagents/poker"
)

// Action is one submitted player action. TurnToken must match the token
// issued with the actor's current turn or the action is rejected stale.
type Action struct {
	Seat      int
	Kind      ActionKind
	Amount    int // raiseTo: the new high bet, not the delta
	TurnToken string
	IsTimeout bool
}

// StepEvent is an event produced by a state transition, to be appended to
// the table's log in order.
type StepEvent struct {
	Type    event.Type
	Payload any
}

// StepResult is the outcome of applying an action (or starting a hand).
type StepResult struct {
	Events   []StepEvent
	Complete bool
}

// Hand is one deal from shuffle to pot award. It is exclusively owned by
// its Table and mutated only under the table's action lock, so it carries
// no locking of its own.
type Hand struct {
	Number    uint64
	Dealer    int
	SBSeat    int
	BBSeat    int
	Phase     Phase
	Board     []poker.Card
	Current   int // seat that must act, -1 when none
	Round     *Round
	TurnToken string

	seats  []*Seat
	deck   *poker.Deck
	sb, bb int
}

// NewHand deals a hand to every seat with chips, posts blinds and sets the
// first actor. The returned events start with HAND_START.
func NewHand(seats []*Seat, number uint64, dealer, smallBlind, bigBlind int, rng *mrand.Rand) (*Hand, *StepResult) {
	h := &Hand{
		Number:  number,
		Dealer:  dealer,
		Phase:   PhasePreflop,
		Current: -1,
		Round:   NewRound(len(seats), bigBlind),
		seats:   seats,
		deck:    poker.NewDeck(rng),
		sb:      smallBlind,
		bb:      bigBlind,
	}

	stacks := make(map[string]int)
	for _, s := range seats {
		if s == nil {
			continue
		}
		s.resetForHand()
		if s.Stack > 0 {
			s.InHand = true
			stacks[strconv.Itoa(s.Index)] = s.Stack
		}
	}

	if h.headsUp() {
		// Heads-up: the dealer posts the small blind and acts first preflop.
		h.SBSeat = h.nextInHand(dealer)
		h.BBSeat = h.nextInHand(h.SBSeat + 1)
	} else {
		h.SBSeat = h.nextInHand(dealer + 1)
		h.BBSeat = h.nextInHand(h.SBSeat + 1)
	}

	// A short stack posts its whole stack and is all-in.
	h.seats[h.SBSeat].commit(smallBlind)
	h.seats[h.BBSeat].commit(bigBlind)
	h.Round.HighBet = bigBlind
	h.Round.LastAggressor = h.BBSeat

	// Two hole cards per seat, dealt starting left of the dealer.
	start := h.nextInHand(dealer + 1)
	idx := start
	for {
		h.seats[idx].HoleCards = h.deck.Deal(2)
		idx = h.nextInHand(idx + 1)
		if idx == start {
			break
		}
	}

	res := &StepResult{Events: []StepEvent{{
		Type: event.TypeHandStart,
		Payload: event.HandStartPayload{
			HandNumber: number,
			DealerSeat: dealer,
			SBSeat:     h.SBSeat,
			BBSeat:     h.BBSeat,
			SmallBlind: smallBlind,
			BigBlind:   bigBlind,
			Stacks:     stacks,
		},
	}}}

	h.Current = h.firstToAct()
	if h.Current == -1 || h.Round.Closed(h.seats) {
		// Blinds put everyone all-in; run the board out.
		h.Current = -1
		h.nextStreet(res)
	} else {
		h.issueToken()
	}
	return h, res
}

// Apply validates and applies an action. Validation failures return an
// error without mutating state.
func (h *Hand) Apply(a Action) (*StepResult, error) {
	if h.Phase >= PhaseShowdown {
		return nil, ErrHandComplete
	}
	if a.Seat < 0 || a.Seat >= len(h.seats) || h.seats[a.Seat] == nil {
		return nil, ErrNotYourTurn
	}
	if a.Seat != h.Current {
		return nil, ErrNotYourTurn
	}
	if a.TurnToken != h.TurnToken {
		return nil, ErrStaleToken
	}

	s := h.seats[a.Seat]
	la := h.Round.Legal(s)

	switch a.Kind {
	case ActionFold:
		if !la.CanFold {
			return nil, ErrInvalidAction
		}
		s.Folded = true

	case ActionCheck:
		if !la.CanCheck {
			return nil, ErrInvalidAction
		}

	case ActionCall:
		if !la.CanCall {
			return nil, ErrInvalidAction
		}
		s.commit(h.Round.HighBet - s.Bet)

	case ActionRaiseTo:
		if !la.CanRaise {
			return nil, ErrInvalidAction
		}
		maxTo := s.Bet + s.Stack
		if a.Amount <= h.Round.HighBet || a.Amount > maxTo {
			return nil, ErrInvalidAction
		}
		// Below the minimum raise is legal only as an all-in.
		if a.Amount < la.MinRaiseTo && a.Amount != maxTo {
			return nil, ErrInvalidAction
		}
		s.commit(a.Amount - s.Bet)
		h.Round.ApplyRaise(a.Seat, a.Amount)

	default:
		return nil, ErrInvalidAction
	}
	h.Round.MarkActed(a.Seat)

	res := &StepResult{Events: []StepEvent{{
		Type: event.TypePlayerAction,
		Payload: event.PlayerActionPayload{
			Seat:      a.Seat,
			AgentID:   s.AgentID,
			Kind:      string(a.Kind),
			Amount:    a.Amount,
			Street:    h.Phase.String(),
			IsTimeout: a.IsTimeout,
			Pot:       h.PotTotal(),
		},
	}}}

	h.advance(res)
	return res, nil
}

// DefaultAction is the timeout action for the current seat: check if legal,
// else fold.
func (h *Hand) DefaultAction() ActionKind {
	if h.Current == -1 {
		return ActionCheck
	}
	if h.Round.Legal(h.seats[h.Current]).CanCheck {
		return ActionCheck
	}
	return ActionFold
}

// ForceFold folds a seat out of turn (leave, kick, disconnect cleanup).
func (h *Hand) ForceFold(seat int) *StepResult {
	s := h.seats[seat]
	if s == nil || !s.Live() || h.Phase >= PhaseShowdown {
		return &StepResult{}
	}
	s.Folded = true
	h.Round.MarkActed(seat)

	res := &StepResult{Events: []StepEvent{{
		Type: event.TypePlayerAction,
		Payload: event.PlayerActionPayload{
			Seat:    seat,
			AgentID: s.AgentID,
			Kind:    string(ActionFold),
			Street:  h.Phase.String(),
			Pot:     h.PotTotal(),
		},
	}}}

	if seat == h.Current {
		h.advance(res)
	} else if h.liveCount() == 1 {
		h.settleFoldOut(res)
	} else if h.Round.Closed(h.seats) {
		h.nextStreet(res)
	}
	return res
}

// Legal returns the legal actions for a seat right now.
func (h *Hand) Legal(seat int) LegalActions {
	if h.Phase >= PhaseShowdown || seat != h.Current {
		return LegalActions{}
	}
	return h.Round.Legal(h.seats[seat])
}

// PotTotal is the total of all chips committed this hand.
func (h *Hand) PotTotal() int {
	total := 0
	for _, s := range h.seats {
		if s != nil {
			total += s.TotalBet
		}
	}
	return total
}

// Pots returns the current pot structure including live street bets.
func (h *Hand) Pots() []Pot {
	return BuildPots(h.seats)
}

func (h *Hand) headsUp() bool {
	n := 0
	for _, s := range h.seats {
		if s != nil && s.InHand {
			n++
		}
	}
	return n == 2
}

func (h *Hand) liveCount() int {
	n := 0
	for _, s := range h.seats {
		if s.Live() {
			n++
		}
	}
	return n
}

// nextInHand scans clockwise from the given index for a seat in the hand.
func (h *Hand) nextInHand(from int) int {
	return h.scan(from, func(s *Seat) bool { return s != nil && s.InHand })
}

// nextCanAct scans clockwise for a seat that can still act.
func (h *Hand) nextCanAct(from int) int {
	return h.scan(from, func(s *Seat) bool { return s.CanAct() })
}

func (h *Hand) scan(from int, pred func(*Seat) bool) int {
	n := len(h.seats)
	for i := 0; i < n; i++ {
		idx := ((from + i) % n + n) % n
		if pred(h.seats[idx]) {
			return idx
		}
	}
	return -1
}

func (h *Hand) firstToAct() int {
	if h.Phase == PhasePreflop {
		if h.headsUp() {
			return h.nextCanAct(h.SBSeat)
		}
		return h.nextCanAct(h.BBSeat + 1)
	}
	return h.nextCanAct(h.Dealer + 1)
}

func (h *Hand) advance(res *StepResult) {
	if h.liveCount() == 1 {
		h.settleFoldOut(res)
		return
	}
	if h.Round.Closed(h.seats) {
		h.nextStreet(res)
		return
	}
	h.Current = h.nextCanAct(h.Current + 1)
	h.issueToken()
}

// nextStreet deals the next street(s). When nobody can act (everyone
// all-in) it keeps dealing through to showdown.
func (h *Hand) nextStreet(res *StepResult) {
	for {
		for _, s := range h.seats {
			if s != nil {
				s.Bet = 0
			}
		}
		h.Round.ResetForStreet()

		var cards []poker.Card
		switch h.Phase {
		case PhasePreflop:
			h.Phase = PhaseFlop
			cards = h.deck.Deal(3)
		case PhaseFlop:
			h.Phase = PhaseTurn
			cards = h.deck.Deal(1)
		case PhaseTurn:
			h.Phase = PhaseRiver
			cards = h.deck.Deal(1)
		case PhaseRiver:
			h.settleShowdown(res)
			return
		default:
			return
		}
		h.Board = append(h.Board, cards...)

		res.Events = append(res.Events, StepEvent{
			Type: event.TypeStreetDealt,
			Payload: event.StreetDealtPayload{
				Street: h.Phase.String(),
				Cards:  poker.Strings(cards),
				Board:  poker.Strings(h.Board),
			},
		})

		h.Current = h.firstToAct()
		if h.Current != -1 && !h.Round.Closed(h.seats) {
			h.issueToken()
			return
		}
		h.Current = -1
	}
}

// settleFoldOut awards the pots to the last live seat without a showdown.
// Folded contributions nobody could match go back to their owners first.
func (h *Hand) settleFoldOut(res *StepResult) {
	refunds := h.refundUncalled()
	pots := BuildPots(h.seats)
	var survivor *Seat
	for _, s := range h.seats {
		if s.Live() {
			survivor = s
			break
		}
	}
	for i, pot := range pots {
		survivor.Stack += pot.Amount
		res.Events = append(res.Events, StepEvent{
			Type: event.TypePotAwarded,
			Payload: event.PotAwardedPayload{
				PotIndex: i,
				Amount:   pot.Amount,
				Seats:    []int{survivor.Index},
				Shares:   []int{pot.Amount},
			},
		})
	}
	h.emitRefunds(res, len(pots), refunds)
	h.complete(res)
}

// settleShowdown evaluates every contender's best five of seven and awards
// each pot to the best hand(s) among its eligible seats. Ties split evenly;
// odd chips go to the earliest winner left of the dealer.
func (h *Hand) settleShowdown(res *StepResult) {
	h.Phase = PhaseShowdown
	h.Current = -1
	h.TurnToken = ""

	values := make(map[int]poker.HandValue)
	var entries []event.ShowdownEntry
	for _, s := range h.seats {
		if !s.Live() {
			continue
		}
		v := poker.Evaluate(append(append([]poker.Card(nil), s.HoleCards...), h.Board...))
		values[s.Index] = v
		entries = append(entries, event.ShowdownEntry{
			Seat:      s.Index,
			AgentID:   s.AgentID,
			HoleCards: poker.Strings(s.HoleCards),
			HandRank:  v.Category.String(),
		})
	}
	res.Events = append(res.Events, StepEvent{
		Type: event.TypeShowdown,
		Payload: event.ShowdownPayload{
			Board: poker.Strings(h.Board),
			Hands: entries,
		},
	})

	refunds := h.refundUncalled()
	pots := BuildPots(h.seats)
	for i, pot := range pots {
		winners := h.potWinners(pot, values)
		share := pot.Amount / len(winners)
		rem := pot.Amount % len(winners)
		shares := make([]int, len(winners))
		for j, seat := range winners {
			shares[j] = share
			if j < rem {
				shares[j]++
			}
			h.seats[seat].Stack += shares[j]
		}
		res.Events = append(res.Events, StepEvent{
			Type: event.TypePotAwarded,
			Payload: event.PotAwardedPayload{
				PotIndex: i,
				Amount:   pot.Amount,
				Seats:    winners,
				Shares:   shares,
			},
		})
	}
	h.emitRefunds(res, len(pots), refunds)
	h.complete(res)
}

type refund struct {
	seat   int
	amount int
}

// refundUncalled returns to each folded seat the part of its contribution
// above the highest amount any remaining contender put in. Those chips can
// never be won, so they must not reach a pot: a force-folded top contributor
// would otherwise leave a pot with no eligible seat.
func (h *Hand) refundUncalled() []refund {
	matched := 0
	for _, s := range h.seats {
		if s == nil || !s.InHand || s.Folded {
			continue
		}
		if s.TotalBet > matched {
			matched = s.TotalBet
		}
	}

	var refunds []refund
	for _, s := range h.seats {
		if s == nil || !s.InHand || !s.Folded || s.TotalBet <= matched {
			continue
		}
		amount := s.TotalBet - matched
		s.TotalBet = matched
		s.Stack += amount
		refunds = append(refunds, refund{seat: s.Index, amount: amount})
	}
	return refunds
}

func (h *Hand) emitRefunds(res *StepResult, nextIndex int, refunds []refund) {
	for i, r := range refunds {
		res.Events = append(res.Events, StepEvent{
			Type: event.TypePotAwarded,
			Payload: event.PotAwardedPayload{
				PotIndex: nextIndex + i,
				Amount:   r.amount,
				Seats:    []int{r.seat},
				Shares:   []int{r.amount},
			},
		})
	}
}

// potWinners returns the winning seats for one pot, ordered clockwise from
// the dealer's left so odd-chip distribution is deterministic.
func (h *Hand) potWinners(pot Pot, values map[int]poker.HandValue) []int {
	ordered := make([]int, 0, len(pot.Eligible))
	n := len(h.seats)
	for i := 1; i <= n; i++ {
		idx := (h.Dealer + i) % n
		for _, e := range pot.Eligible {
			if e == idx {
				ordered = append(ordered, idx)
			}
		}
	}

	var winners []int
	for _, seat := range ordered {
		if len(winners) == 0 {
			winners = []int{seat}
			continue
		}
		switch poker.Compare(values[seat], values[winners[0]]) {
		case 1:
			winners = []int{seat}
		case 0:
			winners = append(winners, seat)
		}
	}
	return winners
}

func (h *Hand) complete(res *StepResult) {
	h.Phase = PhaseComplete
	h.Current = -1
	h.TurnToken = ""

	stacks := make(map[string]int)
	for _, s := range h.seats {
		if s != nil && s.InHand {
			stacks[strconv.Itoa(s.Index)] = s.Stack
		}
	}
	res.Events = append(res.Events, StepEvent{
		Type: event.TypeHandComplete,
		Payload: event.HandCompletePayload{
			HandNumber: h.Number,
			Stacks:     stacks,
		},
	})
	res.Complete = true
}

// issueToken generates a fresh opaque turn token. Tokens are the per-turn
// idempotency key; they are never derived from the event seq.
func (h *Hand) issueToken() {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("table: read random: " + err.Error())
	}
	h.TurnToken = hex.EncodeToString(b[:])
}
