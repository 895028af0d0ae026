package table

import (
	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/poker"
)

// SeatView is one seat as seen by a subscriber. HoleCards are present only
// in the owning seat's own snapshot.
type SeatView struct {
	Seat      int      `json:"seat"`
	AgentID   string   `json:"agent_id"`
	Stack     int      `json:"stack"`
	Bet       int      `json:"bet"`
	Folded    bool     `json:"folded,omitempty"`
	AllIn     bool     `json:"all_in,omitempty"`
	InHand    bool     `json:"in_hand"`
	HoleCards []string `json:"hole_cards,omitempty"`
}

// Snapshot is the game state visible to one subscriber. The observer
// snapshot is the same shape with all hole cards hidden.
type Snapshot struct {
	TableID      string        `json:"table_id"`
	Status       string        `json:"status"`
	SmallBlind   int           `json:"small_blind"`
	BigBlind     int           `json:"big_blind"`
	HandNumber   uint64        `json:"hand_number,omitempty"`
	Phase        string        `json:"phase,omitempty"`
	Board        []string      `json:"board,omitempty"`
	Pots         []Pot         `json:"pots,omitempty"`
	PotTotal     int           `json:"pot_total"`
	Seats        []SeatView    `json:"seats"`
	DealerSeat   int           `json:"dealer_seat"`
	CurrentSeat  int           `json:"current_seat"`
	YourSeat     int           `json:"your_seat"` // -1 on the public snapshot
	LegalActions *LegalActions `json:"legal_actions,omitempty"`
	LastEventSeq uint64        `json:"last_event_seq"`
}

// Broadcast is one post-mutation fan-out unit: a frame per seated agent plus
// the public frame, all carrying the same state_seq.
type Broadcast struct {
	TableID       string
	StateSeq      uint64
	SeatFrames    map[int]*protocol.ServerMessage
	PublicFrame   *protocol.ServerMessage
	HandComplete  bool
	CompletedHand uint64
	NextActor     int // -1 when no one is to act
	TurnToken     string
	TimeoutMS     int
}

// snapshotFor builds the snapshot visible to a seat, or the public snapshot
// for seat -1.
func (t *Table) snapshotFor(seat int) *Snapshot {
	snap := &Snapshot{
		TableID:      t.ID,
		Status:       string(t.Status),
		SmallBlind:   t.Config.SmallBlind,
		BigBlind:     t.Config.BigBlind,
		DealerSeat:   -1,
		CurrentSeat:  -1,
		YourSeat:     seat,
		LastEventSeq: t.Log.LastSeq(),
	}

	for _, s := range t.Seats {
		if s == nil {
			continue
		}
		view := SeatView{
			Seat:    s.Index,
			AgentID: s.AgentID,
			Stack:   s.Stack,
			Bet:     s.Bet,
			Folded:  s.Folded,
			AllIn:   s.AllIn,
			InHand:  s.InHand,
		}
		if s.Index == seat && len(s.HoleCards) > 0 {
			view.HoleCards = poker.Strings(s.HoleCards)
		}
		snap.Seats = append(snap.Seats, view)
	}

	if h := t.Hand; h != nil {
		snap.HandNumber = h.Number
		snap.Phase = h.Phase.String()
		snap.Board = poker.Strings(h.Board)
		snap.Pots = h.Pots()
		snap.PotTotal = h.PotTotal()
		snap.DealerSeat = h.Dealer
		snap.CurrentSeat = h.Current
		if seat >= 0 && seat == h.Current {
			la := h.Legal(seat)
			snap.LegalActions = &la
		}
	}
	return snap
}
