package table

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/pokerforagents/internal/event"
	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/internal/randutil"
)

// Status is the table lifecycle state.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

// Config is the immutable table configuration.
type Config struct {
	SmallBlind      int
	BigBlind        int
	MaxSeats        int
	InitialStack    int
	ActionTimeoutMS int
	Seed            string
}

// Table owns its seats, current hand, event log cursor and snapshot
// counter. Every mutating method must be called under the table's action
// lock; the table itself does no locking.
type Table struct {
	ID         string
	Config     Config
	Status     Status
	Seats      []*Seat
	HandNumber uint64
	Hand       *Hand
	Log        *event.Log

	stateSeq uint64
	dealer   int // previous dealer seat, -1 before the first hand
	logger   *log.Logger
}

// New creates a table in the waiting state.
func New(id string, cfg Config, lg *event.Log, logger *log.Logger) *Table {
	return &Table{
		ID:     id,
		Config: cfg,
		Status: StatusWaiting,
		Seats:  make([]*Seat, cfg.MaxSeats),
		Log:    lg,
		dealer: -1,
		logger: logger.WithPrefix("table").With("table", id),
	}
}

// RestoreSeat reseats an agent from persisted state at startup or recovery.
func (t *Table) RestoreSeat(seat int, agentID string, stack int) {
	t.Seats[seat] = &Seat{Index: seat, AgentID: agentID, Stack: stack}
}

// SeatedCount returns the number of occupied seats.
func (t *Table) SeatedCount() int {
	n := 0
	for _, s := range t.Seats {
		if s != nil {
			n++
		}
	}
	return n
}

// FundedCount returns the number of seats that can be dealt in.
func (t *Table) FundedCount() int {
	n := 0
	for _, s := range t.Seats {
		if s != nil && s.Stack > 0 {
			n++
		}
	}
	return n
}

// SeatOf returns the seat index of an agent, or -1.
func (t *Table) SeatOf(agentID string) int {
	for _, s := range t.Seats {
		if s != nil && s.AgentID == agentID {
			return s.Index
		}
	}
	return -1
}

// SeatAgent assigns the lowest free seat to the agent with the configured
// initial stack and logs PLAYER_JOINED. Transitions waiting -> running when
// a second funded player arrives.
func (t *Table) SeatAgent(ctx context.Context, agentID string) (int, *Broadcast, error) {
	if t.Status == StatusEnded {
		return -1, nil, ErrTableEnded
	}
	if t.SeatOf(agentID) != -1 {
		return -1, nil, ErrAlreadySeated
	}

	seat := -1
	for i, s := range t.Seats {
		if s == nil {
			seat = i
			break
		}
	}
	if seat == -1 {
		return -1, nil, ErrTableFull
	}

	t.Seats[seat] = &Seat{Index: seat, AgentID: agentID, Stack: t.Config.InitialStack}

	events := []StepEvent{{
		Type: event.TypePlayerJoined,
		Payload: event.PlayerJoinedPayload{
			Seat:    seat,
			AgentID: agentID,
			Stack:   t.Config.InitialStack,
		},
	}}
	if t.Status == StatusWaiting && t.FundedCount() >= 2 {
		t.Status = StatusRunning
		events = append(events, StepEvent{Type: event.TypeTableStarted})
	}
	if err := t.appendEvents(ctx, 0, events); err != nil {
		return -1, nil, err
	}

	t.logger.Info("agent seated", "agent", agentID, "seat", seat)
	return seat, t.buildBroadcast(false, 0), nil
}

// UnseatAgent removes an agent, folding it first if it is in the current
// hand, and logs PLAYER_LEFT. The remaining stack is forfeit to the game
// only through blinds already posted; unplayed chips leave the table.
func (t *Table) UnseatAgent(ctx context.Context, agentID, reason string) (int, *Broadcast, error) {
	if t.Status == StatusEnded {
		return -1, nil, ErrTableEnded
	}
	seat := t.SeatOf(agentID)
	if seat == -1 {
		return -1, nil, ErrNotSeated
	}

	var events []StepEvent
	completed := uint64(0)
	if t.Hand != nil && t.Seats[seat].Live() {
		res := t.Hand.ForceFold(seat)
		events = append(events, res.Events...)
		if res.Complete {
			completed = t.Hand.Number
			t.Hand = nil
		}
	}

	events = append(events, StepEvent{
		Type: event.TypePlayerLeft,
		Payload: event.PlayerLeftPayload{
			Seat:    seat,
			AgentID: agentID,
			Reason:  reason,
		},
	})

	handNumber := uint64(0)
	if t.Hand != nil {
		handNumber = t.Hand.Number
	} else if completed != 0 {
		handNumber = completed
	}
	if err := t.appendEvents(ctx, handNumber, events); err != nil {
		return -1, nil, err
	}

	t.Seats[seat] = nil
	if t.Status == StatusRunning && t.Hand == nil && t.FundedCount() < 2 {
		t.Status = StatusWaiting
	}

	t.logger.Info("agent unseated", "agent", agentID, "seat", seat, "reason", reason)
	return seat, t.buildBroadcast(completed != 0, completed), nil
}

// StartHand begins the next hand. The dealer button advances one funded
// seat per hand; the first hand uses the lowest funded seat.
func (t *Table) StartHand(ctx context.Context) (*Broadcast, error) {
	if t.Status != StatusRunning {
		return nil, ErrNotRunning
	}
	if t.Hand != nil {
		return nil, fmt.Errorf("%w: hand %d in progress", ErrNotRunning, t.Hand.Number)
	}
	if t.FundedCount() < 2 {
		t.Status = StatusWaiting
		return nil, ErrNotRunning
	}

	dealer := t.nextFundedSeat(t.dealer + 1)

	t.HandNumber++
	rng := randutil.New(randutil.HandSeed(t.Config.Seed, t.HandNumber))
	hand, res := NewHand(t.Seats, t.HandNumber, dealer, t.Config.SmallBlind, t.Config.BigBlind, rng)
	t.Hand = hand
	t.dealer = dealer

	if err := t.appendEvents(ctx, hand.Number, res.Events); err != nil {
		return nil, err
	}

	completed := uint64(0)
	if res.Complete {
		completed = hand.Number
		t.Hand = nil
		t.afterHand()
	}

	t.logger.Info("hand started", "hand", hand.Number, "dealer", dealer)
	return t.buildBroadcast(completed != 0, completed), nil
}

// ApplyAction validates and applies one action from the current actor.
func (t *Table) ApplyAction(ctx context.Context, a Action) (*Broadcast, error) {
	if t.Status != StatusRunning || t.Hand == nil {
		return nil, ErrNoHand
	}
	hand := t.Hand
	res, err := hand.Apply(a)
	if err != nil {
		return nil, err
	}
	if err := t.appendEvents(ctx, hand.Number, res.Events); err != nil {
		return nil, err
	}

	completed := uint64(0)
	if res.Complete {
		completed = hand.Number
		t.Hand = nil
		t.afterHand()
	}
	return t.buildBroadcast(completed != 0, completed), nil
}

// TimeoutCurrent applies the default timeout action (check if legal, else
// fold) for the current actor, logging PLAYER_TIMEOUT ahead of the action.
func (t *Table) TimeoutCurrent(ctx context.Context) (*Broadcast, error) {
	if t.Status != StatusRunning || t.Hand == nil || t.Hand.Current == -1 {
		return nil, ErrNoHand
	}
	hand := t.Hand
	seat := hand.Current

	timeoutEv := []StepEvent{{
		Type: event.TypePlayerTimeout,
		Payload: event.PlayerTimeoutPayload{
			Seat:      seat,
			AgentID:   t.Seats[seat].AgentID,
			TimeoutMS: t.Config.ActionTimeoutMS,
		},
	}}
	if err := t.appendEvents(ctx, hand.Number, timeoutEv); err != nil {
		return nil, err
	}

	return t.ApplyAction(ctx, Action{
		Seat:      seat,
		Kind:      hand.DefaultAction(),
		TurnToken: hand.TurnToken,
		IsTimeout: true,
	})
}

// End terminates the table. Ending an already-ended table is a no-op.
func (t *Table) End(ctx context.Context) (*Broadcast, error) {
	if t.Status == StatusEnded {
		return nil, nil
	}
	t.Status = StatusEnded
	t.Hand = nil
	if err := t.appendEvents(ctx, 0, []StepEvent{{Type: event.TypeTableEnded}}); err != nil {
		return nil, err
	}
	t.logger.Info("table ended")
	return t.buildBroadcast(false, 0), nil
}

// Quiesce discards all in-memory hand state after a failed event write. The
// caller reseats players from the store and reopens the log before the
// table accepts traffic again.
func (t *Table) Quiesce(lg *event.Log) {
	t.Hand = nil
	t.Log = lg
	for i := range t.Seats {
		t.Seats[i] = nil
	}
	if t.Status == StatusRunning {
		t.Status = StatusWaiting
	}
	t.logger.Warn("table quiesced, in-memory state discarded")
}

// SnapshotFor returns the current snapshot frame for a seat (-1 for the
// public view), for connection bootstrap and replay after reconnect.
func (t *Table) SnapshotFor(seat int) *protocol.ServerMessage {
	token := ""
	if t.Hand != nil && seat >= 0 && seat == t.Hand.Current {
		token = t.Hand.TurnToken
	}
	return protocol.NewGameState(t.stateSeq, token, t.snapshotFor(seat))
}

func (t *Table) afterHand() {
	if t.FundedCount() < 2 && t.Status == StatusRunning {
		t.Status = StatusWaiting
	}
}

func (t *Table) nextFundedSeat(from int) int {
	n := len(t.Seats)
	for i := 0; i < n; i++ {
		idx := ((from + i) % n + n) % n
		if s := t.Seats[idx]; s != nil && s.Stack > 0 {
			return idx
		}
	}
	return -1
}

// appendEvents persists a batch in order. An event is logged only once the
// store acknowledges it; a failure here leaves the log cursor unchanged and
// the caller must quiesce the table.
func (t *Table) appendEvents(ctx context.Context, handNumber uint64, events []StepEvent) error {
	for _, ev := range events {
		if _, err := t.Log.Append(ctx, ev.Type, handNumber, ev.Payload); err != nil {
			return fmt.Errorf("append %s: %w", ev.Type, err)
		}
	}
	return nil
}

// buildBroadcast produces the per-seat and public frames for the state just
// reached, stamped with the next state_seq.
func (t *Table) buildBroadcast(handComplete bool, completedHand uint64) *Broadcast {
	t.stateSeq++

	b := &Broadcast{
		TableID:       t.ID,
		StateSeq:      t.stateSeq,
		SeatFrames:    make(map[int]*protocol.ServerMessage),
		HandComplete:  handComplete,
		CompletedHand: completedHand,
		NextActor:     -1,
		TimeoutMS:     t.Config.ActionTimeoutMS,
	}
	if t.Hand != nil {
		b.NextActor = t.Hand.Current
		b.TurnToken = t.Hand.TurnToken
	}

	frame := func(seat int) *protocol.ServerMessage {
		snap := t.snapshotFor(seat)
		if handComplete {
			return protocol.NewHandComplete(t.stateSeq, snap)
		}
		token := ""
		if seat >= 0 && seat == b.NextActor {
			token = b.TurnToken
		}
		return protocol.NewGameState(t.stateSeq, token, snap)
	}

	for _, s := range t.Seats {
		if s != nil {
			b.SeatFrames[s.Index] = frame(s.Index)
		}
	}
	b.PublicFrame = frame(-1)
	return b
}
