package table

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerforagents/internal/event"
	"github.com/lox/pokerforagents/internal/store"
)

func newTestTable(t *testing.T) (*Table, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	lg, err := event.Open(ctx, mem, "tbl1")
	require.NoError(t, err)

	cfg := Config{
		SmallBlind:      1,
		BigBlind:        2,
		MaxSeats:        4,
		InitialStack:    100,
		ActionTimeoutMS: 5000,
		Seed:            "table-test-seed",
	}
	return New("tbl1", cfg, lg, log.New(io.Discard)), mem
}

func eventTypes(t *testing.T, mem *store.Memory) []event.Type {
	t.Helper()
	events, err := mem.ListEvents(context.Background(), "tbl1", 1)
	require.NoError(t, err)
	types := make([]event.Type, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestSeatAgentAssignsLowestFreeSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, mem := newTestTable(t)

	seat, b, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, seat)
	assert.Equal(t, StatusWaiting, tbl.Status)
	assert.Equal(t, uint64(1), b.StateSeq)

	seat, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, seat)
	assert.Equal(t, StatusRunning, tbl.Status)

	types := eventTypes(t, mem)
	assert.Equal(t, []event.Type{
		event.TypePlayerJoined,
		event.TypePlayerJoined,
		event.TypeTableStarted,
	}, types)
}

func TestSeatAgentRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, _ := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "alice")
	assert.ErrorIs(t, err, ErrAlreadySeated)

	for _, name := range []string{"bob", "carol", "dave"} {
		_, _, err = tbl.SeatAgent(ctx, name)
		require.NoError(t, err)
	}
	_, _, err = tbl.SeatAgent(ctx, "eve")
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestStartHandRotatesDealer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, _ := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)

	// First hand: the button starts at the lowest funded seat.
	b, err := tbl.StartHand(ctx)
	require.NoError(t, err)
	require.NotNil(t, tbl.Hand)
	assert.Equal(t, 0, tbl.Hand.Dealer)
	assert.Equal(t, uint64(1), tbl.HandNumber)
	assert.Equal(t, tbl.Hand.Current, b.NextActor)
	assert.NotEmpty(t, b.TurnToken)

	// Heads-up fold ends the hand; the button then advances.
	_, err = tbl.ApplyAction(ctx, Action{
		Seat: tbl.Hand.Current, Kind: ActionFold, TurnToken: tbl.Hand.TurnToken,
	})
	require.NoError(t, err)
	require.Nil(t, tbl.Hand)

	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Hand.Dealer)
	assert.Equal(t, uint64(2), tbl.HandNumber)
}

func TestStartHandWhileHandInProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, _ := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)

	_, err = tbl.StartHand(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestApplyActionBroadcastCarriesSeatFrames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, _ := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	b, err := tbl.StartHand(ctx)
	require.NoError(t, err)

	// Only the current actor's frame carries the turn token.
	actor := b.NextActor
	assert.Equal(t, b.TurnToken, b.SeatFrames[actor].TurnToken)
	for seat, frame := range b.SeatFrames {
		if seat != actor {
			assert.Empty(t, frame.TurnToken)
		}
	}
	assert.Empty(t, b.PublicFrame.TurnToken)

	b, err = tbl.ApplyAction(ctx, Action{
		Seat: actor, Kind: ActionFold, TurnToken: b.TurnToken,
	})
	require.NoError(t, err)
	assert.True(t, b.HandComplete)
	assert.Equal(t, uint64(1), b.CompletedHand)
	assert.Equal(t, -1, b.NextActor)
}

func TestTimeoutCurrentLogsTimeoutThenAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, mem := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)

	// Small blind times out facing the big blind: default is fold.
	b, err := tbl.TimeoutCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, b.HandComplete)

	types := eventTypes(t, mem)
	var sawTimeout bool
	for i, typ := range types {
		if typ == event.TypePlayerTimeout {
			sawTimeout = true
			require.Less(t, i+1, len(types))
			assert.Equal(t, event.TypePlayerAction, types[i+1])
		}
	}
	assert.True(t, sawTimeout)
}

func TestUnseatAgentMidHandFoldsAndCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, mem := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)

	leaving := tbl.Seats[tbl.Hand.Current].AgentID
	seat, b, err := tbl.UnseatAgent(ctx, leaving, "left")
	require.NoError(t, err)
	assert.True(t, b.HandComplete)
	assert.Nil(t, tbl.Seats[seat])
	assert.Nil(t, tbl.Hand)
	assert.Equal(t, StatusWaiting, tbl.Status)

	types := eventTypes(t, mem)
	assert.Equal(t, event.TypePlayerLeft, types[len(types)-1])
}

func TestEndIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, mem := newTestTable(t)

	b, err := tbl.End(ctx)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, StatusEnded, tbl.Status)

	b, err = tbl.End(ctx)
	require.NoError(t, err)
	assert.Nil(t, b)

	count := 0
	for _, typ := range eventTypes(t, mem) {
		if typ == event.TypeTableEnded {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAppendFailurePropagates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, mem := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)

	mem.FailEvents = errors.New("disk full")
	_, err = tbl.ApplyAction(ctx, Action{
		Seat: tbl.Hand.Current, Kind: ActionFold, TurnToken: tbl.Hand.TurnToken,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidAction)
}

func TestQuiesceRestoresFromStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tbl, mem := newTestTable(t)

	_, _, err := tbl.SeatAgent(ctx, "alice")
	require.NoError(t, err)
	_, _, err = tbl.SeatAgent(ctx, "bob")
	require.NoError(t, err)
	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)

	lg, err := event.Open(ctx, mem, "tbl1")
	require.NoError(t, err)
	tbl.Quiesce(lg)
	assert.Nil(t, tbl.Hand)
	assert.Equal(t, 0, tbl.SeatedCount())

	// Reseat from persisted records as the manager does.
	tbl.RestoreSeat(0, "alice", 100)
	tbl.RestoreSeat(1, "bob", 100)
	tbl.Status = StatusRunning

	_, err = tbl.StartHand(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tbl.HandNumber)
}
