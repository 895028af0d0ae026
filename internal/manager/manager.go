// Package manager orchestrates the table runtimes: persistence, action
// locking, session lifecycle, broadcast fan-out and the timers that drive
// action timeouts, hand pacing and abandonment.
package manager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/pokerforagents/internal/event"
	"github.com/lox/pokerforagents/internal/hub"
	"github.com/lox/pokerforagents/internal/lock"
	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/internal/session"
	"github.com/lox/pokerforagents/internal/store"
	"github.com/lox/pokerforagents/internal/table"
)

// Options tune the pacing timers.
type Options struct {
	// NextHandDelay is the pause between a hand completing and the next
	// hand being dealt.
	NextHandDelay time.Duration
	// GraceTimeout is how long a seat may stay disconnected before it is
	// treated as abandoned and removed from the table.
	GraceTimeout time.Duration
	// DefaultActionTimeoutMS applies to tables created without one.
	DefaultActionTimeoutMS int
}

func (o *Options) withDefaults() {
	if o.NextHandDelay <= 0 {
		o.NextHandDelay = 2 * time.Second
	}
	if o.GraceTimeout <= 0 {
		o.GraceTimeout = 60 * time.Second
	}
	if o.DefaultActionTimeoutMS <= 0 {
		o.DefaultActionTimeoutMS = 30_000
	}
}

type seatRef struct {
	tableID string
	seat    int
}

// Manager owns every in-memory table. Table mutation and timer callbacks are
// serialized by that table's action lock, granted in strict arrival order;
// the registry maps below are shared across tables and guarded by mu. mu is
// never held across a lock acquisition or a store call.
type Manager struct {
	clock    quartz.Clock
	store    store.Store
	hub      *hub.Hub
	sessions *session.Registry
	locks    *lock.Keyed
	opts     Options
	logger   *log.Logger

	mu          sync.Mutex
	tables      map[string]*table.Table
	actionTimer map[string]*armedTimer
	nextHand    map[string]uint64 // hand number already scheduled per table
	graceTimer  map[seatRef]*quartz.Timer
	emptyTimer  map[string]*quartz.Timer
	connCount   map[seatRef]int
}

type armedTimer struct {
	token string
	timer *quartz.Timer
}

func New(clock quartz.Clock, st store.Store, h *hub.Hub, sessions *session.Registry, opts Options, logger *log.Logger) *Manager {
	opts.withDefaults()
	return &Manager{
		clock:       clock,
		store:       st,
		hub:         h,
		sessions:    sessions,
		locks:       lock.NewKeyed(),
		opts:        opts,
		logger:      logger.WithPrefix("manager"),
		tables:      make(map[string]*table.Table),
		actionTimer: make(map[string]*armedTimer),
		nextHand:    make(map[string]uint64),
		graceTimer:  make(map[seatRef]*quartz.Timer),
		emptyTimer:  make(map[string]*quartz.Timer),
		connCount:   make(map[seatRef]int),
	}
}

// Load restores every non-ended table from the store at startup. Hands do
// not survive a restart; a running table with enough funded seats resumes
// with a fresh hand once its players act or the pacing timer fires.
func (m *Manager) Load(ctx context.Context) error {
	records, err := m.store.ListTables(ctx, "")
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	restored := 0
	for i := range records {
		rec := &records[i]
		if rec.Status == string(table.StatusEnded) {
			continue
		}
		t, err := m.restoreTable(ctx, rec)
		if err != nil {
			return fmt.Errorf("restore table %s: %w", rec.ID, err)
		}
		m.mu.Lock()
		m.tables[rec.ID] = t
		m.mu.Unlock()
		restored++
		if t.Status == table.StatusRunning && t.FundedCount() >= 2 {
			m.scheduleNextHand(t.ID, t.HandNumber+1)
		}
		if t.SeatedCount() == 0 {
			m.armEmpty(t.ID)
		}
	}
	m.logger.Info("tables restored", "count", restored)
	return nil
}

func (m *Manager) restoreTable(ctx context.Context, rec *store.TableRecord) (*table.Table, error) {
	lg, err := event.Open(ctx, m.store, rec.ID)
	if err != nil {
		return nil, err
	}
	t := table.New(rec.ID, configFromRecord(rec), lg, m.logger)
	t.Status = table.Status(rec.Status)

	seats, err := m.store.GetSeats(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	for _, s := range seats {
		t.RestoreSeat(s.Seat, s.AgentID, s.Stack)
	}

	// Resume the hand counter past every hand already in the log so hand
	// numbers, and with them the per-hand shuffle seeds, are never reused.
	events, err := m.store.ListEvents(ctx, rec.ID, 1)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.HandNumber > t.HandNumber {
			t.HandNumber = ev.HandNumber
		}
	}
	return t, nil
}

func configFromRecord(rec *store.TableRecord) table.Config {
	return table.Config{
		SmallBlind:      rec.SmallBlind,
		BigBlind:        rec.BigBlind,
		MaxSeats:        rec.MaxSeats,
		InitialStack:    rec.InitialStack,
		ActionTimeoutMS: rec.ActionTimeoutMS,
		Seed:            rec.Seed,
	}
}

// CreateTable persists a new table and brings it online in the waiting
// state. A blank seed gets a random one; the seed never leaves the server.
func (m *Manager) CreateTable(ctx context.Context, rec *store.TableRecord) (*store.TableRecord, error) {
	if rec.SmallBlind <= 0 || rec.BigBlind < rec.SmallBlind {
		return nil, protocol.Errorf(protocol.CodeValidationError, "invalid blinds %d/%d", rec.SmallBlind, rec.BigBlind)
	}
	if rec.MaxSeats < 2 || rec.MaxSeats > 9 {
		return nil, protocol.Errorf(protocol.CodeValidationError, "max_seats must be 2-9, got %d", rec.MaxSeats)
	}
	if rec.InitialStack < rec.BigBlind {
		return nil, protocol.Errorf(protocol.CodeValidationError, "initial_stack below the big blind")
	}
	if rec.ActionTimeoutMS <= 0 {
		rec.ActionTimeoutMS = m.opts.DefaultActionTimeoutMS
	}
	if rec.ID == "" {
		rec.ID = newID("tbl")
	}
	if rec.Seed == "" {
		rec.Seed = newID("seed")
	}
	rec.Status = string(table.StatusWaiting)
	rec.CreatedAt = time.Now().UTC()

	if err := m.store.CreateTable(ctx, rec); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	release := m.locks.Acquire(rec.ID)
	defer release()

	lg, err := event.Open(ctx, m.store, rec.ID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.tables[rec.ID] = table.New(rec.ID, configFromRecord(rec), lg, m.logger)
	m.mu.Unlock()
	m.armEmpty(rec.ID)

	m.logger.Info("table created", "table", rec.ID, "blinds", fmt.Sprintf("%d/%d", rec.SmallBlind, rec.BigBlind))
	out := *rec
	out.Seed = ""
	return &out, nil
}

// TableSummary is a table record plus its live seat occupancy.
type TableSummary struct {
	store.TableRecord
	SeatedCount int
}

// ListTables returns table summaries, optionally filtered by status. Seeds
// are stripped.
func (m *Manager) ListTables(ctx context.Context, status string) ([]TableSummary, error) {
	records, err := m.store.ListTables(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]TableSummary, 0, len(records))
	for i := range records {
		records[i].Seed = ""
		seats, err := m.store.GetSeats(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TableSummary{TableRecord: records[i], SeatedCount: len(seats)})
	}
	return out, nil
}

// lookupTable resolves a table id; the returned table may only be used under
// its action lock.
func (m *Manager) lookupTable(tableID string) (*table.Table, error) {
	m.mu.Lock()
	t, ok := m.tables[tableID]
	m.mu.Unlock()
	if !ok {
		return nil, protocol.Errorf(protocol.CodeTableNotFound, "table %s not found", tableID)
	}
	return t, nil
}

// Join seats an agent and issues the session token that authorizes its
// websocket and subsequent actions. Seating the second funded player starts
// the first hand immediately.
func (m *Manager) Join(ctx context.Context, tableID, agentID string) (*session.Session, int, error) {
	release := m.locks.Acquire(tableID)
	defer release()

	t, err := m.lookupTable(tableID)
	if err != nil {
		return nil, -1, err
	}

	seat, b, err := t.SeatAgent(ctx, agentID)
	if err != nil {
		return nil, -1, m.mapTableError(ctx, t, err)
	}
	if err := m.store.UpsertSeat(ctx, &store.SeatRecord{
		TableID: tableID, Seat: seat, AgentID: agentID, Stack: t.Config.InitialStack,
	}); err != nil {
		m.quiesce(ctx, t)
		return nil, -1, protocol.Errorf(protocol.CodeInternalError, "persist seat")
	}
	if err := m.syncStatus(ctx, t); err != nil {
		m.quiesce(ctx, t)
		return nil, -1, protocol.Errorf(protocol.CodeInternalError, "persist status")
	}

	m.cancelEmpty(tableID)
	sess := m.sessions.Create(agentID, tableID, seat)
	m.handleBroadcast(ctx, t, b)

	if t.Status == table.StatusRunning && t.Hand == nil {
		if b, err := t.StartHand(ctx); err == nil {
			m.handleBroadcast(ctx, t, b)
		} else if !errors.Is(err, table.ErrNotRunning) {
			m.quiesce(ctx, t)
			return nil, -1, protocol.Errorf(protocol.CodeInternalError, "start hand")
		}
	}
	return sess, seat, nil
}

// Leave removes an agent from its seat, folding it out of any live hand.
func (m *Manager) Leave(ctx context.Context, tableID, agentID, reason string) error {
	release := m.locks.Acquire(tableID)
	defer release()
	return m.leaveLocked(ctx, tableID, agentID, reason)
}

func (m *Manager) leaveLocked(ctx context.Context, tableID, agentID, reason string) error {
	t, err := m.lookupTable(tableID)
	if err != nil {
		return err
	}

	seat, b, err := t.UnseatAgent(ctx, agentID, reason)
	if err != nil {
		return m.mapTableError(ctx, t, err)
	}
	if err := m.store.ClearSeat(ctx, tableID, seat); err != nil {
		m.quiesce(ctx, t)
		return protocol.Errorf(protocol.CodeInternalError, "clear seat")
	}
	if err := m.syncStatus(ctx, t); err != nil {
		m.quiesce(ctx, t)
		return protocol.Errorf(protocol.CodeInternalError, "persist status")
	}

	m.sessions.RevokeSeat(tableID, seat)
	m.cancelGrace(seatRef{tableID, seat})
	m.handleBroadcast(ctx, t, b)
	m.hub.KickSeat(tableID, seat, protocol.CodeNotSeated, "seat vacated")
	if t.SeatedCount() == 0 {
		m.armEmpty(tableID)
	}
	return nil
}

// Act applies one agent action identified by its session.
func (m *Manager) Act(ctx context.Context, sess *session.Session, kind table.ActionKind, amount int, turnToken string) error {
	release := m.locks.Acquire(sess.TableID)
	defer release()

	t, err := m.lookupTable(sess.TableID)
	if err != nil {
		return err
	}

	b, err := t.ApplyAction(ctx, table.Action{
		Seat:      sess.Seat,
		Kind:      kind,
		Amount:    amount,
		TurnToken: turnToken,
	})
	if err != nil {
		return m.mapTableError(ctx, t, err)
	}

	m.sessions.Refresh(sess.Token)
	m.handleBroadcast(ctx, t, b)
	return nil
}

// EndTable shuts a table down. Ending an ended table is a no-op.
func (m *Manager) EndTable(ctx context.Context, tableID string) error {
	release := m.locks.Acquire(tableID)
	defer release()

	t, err := m.lookupTable(tableID)
	if err != nil {
		return err
	}
	return m.endLocked(ctx, t)
}

func (m *Manager) endLocked(ctx context.Context, t *table.Table) error {
	b, err := t.End(ctx)
	if err != nil {
		m.quiesce(ctx, t)
		return protocol.Errorf(protocol.CodeInternalError, "end table")
	}
	if b == nil {
		return nil
	}
	if err := m.store.UpdateTableStatus(ctx, t.ID, string(table.StatusEnded)); err != nil {
		m.logger.Error("persist ended status", "table", t.ID, "err", err)
	}

	m.disarmAction(t.ID)
	m.cancelEmpty(t.ID)
	m.mu.Lock()
	delete(m.nextHand, t.ID)
	m.mu.Unlock()
	m.sessions.RevokeTable(t.ID)
	m.hub.Broadcast(b)
	m.hub.KickTable(t.ID, protocol.CodeTableEnded, "table ended")
	return nil
}

// armEmpty starts the abandonment clock for a table with no seated agents.
// Any join cancels it; expiry ends the table for good.
func (m *Manager) armEmpty(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timer, ok := m.emptyTimer[tableID]; ok {
		timer.Stop()
	}
	m.emptyTimer[tableID] = m.clock.AfterFunc(m.opts.GraceTimeout, func() {
		m.onEmptyTimeout(tableID)
	}, "empty")
}

func (m *Manager) cancelEmpty(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timer, ok := m.emptyTimer[tableID]; ok {
		timer.Stop()
		delete(m.emptyTimer, tableID)
	}
}

func (m *Manager) onEmptyTimeout(tableID string) {
	ctx := context.Background()
	release := m.locks.Acquire(tableID)
	defer release()

	m.mu.Lock()
	delete(m.emptyTimer, tableID)
	t, ok := m.tables[tableID]
	m.mu.Unlock()
	if !ok || t.Status == table.StatusEnded || t.SeatedCount() > 0 {
		return
	}
	m.logger.Info("ending abandoned table", "table", tableID)
	if err := m.endLocked(ctx, t); err != nil {
		m.logger.Error("end abandoned table", "table", tableID, "err", err)
	}
}

// TableConfig returns a table's runtime configuration with the seed
// stripped.
func (m *Manager) TableConfig(tableID string) (table.Config, error) {
	release := m.locks.Acquire(tableID)
	defer release()

	t, err := m.lookupTable(tableID)
	if err != nil {
		return table.Config{}, err
	}
	cfg := t.Config
	cfg.Seed = ""
	return cfg, nil
}

// SnapshotFrame returns the bootstrap frame for a new subscriber. seat is
// -1 for observers.
func (m *Manager) SnapshotFrame(tableID string, seat int) (*protocol.ServerMessage, error) {
	release := m.locks.Acquire(tableID)
	defer release()

	t, err := m.lookupTable(tableID)
	if err != nil {
		return nil, err
	}
	return t.SnapshotFor(seat), nil
}

// Events replays the persisted event log from fromSeq, for gap recovery.
func (m *Manager) Events(ctx context.Context, tableID string, fromSeq uint64) ([]event.Event, error) {
	return m.store.ListEvents(ctx, tableID, fromSeq)
}

// Attach subscribes a sink to a table's fan-out, handing it the bootstrap
// snapshot atomically so no broadcast can slot in ahead of it. Seated
// subscribers cancel any pending abandonment for their seat.
func (m *Manager) Attach(tableID string, seat int, policy hub.Policy, sink hub.Sink) (cancel func(), err error) {
	release := m.locks.Acquire(tableID)
	defer release()

	t, err := m.lookupTable(tableID)
	if err != nil {
		return nil, err
	}
	if seat >= 0 {
		ref := seatRef{tableID, seat}
		m.mu.Lock()
		m.connCount[ref]++
		m.mu.Unlock()
		m.cancelGrace(ref)
	}
	return m.hub.Subscribe(tableID, seat, policy, sink, t.SnapshotFor(seat)), nil
}

// SeatDisconnected starts the abandonment grace timer once the last
// connection for a seat drops.
func (m *Manager) SeatDisconnected(tableID string, seat int, agentID string) {
	release := m.locks.Acquire(tableID)
	defer release()

	ref := seatRef{tableID, seat}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connCount[ref] > 0 {
		m.connCount[ref]--
	}
	if m.connCount[ref] > 0 {
		return
	}
	delete(m.connCount, ref)
	if _, ok := m.tables[tableID]; !ok {
		return
	}

	if timer, ok := m.graceTimer[ref]; ok {
		timer.Stop()
	}
	m.graceTimer[ref] = m.clock.AfterFunc(m.opts.GraceTimeout, func() {
		ctx := context.Background()
		release := m.locks.Acquire(tableID)
		defer release()

		m.mu.Lock()
		reconnected := m.connCount[ref] > 0
		if !reconnected {
			delete(m.graceTimer, ref)
		}
		m.mu.Unlock()
		if reconnected {
			return
		}
		m.logger.Info("seat abandoned", "table", tableID, "seat", seat, "agent", agentID)
		if err := m.leaveLocked(ctx, tableID, agentID, "abandoned"); err != nil {
			m.logger.Error("abandonment leave", "table", tableID, "err", err)
		}
	}, "grace")
}

func (m *Manager) cancelGrace(ref seatRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timer, ok := m.graceTimer[ref]; ok {
		timer.Stop()
		delete(m.graceTimer, ref)
	}
}

// handleBroadcast fans the frames out and drives the timer state machine:
// arm the action timeout when someone is to act, schedule the next hand
// when one just finished. Must be called under the table lock.
func (m *Manager) handleBroadcast(ctx context.Context, t *table.Table, b *table.Broadcast) {
	m.hub.Broadcast(b)

	if b.HandComplete {
		m.disarmAction(t.ID)
		m.persistStacks(ctx, t)
		if t.Status == table.StatusRunning {
			m.scheduleNextHand(t.ID, t.HandNumber+1)
		}
		return
	}
	if b.NextActor >= 0 {
		m.armAction(t.ID, b.TurnToken, time.Duration(b.TimeoutMS)*time.Millisecond)
	} else {
		m.disarmAction(t.ID)
	}
}

func (m *Manager) persistStacks(ctx context.Context, t *table.Table) {
	for _, s := range t.Seats {
		if s == nil {
			continue
		}
		err := m.store.UpsertSeat(ctx, &store.SeatRecord{
			TableID: t.ID, Seat: s.Index, AgentID: s.AgentID, Stack: s.Stack,
		})
		if err != nil {
			m.logger.Error("persist stack", "table", t.ID, "seat", s.Index, "err", err)
		}
	}
}

func (m *Manager) dropTable(tableID string) {
	m.mu.Lock()
	delete(m.tables, tableID)
	m.mu.Unlock()
}

func (m *Manager) syncStatus(ctx context.Context, t *table.Table) error {
	if err := m.store.UpdateTableStatus(ctx, t.ID, string(t.Status)); err != nil {
		m.logger.Error("persist status", "table", t.ID, "err", err)
		return fmt.Errorf("persist status: %w", err)
	}
	return nil
}

// armAction starts the action timeout for the current turn token. The
// callback re-checks the token under the lock, so a timer that fires after
// the player already acted is a no-op.
func (m *Manager) armAction(tableID, token string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if at, ok := m.actionTimer[tableID]; ok {
		at.timer.Stop()
	}
	at := &armedTimer{token: token}
	at.timer = m.clock.AfterFunc(d, func() {
		m.onActionTimeout(tableID, token)
	}, "action")
	m.actionTimer[tableID] = at
}

func (m *Manager) disarmAction(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if at, ok := m.actionTimer[tableID]; ok {
		at.timer.Stop()
		delete(m.actionTimer, tableID)
	}
}

func (m *Manager) onActionTimeout(tableID, token string) {
	ctx := context.Background()
	release := m.locks.Acquire(tableID)
	defer release()

	m.mu.Lock()
	t, tok := m.tables[tableID]
	at, aok := m.actionTimer[tableID]
	m.mu.Unlock()
	if !tok || !aok || at.token != token {
		return
	}
	if t.Hand == nil || t.Hand.TurnToken != token {
		return
	}
	m.mu.Lock()
	delete(m.actionTimer, tableID)
	m.mu.Unlock()

	m.logger.Info("action timeout", "table", tableID, "seat", t.Hand.Current)
	b, err := t.TimeoutCurrent(ctx)
	if err != nil {
		m.quiesce(ctx, t)
		return
	}
	m.handleBroadcast(ctx, t, b)
}

// scheduleNextHand arms the pacing timer for the given hand number, at most
// once per number.
func (m *Manager) scheduleNextHand(tableID string, number uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nextHand[tableID] >= number {
		return
	}
	m.nextHand[tableID] = number
	m.clock.AfterFunc(m.opts.NextHandDelay, func() {
		m.onNextHand(tableID, number)
	}, "nexthand")
}

func (m *Manager) onNextHand(tableID string, number uint64) {
	ctx := context.Background()
	release := m.locks.Acquire(tableID)
	defer release()

	m.mu.Lock()
	t, ok := m.tables[tableID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if t.Hand != nil || t.HandNumber >= number || t.Status != table.StatusRunning {
		return
	}

	b, err := t.StartHand(ctx)
	if err != nil {
		if errors.Is(err, table.ErrNotRunning) {
			m.syncStatus(ctx, t)
			return
		}
		m.quiesce(ctx, t)
		return
	}
	m.handleBroadcast(ctx, t, b)
}

// quiesce handles a failed event write: drop every subscriber, discard
// in-memory hand state and rebuild the table from the store. Chips revert
// to the last completed hand.
func (m *Manager) quiesce(ctx context.Context, t *table.Table) {
	m.logger.Error("quiescing table after storage failure", "table", t.ID)
	m.disarmAction(t.ID)
	m.hub.KickTable(t.ID, protocol.CodeInternalError, "table quiesced")
	m.sessions.RevokeTable(t.ID)

	lg, err := event.Open(ctx, m.store, t.ID)
	if err != nil {
		m.logger.Error("reopen log", "table", t.ID, "err", err)
		m.dropTable(t.ID)
		return
	}
	t.Quiesce(lg)

	seats, err := m.store.GetSeats(ctx, t.ID)
	if err != nil {
		m.logger.Error("reload seats", "table", t.ID, "err", err)
		m.dropTable(t.ID)
		return
	}
	for _, s := range seats {
		t.RestoreSeat(s.Seat, s.AgentID, s.Stack)
	}
	if t.FundedCount() >= 2 {
		t.Status = table.StatusRunning
		m.scheduleNextHand(t.ID, t.HandNumber+1)
	}
	if t.SeatedCount() == 0 {
		m.armEmpty(t.ID)
	}
	m.syncStatus(ctx, t)
}

// mapTableError converts table sentinels to wire errors. Anything that is
// not a validation sentinel came from the event log and quiesces the table.
func (m *Manager) mapTableError(ctx context.Context, t *table.Table, err error) error {
	switch {
	case errors.Is(err, table.ErrNotYourTurn):
		return protocol.Errorf(protocol.CodeNotYourTurn, "not your turn")
	case errors.Is(err, table.ErrStaleToken):
		return protocol.Errorf(protocol.CodeStaleSeq, "turn token is stale")
	case errors.Is(err, table.ErrInvalidAction):
		return protocol.Errorf(protocol.CodeInvalidAction, "%s", err.Error())
	case errors.Is(err, table.ErrHandComplete), errors.Is(err, table.ErrNoHand):
		return protocol.Errorf(protocol.CodeInvalidTableState, "no hand in progress")
	case errors.Is(err, table.ErrTableFull):
		return protocol.Errorf(protocol.CodeTableFull, "table is full")
	case errors.Is(err, table.ErrAlreadySeated):
		return protocol.Errorf(protocol.CodeAlreadySeated, "agent already seated")
	case errors.Is(err, table.ErrNotSeated):
		return protocol.Errorf(protocol.CodeNotSeated, "agent is not seated")
	case errors.Is(err, table.ErrTableEnded):
		return protocol.Errorf(protocol.CodeTableEnded, "table has ended")
	case errors.Is(err, table.ErrNotRunning):
		return protocol.Errorf(protocol.CodeInvalidTableState, "table is not running")
	default:
		m.quiesce(ctx, t)
		return protocol.Errorf(protocol.CodeInternalError, "internal error")
	}
}

func newID(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
