package store

import (
	"context"
	"sync"
	"time"

	"github.com/lox/pokerforagents/internal/event"
)

// Memory implements Store entirely in memory. Used by tests and ephemeral
// servers; semantics match the sqlite implementation.
type Memory struct {
	mu     sync.RWMutex
	agents map[string]*AgentRecord
	byKey  map[string]string // api_key -> agent id
	tables map[string]*TableRecord
	order  []string
	seats  map[string]map[int]*SeatRecord
	events map[string][]event.Event

	// FailEvents forces CreateEvent to return this error, for quiesce tests.
	FailEvents error
	// FailStatus forces UpdateTableStatus to return this error.
	FailStatus error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents: make(map[string]*AgentRecord),
		byKey:  make(map[string]string),
		tables: make(map[string]*TableRecord),
		seats:  make(map[string]map[int]*SeatRecord),
		events: make(map[string][]event.Event),
	}
}

func (m *Memory) CreateEvent(ctx context.Context, ev *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailEvents != nil {
		return m.FailEvents
	}
	evs := m.events[ev.TableID]
	if want := uint64(len(evs)) + 1; ev.Seq != want {
		return ErrConflict
	}
	cp := *ev
	cp.Payload = append([]byte(nil), ev.Payload...)
	m.events[ev.TableID] = append(evs, cp)
	return nil
}

func (m *Memory) LastEventSeq(ctx context.Context, tableID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.events[tableID])), nil
}

func (m *Memory) ListEvents(ctx context.Context, tableID string, fromSeq uint64) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evs := m.events[tableID]
	var out []event.Event
	for _, ev := range evs {
		if ev.Seq >= fromSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) CreateAgent(ctx context.Context, a *AgentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[a.ID]; ok {
		return ErrConflict
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	m.agents[a.ID] = &cp
	m.byKey[a.APIKey] = a.ID
	return nil
}

func (m *Memory) GetAgentByID(ctx context.Context, id string) (*AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) GetAgentByKey(ctx context.Context, apiKey string) (*AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[apiKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.agents[id]
	return &cp, nil
}

func (m *Memory) CreateTable(ctx context.Context, t *TableRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.ID]; ok {
		return ErrConflict
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	m.tables[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *Memory) ListTables(ctx context.Context, status string) ([]TableRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TableRecord
	for _, id := range m.order {
		t := m.tables[id]
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *Memory) UpdateTableStatus(ctx context.Context, tableID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStatus != nil {
		return m.FailStatus
	}
	t, ok := m.tables[tableID]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *Memory) GetSeats(ctx context.Context, tableID string) ([]SeatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SeatRecord
	for _, r := range m.seats[tableID] {
		out = append(out, *r)
	}
	// Stable order by seat index.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Seat > out[j].Seat; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}

func (m *Memory) UpsertSeat(ctx context.Context, r *SeatRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seats[r.TableID] == nil {
		m.seats[r.TableID] = make(map[int]*SeatRecord)
	}
	cp := *r
	m.seats[r.TableID][r.Seat] = &cp
	return nil
}

func (m *Memory) ClearSeat(ctx context.Context, tableID string, seat int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seats[tableID], seat)
	return nil
}

func (m *Memory) Close() error { return nil }
