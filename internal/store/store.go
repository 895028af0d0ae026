// Package store is the narrow persistence boundary for the table runtime.
// No SQL leaks past this interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lox/pokerforagents/internal/event"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

// AgentRecord is a registered agent identity.
type AgentRecord struct {
	ID        string
	Name      string
	APIKey    string
	CreatedAt time.Time
}

// TableRecord is the persisted table row.
type TableRecord struct {
	ID              string
	Status          string
	SmallBlind      int
	BigBlind        int
	MaxSeats        int
	InitialStack    int
	ActionTimeoutMS int
	Seed            string
	CreatedAt       time.Time
}

// SeatRecord is one occupied seat at a table.
type SeatRecord struct {
	TableID string
	Seat    int
	AgentID string
	Stack   int
}

// Store is everything the core consumes from persistence. Event writes are
// partitioned by table; callers serialize per-table access via the action
// lock.
type Store interface {
	event.Sink

	CreateAgent(ctx context.Context, a *AgentRecord) error
	GetAgentByID(ctx context.Context, id string) (*AgentRecord, error)
	GetAgentByKey(ctx context.Context, apiKey string) (*AgentRecord, error)

	CreateTable(ctx context.Context, t *TableRecord) error
	ListTables(ctx context.Context, status string) ([]TableRecord, error)
	UpdateTableStatus(ctx context.Context, tableID, status string) error

	GetSeats(ctx context.Context, tableID string) ([]SeatRecord, error)
	UpsertSeat(ctx context.Context, s *SeatRecord) error
	ClearSeat(ctx context.Context, tableID string, seat int) error

	Close() error
}
