package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lox/pokerforagents/internal/event"
)

// SQLite implements Store on a sqlite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initialises) the database at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			api_key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			small_blind INTEGER NOT NULL,
			big_blind INTEGER NOT NULL,
			max_seats INTEGER NOT NULL,
			initial_stack INTEGER NOT NULL,
			action_timeout_ms INTEGER NOT NULL,
			seed TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seats (
			table_id TEXT NOT NULL,
			seat INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			stack INTEGER NOT NULL,
			PRIMARY KEY (table_id, seat)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			table_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			hand_number INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL,
			payload BLOB,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (table_id, seq)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func (s *SQLite) CreateEvent(ctx context.Context, ev *event.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (table_id, seq, hand_number, type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.TableID, ev.Seq, ev.HandNumber, string(ev.Type), []byte(ev.Payload), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *SQLite) LastEventSeq(ctx context.Context, tableID string) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM events WHERE table_id = ?`, tableID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last event seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

func (s *SQLite) ListEvents(ctx context.Context, tableID string, fromSeq uint64) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_id, seq, hand_number, type, payload, created_at
		 FROM events WHERE table_id = ? AND seq >= ? ORDER BY seq`, tableID, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var ev event.Event
		var typ string
		var payload []byte
		if err := rows.Scan(&ev.TableID, &ev.Seq, &ev.HandNumber, &typ, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = event.Type(typ)
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateAgent(ctx context.Context, a *AgentRecord) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, api_key, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.APIKey, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *SQLite) GetAgentByID(ctx context.Context, id string) (*AgentRecord, error) {
	return s.getAgent(ctx, `SELECT id, name, api_key, created_at FROM agents WHERE id = ?`, id)
}

func (s *SQLite) GetAgentByKey(ctx context.Context, apiKey string) (*AgentRecord, error) {
	return s.getAgent(ctx, `SELECT id, name, api_key, created_at FROM agents WHERE api_key = ?`, apiKey)
}

func (s *SQLite) getAgent(ctx context.Context, query, arg string) (*AgentRecord, error) {
	var a AgentRecord
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Name, &a.APIKey, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}

func (s *SQLite) CreateTable(ctx context.Context, t *TableRecord) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tables (id, status, small_blind, big_blind, max_seats, initial_stack, action_timeout_ms, seed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Status, t.SmallBlind, t.BigBlind, t.MaxSeats, t.InitialStack, t.ActionTimeoutMS, t.Seed, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *SQLite) ListTables(ctx context.Context, status string) ([]TableRecord, error) {
	query := `SELECT id, status, small_blind, big_blind, max_seats, initial_stack, action_timeout_ms, seed, created_at FROM tables`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []TableRecord
	for rows.Next() {
		var t TableRecord
		if err := rows.Scan(&t.ID, &t.Status, &t.SmallBlind, &t.BigBlind, &t.MaxSeats,
			&t.InitialStack, &t.ActionTimeoutMS, &t.Seed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateTableStatus(ctx context.Context, tableID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tables SET status = ? WHERE id = ?`, status, tableID)
	if err != nil {
		return fmt.Errorf("update table status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetSeats(ctx context.Context, tableID string) ([]SeatRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_id, seat, agent_id, stack FROM seats WHERE table_id = ? ORDER BY seat`, tableID)
	if err != nil {
		return nil, fmt.Errorf("get seats: %w", err)
	}
	defer rows.Close()

	var out []SeatRecord
	for rows.Next() {
		var r SeatRecord
		if err := rows.Scan(&r.TableID, &r.Seat, &r.AgentID, &r.Stack); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertSeat(ctx context.Context, r *SeatRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seats (table_id, seat, agent_id, stack) VALUES (?, ?, ?, ?)
		 ON CONFLICT(table_id, seat) DO UPDATE SET agent_id = excluded.agent_id, stack = excluded.stack`,
		r.TableID, r.Seat, r.AgentID, r.Stack)
	if err != nil {
		return fmt.Errorf("upsert seat: %w", err)
	}
	return nil
}

func (s *SQLite) ClearSeat(ctx context.Context, tableID string, seat int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM seats WHERE table_id = ? AND seat = ?`, tableID, seat)
	if err != nil {
		return fmt.Errorf("clear seat: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
