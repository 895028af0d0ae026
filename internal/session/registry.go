// Package session issues and validates the bearer tokens that bind an agent
// to a seat at a table. Tokens are opaque, expire after a sliding window of
// inactivity, and are revoked when the seat is vacated or re-claimed.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
)

var (
	ErrInvalid = errors.New("session: invalid token")
	ErrExpired = errors.New("session: token expired")
)

// DefaultWindow is the sliding inactivity window before a session expires.
const DefaultWindow = 30 * time.Minute

// Session binds an agent to a seat at a table.
type Session struct {
	Token     string
	AgentID   string
	TableID   string
	Seat      int
	ExpiresAt time.Time
}

type seatKey struct {
	tableID string
	seat    int
}

// Registry holds all live sessions. A (table, seat) pair has at most one
// session; creating a new one revokes the old.
type Registry struct {
	mu      sync.RWMutex
	clock   quartz.Clock
	window  time.Duration
	byToken map[string]*Session
	bySeat  map[seatKey]string
}

func NewRegistry(clock quartz.Clock, window time.Duration) *Registry {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Registry{
		clock:   clock,
		window:  window,
		byToken: make(map[string]*Session),
		bySeat:  make(map[seatKey]string),
	}
}

// Create issues a new session for an agent at a seat, revoking any session
// previously bound to that seat.
func (r *Registry) Create(agentID, tableID string, seat int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seatKey{tableID, seat}
	if old, ok := r.bySeat[key]; ok {
		delete(r.byToken, old)
	}

	s := &Session{
		Token:     newToken(),
		AgentID:   agentID,
		TableID:   tableID,
		Seat:      seat,
		ExpiresAt: r.clock.Now().Add(r.window),
	}
	r.byToken[s.Token] = s
	r.bySeat[key] = s.Token
	return s
}

// Lookup resolves a token, distinguishing expired sessions from unknown
// ones. Expired sessions are pruned on the lookup that discovers them.
func (r *Registry) Lookup(token string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byToken[token]
	if !ok {
		return nil, ErrInvalid
	}
	if r.clock.Now().After(s.ExpiresAt) {
		delete(r.byToken, token)
		delete(r.bySeat, seatKey{s.TableID, s.Seat})
		return nil, ErrExpired
	}
	out := *s
	return &out, nil
}

// Refresh extends the sliding window after authenticated activity.
func (r *Registry) Refresh(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byToken[token]; ok {
		s.ExpiresAt = r.clock.Now().Add(r.window)
	}
}

// RevokeSeat removes the session bound to a seat, if any.
func (r *Registry) RevokeSeat(tableID string, seat int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seatKey{tableID, seat}
	if token, ok := r.bySeat[key]; ok {
		delete(r.byToken, token)
		delete(r.bySeat, key)
	}
}

// RevokeTable removes every session bound to a table.
func (r *Registry) RevokeTable(tableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, token := range r.bySeat {
		if key.tableID == tableID {
			delete(r.byToken, token)
			delete(r.bySeat, key)
		}
	}
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
