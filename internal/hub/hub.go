// Package hub fans table state out to websocket subscribers. Delivery to a
// slow sink never blocks the table: frames queue per subscriber and a drain
// goroutine writes them in order. Seat subscribers are lossless up to a
// bounded queue and are kicked when it overflows; observer subscribers have
// stale non-terminal frames coalesced away instead.
package hub

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/internal/table"
)

// Sink is the write side of a subscriber connection. Deliver and Kick are
// called from the subscription's drain goroutine, never under the hub lock.
type Sink interface {
	Deliver(msg *protocol.ServerMessage) error
	Kick(code protocol.Code, message string)
}

// Policy selects the backpressure behaviour for a subscription.
type Policy int

const (
	// PolicySeat queues every frame in order. Overflow disconnects the
	// subscriber with SLOW_CONSUMER; it can resume from its last event seq.
	PolicySeat Policy = iota
	// PolicyObserver keeps only the newest non-terminal frame when the
	// subscriber falls behind. Terminal frames are never dropped.
	PolicyObserver
)

// DefaultSeatQueue is the per-seat-subscriber frame queue bound.
const DefaultSeatQueue = 256

type subscription struct {
	hub     *Hub
	tableID string
	seat    int // -1 for observers
	policy  Policy
	sink    Sink

	mu      sync.Mutex
	pending []*protocol.ServerMessage
	notify  chan struct{}
	closed  bool
}

// Hub routes broadcasts to the subscriptions of each table.
type Hub struct {
	mu        sync.Mutex
	seatQueue int
	tables    map[string]map[*subscription]struct{}
	logger    *log.Logger
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		seatQueue: DefaultSeatQueue,
		tables:    make(map[string]map[*subscription]struct{}),
		logger:    logger.WithPrefix("hub"),
	}
}

// Subscribe registers a sink for a table. seat is -1 for observers. Any
// initial frames are queued ahead of broadcasts that arrive after
// registration, which is how a caller hands over a bootstrap snapshot
// without racing the fan-out. The returned cancel function detaches the
// subscription; it is safe to call more than once.
func (h *Hub) Subscribe(tableID string, seat int, policy Policy, sink Sink, initial ...*protocol.ServerMessage) (cancel func()) {
	sub := &subscription{
		hub:     h,
		tableID: tableID,
		seat:    seat,
		policy:  policy,
		sink:    sink,
		pending: initial,
		notify:  make(chan struct{}, 1),
	}
	if len(initial) > 0 {
		sub.notify <- struct{}{}
	}

	h.mu.Lock()
	subs := h.tables[tableID]
	if subs == nil {
		subs = make(map[*subscription]struct{})
		h.tables[tableID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	go sub.drain()
	return func() { h.unsubscribe(sub) }
}

func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	if subs, ok := h.tables[sub.tableID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.tables, sub.tableID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Broadcast fans one state change out: each seat subscriber gets its
// private frame, observers get the public frame.
func (h *Hub) Broadcast(b *table.Broadcast) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.tables[b.TableID]))
	for sub := range h.tables[b.TableID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		frame := b.PublicFrame
		if sub.seat >= 0 {
			sf, ok := b.SeatFrames[sub.seat]
			if !ok {
				continue
			}
			frame = sf
		}
		sub.enqueue(frame)
	}
}

// Send delivers one frame to the subscribers of a single seat.
func (h *Hub) Send(tableID string, seat int, msg *protocol.ServerMessage) {
	h.mu.Lock()
	subs := make([]*subscription, 0, 1)
	for sub := range h.tables[tableID] {
		if sub.seat == seat {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(msg)
	}
}

// KickTable disconnects every subscriber of a table with the given code.
func (h *Hub) KickTable(tableID string, code protocol.Code, message string) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.tables[tableID]))
	for sub := range h.tables[tableID] {
		subs = append(subs, sub)
	}
	delete(h.tables, tableID)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.kick(code, message)
	}
}

// KickSeat disconnects the subscribers of one seat.
func (h *Hub) KickSeat(tableID string, seat int, code protocol.Code, message string) {
	h.mu.Lock()
	var subs []*subscription
	for sub := range h.tables[tableID] {
		if sub.seat == seat {
			subs = append(subs, sub)
		}
	}
	for _, sub := range subs {
		delete(h.tables[tableID], sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.kick(code, message)
	}
}

func (s *subscription) enqueue(msg *protocol.ServerMessage) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	switch s.policy {
	case PolicySeat:
		if len(s.pending) >= s.hub.seatQueue {
			s.closed = true
			s.pending = nil
			close(s.notify)
			s.mu.Unlock()
			s.hub.logger.Warn("seat subscriber overflowed", "table", s.tableID, "seat", s.seat)
			go func() {
				s.sink.Kick(protocol.CodeSlowConsumer, "frame queue overflow")
				s.hub.unsubscribe(s)
			}()
			return
		}
		s.pending = append(s.pending, msg)
	case PolicyObserver:
		// Replace the newest pending non-terminal frame; terminal frames
		// stay queued in order.
		if n := len(s.pending); n > 0 && !s.pending[n-1].Terminal() && !msg.Terminal() {
			s.pending[n-1] = msg
		} else {
			s.pending = append(s.pending, msg)
		}
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

func (s *subscription) drain() {
	for range s.notify {
		for {
			s.mu.Lock()
			if s.closed || len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			if err := s.sink.Deliver(msg); err != nil {
				s.hub.unsubscribe(s)
				return
			}
		}
	}
}

func (s *subscription) kick(code protocol.Code, message string) {
	s.sink.Kick(code, message)
	s.close()
}

func (s *subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	close(s.notify)
	s.mu.Unlock()
}
