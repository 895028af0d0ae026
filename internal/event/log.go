package event

import (
	"context"
	"time"
)

// Sink is the slice of the persistent store the log needs. An event counts
// as logged only once the sink acknowledges the write.
type Sink interface {
	CreateEvent(ctx context.Context, ev *Event) error
	LastEventSeq(ctx context.Context, tableID string) (uint64, error)
	ListEvents(ctx context.Context, tableID string, fromSeq uint64) ([]Event, error)
}

// Log is the append-only event log for one table. Appends must be serialized
// by the table's action lock; the log itself does no locking.
type Log struct {
	tableID string
	sink    Sink
	lastSeq uint64
}

// Open creates a log cursor resuming after the last persisted seq.
func Open(ctx context.Context, sink Sink, tableID string) (*Log, error) {
	last, err := sink.LastEventSeq(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return &Log{tableID: tableID, sink: sink, lastSeq: last}, nil
}

// LastSeq returns the seq of the most recently acknowledged event.
func (l *Log) LastSeq() uint64 {
	return l.lastSeq
}

// Append allocates the next seq and persists the event. The seq is only
// advanced once the write is acknowledged, so a failed append leaves the
// cursor unchanged.
func (l *Log) Append(ctx context.Context, typ Type, handNumber uint64, payload any) (uint64, error) {
	ev := &Event{
		TableID:    l.tableID,
		Seq:        l.lastSeq + 1,
		HandNumber: handNumber,
		Type:       typ,
		CreatedAt:  time.Now().UTC(),
	}
	if payload != nil {
		ev.Payload = Marshal(payload)
	}
	if err := l.sink.CreateEvent(ctx, ev); err != nil {
		return 0, err
	}
	l.lastSeq = ev.Seq
	return ev.Seq, nil
}

// Replay returns events from fromSeq onward, for clients recovering gaps.
func (l *Log) Replay(ctx context.Context, fromSeq uint64) ([]Event, error) {
	return l.sink.ListEvents(ctx, l.tableID, fromSeq)
}
