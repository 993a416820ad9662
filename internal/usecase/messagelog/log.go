// Package messagelog holds the append-only record of a terminal session.
package messagelog

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"bluepulse/internal/domain"
)

// Log is an ordered, append-only list of entries. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	entropy *ulid.MonotonicEntropy
	last    time.Time
	now     func() time.Time
	bus     domain.EventBus
}

// Option configures a Log.
type Option func(*Log)

// WithBus publishes EventLogAppended after every append.
func WithBus(bus domain.EventBus) Option {
	return func(l *Log) { l.bus = bus }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty Log.
func New(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	l.entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return l
}

// Append records a new entry at the end of the log. Timestamps never go
// backwards and IDs are strictly increasing. Unknown kinds are dropped.
func (l *Log) Append(kind domain.EntryKind, content string) {
	if !kind.Valid() {
		return
	}
	l.mu.Lock()
	t := l.now()
	if t.Before(l.last) {
		t = l.last
	}
	l.last = t
	entry := domain.LogEntry{
		ID:        ulid.MustNew(ulid.Timestamp(t), l.entropy).String(),
		Timestamp: t,
		Kind:      kind,
		Content:   content,
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.Publish(context.Background(), domain.Event{
			Type:      domain.EventLogAppended,
			Timestamp: t,
		})
	}
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// MostRecent returns the last entry of the given kind.
func (l *Log) MostRecent(kind domain.EntryKind) (domain.LogEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Kind == kind {
			return l.entries[i], true
		}
	}
	return domain.LogEntry{}, false
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
