package messagelog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/domain"
)

func TestAppendPreservesOrder(t *testing.T) {
	l := New()
	kinds := []domain.EntryKind{domain.EntryStatus, domain.EntrySent, domain.EntryReceived, domain.EntryError}
	for i, k := range kinds {
		l.Append(k, fmt.Sprintf("msg-%d", i))
	}

	entries := l.Entries()
	require.Len(t, entries, len(kinds))
	for i, e := range entries {
		assert.Equal(t, kinds[i], e.Kind)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), e.Content)
		if i > 0 {
			assert.Greater(t, e.ID, entries[i-1].ID, "ids must be strictly increasing")
			assert.False(t, e.Timestamp.Before(entries[i-1].Timestamp))
		}
	}
}

func TestAppendDoesNotMutatePriorEntries(t *testing.T) {
	l := New()
	l.Append(domain.EntrySent, "first")
	before := l.Entries()

	l.Append(domain.EntryReceived, "second")
	after := l.Entries()

	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := New()
	l.Append(domain.EntrySent, "hello")

	snapshot := l.Entries()
	snapshot[0].Content = "tampered"

	assert.Equal(t, "hello", l.Entries()[0].Content)
}

func TestTimestampsClampedWhenClockGoesBack(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	var i int
	l := New(WithClock(func() time.Time {
		t := times[i%len(times)]
		i++
		return t
	}))

	l.Append(domain.EntryStatus, "a")
	l.Append(domain.EntryStatus, "b")
	l.Append(domain.EntryStatus, "c")

	entries := l.Entries()
	assert.Equal(t, base, entries[1].Timestamp)
	assert.Greater(t, entries[1].ID, entries[0].ID)
	assert.Equal(t, base.Add(time.Second), entries[2].Timestamp)
}

func TestMostRecent(t *testing.T) {
	l := New()
	_, ok := l.MostRecent(domain.EntryReceived)
	assert.False(t, ok)

	l.Append(domain.EntryReceived, "one")
	l.Append(domain.EntrySent, "ping")
	l.Append(domain.EntryReceived, "two")
	l.Append(domain.EntryStatus, "Connected!")

	got, ok := l.MostRecent(domain.EntryReceived)
	require.True(t, ok)
	assert.Equal(t, "two", got.Content)
	assert.Equal(t, 4, l.Len())
}

type countingBus struct {
	domain.EventBus
	n atomic.Int32
}

func (b *countingBus) Publish(_ context.Context, e domain.Event) {
	if e.Type == domain.EventLogAppended {
		b.n.Add(1)
	}
}

func TestAppendPublishesEvent(t *testing.T) {
	bus := &countingBus{}
	l := New(WithBus(bus))
	l.Append(domain.EntryStatus, "x")
	l.Append(domain.EntryStatus, "y")
	assert.Equal(t, int32(2), bus.n.Load())
}

func TestAppendDropsUnknownKind(t *testing.T) {
	bus := &countingBus{}
	l := New(WithBus(bus))
	l.Append(domain.EntryKind("debug"), "x")
	assert.Zero(t, l.Len())
	assert.Zero(t, bus.n.Load())
}

func TestConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Append(domain.EntryReceived, fmt.Sprint(i))
		}(i)
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, 50)
	seen := make(map[string]bool)
	for i, e := range entries {
		assert.False(t, seen[e.ID], "duplicate id")
		seen[e.ID] = true
		if i > 0 {
			assert.Greater(t, e.ID, entries[i-1].ID)
		}
	}
}
