package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogAppended, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventLogAppended {
			got.Add(1)
		}
	})
	bus.Subscribe(domain.EventConnectionChanged, func(_ context.Context, _ domain.Event) {
		t.Error("unrelated subscriber invoked")
	})

	bus.Publish(context.Background(), newEvent(domain.EventLogAppended))
	bus.Close()
	assert.Equal(t, int32(1), got.Load())
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventLogAppended))
	bus.Publish(context.Background(), newEvent(domain.EventConnectionChanged))
	bus.Close()
	assert.Equal(t, int32(2), got.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var typed, all atomic.Int32
	unsubTyped := bus.Subscribe(domain.EventLogAppended, func(_ context.Context, _ domain.Event) {
		typed.Add(1)
	})
	unsubAll := bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		all.Add(1)
	})

	unsubTyped()
	unsubAll()
	unsubAll() // second call is a no-op

	bus.Publish(context.Background(), newEvent(domain.EventLogAppended))
	bus.Close()
	assert.Zero(t, typed.Load())
	assert.Zero(t, all.Load())
}

func TestEmitEncodesPayload(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var got domain.ConnectionChangedPayload
	bus.Subscribe(domain.EventConnectionChanged, func(_ context.Context, e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.Unmarshal(e.Payload, &got)
	})

	bus.Emit(context.Background(), domain.EventConnectionChanged,
		domain.ConnectionChangedPayload{Connected: true, PeerName: "Echo"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got.Connected)
	assert.Equal(t, "Echo", got.PeerName)
}

func TestEmitUnencodablePayload(t *testing.T) {
	bus := newTestBus()

	var payloadLen atomic.Int32
	var calls atomic.Int32
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		calls.Add(1)
		payloadLen.Store(int32(len(e.Payload)))
	})

	bus.Emit(context.Background(), domain.EventAnalysisCompleted, make(chan int))
	bus.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, payloadLen.Load())
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogAppended, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventLogAppended))
		}()
	}
	wg.Wait()
	bus.Close()
	assert.Equal(t, int32(100), got.Load())
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogAppended, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventLogAppended, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), newEvent(domain.EventLogAppended))
		bus.Close()
	})
	assert.Equal(t, int32(1), got.Load())
}

func TestPublishAfterClose(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	bus.Close()
	bus.Close()

	bus.Publish(context.Background(), newEvent(domain.EventLogAppended))
	assert.Zero(t, got.Load())
}
