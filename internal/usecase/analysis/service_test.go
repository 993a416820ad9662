package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluepulse/internal/domain"
	"bluepulse/internal/usecase/eventbus"
	"bluepulse/internal/usecase/messagelog"
)

type fakeSummarizer struct {
	mu        sync.Mutex
	calls     []string
	text      string
	err       error
	available bool
	block     bool
}

func (f *fakeSummarizer) Summarize(ctx context.Context, data string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, data)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func (f *fakeSummarizer) Available() bool { return f.available }

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newLog(received ...string) *messagelog.Log {
	l := messagelog.New()
	l.Append(domain.EntryStatus, "Connected!")
	for _, r := range received {
		l.Append(domain.EntryReceived, r)
		l.Append(domain.EntrySent, "ack")
	}
	return l
}

func TestAnalyzeLatestNoData(t *testing.T) {
	sum := &fakeSummarizer{available: true, text: "x"}
	svc := New(Config{Summarizer: sum, Log: newLog()})

	res := svc.AnalyzeLatest(context.Background())
	assert.Equal(t, TextNoData, res.Text)
	assert.True(t, res.Placeholder)
	assert.Zero(t, sum.callCount())
}

func TestAnalyzeLatestUsesMostRecentReceived(t *testing.T) {
	sum := &fakeSummarizer{available: true, text: "A heart rate of 74 bpm."}
	svc := New(Config{Summarizer: sum, Log: newLog("HR:72", "HR:74")})

	res := svc.AnalyzeLatest(context.Background())
	assert.Equal(t, "A heart rate of 74 bpm.", res.Text)
	assert.False(t, res.Placeholder)
	assert.Equal(t, "HR:74", res.Source.Content)
	assert.Equal(t, []string{"HR:74"}, sum.calls)
}

func TestAnalyzeLatestPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		sum  *fakeSummarizer
		want string
	}{
		{"unavailable", &fakeSummarizer{available: false}, TextNoAPIKey},
		{"unavailable error", &fakeSummarizer{available: true, err: domain.ErrSummarizationUnavailable}, TextNoAPIKey},
		{"provider failure", &fakeSummarizer{available: true, err: errors.New("http 500")}, TextFailed},
		{"rate limited upstream", &fakeSummarizer{available: true, err: domain.ErrRateLimit}, TextFailed},
		{"empty", &fakeSummarizer{available: true, text: "  \n"}, TextEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(Config{Summarizer: tt.sum, Log: newLog("62")})
			res := svc.AnalyzeLatest(context.Background())
			assert.Equal(t, tt.want, res.Text)
			assert.True(t, res.Placeholder)
			assert.Equal(t, "62", res.Source.Content)
		})
	}
}

func TestAnalyzeLatestNilSummarizer(t *testing.T) {
	svc := New(Config{Log: newLog("62")})
	res := svc.AnalyzeLatest(context.Background())
	assert.Equal(t, TextNoAPIKey, res.Text)
}

func TestAnalyzeLatestTimeout(t *testing.T) {
	sum := &fakeSummarizer{available: true, block: true}
	svc := New(Config{Summarizer: sum, Log: newLog("62"), Timeout: 20 * time.Millisecond})

	start := time.Now()
	res := svc.AnalyzeLatest(context.Background())
	assert.Equal(t, TextFailed, res.Text)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAnalyzeLatestRateLimit(t *testing.T) {
	sum := &fakeSummarizer{available: true, text: "ok"}
	svc := New(Config{Summarizer: sum, Log: newLog("62"), RequestsPerMin: 1, BurstSize: 2})

	assert.Equal(t, "ok", svc.AnalyzeLatest(context.Background()).Text)
	assert.Equal(t, "ok", svc.AnalyzeLatest(context.Background()).Text)
	res := svc.AnalyzeLatest(context.Background())
	assert.Equal(t, TextRateLimited, res.Text)
	assert.True(t, res.Placeholder)
	assert.Equal(t, 2, sum.callCount())
}

func TestAnalyzeLatestUnavailableSkipsRateLimit(t *testing.T) {
	sum := &fakeSummarizer{available: false}
	svc := New(Config{Summarizer: sum, Log: newLog("62"), RequestsPerMin: 1, BurstSize: 1})

	for i := 0; i < 3; i++ {
		assert.Equal(t, TextNoAPIKey, svc.AnalyzeLatest(context.Background()).Text)
	}
}

func TestAnalyzeLatestPublishesEvent(t *testing.T) {
	bus := eventbus.New(slog.Default())
	got := make(chan domain.Event, 1)
	bus.Subscribe(domain.EventAnalysisCompleted, func(_ context.Context, e domain.Event) { got <- e })

	l := newLog("62")
	svc := New(Config{Summarizer: &fakeSummarizer{available: true, text: "Battery."}, Log: l, Bus: bus})
	res := svc.AnalyzeLatest(context.Background())

	select {
	case e := <-got:
		var p domain.AnalysisCompletedPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		assert.Equal(t, res.Source.ID, p.SourceID)
		assert.False(t, p.Placeholder)
		assert.Equal(t, len("Battery."), p.Bytes)
	case <-time.After(time.Second):
		t.Fatal("no analysis event")
	}
	bus.Close()
}
