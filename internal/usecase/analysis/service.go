// Package analysis explains the most recently received payload through an
// external summarizer.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"bluepulse/internal/domain"
	"bluepulse/internal/infra/tracer"
)

// Fixed texts shown in place of a summary.
const (
	TextNoData       = "No received data to analyze yet."
	TextNoAPIKey     = "API key is not configured."
	TextFailed       = "Failed to analyze data."
	TextEmpty        = "No analysis result."
	TextRateLimited  = "Analysis is rate limited, try again shortly."
	defaultTimeout   = 30 * time.Second
	defaultRateBurst = 1
)

// Source is the part of the message log the analyzer reads.
type Source interface {
	MostRecent(kind domain.EntryKind) (domain.LogEntry, bool)
}

// Result is the outcome of one analysis request.
type Result struct {
	Source      domain.LogEntry
	Text        string
	Placeholder bool
}

// Config holds analyzer settings. RequestsPerMin <= 0 disables rate limiting.
type Config struct {
	Summarizer     domain.Summarizer
	Log            Source
	Bus            domain.EventBus
	Logger         *slog.Logger
	Timeout        time.Duration
	RequestsPerMin int
	BurstSize      int
}

// Service runs analyses on demand. It never returns an error: every failure
// becomes a placeholder Result.
type Service struct {
	summarizer domain.Summarizer
	log        Source
	bus        domain.EventBus
	logger     *slog.Logger
	timeout    time.Duration
	limiter    *rate.Limiter
}

// New creates a Service.
func New(cfg Config) *Service {
	s := &Service{
		summarizer: cfg.Summarizer,
		log:        cfg.Log,
		bus:        cfg.Bus,
		logger:     cfg.Logger,
		timeout:    cfg.Timeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if cfg.RequestsPerMin > 0 {
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = defaultRateBurst
		}
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), burst)
	}
	return s
}

// AnalyzeLatest summarizes the most recent Received entry.
func (s *Service) AnalyzeLatest(ctx context.Context) Result {
	entry, ok := s.log.MostRecent(domain.EntryReceived)
	if !ok {
		return s.finish(ctx, Result{Text: TextNoData, Placeholder: true})
	}
	res := Result{Source: entry}

	if !s.available() {
		res.Text, res.Placeholder = TextNoAPIKey, true
		return s.finish(ctx, res)
	}
	if s.limiter != nil && !s.limiter.Allow() {
		res.Text, res.Placeholder = TextRateLimited, true
		return s.finish(ctx, res)
	}

	ctx, span := tracer.StartSpan(ctx, "analysis.run",
		trace.WithAttributes(
			tracer.StringAttr("entry.id", entry.ID),
			tracer.IntAttr("entry.bytes", len(entry.Content)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.summarizer.Summarize(ctx, entry.Content)
	switch {
	case errors.Is(err, domain.ErrSummarizationUnavailable):
		res.Text, res.Placeholder = TextNoAPIKey, true
	case err != nil:
		tracer.RecordError(span, err)
		s.logger.Warn("analysis failed", "entry", entry.ID, "code", string(domain.ErrorCodeOf(err)), "error", err)
		res.Text, res.Placeholder = TextFailed, true
	case strings.TrimSpace(text) == "":
		res.Text, res.Placeholder = TextEmpty, true
	default:
		tracer.SetOK(span)
		res.Text = text
	}
	return s.finish(ctx, res)
}

// available reports false for a missing summarizer or one that says it
// cannot reach a provider, so such calls do not spend rate tokens.
func (s *Service) available() bool {
	if s.summarizer == nil {
		return false
	}
	if a, ok := s.summarizer.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

func (s *Service) finish(ctx context.Context, res Result) Result {
	if s.bus == nil {
		return res
	}
	s.bus.Emit(context.WithoutCancel(ctx), domain.EventAnalysisCompleted, domain.AnalysisCompletedPayload{
		SourceID:    res.Source.ID,
		Placeholder: res.Placeholder,
		Bytes:       len(res.Text),
	})
	return res
}
