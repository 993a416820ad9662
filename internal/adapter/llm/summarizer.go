package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
)

const promptTemplate = `Analyze the following Bluetooth data technically: "%s". Give a short explanation of what this data most likely is.`

// Summarizer asks an LLM provider to explain a chunk of received data.
type Summarizer struct {
	provider    domain.LLMProvider
	maxTokens   int
	temperature float64
	maxInput    int
	logger      *slog.Logger
}

// NewSummarizer builds the analysis provider chain from cfg. When no usable
// provider is configured the returned Summarizer reports
// domain.ErrSummarizationUnavailable.
func NewSummarizer(cfg *config.Config, logger *slog.Logger) (*Summarizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summarizer{maxInput: cfg.Analysis.MaxInputBytes, logger: logger}

	pc := cfg.AnalysisProvider()
	if pc == nil || !hasCredentials(*pc) {
		return s, nil
	}

	reg, err := NewRegistryFromConfig(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	p, err := reg.Chain(pc.Name, cfg.Analysis.Fallbacks, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("summarizer ready", "provider", pc.Name, "fallbacks", cfg.Analysis.Fallbacks, "registered", reg.List())
	s.provider = p
	s.maxTokens = pc.MaxTokens
	s.temperature = pc.Temperature
	return s, nil
}

// NewSummarizerWithProvider wraps an existing provider.
func NewSummarizerWithProvider(p domain.LLMProvider, maxInput int, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{provider: p, maxInput: maxInput, logger: logger}
}

// hasCredentials reports whether pc can authenticate. OpenAI-compatible
// endpoints with a custom base URL are assumed to be local and keyless.
func hasCredentials(pc config.ProviderConfig) bool {
	if pc.APIKey != "" {
		return true
	}
	return pc.Type == "openai" && pc.BaseURL != ""
}

// Available reports whether Summarize can reach a provider.
func (s *Summarizer) Available() bool { return s.provider != nil }

// Summarize implements domain.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, data string) (string, error) {
	if s.provider == nil {
		return "", domain.ErrSummarizationUnavailable
	}

	req := domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: BuildPrompt(data, s.maxInput)},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	resp, err := s.provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize via %s: %w", s.provider.Name(), err)
	}
	s.logger.Debug("summary received", "provider", s.provider.Name(), "bytes", len(resp.Message.Content))
	return strings.TrimSpace(resp.Message.Content), nil
}

// BuildPrompt renders the analysis prompt. Data longer than maxInput bytes
// keeps its tail, cut on a rune boundary; maxInput <= 0 disables the cap.
func BuildPrompt(data string, maxInput int) string {
	if maxInput > 0 && len(data) > maxInput {
		data = data[len(data)-maxInput:]
		for len(data) > 0 && !utf8.RuneStart(data[0]) {
			data = data[1:]
		}
	}
	return fmt.Sprintf(promptTemplate, data)
}

var _ domain.Summarizer = (*Summarizer)(nil)
