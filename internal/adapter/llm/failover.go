package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bluepulse/internal/domain"
)

// FailoverProvider tries a primary provider, then each fallback in order.
type FailoverProvider struct {
	primary   domain.LLMProvider
	fallbacks []domain.LLMProvider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover-capable provider.
func NewFailoverProvider(primary domain.LLMProvider, fallbacks []domain.LLMProvider, logger *slog.Logger) *FailoverProvider {
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat implements domain.LLMProvider. A cancelled context stops the chain.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}

	failures := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}
	for _, fb := range f.fallbacks {
		if ctx.Err() != nil {
			break
		}
		f.logger.Warn("llm provider failed, trying next", "failed", f.primary.Name(), "next", fb.Name(), "error", err)

		resp, err = fb.Chat(ctx, req)
		if err == nil {
			f.logger.Info("failover succeeded", "provider", fb.Name())
			return resp, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", fb.Name(), err))
	}

	return nil, fmt.Errorf("%w: all providers failed: [%s]", domain.ErrProviderError, strings.Join(failures, "; "))
}

// Name returns a composite name.
func (f *FailoverProvider) Name() string {
	return f.primary.Name() + "+failover"
}

var _ domain.LLMProvider = (*FailoverProvider)(nil)
