package llm

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"bluepulse/internal/domain"
	"bluepulse/internal/infra/config"
)

// Registry holds named LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// NewRegistryFromConfig builds every configured provider, wrapping each one
// in a circuit breaker when enabled.
func NewRegistryFromConfig(cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry()
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc, logger)
		if err != nil {
			return nil, err
		}
		if cfg.CircuitBreaker.Enabled {
			p = NewCircuitBreakerProvider(p, CircuitBreakerConfig{
				MaxFailures: cfg.CircuitBreaker.MaxFailures,
				Timeout:     cfg.CircuitBreaker.Timeout,
				Interval:    cfg.CircuitBreaker.Interval,
			}, logger)
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewProvider creates a provider for cfg.Type.
func NewProvider(cfg config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch cfg.Type {
	case "gemini":
		return NewGeminiProvider(cfg, logger), nil
	case "openai":
		return NewOpenAIProvider(cfg, logger), nil
	default:
		return nil, domain.NewDomainError("llm.NewProvider", domain.ErrProviderNotFound, fmt.Sprintf("type %q", cfg.Type))
	}
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		detail := fmt.Sprintf("%q (configured: %s)", name, strings.Join(r.namesLocked(), ", "))
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, detail)
	}
	return p, nil
}

// Chain returns primary wrapped with the named fallbacks, or primary alone
// when there are none.
func (r *Registry) Chain(primary string, fallbacks []string, logger *slog.Logger) (domain.LLMProvider, error) {
	p, err := r.Get(primary)
	if err != nil {
		return nil, err
	}
	if len(fallbacks) == 0 {
		return p, nil
	}
	chain := make([]domain.LLMProvider, 0, len(fallbacks))
	for _, name := range fallbacks {
		fb, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fb)
	}
	return NewFailoverProvider(p, chain, logger), nil
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
