package domain

import "context"

// LLMProvider is the interface for any LLM backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "gemini", "openai").
	Name() string
}

// Summarizer turns a raw payload into a short human-readable interpretation.
type Summarizer interface {
	Summarize(ctx context.Context, data string) (string, error)
}
