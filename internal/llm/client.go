package llm

import (
	"context"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Generate sends a prompt and returns the model's raw text output.
	// Implementations should request JSON output where the provider
	// supports forcing it, but callers must still parse defensively.
	Generate(ctx context.Context, prompt string) (string, error)
}
