package llm

import (
	"context"
)

// LLMClient sends one prompt and returns the model's text answer.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
