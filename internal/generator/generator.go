// Package generator is the boundary to the hosted language model that
// produces the interviewer's next utterance. Callers treat it as an opaque,
// possibly slow, possibly failing function.
package generator

import (
	"context"
	"fmt"

	"github.com/arlo-research/fieldtalk/internal/config"
)

// Turn is one transcript entry handed to the model, role-tagged the way the
// completion APIs expect.
type Turn struct {
	Role    string
	Content string
}

// Reply is one generated utterance plus the token accounting for the call.
type Reply struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces the next interviewer utterance from the fixed interview
// instructions and the ordered recent history. Implementations must respect
// ctx cancellation, pin sampling temperature to zero and cap output length.
type Generator interface {
	Generate(ctx context.Context, instructions string, history []Turn) (*Reply, error)
}

// New resolves the single configured backend. The choice is explicit and
// made once at startup; nothing downstream branches on credentials.
func New(cfg *config.Config) (Generator, error) {
	switch cfg.GeneratorBackend {
	case config.BackendOpenAI:
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel), nil
	case config.BackendAzure:
		return NewAzure(cfg.AzureKey, cfg.AzureEndpoint, cfg.AzureDeployment), nil
	case config.BackendAnthropic:
		return NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.GeneratorBackend)
	}
}
