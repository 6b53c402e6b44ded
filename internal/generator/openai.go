package generator

import (
	"context"
	"fmt"
	"math"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI talks to the OpenAI chat completion API. The same implementation
// serves Azure OpenAI, which differs only in client configuration and in
// using the deployment name as the model.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func NewAzure(apiKey, endpoint, deployment string) *OpenAI {
	return &OpenAI{
		client: openai.NewClientWithConfig(openai.DefaultAzureConfig(apiKey, endpoint)),
		model:  deployment,
	}
}

func (g *OpenAI) Generate(ctx context.Context, instructions string, history []Turn) (*Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: instructions,
	})
	for _, t := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		// The client drops a literal zero from the request body, so the
		// smallest positive value stands in for temperature 0.
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   config.MaxCompletionTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", domain.ErrGeneratorUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", domain.ErrGeneratorUnavailable)
	}

	return &Reply{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
