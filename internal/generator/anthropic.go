package generator

import (
	"context"
	"fmt"

	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/go-resty/resty/v2"
)

const anthropicBaseURL = "https://api.anthropic.com"

// Anthropic talks to the Anthropic Messages API. Instructions travel in the
// top-level system field rather than as a message.
type Anthropic struct {
	client *resty.Client
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	client := resty.New().
		SetBaseURL(anthropicBaseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetHeader("Content-Type", "application/json")
	return &Anthropic{client: client, model: model}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Anthropic) Generate(ctx context.Context, instructions string, history []Turn) (*Reply, error) {
	// The Messages API rejects a history that opens with an assistant
	// turn, which truncation to the recent window can produce.
	for len(history) > 0 && history[0].Role != domain.RoleRespondent {
		history = history[1:]
	}

	messages := make([]anthropicMessage, len(history))
	for i, t := range history {
		messages[i] = anthropicMessage{Role: t.Role, Content: t.Content}
	}

	var (
		out    anthropicResponse
		apiErr anthropicError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(anthropicRequest{
			Model:       g.model,
			MaxTokens:   config.MaxCompletionTokens,
			Temperature: config.GenerationTemperature,
			System:      instructions,
			Messages:    messages,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: %v", domain.ErrGeneratorUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: anthropic: %s (%s)", domain.ErrGeneratorUnavailable,
			resp.Status(), apiErr.Error.Message)
	}
	if len(out.Content) == 0 {
		return nil, fmt.Errorf("%w: anthropic returned no content", domain.ErrGeneratorUnavailable)
	}

	return &Reply{
		Text:             out.Content[0].Text,
		PromptTokens:     out.Usage.InputTokens,
		CompletionTokens: out.Usage.OutputTokens,
	}, nil
}
