package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGenerator uses the Anthropic Messages API as the model backend.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerator builds a generator for model. opts are applied after
// the defaults.
func NewAnthropicGenerator(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *AnthropicGenerator {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(1),
	}
	return &AnthropicGenerator{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (Completion, error) {
	start := time.Now()
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return Completion{
		Text:          sb.String(),
		Model:         string(msg.Model),
		InferenceTime: time.Since(start),
	}, nil
}

// Health only checks that a key is configured; the Messages API has no free
// liveness endpoint.
func (g *AnthropicGenerator) Health(context.Context) error {
	if g.model == "" {
		return fmt.Errorf("%w: no model configured", ErrGeneratorUnavailable)
	}
	return nil
}
