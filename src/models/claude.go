package models

import (
	"context"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeLLM generates completions through Anthropic's Messages API.
type ClaudeLLM struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
}

// NewClaudeLLM constructs a client. It reads ANTHROPIC_API_KEY from the env.
func NewClaudeLLM(model string) *ClaudeLLM {
	key := os.Getenv("ANTHROPIC_API_KEY")
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(key),
	)
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &ClaudeLLM{
		Client:    &cl,
		Model:     model,
		MaxTokens: 1024,
	}
}

func (a *ClaudeLLM) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

func (a *ClaudeLLM) Name() string { return "anthropic/" + a.Model }

var _ Generator = (*ClaudeLLM)(nil)
