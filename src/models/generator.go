// Package models provides the text generators used for memory extraction
// and summarization, one per provider, behind a single Generator interface.
package models

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Request carries a single generation call.
type Request struct {
	Prompt      string
	Temperature float32
	// MaxTokens caps the completion length. Zero lets the provider default.
	MaxTokens int
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Name identifies the provider/model pair for logging.
	Name() string
}

var ErrEmptyCompletion = errors.New("model returned an empty completion")

// AutoGenerator builds a Generator from the environment:
// ENGRAM_LLM_PROVIDER selects the provider (openai, anthropic, claude,
// gemini, google, ollama, dummy) and ENGRAM_LLM_MODEL overrides the model.
// With nothing set it falls back to the dummy generator so local runs work
// without credentials.
func AutoGenerator(ctx context.Context) (Generator, error) {
	provider := os.Getenv("ENGRAM_LLM_PROVIDER")
	model := os.Getenv("ENGRAM_LLM_MODEL")
	switch provider {
	case "", "dummy":
		return NewDummyLLM(""), nil
	case "openai":
		return NewOpenAILLM(model), nil
	case "anthropic", "claude":
		return NewClaudeLLM(model), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, model)
	case "ollama":
		return NewOllamaLLM(model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
