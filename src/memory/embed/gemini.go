package embed

import (
	"context"
	"errors"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder calls the Gemini embedding API.
// Requires GEMINI_API_KEY or GOOGLE_API_KEY.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder builds an embedder for the given model
// (default "text-embedding-004").
func NewGeminiEmbedder(ctx context.Context, model string) (*GeminiEmbedder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GeminiEmbedder: GEMINI_API_KEY not set")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}
	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrNotSupported
	}
	return res.Embedding.Values, nil
}

func (e *GeminiEmbedder) ModelID() string { return e.model }

// Close releases the underlying API client.
func (e *GeminiEmbedder) Close() error { return e.client.Close() }
