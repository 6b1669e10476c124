package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaEmbedder calls a local (or remote) Ollama server for embeddings.
// Host resolution follows OLLAMA_HOST, defaulting to localhost.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

// NewOllamaEmbedder builds an embedder for the given model
// (default "nomic-embed-text").
func NewOllamaEmbedder(model string) (*OllamaEmbedder, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		client: ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second}),
		model:  model,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}
	resp, err := e.client.Embeddings(ctx, &ollama.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrNotSupported
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OllamaEmbedder) ModelID() string { return e.model }
