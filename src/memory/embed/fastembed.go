//go:build fastembed

package embed

import (
	"context"
	"os"
	"strings"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedder runs a local ONNX embedding model via fastembed. It needs no
// API key and is the preferred offline secondary source.
type FastEmbedder struct {
	model   *fastembed.FlagEmbedding
	modelID string
}

func defaultFastEmbedOptions() *FastEmbedOptions {
	return &FastEmbedOptions{
		Model:     string(fastembed.BGESmallENV15),
		CacheDir:  os.Getenv("ENGRAM_FASTEMBED_CACHE"),
		MaxLength: 512,
	}
}

// NewFastEmbedder initializes the local model, downloading it on first use.
func NewFastEmbedder(_ context.Context, opts *FastEmbedOptions) (Embedder, error) {
	if opts == nil {
		opts = defaultFastEmbedOptions()
	}
	init := fastembed.InitOptions{
		Model:     fastembed.EmbeddingModel(opts.Model),
		CacheDir:  opts.CacheDir,
		MaxLength: opts.MaxLength,
	}
	model, err := fastembed.NewFlagEmbedding(&init)
	if err != nil {
		return nil, err
	}
	return &FastEmbedder{model: model, modelID: opts.Model}, nil
}

func (e *FastEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}
	return e.model.QueryEmbed(text)
}

func (e *FastEmbedder) ModelID() string { return e.modelID }

// Close releases the underlying ONNX session.
func (e *FastEmbedder) Close() error {
	if e.model != nil {
		return e.model.Destroy()
	}
	return nil
}
