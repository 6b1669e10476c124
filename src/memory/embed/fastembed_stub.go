//go:build !fastembed

package embed

import (
	"context"
	"fmt"
)

func defaultFastEmbedOptions() *FastEmbedOptions { return nil }

// NewFastEmbedder is unavailable without the fastembed build tag.
func NewFastEmbedder(_ context.Context, _ *FastEmbedOptions) (Embedder, error) {
	return nil, fmt.Errorf("fastembed support not included; rebuild with -tags fastembed")
}
