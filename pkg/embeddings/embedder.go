// Package embeddings provides interfaces for text embedding providers.
package embeddings

import (
	"context"
	"errors"
)

// ErrProvider is returned when an embedding provider call fails
// (network, model, or malformed response).
var ErrProvider = errors.New("embedding provider failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
