package testutils

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sync"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Unless overridden via Embeddings, each distinct text deterministically maps
// to its own unit vector, so identical texts are exact duplicates and
// different texts are (almost surely) far apart.
type MockEmbedder struct {
	mu sync.Mutex

	// Embeddings pins specific texts to specific vectors.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches.
	FailOn string

	// Calls counts Embed invocations, including failed ones.
	Calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return append([]float32(nil), emb...), nil
	}

	return hashEmbedding(text), nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

// hashEmbedding derives a normalized 8-dim vector from the text's digest.
func hashEmbedding(text string) []float32 {
	sum := sha256.Sum256([]byte(text))

	emb := make([]float32, 8)
	var norm float64
	for i := range emb {
		emb[i] = float32(sum[i]) + 1
		norm += float64(emb[i]) * float64(emb[i])
	}
	norm = math.Sqrt(norm)
	for i := range emb {
		emb[i] /= float32(norm)
	}
	return emb
}
