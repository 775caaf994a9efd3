// ABOUTME: Embedder interface for document vectors plus a deterministic stub
// ABOUTME: The stub seeds a PRNG from the text so identical input yields identical vectors

package indexer

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// VectorSize is the embedding dimensionality the collection is created with.
const VectorSize = 1536

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StubEmbedder is a deterministic embedder for local runs and tests.
// The vector is seeded from the text, so re-ingesting the same document
// produces the same point.
type StubEmbedder struct {
	Dim int
}

func (s StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := s.Dim
	if dim == 0 {
		dim = VectorSize
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}
	return vec, nil
}
