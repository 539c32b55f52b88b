package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"unicode"

	"docqa/internal/port"
)

// MockEmbedder hashes lowercase words into a fixed number of buckets, so texts
// sharing vocabulary score as similar. It never fails and is deterministic.
type MockEmbedder struct {
	dimension int
	calls     atomic.Int64
}

var _ port.Embedder = (*MockEmbedder)(nil)

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dimension)
		for _, word := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%uint32(e.dimension)]++
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Calls reports how many times Embed was invoked.
func (e *MockEmbedder) Calls() int64 {
	return e.calls.Load()
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
