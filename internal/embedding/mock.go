package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockClient is a test double for Client. When EmbedFunc is unset it
// produces deterministic unit vectors derived from the input text, so
// identical texts always embed identically.
type MockClient struct {
	ProviderName string
	Dims         int
	EmbedFunc    func(ctx context.Context, texts []string) ([][]float32, error)
	Calls        int
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Dimensions() int {
	if m.Dims == 0 {
		return 8
	}
	return m.Dims
}

func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.Calls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, m.Dimensions())
	}
	return vectors, nil
}

// deterministicVector hashes text into a normalized pseudo-embedding.
func deterministicVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	var norm float64
	for d := range v {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(d)})
		// Map the hash onto [-1, 1).
		v[d] = float32(int32(h.Sum32()))/float32(math.MaxInt32)
		norm += float64(v[d]) * float64(v[d])
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for d := range v {
			v[d] *= scale
		}
	}
	return v
}
