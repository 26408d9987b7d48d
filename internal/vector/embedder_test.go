package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/embedding"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_BatchesPerBatchSize(t *testing.T) {
	var batchSizes []int
	mock := &embedding.MockClient{
		Dims: 4,
		EmbedFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			batchSizes = append(batchSizes, len(texts))
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 0, 0, 0}
			}
			return out, nil
		},
	}

	e := NewEmbedder(mock, 2, logging.New(nil, "silent"))
	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	mock := &embedding.MockClient{}
	e := NewEmbedder(mock, 2, logging.New(nil, "silent"))

	vecs, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Equal(t, 0, mock.Calls)
}

func TestEmbedder_ProviderErrorPropagates(t *testing.T) {
	mock := &embedding.MockClient{
		EmbedFunc: func(_ context.Context, _ []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	e := NewEmbedder(mock, 10, logging.New(nil, "silent"))

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestEmbedder_RejectsMisalignedResponse(t *testing.T) {
	mock := &embedding.MockClient{
		Dims: 2,
		EmbedFunc: func(_ context.Context, _ []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil // one vector for two texts
		},
	}
	e := NewEmbedder(mock, 10, logging.New(nil, "silent"))

	_, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 texts")
}

func TestEmbedder_RejectsDimensionMismatch(t *testing.T) {
	mock := &embedding.MockClient{
		Dims: 8,
		EmbedFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 2, 3} // 3 wide, client says 8
			}
			return out, nil
		},
	}
	e := NewEmbedder(mock, 10, logging.New(nil, "silent"))

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	mock := &embedding.MockClient{Dims: 4}
	e := NewEmbedder(mock, 10, logging.New(nil, "silent"))

	vec, err := e.EmbedQuery(context.Background(), "what is revenue")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 4, e.Dimensions())
}
