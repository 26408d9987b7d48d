package vector

import (
	"context"
	"fmt"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/embedding"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// DefaultBatchSize bounds how many texts go to the provider per request.
const DefaultBatchSize = 64

// Embedder turns chunk texts into vectors, batching requests through the
// embedding client and validating that the provider returns one vector of
// the expected width per input.
type Embedder struct {
	client    embedding.Client
	batchSize int
	log       *logging.Logger
}

// NewEmbedder creates an embedder over the given client.
func NewEmbedder(client embedding.Client, batchSize int, log *logging.Logger) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		batchSize: batchSize,
		log:       log.Sub("embedder"),
	}
}

// Dimensions reports the vector width of the underlying client.
func (e *Embedder) Dimensions() int {
	return e.client.Dimensions()
}

// EmbedTexts embeds all texts, in order, batching per the configured batch
// size. The returned slice is row-aligned with the input.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := e.client.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts",
				start, end, len(vecs), len(batch))
		}
		if err := e.checkWidths(vecs); err != nil {
			return nil, err
		}
		out = append(out, vecs...)

		e.log.Debug().
			Str("provider", e.client.Name()).
			Int("batch", len(batch)).
			Int("total", len(out)).
			Msg("embedded batch")
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

func (e *Embedder) checkWidths(vecs [][]float32) error {
	want := e.client.Dimensions()
	if want <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != want {
			return fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), want)
		}
	}
	return nil
}
