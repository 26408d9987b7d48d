package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_AddAndSearch(t *testing.T) {
	ix := NewIndex()
	ix.Add("x", []float32{1, 0, 0})
	ix.Add("y", []float32{0, 1, 0})
	ix.Add("z", []float32{0, 0, 1})

	hits := ix.Search([]float32{1, 0, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Less(t, hits[1].Score, hits[0].Score)
}

func TestIndex_NormalizesOnInsert(t *testing.T) {
	ix := NewIndex()
	ix.Add("long", []float32{10, 0})
	ix.Add("short", []float32{0, 0.1})

	hits := ix.Search([]float32{1, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "long", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-6)
}

func TestIndex_SearchTruncatesToK(t *testing.T) {
	ix := NewIndex()
	for _, id := range []string{"a", "b", "c", "d"} {
		ix.Add(id, []float32{1, 1})
	}

	assert.Len(t, ix.Search([]float32{1, 1}, 2), 2)
	assert.Nil(t, ix.Search([]float32{1, 1}, 0))
	assert.Nil(t, ix.Search(nil, 3))
}

func TestIndex_TiesBreakOnID(t *testing.T) {
	ix := NewIndex()
	ix.Add("b", []float32{1, 0})
	ix.Add("a", []float32{1, 0})

	hits := ix.Search([]float32{1, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
}

func TestIndex_Remove(t *testing.T) {
	ix := NewIndex()
	ix.Add("a", []float32{1, 0})
	ix.Add("b", []float32{0, 1})

	ix.Remove("a", "missing")
	assert.Equal(t, 1, ix.Len())

	hits := ix.Search([]float32{1, 0}, 5)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestIndex_Clear(t *testing.T) {
	ix := NewIndex()
	ix.Add("a", []float32{1, 0})
	ix.Clear()

	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Search([]float32{1, 0}, 5))
}

func TestIndex_Score(t *testing.T) {
	ix := NewIndex()
	ix.Add("a", []float32{3, 0})

	score, ok := ix.Score("a", []float32{1, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-6)

	_, ok = ix.Score("missing", []float32{1, 0})
	assert.False(t, ok)
}

func TestIndex_IgnoresEmptyInserts(t *testing.T) {
	ix := NewIndex()
	ix.Add("", []float32{1})
	ix.Add("a", nil)
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_ZeroVectorScoresZero(t *testing.T) {
	ix := NewIndex()
	ix.Add("zero", []float32{0, 0, 0})

	hits := ix.Search([]float32{1, 0, 0}, 1)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.0, hits[0].Score, 1e-6)
}
