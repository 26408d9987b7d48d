package vector

import (
	"math"
	"sort"
	"sync"
)

// Hit is one index search result.
type Hit struct {
	ID    string
	Score float64
}

// Index is an in-memory brute-force cosine index. Vectors are L2-normalized
// on insert, so similarity is a plain dot product at query time. Brute force
// is deliberate: the corpus is one user's documents, small enough that a
// linear scan beats maintaining an approximate structure.
type Index struct {
	mu   sync.RWMutex
	vecs map[string][]float32
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{vecs: make(map[string][]float32)}
}

// Add inserts or replaces a vector under the given ID.
func (ix *Index) Add(id string, vec []float32) {
	if id == "" || len(vec) == 0 {
		return
	}
	ix.mu.Lock()
	ix.vecs[id] = normalize(vec)
	ix.mu.Unlock()
}

// Remove deletes the given IDs. Unknown IDs are ignored.
func (ix *Index) Remove(ids ...string) {
	ix.mu.Lock()
	for _, id := range ids {
		delete(ix.vecs, id)
	}
	ix.mu.Unlock()
}

// Clear drops every vector.
func (ix *Index) Clear() {
	ix.mu.Lock()
	ix.vecs = make(map[string][]float32)
	ix.mu.Unlock()
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vecs)
}

// Search returns the k nearest vectors by cosine similarity, best first.
// Ties break on ID so results are deterministic.
func (ix *Index) Search(query []float32, k int) []Hit {
	if k <= 0 || len(query) == 0 {
		return nil
	}
	q := normalize(query)

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.vecs))
	for id, vec := range ix.vecs {
		hits = append(hits, Hit{ID: id, Score: dot(q, vec)})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Score returns the cosine similarity between the query and one indexed
// vector. The second return is false when the ID is not indexed.
func (ix *Index) Score(id string, query []float32) (float64, bool) {
	ix.mu.RLock()
	vec, ok := ix.vecs[id]
	ix.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return dot(normalize(query), vec), true
}

// normalize returns the L2-normalized copy of v. A zero vector is returned
// as an all-zero copy rather than dividing by zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot computes the dot product over the shared prefix of a and b.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
