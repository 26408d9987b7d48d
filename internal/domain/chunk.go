package domain

// Chunk is a unit of extracted document text prepared for embedding and search.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Locator    string    `json:"locator,omitempty"` // e.g. "Sheet1!A1:D40", "slide 3"
	Embedding  []float32 `json:"-"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk
	Score        float64 `json:"score"`
	DocumentName string  `json:"document,omitempty"`
}
