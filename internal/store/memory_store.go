package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
)

// MemoryDocumentStore is an in-memory DocumentStore for the memory driver
// and for tests. Keyword search approximates FTS with case-insensitive
// all-terms matching ranked by occurrence count.
type MemoryDocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document // by id
	byPath map[string]string          // original path -> id
	chunks map[string][]domain.Chunk  // document id -> chunks in seq order
}

// NewMemoryDocumentStore creates an empty in-memory document store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:   make(map[string]domain.Document),
		byPath: make(map[string]string),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (m *MemoryDocumentStore) UpsertDocument(_ context.Context, doc domain.Document) (domain.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Kind == "" {
		doc.Kind = domain.KindForPath(doc.OriginalPath)
	}
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prevID, ok := m.byPath[doc.OriginalPath]; ok && prevID != doc.ID {
		delete(m.docs, prevID)
		delete(m.chunks, prevID)
	}
	if prev, ok := m.docs[doc.ID]; ok && prev.OriginalPath != doc.OriginalPath {
		delete(m.byPath, prev.OriginalPath)
	}

	m.docs[doc.ID] = doc
	m.byPath[doc.OriginalPath] = doc.ID
	return doc, nil
}

func (m *MemoryDocumentStore) InsertChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	stored := make([]domain.Chunk, len(chunks))
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.New().String()
		}
		chunks[i].DocumentID = documentID
		stored[i] = chunks[i]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = stored
	return nil
}

func (m *MemoryDocumentStore) Document(_ context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc.ChunkCount = len(m.chunks[id])
	return &doc, nil
}

func (m *MemoryDocumentStore) DocumentByPath(_ context.Context, path string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPath[path]
	if !ok {
		return nil, ErrNotFound
	}
	doc := m.docs[id]
	doc.ChunkCount = len(m.chunks[id])
	return &doc, nil
}

func (m *MemoryDocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]domain.Document, 0, len(m.docs))
	for id, doc := range m.docs {
		doc.ChunkCount = len(m.chunks[id])
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (m *MemoryDocumentStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	delete(m.byPath, doc.OriginalPath)
	delete(m.chunks, id)
	return nil
}

func (m *MemoryDocumentStore) ChunksByDocument(_ context.Context, documentID string) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.chunks[documentID]
	out := make([]domain.Chunk, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryDocumentStore) ChunksByIDs(_ context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Chunk
	for _, stored := range m.chunks {
		for _, c := range stored {
			if want[c.ID] {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (m *MemoryDocumentStore) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Chunk
	for _, stored := range m.chunks {
		out = append(out, stored...)
	}
	return out, nil
}

func (m *MemoryDocumentStore) SearchKeyword(_ context.Context, query string, limit int) ([]domain.Chunk, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	type scored struct {
		chunk domain.Chunk
		hits  int
	}

	m.mu.RLock()
	var matches []scored
	for _, stored := range m.chunks {
		for _, c := range stored {
			text := strings.ToLower(c.Text)
			hits := 0
			all := true
			for _, term := range terms {
				n := strings.Count(text, term)
				if n == 0 {
					all = false
					break
				}
				hits += n
			}
			if all {
				matches = append(matches, scored{chunk: c, hits: hits})
			}
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].hits > matches[j].hits })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]domain.Chunk, len(matches))
	for i, s := range matches {
		out[i] = s.chunk
	}
	return out, nil
}
