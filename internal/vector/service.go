package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/hooks"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/store"
)

// Sentinel errors for bad index/search requests. The gateway maps these to
// 4xx responses.
var (
	ErrPathRequired = errors.New("vector: file path required")
	ErrNoContent    = errors.New("vector: document content required")
	ErrEmptyQuery   = errors.New("vector: query required")
)

// rrfK is the standard reciprocal-rank-fusion constant.
const rrfK = 60

// Sheet is one spreadsheet tab submitted for indexing: rendered rows in
// worksheet order.
type Sheet struct {
	Name string   `json:"name"`
	Rows []string `json:"rows"`
}

// IndexRequest describes a document to chunk, embed, and store.
type IndexRequest struct {
	Path      string          `json:"file_path"`
	Name      string          `json:"name,omitempty"`
	Kind      domain.FileKind `json:"kind,omitempty"`
	Text      string          `json:"content,omitempty"`
	Sheets    []Sheet         `json:"sheets,omitempty"`
	ChunkSize int             `json:"chunk_size,omitempty"`
	Overlap   int             `json:"overlap,omitempty"`
}

// SearchRequest describes a retrieval query. Zero values fall back to the
// configured defaults; a negative MinScore disables the score floor.
type SearchRequest struct {
	Query      string  `json:"query"`
	TopK       int     `json:"top_k,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
	Hybrid     *bool   `json:"hybrid,omitempty"`
}

// Service is the retrieval front door: it chunks and embeds documents into
// the store, keeps the in-memory index mirroring it, and answers searches.
type Service struct {
	store    store.DocumentStore
	embedder *Embedder
	index    *Index
	hooks    *hooks.Manager
	log      *logging.Logger

	topK     int
	minScore float64
	hybrid   bool
}

// NewService creates a vector service with the configured retrieval
// defaults. The hooks manager may be nil.
func NewService(st store.DocumentStore, emb *Embedder, cfg config.RetrievalConfig, hk *hooks.Manager, log *logging.Logger) *Service {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 8
	}
	hybrid := true
	if cfg.Hybrid != nil {
		hybrid = *cfg.Hybrid
	}
	return &Service{
		store:    st,
		embedder: emb,
		index:    NewIndex(),
		hooks:    hk,
		log:      log.Sub("vector"),
		topK:     topK,
		minScore: cfg.MinScore,
		hybrid:   hybrid,
	}
}

// Dimensions reports the embedding width in use.
func (s *Service) Dimensions() int {
	return s.embedder.Dimensions()
}

// IndexedChunks returns how many chunks the in-memory index holds.
func (s *Service) IndexedChunks() int {
	return s.index.Len()
}

// IndexDocument chunks, embeds, and persists a document, then refreshes the
// in-memory index. Re-indexing a path replaces the previous document rather
// than adding a second one.
func (s *Service) IndexDocument(ctx context.Context, req IndexRequest) (*domain.Document, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, ErrPathRequired
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.KindForPath(path)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = filepath.Base(path)
	}

	chunker := NewChunker(req.ChunkSize, req.Overlap)
	var texts, locators []string
	for _, sheet := range req.Sheets {
		for _, sc := range chunker.SplitSheet(sheet.Name, sheet.Rows) {
			texts = append(texts, sc.Text)
			locators = append(locators, sc.Locator)
		}
	}
	if text := strings.TrimSpace(req.Text); text != "" {
		for _, t := range chunker.Split(text) {
			texts = append(texts, t)
			locators = append(locators, "")
		}
	}
	if len(texts) == 0 {
		return nil, ErrNoContent
	}

	vecs, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	// Keep the existing ID for this path so the store replaces in place,
	// and remember the outgoing chunk IDs for the index refresh.
	var oldChunkIDs []string
	docID := ""
	if existing, err := s.store.DocumentByPath(ctx, path); err == nil {
		docID = existing.ID
		if old, err := s.store.ChunksByDocument(ctx, docID); err == nil {
			for _, c := range old {
				oldChunkIDs = append(oldChunkIDs, c.ID)
			}
		}
	}

	doc := domain.Document{
		ID:           docID,
		Name:         name,
		OriginalPath: path,
		Kind:         kind,
		SizeBytes:    sizeOf(path, texts),
	}
	doc, err = s.store.UpsertDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(texts))
	for i := range texts {
		chunks[i] = domain.Chunk{
			DocumentID: doc.ID,
			Seq:        i,
			Text:       texts[i],
			Locator:    locators[i],
			Embedding:  vecs[i],
		}
	}
	if err := s.store.InsertChunks(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}

	s.index.Remove(oldChunkIDs...)
	for i := range chunks {
		s.index.Add(chunks[i].ID, chunks[i].Embedding)
	}
	doc.ChunkCount = len(chunks)

	s.log.Info().
		Str("document", doc.Name).
		Str("path", doc.OriginalPath).
		Int("chunks", len(chunks)).
		Msg("document indexed")
	s.emit(ctx, hooks.EventDocumentIndexed, map[string]any{
		"document_id": doc.ID,
		"path":        doc.OriginalPath,
		"name":        doc.Name,
		"chunks":      len(chunks),
	})

	return &doc, nil
}

// Search embeds the query and returns the best chunks above the score
// floor. With hybrid enabled, FTS keyword matches are blended in via
// reciprocal-rank fusion; reported scores stay cosine similarities.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]domain.ScoredChunk, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	minScore := s.minScore
	switch {
	case req.MinScore > 0:
		minScore = req.MinScore
	case req.MinScore < 0:
		minScore = -1 // cosine floor: nothing is filtered
	}
	hybrid := s.hybrid
	if req.Hybrid != nil {
		hybrid = *req.Hybrid
	}

	qvec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	// Overfetch so document filtering and the score floor still leave
	// enough candidates.
	fetch := topK * 4
	if fetch < 20 {
		fetch = 20
	}
	vecHits := s.index.Search(qvec, fetch)

	scores := make(map[string]float64, len(vecHits))
	ranking := make([]string, 0, len(vecHits))
	for _, h := range vecHits {
		scores[h.ID] = h.Score
		ranking = append(ranking, h.ID)
	}

	if hybrid {
		kwChunks, err := s.store.SearchKeyword(ctx, query, fetch)
		if err != nil {
			s.log.Warn().Err(err).Msg("keyword search failed, vector ranking only")
		} else if len(kwChunks) > 0 {
			kwIDs := make([]string, 0, len(kwChunks))
			for _, c := range kwChunks {
				kwIDs = append(kwIDs, c.ID)
				if _, ok := scores[c.ID]; !ok {
					if sc, ok := s.index.Score(c.ID, qvec); ok {
						scores[c.ID] = sc
					}
				}
			}
			ranking = fuseRankings(ranking, kwIDs)
		}
	}

	if len(ranking) == 0 {
		return nil, nil
	}

	byID := make(map[string]domain.Chunk, len(ranking))
	hydrated, err := s.store.ChunksByIDs(ctx, ranking)
	if err != nil {
		return nil, err
	}
	for _, c := range hydrated {
		byID[c.ID] = c
	}

	docNames, err := s.documentNames(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ScoredChunk, 0, topK)
	for _, id := range ranking {
		chunk, ok := byID[id]
		if !ok {
			continue
		}
		if req.DocumentID != "" && chunk.DocumentID != req.DocumentID {
			continue
		}
		score := scores[id]
		if score < minScore {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk:        chunk,
			Score:        score,
			DocumentName: docNames[chunk.DocumentID],
		})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// DeleteDocument removes a document from the store and its chunks from the
// index.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.store.Document(ctx, id)
	if err != nil {
		return err
	}
	chunks, err := s.store.ChunksByDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	s.index.Remove(ids...)

	s.log.Info().Str("document", doc.Name).Str("id", id).Msg("document deleted")
	s.emit(ctx, hooks.EventDocumentDeleted, map[string]any{
		"document_id": id,
		"path":        doc.OriginalPath,
	})
	return nil
}

// ListDocuments returns all indexed documents.
func (s *Service) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Document returns one indexed document by ID.
func (s *Service) Document(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.Document(ctx, id)
}

// Reload rebuilds the in-memory index from the store. Called once at
// startup, before the gateway starts answering searches.
func (s *Service) Reload(ctx context.Context) (int, error) {
	chunks, err := s.store.AllChunks(ctx)
	if err != nil {
		return 0, err
	}

	s.index.Clear()
	n := 0
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			continue
		}
		s.index.Add(chunks[i].ID, chunks[i].Embedding)
		n++
	}

	s.log.Info().Int("chunks", n).Msg("index reloaded")
	return n, nil
}

func (s *Service) documentNames(ctx context.Context) (map[string]string, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Name
	}
	return names, nil
}

func (s *Service) emit(ctx context.Context, event string, data map[string]any) {
	if s.hooks == nil {
		return
	}
	s.hooks.Emit(ctx, event, data)
}

// fuseRankings merges two ranked ID lists with reciprocal-rank fusion.
// Ties break on ID for determinism.
func fuseRankings(lists ...[]string) []string {
	fused := make(map[string]float64)
	for _, list := range lists {
		for rank, id := range list {
			fused[id] += 1.0 / float64(rrfK+rank+1)
		}
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if fused[ids[i]] != fused[ids[j]] {
			return fused[ids[i]] > fused[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// sizeOf reports the original file's size when it is reachable, falling
// back to the submitted text length.
func sizeOf(path string, texts []string) int64 {
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return fi.Size()
	}
	var n int64
	for _, t := range texts {
		n += int64(len(t))
	}
	return n
}
