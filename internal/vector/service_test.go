package vector

import (
	"context"
	"strings"
	"testing"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/embedding"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/hooks"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(st store.DocumentStore, hybrid bool, hk *hooks.Manager) *Service {
	log := logging.New(nil, "silent")
	emb := NewEmbedder(&embedding.MockClient{}, 0, log)
	cfg := config.RetrievalConfig{TopK: 5, MinScore: 0, Hybrid: &hybrid}
	return NewService(st, emb, cfg, hk, log)
}

func TestService_IndexDocument_TextChunks(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)

	doc, err := svc.IndexDocument(context.Background(), IndexRequest{
		Path: "/tmp/reports/q3.txt",
		Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "q3.txt", doc.Name)
	assert.Equal(t, domain.KindText, doc.Kind)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, 1, svc.IndexedChunks())

	stored, err := st.DocumentByPath(context.Background(), "/tmp/reports/q3.txt")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, stored.ID)
}

func TestService_IndexDocument_SheetLocators(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)

	doc, err := svc.IndexDocument(context.Background(), IndexRequest{
		Path: "/tmp/models/budget.xlsx",
		Sheets: []Sheet{
			{Name: "Budget", Rows: []string{"Revenue | 100", "COGS | 40"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindExcel, doc.Kind)

	chunks, err := st.ChunksByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0].Locator, "Budget!A"))
}

func TestService_IndexDocument_Validation(t *testing.T) {
	svc := newTestService(store.NewMemoryDocumentStore(), false, nil)

	_, err := svc.IndexDocument(context.Background(), IndexRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrPathRequired)

	_, err = svc.IndexDocument(context.Background(), IndexRequest{Path: "/tmp/a.txt"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestService_Search_ExactMatchFirst(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	_, err = svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/b.txt", Text: "hiring plan for engineering",
	})
	require.NoError(t, err)

	results, err := svc.Search(ctx, SearchRequest{Query: "quarterly revenue projections"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "quarterly revenue projections", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "a.txt", results[0].DocumentName)
}

func TestService_Search_MinScoreFilters(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	_, err = svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/b.txt", Text: "hiring plan for engineering",
	})
	require.NoError(t, err)

	results, err := svc.Search(ctx, SearchRequest{
		Query:    "quarterly revenue projections",
		MinScore: 0.95,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Score, 0.95)
}

func TestService_Search_DocumentFilter(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	docB, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/b.txt", Text: "hiring plan for engineering",
	})
	require.NoError(t, err)

	results, err := svc.Search(ctx, SearchRequest{
		Query:      "hiring plan for engineering",
		DocumentID: docB.ID,
		MinScore:   -1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, docB.ID, r.DocumentID)
	}
}

func TestService_Search_EmptyQuery(t *testing.T) {
	svc := newTestService(store.NewMemoryDocumentStore(), false, nil)

	_, err := svc.Search(context.Background(), SearchRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestService_Reindex_ReplacesDocument(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)
	ctx := context.Background()

	first, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/model.xlsx", Text: "original contents of the model",
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.ChunkCount)

	second, err := svc.IndexDocument(ctx, IndexRequest{
		Path:      "/tmp/model.xlsx",
		Text:      strings.Repeat("b", 30) + "\n\n" + strings.Repeat("c", 30),
		ChunkSize: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ChunkCount)

	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 2, svc.IndexedChunks())
}

func TestService_DeleteDocument(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, false, nil)
	ctx := context.Background()

	doc, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	require.Equal(t, 1, svc.IndexedChunks())

	require.NoError(t, svc.DeleteDocument(ctx, doc.ID))
	assert.Equal(t, 0, svc.IndexedChunks())

	_, err = st.Document(ctx, doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = svc.DeleteDocument(ctx, "no-such-doc")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Reload_RebuildsIndex(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	ctx := context.Background()

	first := newTestService(st, false, nil)
	_, err := first.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	_, err = first.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/b.txt", Text: "hiring plan for engineering",
	})
	require.NoError(t, err)

	fresh := newTestService(st, false, nil)
	require.Equal(t, 0, fresh.IndexedChunks())

	n, err := fresh.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := fresh.Search(ctx, SearchRequest{Query: "quarterly revenue projections"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestService_HybridSearch(t *testing.T) {
	st := store.NewMemoryDocumentStore()
	svc := newTestService(st, true, nil)
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "revenue revenue revenue growth",
	})
	require.NoError(t, err)
	_, err = svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/b.txt", Text: "unrelated engineering notes",
	})
	require.NoError(t, err)

	results, err := svc.Search(ctx, SearchRequest{
		Query:    "revenue revenue revenue growth",
		MinScore: -1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Text, "revenue")
}

func TestService_EmitsHooks(t *testing.T) {
	log := logging.New(nil, "silent")
	hk := hooks.NewManager(log)
	var events []string
	record := func(_ context.Context, p hooks.Payload) error {
		events = append(events, p.Event)
		return nil
	}
	hk.On(hooks.EventDocumentIndexed, "test", record)
	hk.On(hooks.EventDocumentDeleted, "test", record)

	svc := newTestService(store.NewMemoryDocumentStore(), false, hk)
	ctx := context.Background()

	doc, err := svc.IndexDocument(ctx, IndexRequest{
		Path: "/tmp/a.txt", Text: "quarterly revenue projections",
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDocument(ctx, doc.ID))

	assert.Equal(t, []string{hooks.EventDocumentIndexed, hooks.EventDocumentDeleted}, events)
}

func TestFuseRankings(t *testing.T) {
	fused := fuseRankings([]string{"a", "b", "c"}, []string{"b", "d"})
	assert.Equal(t, []string{"b", "a", "d", "c"}, fused)
}
