package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// stores returns both DocumentStore implementations so every test runs
// against SQLite and the memory driver.
func stores(t *testing.T) map[string]DocumentStore {
	t.Helper()
	return map[string]DocumentStore{
		"sqlite": NewSQLiteDocumentStore(testDB(t)),
		"memory": NewMemoryDocumentStore(),
	}
}

func sampleDoc(path string) domain.Document {
	return domain.Document{
		Name:         "budget.xlsx",
		OriginalPath: path,
		Kind:         domain.KindExcel,
		SizeBytes:    2048,
	}
}

func sampleChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			Seq:       i,
			Text:      "Q1 revenue by region, row " + string(rune('A'+i)),
			Locator:   "Sheet1!A1:D20",
			Embedding: []float32{float32(i), 0.5, -0.25},
		}
	}
	return chunks
}

// --- DB/migration tests ---

func TestOpenInMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
}

func TestMigrationsApplied(t *testing.T) {
	db := testDB(t)

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchemaTablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"documents", "chunks", "chunks_fts"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

// --- Document store tests ---

func TestUpsertDocumentAssignsID(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			doc, err := st.UpsertDocument(context.Background(), sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)
			assert.NotEmpty(t, doc.ID)
			assert.False(t, doc.IndexedAt.IsZero())
		})
	}
}

func TestUpsertDocumentReplacesByPath(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)

			// A re-index of the same path under a fresh ID evicts the old record.
			second, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)

			docs, err := st.ListDocuments(ctx)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, second.ID, docs[0].ID)
		})
	}
}

func TestDocumentByPath(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)

			got, err := st.DocumentByPath(ctx, "/docs/budget.xlsx")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, domain.KindExcel, got.Kind)

			_, err = st.DocumentByPath(ctx, "/docs/missing.xlsx")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDocumentNotFound(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Document(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestInsertChunksRoundTrip(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)

			chunks := sampleChunks(3)
			require.NoError(t, st.InsertChunks(ctx, doc.ID, chunks))

			// IDs are assigned in place.
			for _, c := range chunks {
				assert.NotEmpty(t, c.ID)
			}

			got, err := st.ChunksByDocument(ctx, doc.ID)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, 0, got[0].Seq)
			assert.Equal(t, "Sheet1!A1:D20", got[0].Locator)
			assert.Equal(t, []float32{0, 0.5, -0.25}, got[0].Embedding)
		})
	}
}

func TestInsertChunksReplaces(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)

			require.NoError(t, st.InsertChunks(ctx, doc.ID, sampleChunks(4)))
			require.NoError(t, st.InsertChunks(ctx, doc.ID, sampleChunks(2)))

			got, err := st.ChunksByDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestChunksByIDs(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)

			chunks := sampleChunks(3)
			require.NoError(t, st.InsertChunks(ctx, doc.ID, chunks))

			got, err := st.ChunksByIDs(ctx, []string{chunks[0].ID, chunks[2].ID, "unknown"})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			empty, err := st.ChunksByIDs(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)
			require.NoError(t, st.InsertChunks(ctx, doc.ID, sampleChunks(2)))

			require.NoError(t, st.DeleteDocument(ctx, doc.ID))

			_, err = st.Document(ctx, doc.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			chunks, err := st.ChunksByDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Empty(t, chunks)

			all, err := st.AllChunks(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := st.DeleteDocument(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestAllChunksSpansDocuments(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a, err := st.UpsertDocument(ctx, sampleDoc("/docs/a.xlsx"))
			require.NoError(t, err)
			require.NoError(t, st.InsertChunks(ctx, a.ID, sampleChunks(2)))

			b, err := st.UpsertDocument(ctx, sampleDoc("/docs/b.xlsx"))
			require.NoError(t, err)
			require.NoError(t, st.InsertChunks(ctx, b.ID, sampleChunks(3)))

			all, err := st.AllChunks(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestSearchKeyword(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
			require.NoError(t, err)

			require.NoError(t, st.InsertChunks(ctx, doc.ID, []domain.Chunk{
				{Seq: 0, Text: "Western region revenue grew twelve percent"},
				{Seq: 1, Text: "Eastern region costs were flat"},
				{Seq: 2, Text: "Headcount plan for the next quarter"},
			}))

			hits, err := st.SearchKeyword(ctx, "revenue", 10)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Contains(t, hits[0].Text, "revenue")

			none, err := st.SearchKeyword(ctx, "zeppelin", 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestSearchKeywordAfterDelete(t *testing.T) {
	ctx := context.Background()
	st := NewSQLiteDocumentStore(testDB(t))

	doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
	require.NoError(t, err)
	require.NoError(t, st.InsertChunks(ctx, doc.ID, []domain.Chunk{
		{Seq: 0, Text: "unique searchable marker xyzzy"},
	}))

	hits, err := st.SearchKeyword(ctx, "xyzzy", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, st.DeleteDocument(ctx, doc.ID))

	hits, err = st.SearchKeyword(ctx, "xyzzy", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchKeywordEscapesInput(t *testing.T) {
	ctx := context.Background()
	st := NewSQLiteDocumentStore(testDB(t))

	doc, err := st.UpsertDocument(ctx, sampleDoc("/docs/budget.xlsx"))
	require.NoError(t, err)
	require.NoError(t, st.InsertChunks(ctx, doc.ID, []domain.Chunk{
		{Seq: 0, Text: "plain text row"},
	}))

	// FTS5 operators in user input must not cause query errors.
	_, err = st.SearchKeyword(ctx, `revenue AND (cost OR "broken`, 10)
	assert.NoError(t, err)
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0.25, -1.5, 3.0}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, encodeVector(nil))
	assert.Nil(t, decodeVector(nil))
}
