package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
)

// ErrNotFound is returned when a document lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// DocumentStore persists indexed documents and their chunks. Implemented by
// SQLiteDocumentStore and, for the memory driver and tests, MemoryDocumentStore.
type DocumentStore interface {
	// UpsertDocument writes a document, replacing any previous document (and
	// its chunks) recorded for the same original path. A missing ID is assigned.
	UpsertDocument(ctx context.Context, doc domain.Document) (domain.Document, error)

	// InsertChunks replaces the chunks of a document in one transaction.
	// Missing chunk IDs are assigned and written back to the slice.
	InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// Document returns a document by ID.
	Document(ctx context.Context, id string) (*domain.Document, error)

	// DocumentByPath returns the document recorded for an original path.
	DocumentByPath(ctx context.Context, path string) (*domain.Document, error)

	// ListDocuments returns all documents sorted by name.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ChunksByDocument returns a document's chunks in sequence order.
	ChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ChunksByIDs returns the chunks matching the given IDs, in no
	// particular order. Unknown IDs are skipped.
	ChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)

	// AllChunks returns every chunk with its embedding. Used to hydrate the
	// in-memory index at startup.
	AllChunks(ctx context.Context) ([]domain.Chunk, error)

	// SearchKeyword runs a full-text query over chunk text and returns
	// matches in rank order.
	SearchKeyword(ctx context.Context, query string, limit int) ([]domain.Chunk, error)
}

// SQLiteDocumentStore implements DocumentStore over the SQLite schema.
type SQLiteDocumentStore struct {
	db *DB
}

// NewSQLiteDocumentStore creates a document store using the given database.
func NewSQLiteDocumentStore(db *DB) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db}
}

const documentColumns = `
	d.id, d.name, d.original_path, d.kind, d.size_bytes, d.indexed_at,
	(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)`

// UpsertDocument writes a document, replacing any previous record for the
// same original path. The replaced document's chunks cascade away.
func (s *SQLiteDocumentStore) UpsertDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Kind == "" {
		doc.Kind = domain.KindForPath(doc.OriginalPath)
	}
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now()
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return doc, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	// Document identity is the original path: a re-index under a new ID
	// evicts the old record.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE original_path = ? AND id != ?`,
		doc.OriginalPath, doc.ID,
	); err != nil {
		return doc, fmt.Errorf("replacing document for %s: %w", doc.OriginalPath, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, name, original_path, kind, size_bytes, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   original_path = excluded.original_path,
		   kind = excluded.kind,
		   size_bytes = excluded.size_bytes,
		   indexed_at = excluded.indexed_at`,
		doc.ID, doc.Name, doc.OriginalPath, string(doc.Kind), doc.SizeBytes,
		doc.IndexedAt.UTC().Format(time.DateTime),
	); err != nil {
		return doc, fmt.Errorf("upserting document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return doc, fmt.Errorf("commit upsert: %w", err)
	}
	return doc, nil
}

// InsertChunks replaces a document's chunks in one transaction.
func (s *SQLiteDocumentStore) InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert chunks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, documentID,
	); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, seq, text, locator, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.DocumentID = documentID
		if _, err := stmt.ExecContext(ctx,
			c.ID, documentID, c.Seq, c.Text, c.Locator, encodeVector(c.Embedding),
		); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Document returns a document by ID.
func (s *SQLiteDocumentStore) Document(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT`+documentColumns+` FROM documents d WHERE d.id = ?`, id)
	return scanDocument(row)
}

// DocumentByPath returns the document recorded for an original path.
func (s *SQLiteDocumentStore) DocumentByPath(ctx context.Context, path string) (*domain.Document, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT`+documentColumns+` FROM documents d WHERE d.original_path = ?`, path)
	return scanDocument(row)
}

// ListDocuments returns all documents sorted by name.
func (s *SQLiteDocumentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT`+documentColumns+` FROM documents d ORDER BY d.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; its chunks cascade.
func (s *SQLiteDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChunksByDocument returns a document's chunks in sequence order.
func (s *SQLiteDocumentStore) ChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, document_id, seq, text, locator, embedding
		 FROM chunks WHERE document_id = ? ORDER BY seq`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ChunksByIDs returns the chunks matching the given IDs.
func (s *SQLiteDocumentStore) ChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, document_id, seq, text, locator, embedding
		 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// AllChunks returns every chunk with its embedding.
func (s *SQLiteDocumentStore) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, document_id, seq, text, locator, embedding
		 FROM chunks ORDER BY document_id, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// SearchKeyword runs an FTS5 query over chunk text, best matches first.
func (s *SQLiteDocumentStore) SearchKeyword(ctx context.Context, query string, limit int) ([]domain.Chunk, error) {
	match := escapeFTS(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.seq, c.text, c.locator, c.embedding
		 FROM chunks_fts
		 JOIN chunks c ON c.rowid = chunks_fts.rowid
		 WHERE chunks_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var kind, indexedAt string
	err := row.Scan(&doc.ID, &doc.Name, &doc.OriginalPath, &kind,
		&doc.SizeBytes, &indexedAt, &doc.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.Kind = domain.FileKind(kind)
	doc.IndexedAt, _ = time.Parse(time.DateTime, indexedAt)
	return &doc, nil
}

func scanDocumentRow(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var kind, indexedAt string
	if err := rows.Scan(&doc.ID, &doc.Name, &doc.OriginalPath, &kind,
		&doc.SizeBytes, &indexedAt, &doc.ChunkCount); err != nil {
		return nil, err
	}
	doc.Kind = domain.FileKind(kind)
	doc.IndexedAt, _ = time.Parse(time.DateTime, indexedAt)
	return &doc, nil
}

func scanChunkRows(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Text, &c.Locator, &embedding); err != nil {
			continue
		}
		c.Embedding = decodeVector(embedding)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// encodeVector serializes an embedding as little-endian float32s.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// escapeFTS quotes each term so user input cannot inject FTS5 syntax.
func escapeFTS(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}
