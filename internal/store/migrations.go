package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create documents and chunks",
		SQL: `
			CREATE TABLE documents (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				original_path TEXT NOT NULL,
				kind          TEXT NOT NULL DEFAULT 'other',
				size_bytes    INTEGER NOT NULL DEFAULT 0,
				indexed_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_documents_path ON documents (original_path);
			CREATE INDEX idx_documents_kind ON documents (kind);

			CREATE TABLE chunks (
				id          TEXT PRIMARY KEY,
				document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				seq         INTEGER NOT NULL,
				text        TEXT NOT NULL,
				locator     TEXT NOT NULL DEFAULT '',
				embedding   BLOB
			);

			CREATE INDEX idx_chunks_document ON chunks (document_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "chunk full-text search with FTS5",
		SQL: `
			CREATE VIRTUAL TABLE chunks_fts USING fts5(
				text,
				content='chunks',
				content_rowid='rowid'
			);

			CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, text)
				VALUES (new.rowid, new.text);
			END;

			CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, text)
				VALUES ('delete', old.rowid, old.text);
			END;

			CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, text)
				VALUES ('delete', old.rowid, old.text);
				INSERT INTO chunks_fts(rowid, text)
				VALUES (new.rowid, new.text);
			END;
		`,
	},
}
