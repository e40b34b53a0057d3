package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a SQLite file using modernc.org/sqlite.
// Embeddings are stored as JSON arrays and compared in process.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database and applies the schema.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if dsn == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	collection   TEXT NOT NULL,
	position     INTEGER NOT NULL,
	content      TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	pages        TEXT NOT NULL DEFAULT '[]',
	embedding    TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (collection, position)
);

CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", collection, err)
	}
	return n, nil
}

func (s *SQLiteStore) Add(ctx context.Context, collection string, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(id, collection, position, content, start_offset, end_offset, source, pages, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		pages, err := json.Marshal(r.Chunk.Metadata.ApproxPages)
		if err != nil {
			return fmt.Errorf("sqlite: marshal pages: %w", err)
		}
		emb, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("sqlite: marshal embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, collection, r.Position, r.Chunk.Text,
			r.Chunk.Start, r.Chunk.End, r.Chunk.Metadata.Source, string(pages), string(emb)); err != nil {
			return fmt.Errorf("sqlite: insert chunk %d: %w", r.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, position, content, start_offset, end_offset, source, pages, embedding
		FROM chunks WHERE collection = ? ORDER BY position`, collection)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search %s: %w", collection, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r            Record
			pages, embed string
		)
		if err := rows.Scan(&r.ID, &r.Position, &r.Chunk.Text, &r.Chunk.Start, &r.Chunk.End,
			&r.Chunk.Metadata.Source, &pages, &embed); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(pages), &r.Chunk.Metadata.ApproxPages); err != nil {
			return nil, fmt.Errorf("sqlite: decode pages: %w", err)
		}
		if err := json.Unmarshal([]byte(embed), &r.Embedding); err != nil {
			return nil, fmt.Errorf("sqlite: decode embedding: %w", err)
		}
		r.Collection = collection
		r.Chunk.ID = r.ID
		r.Chunk.Index = r.Position
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate chunks: %w", err)
	}
	return rank(records, vector, limit), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
