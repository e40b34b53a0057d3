package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps records in Postgres with a pgvector column and searches
// by cosine distance.
type PostgresStore struct {
	db    DB
	close func()
}

// NewPostgres connects to Postgres, verifies the connection and creates the
// schema for vectors of the given dimension.
func NewPostgres(ctx context.Context, connStr string, dimension int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := NewPostgresFromDB(pool)
	s.close = pool.Close
	if err := s.Migrate(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromDB wraps an existing pool or mock.
func NewPostgresFromDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the vector extension and the chunks table.
func (s *PostgresStore) Migrate(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("postgres: invalid embedding dimension %d", dimension)
	}
	if _, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("postgres: create extension: %w", err)
	}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS finextract_chunks (
		id           UUID PRIMARY KEY,
		collection   TEXT NOT NULL,
		position     INT NOT NULL,
		content      TEXT NOT NULL,
		start_offset INT NOT NULL,
		end_offset   INT NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		pages        INT[] NOT NULL DEFAULT '{}',
		embedding    vector(%d) NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (collection, position)
	)`, dimension)
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM finextract_chunks WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", collection, err)
	}
	return int(n), nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, records []Record) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `INSERT INTO finextract_chunks
		(id, collection, position, content, start_offset, end_offset, source, pages, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, r := range records {
		pages := make([]int32, len(r.Chunk.Metadata.ApproxPages))
		for i, p := range r.Chunk.Metadata.ApproxPages {
			pages[i] = int32(p)
		}
		if _, err := tx.Exec(ctx, insert, r.ID, collection, r.Position, r.Chunk.Text,
			r.Chunk.Start, r.Chunk.End, r.Chunk.Metadata.Source, pages, pgvector.NewVector(r.Embedding)); err != nil {
			return fmt.Errorf("postgres: insert chunk %d: %w", r.Position, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("postgres: empty query vector")
	}
	rows, err := s.db.Query(ctx, `SELECT id::text, position, content, start_offset, end_offset, source, pages,
			embedding::text, 1 - (embedding <=> $2) AS score
		FROM finextract_chunks
		WHERE collection = $1
		ORDER BY embedding <=> $2, position
		LIMIT $3`, collection, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search %s: %w", collection, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m          Match
			pages      []int32
			start, end int32
			position   int32
			embedding  string
		)
		if err := rows.Scan(&m.ID, &position, &m.Chunk.Text, &start, &end,
			&m.Chunk.Metadata.Source, &pages, &embedding, &m.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		var v pgvector.Vector
		if err := v.Scan(embedding); err != nil {
			return nil, fmt.Errorf("postgres: decode embedding: %w", err)
		}
		m.Embedding = v.Slice()
		m.Collection = collection
		m.Position = int(position)
		m.Chunk.ID = m.ID
		m.Chunk.Index = m.Position
		m.Chunk.Start, m.Chunk.End = int(start), int(end)
		for _, p := range pages {
			m.Chunk.Metadata.ApproxPages = append(m.Chunk.Metadata.ApproxPages, int(p))
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate chunks: %w", err)
	}
	return matches, nil
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
