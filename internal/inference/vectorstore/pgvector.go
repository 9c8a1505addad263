package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVector stores chunks in PostgreSQL with the pgvector extension
type PgVector struct {
	pool       *pgxpool.Pool
	dimensions int
	table      string
}

// ConnectPgVector opens a pool for dsn and prepares the schema
func ConnectPgVector(ctx context.Context, dsn string, dimensions int) (*PgVector, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPgVector(pool, dimensions)
	if err := s.InitializeSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPgVector wraps an existing pool
func NewPgVector(pool *pgxpool.Pool, dimensions int) *PgVector {
	return &PgVector{pool: pool, dimensions: dimensions, table: "document_chunks"}
}

// InitializeSchema creates the extension, table and indexes
func (s *PgVector) InitializeSchema(ctx context.Context) error {
	queries := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				document_id TEXT NOT NULL,
				content TEXT NOT NULL,
				embedding vector(%d) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`, s.table, s.dimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)", s.table, s.table),
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

func (s *PgVector) Exists(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE document_id = $1)", s.table)
	if err := s.pool.QueryRow(ctx, query, documentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	return exists, nil
}

// Add inserts every chunk in one transaction
func (s *PgVector) Add(ctx context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, s.dimensions, len(c.Embedding))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (id, document_id, content, embedding) VALUES ($1, $2, $3, $4)", s.table)
	batch := &pgx.Batch{}
	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Queue(query, id, c.DocumentID, c.Text, pgvector.NewVector(c.Embedding))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func (s *PgVector) Query(ctx context.Context, documentID string, vector []float32, k int) ([]Match, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, content, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE document_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), documentID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return matches, nil
}

func (s *PgVector) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PgVector)(nil)
