package index

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/concierge-ai/concierge/internal/chunker"
)

// Postgres is a pgvector-backed Store for deployments where indexes
// must survive restarts. Replace runs delete-and-insert in a single
// transaction, so readers see the old or the new chunk set, never a
// partial mix.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, verifies the connection, and ensures the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS tenant_indexes (
			tenant_id TEXT PRIMARY KEY,
			trained_at TIMESTAMPTZ NOT NULL,
			chunk_count INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_chunks (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenant_indexes (tenant_id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			embedding vector NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS tenant_chunks_tenant_idx ON tenant_chunks (tenant_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Replace(ctx context.Context, tenantID string, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return ErrEmptyIndex
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO tenant_indexes (tenant_id, trained_at, chunk_count)
		 VALUES ($1, NOW(), $2)
		 ON CONFLICT (tenant_id) DO UPDATE SET trained_at = NOW(), chunk_count = $2`,
		tenantID, len(chunks),
	); err != nil {
		return fmt.Errorf("failed to record tenant index: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM tenant_chunks WHERE tenant_id = $1`, tenantID,
	); err != nil {
		return fmt.Errorf("failed to clear old chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for i, ch := range chunks {
		batch.Queue(
			`INSERT INTO tenant_chunks (tenant_id, chunk_index, content, source, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			tenantID, i, ch.Text, ch.Source, pgvector.NewVector(vectors[i]),
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index rebuild: %w", err)
	}
	return nil
}

func (p *Postgres) Search(ctx context.Context, tenantID string, vector []float32, k int) ([]Scored, error) {
	if _, err := p.Stats(ctx, tenantID); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 3
	}

	rows, err := p.pool.Query(ctx,
		`SELECT content, source, 1 - (embedding <=> $2) AS score
		 FROM tenant_chunks
		 WHERE tenant_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		tenantID, pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []Scored
	for rows.Next() {
		var s Scored
		if err := rows.Scan(&s.Text, &s.Source, &s.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context, tenantID string) (Stats, error) {
	var st Stats
	err := p.pool.QueryRow(ctx,
		`SELECT trained_at, chunk_count FROM tenant_indexes WHERE tenant_id = $1`,
		tenantID,
	).Scan(&st.TrainedAt, &st.Chunks)
	if err == pgx.ErrNoRows {
		return Stats{}, ErrNotTrained
	}
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get tenant index: %w", err)
	}
	return st, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
