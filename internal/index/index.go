package index

import (
	"context"
	"errors"
	"time"

	"github.com/concierge-ai/concierge/internal/chunker"
)

// ErrNotTrained is returned when a tenant has no built index.
var ErrNotTrained = errors.New("tenant index not trained")

// ErrEmptyIndex is returned when a rebuild is attempted with no chunks.
var ErrEmptyIndex = errors.New("no chunks to index")

// Scored is one retrieval hit, best-first. Score is cosine similarity
// of the query and chunk embeddings.
type Scored struct {
	Text   string
	Source string
	Score  float64
}

// Stats describes a tenant's current index.
type Stats struct {
	TrainedAt time.Time
	Chunks    int
}

// Store holds per-tenant vector indexes. Replace swaps a tenant's index
// wholesale and atomically: concurrent Search calls observe either the
// old or the new chunk set, never a mixture. Search never returns chunks
// embedded under a different tenant.
type Store interface {
	Replace(ctx context.Context, tenantID string, chunks []chunker.Chunk, vectors [][]float32) error
	Search(ctx context.Context, tenantID string, vector []float32, k int) ([]Scored, error)
	Stats(ctx context.Context, tenantID string) (Stats, error)
}
