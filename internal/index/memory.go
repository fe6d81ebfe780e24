package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/concierge-ai/concierge/internal/chunker"
)

// snapshot is one fully-built tenant index. Snapshots are immutable
// after construction, so searches read them outside the map lock.
type snapshot struct {
	chunks    []chunker.Chunk
	vectors   [][]float32
	trainedAt time.Time
}

// Memory is an in-process Store using brute-force cosine similarity.
// Rebuilds install a fresh snapshot under the write lock, which gives
// copy-on-write atomicity for concurrent readers.
type Memory struct {
	mu      sync.RWMutex
	tenants map[string]*snapshot
}

func NewMemory() *Memory {
	return &Memory{tenants: make(map[string]*snapshot)}
}

func (m *Memory) Replace(_ context.Context, tenantID string, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return ErrEmptyIndex
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	snap := &snapshot{
		chunks:    append([]chunker.Chunk(nil), chunks...),
		vectors:   append([][]float32(nil), vectors...),
		trainedAt: time.Now(),
	}

	m.mu.Lock()
	m.tenants[tenantID] = snap
	m.mu.Unlock()
	return nil
}

func (m *Memory) Search(_ context.Context, tenantID string, vector []float32, k int) ([]Scored, error) {
	m.mu.RLock()
	snap, ok := m.tenants[tenantID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotTrained
	}
	if k <= 0 {
		k = 3
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(snap.vectors))
	for i, v := range snap.vectors {
		scores[i] = scored{idx: i, score: cosineSimilarity(vector, v)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]Scored, 0, k)
	for _, s := range scores[:k] {
		ch := snap.chunks[s.idx]
		results = append(results, Scored{Text: ch.Text, Source: ch.Source, Score: s.score})
	}
	return results, nil
}

func (m *Memory) Stats(_ context.Context, tenantID string) (Stats, error) {
	m.mu.RLock()
	snap, ok := m.tenants[tenantID]
	m.mu.RUnlock()
	if !ok {
		return Stats{}, ErrNotTrained
	}
	return Stats{TrainedAt: snap.trainedAt, Chunks: len(snap.chunks)}, nil
}

// cosineSimilarity returns 0 for mismatched dimensions or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
