package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/concierge-ai/concierge/internal/acquire"
	"github.com/concierge-ai/concierge/internal/chunker"
	"github.com/concierge-ai/concierge/internal/index"
	"github.com/concierge-ai/concierge/internal/session"
)

// ErrEmptyCorpus is returned when a training request yields no content
// after all acquisition attempts.
var ErrEmptyCorpus = errors.New("no documents acquired")

// ErrConfigNotFound is returned when a tenant has no stored config.
var ErrConfigNotFound = errors.New("configuration not found")

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from a fully-assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// maxSources caps the distinct source attributions per answer.
const maxSources = 3

// TrainRequest describes one tenant training run.
type TrainRequest struct {
	TenantID   string
	WebsiteURL string
	PDFURLs    []string
	DocURLs    []string
	MaxPages   int
}

// TrainResult reports what a training run processed.
type TrainResult struct {
	DocumentsProcessed int
	PDFsProcessed      int
}

// Answer is a grounded response with source attribution.
type Answer struct {
	Text       string
	Sources    []string
	Confidence float64
}

// TenantConfig is the per-tenant settings and last-training record.
// Writes are last-write-wins; there are no cross-field invariants.
type TenantConfig struct {
	WebsiteURL    string    `json:"website_url"`
	MaxPages      int       `json:"max_pages"`
	IncludePDFs   bool      `json:"include_pdfs"`
	IncludeDocs   bool      `json:"include_docs"`
	TrainedAt     time.Time `json:"trained_at,omitzero"`
	DocumentCount int       `json:"document_count"`
	PDFCount      int       `json:"pdf_count"`
}

// Engine orchestrates the ingestion pipeline and the retrieval-answer
// loop over per-tenant indexes and per-session memory.
type Engine struct {
	acquirer  *acquire.Acquirer
	splitter  *chunker.Splitter
	store     index.Store
	sessions  *session.Store
	embedder  Embedder
	generator Generator
	prompts   *promptBuilder
	topK      int
	log       *slog.Logger

	cfgMu   sync.RWMutex
	configs map[string]TenantConfig
}

func New(
	acquirer *acquire.Acquirer,
	splitter *chunker.Splitter,
	store index.Store,
	sessions *session.Store,
	embedder Embedder,
	generator Generator,
	topK int,
	log *slog.Logger,
) *Engine {
	if topK <= 0 {
		topK = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		acquirer:  acquirer,
		splitter:  splitter,
		store:     store,
		sessions:  sessions,
		embedder:  embedder,
		generator: generator,
		prompts:   newPromptBuilder(2000),
		topK:      topK,
		log:       log,
	}
}

// Train acquires the tenant's content, chunks and embeds it, and
// replaces the tenant's index wholesale. Per-source fetch failures are
// logged and skipped; training fails only when nothing was acquired.
func (e *Engine) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	e.log.Info("training started", "tenant", req.TenantID, "website", req.WebsiteURL,
		"pdfs", len(req.PDFURLs), "docs", len(req.DocURLs))

	var sources []acquire.Source
	if req.WebsiteURL != "" {
		sources = append(sources, acquire.Source{URL: req.WebsiteURL, Kind: acquire.KindWeb})
	}
	for _, u := range req.PDFURLs {
		sources = append(sources, acquire.Source{URL: u, Kind: acquire.KindPDF})
	}
	for _, u := range req.DocURLs {
		sources = append(sources, acquire.Source{URL: u, Kind: acquire.KindDocument})
	}

	units, failures := e.acquirer.Acquire(ctx, sources)
	if req.MaxPages > 0 {
		units = capWebUnits(units, req.MaxPages)
	}
	if len(units) == 0 {
		return TrainResult{}, fmt.Errorf("training failed for %s: %w", req.TenantID, ErrEmptyCorpus)
	}

	chunks := e.splitter.Split(units)
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		vec, err := e.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return TrainResult{}, fmt.Errorf("training failed: embed chunk %d: %w", i, err)
		}
		vectors[i] = vec
	}

	if err := e.store.Replace(ctx, req.TenantID, chunks, vectors); err != nil {
		return TrainResult{}, fmt.Errorf("training failed: %w", err)
	}

	result := TrainResult{
		DocumentsProcessed: len(units),
		PDFsProcessed:      countPDFSources(units),
	}

	e.SetConfig(req.TenantID, TenantConfig{
		WebsiteURL:    req.WebsiteURL,
		MaxPages:      req.MaxPages,
		TrainedAt:     time.Now(),
		DocumentCount: result.DocumentsProcessed,
		PDFCount:      result.PDFsProcessed,
	})

	e.log.Info("training completed", "tenant", req.TenantID,
		"documents", result.DocumentsProcessed, "chunks", len(chunks),
		"failed_sources", len(failures))
	return result, nil
}

// Chat answers a question against the tenant's index, grounded in the
// session's prior turns. The turn is appended to session memory only
// after generation fully completes.
func (e *Engine) Chat(ctx context.Context, tenantID, sessionID, question string) (Answer, error) {
	if _, err := e.store.Stats(ctx, tenantID); err != nil {
		if errors.Is(err, index.ErrNotTrained) {
			return Answer{}, err
		}
		return Answer{}, fmt.Errorf("answer failed: %w", err)
	}

	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("answer failed: embed question: %w", err)
	}

	hits, err := e.store.Search(ctx, tenantID, queryVec, e.topK)
	if err != nil {
		if errors.Is(err, index.ErrNotTrained) {
			return Answer{}, err
		}
		return Answer{}, fmt.Errorf("answer failed: retrieve: %w", err)
	}

	history := e.sessions.History(sessionID)
	prompt := e.prompts.buildPrompt(hits, history, question)

	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("answer failed: generate: %w", err)
	}

	e.sessions.Append(sessionID, question, text)

	return Answer{
		Text:       text,
		Sources:    distinctSources(hits),
		Confidence: confidence(hits),
	}, nil
}

// Config returns the tenant's stored configuration record.
func (e *Engine) Config(tenantID string) (TenantConfig, error) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	cfg, ok := e.configs[tenantID]
	if !ok {
		return TenantConfig{}, ErrConfigNotFound
	}
	return cfg, nil
}

// SetConfig replaces the tenant's configuration unconditionally.
func (e *Engine) SetConfig(tenantID string, cfg TenantConfig) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	if e.configs == nil {
		e.configs = make(map[string]TenantConfig)
	}
	e.configs[tenantID] = cfg
}

// distinctSources returns the hits' sources deduplicated in
// first-occurrence order, capped at maxSources.
func distinctSources(hits []index.Scored) []string {
	seen := make(map[string]struct{}, len(hits))
	var sources []string
	for _, hit := range hits {
		if hit.Source == "" {
			continue
		}
		if _, ok := seen[hit.Source]; ok {
			continue
		}
		seen[hit.Source] = struct{}{}
		sources = append(sources, hit.Source)
		if len(sources) == maxSources {
			break
		}
	}
	return sources
}

// confidence is the mean retrieval similarity clamped to [0, 1].
func confidence(hits []index.Scored) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, hit := range hits {
		sum += hit.Score
	}
	c := sum / float64(len(hits))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// capWebUnits limits the number of web-page units while keeping all
// PDF and document units.
func capWebUnits(units []acquire.ContentUnit, maxPages int) []acquire.ContentUnit {
	out := units[:0:0]
	web := 0
	for _, u := range units {
		if u.Kind == acquire.KindWeb {
			if web >= maxPages {
				continue
			}
			web++
		}
		out = append(out, u)
	}
	return out
}

func countPDFSources(units []acquire.ContentUnit) int {
	seen := make(map[string]struct{})
	for _, u := range units {
		if u.Kind == acquire.KindPDF {
			seen[u.Source] = struct{}{}
		}
	}
	return len(seen)
}
