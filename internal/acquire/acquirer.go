package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Kind identifies the type of a content source.
type Kind string

const (
	KindWeb      Kind = "web"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "document"
)

// Source describes one remote content source to ingest.
type Source struct {
	URL  string
	Kind Kind
}

// ContentUnit is one unit of ingested material. Source is the origin URL
// and is set before a unit leaves the acquirer; a multi-page PDF yields
// one unit per page, all carrying the original URL.
type ContentUnit struct {
	Text   string
	Source string
	Kind   Kind
}

// SourceError records a failed acquisition attempt for a single source.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("acquire %s %s: %v", e.Source.Kind, e.Source.URL, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Acquirer fetches remote content and normalizes it into ContentUnits.
type Acquirer struct {
	client       *http.Client
	limiter      *rate.Limiter
	log          *slog.Logger
	maxBodyBytes int64
}

// New creates an Acquirer. The client's timeout bounds each fetch; rps
// paces outbound requests so training bursts don't hammer a host.
func New(client *http.Client, rps float64, maxBodyBytes int64, log *slog.Logger) *Acquirer {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if rps <= 0 {
		rps = 4
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 32 << 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Acquirer{
		client:       client,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		log:          log,
		maxBodyBytes: maxBodyBytes,
	}
}

// Acquire fetches every source in order. A failing source yields a
// SourceError and is logged; it never aborts the rest of the batch.
func (a *Acquirer) Acquire(ctx context.Context, sources []Source) ([]ContentUnit, []SourceError) {
	var units []ContentUnit
	var failures []SourceError

	for _, src := range sources {
		if err := a.limiter.Wait(ctx); err != nil {
			failures = append(failures, SourceError{Source: src, Err: err})
			continue
		}

		var (
			got []ContentUnit
			err error
		)
		switch src.Kind {
		case KindWeb:
			got, err = a.acquireWeb(ctx, src.URL)
		case KindPDF:
			got, err = a.acquirePDF(ctx, src.URL)
		case KindDocument:
			got, err = a.acquireDocument(ctx, src.URL)
		default:
			err = fmt.Errorf("unknown source kind %q", src.Kind)
		}

		if err != nil {
			a.log.Warn("source acquisition failed",
				"kind", string(src.Kind), "url", src.URL, "error", err)
			failures = append(failures, SourceError{Source: src, Err: err})
			continue
		}

		a.log.Info("source acquired",
			"kind", string(src.Kind), "url", src.URL, "units", len(got))
		units = append(units, got...)
	}

	return units, failures
}

// fetch downloads a URL, enforcing 2xx status and the body size cap.
func (a *Acquirer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
