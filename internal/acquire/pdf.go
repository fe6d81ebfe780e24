package acquire

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// acquirePDF downloads a PDF to a temporary file and extracts per-page
// text. Each non-blank page becomes one ContentUnit whose Source is the
// original URL, not the temporary path. The temp file is removed on
// every exit path.
func (a *Acquirer) acquirePDF(ctx context.Context, url string) ([]ContentUnit, error) {
	body, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "concierge-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	doc, err := fitz.New(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var units []ContentUnit
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, ContentUnit{Text: text, Source: url, Kind: KindPDF})
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("no extractable text in %d pages", doc.NumPage())
	}
	return units, nil
}
