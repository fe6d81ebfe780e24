package acquire

import (
	"context"
	"fmt"
	"strings"
)

// acquireWeb fetches a single page and extracts its text content.
func (a *Acquirer) acquireWeb(ctx context.Context, url string) ([]ContentUnit, error) {
	body, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	text := extractTextFromHTML(string(body))
	if text == "" {
		return nil, fmt.Errorf("page has no textual content")
	}

	return []ContentUnit{{Text: text, Source: url, Kind: KindWeb}}, nil
}

// extractTextFromHTML strips tags and drops script/style bodies, then
// collapses runs of whitespace.
func extractTextFromHTML(html string) string {
	var result strings.Builder
	var tag strings.Builder
	inTag := false
	skipDepth := 0

	for _, r := range html {
		if r == '<' {
			inTag = true
			tag.Reset()
			continue
		}
		if r == '>' {
			inTag = false
			name := tagName(tag.String())
			switch name {
			case "script", "style", "noscript":
				skipDepth++
			case "/script", "/style", "/noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
			result.WriteRune(' ')
			continue
		}
		if inTag {
			tag.WriteRune(r)
			continue
		}
		if skipDepth == 0 {
			result.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

// tagName returns the lowercase element name of raw tag contents,
// keeping a leading slash for closing tags.
func tagName(raw string) string {
	raw = strings.TrimSpace(raw)
	end := len(raw)
	for i, r := range raw {
		if r == ' ' || r == '\t' || r == '\n' {
			end = i
			break
		}
	}
	return strings.ToLower(raw[:end])
}
