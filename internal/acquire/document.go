package acquire

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// plainTextExts are extensions read verbatim as text.
var plainTextExts = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
	".log": true,
}

// acquireDocument downloads a generic document. Recognized plain-text
// extensions are taken as-is; anything else is decoded best-effort,
// replacing undecodable byte sequences instead of failing.
func (a *Acquirer) acquireDocument(ctx context.Context, rawURL string) ([]ContentUnit, error) {
	body, err := a.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	text := string(body)
	if !plainTextExts[urlExt(rawURL)] && !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document is empty")
	}

	return []ContentUnit{{Text: text, Source: rawURL, Kind: KindDocument}}, nil
}

// urlExt returns the lowercase extension of the URL's path component.
func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(u.Path))
}
