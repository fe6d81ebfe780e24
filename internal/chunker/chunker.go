package chunker

import (
	"github.com/concierge-ai/concierge/internal/acquire"
)

// Chunk is a bounded slice of a content unit's text. Source is inherited
// verbatim from the parent unit.
type Chunk struct {
	Text   string
	Source string
}

// Splitter slides a fixed-size window across text with overlap,
// preferring paragraph, sentence, then word boundaries before falling
// back to a hard cut. Identical input always yields identical chunks.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter. Defaults mirror the common 1000/200
// split; overlap is clamped below size so the window always advances.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split chunks every unit in order, preserving each unit's source.
func (s *Splitter) Split(units []acquire.ContentUnit) []Chunk {
	var chunks []Chunk
	for _, u := range units {
		for _, text := range s.splitText(u.Text) {
			chunks = append(chunks, Chunk{Text: text, Source: u.Source})
		}
	}
	return chunks
}

// splitText splits one text into overlapping windows. Text at most one
// window long yields a single chunk equal to the full text.
func (s *Splitter) splitText(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		cut := s.cutPoint(runes, start, end)
		out = append(out, string(runes[start:cut]))

		next := cut - s.overlap
		if next <= start {
			// overlap would stall the window; advance past the cut instead
			next = cut
		}
		start = next
	}
	return out
}

// cutPoint picks where to end the window [start, end), preferring a
// paragraph break, then a sentence end, then a word boundary within the
// back half of the window. Returns an index in (start, end].
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	floor := start + s.size/2

	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if isSpace(runes[i-1]) && i >= 2 && isSentenceEnd(runes[i-2]) {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
