package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-ai/concierge/internal/acquire"
)

// corpus builds a long text of unique numbered words so overlap-aware
// reconstruction is unambiguous.
func corpus(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "word%04d", i)
	}
	return b.String()
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	text := "A short paragraph that fits in one window."
	got := s.splitText(text)
	require.Len(t, got, 1)
	assert.Equal(t, text, got[0])
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter(300, 60)
	text := corpus(500)
	first := s.splitText(text)
	second := s.splitText(text)
	assert.Equal(t, first, second)
}

func TestSplitChunkBounds(t *testing.T) {
	s := NewSplitter(300, 60)
	for _, piece := range s.splitText(corpus(500)) {
		assert.NotEmpty(t, piece)
		assert.LessOrEqual(t, len([]rune(piece)), 300)
	}
}

// TestSplitCoverage checks that concatenating chunks minus their
// overlapping prefixes reconstructs the original text exactly.
func TestSplitCoverage(t *testing.T) {
	s := NewSplitter(300, 60)
	text := corpus(500)
	pieces := s.splitText(text)
	require.Greater(t, len(pieces), 1)

	rebuilt := pieces[0]
	for _, piece := range pieces[1:] {
		overlap := longestOverlap(rebuilt, piece)
		rebuilt += piece[overlap:]
	}
	assert.Equal(t, text, rebuilt)
}

// longestOverlap returns the length of the longest suffix of a that is
// a prefix of b.
func longestOverlap(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("alpha ", 30) // ~180 chars
	para2 := strings.Repeat("omega ", 40)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	s := NewSplitter(250, 20)
	pieces := s.splitText(text)
	require.Greater(t, len(pieces), 1)
	assert.True(t, strings.HasSuffix(pieces[0], "\n\n"),
		"first chunk should end at the paragraph break, got %q", pieces[0])
}

func TestSplitPreservesSourcePerUnit(t *testing.T) {
	s := NewSplitter(100, 20)
	units := []acquire.ContentUnit{
		{Text: corpus(60), Source: "https://a.example/page", Kind: acquire.KindWeb},
		{Text: "tiny", Source: "https://b.example/doc.txt", Kind: acquire.KindDocument},
	}

	chunks := s.Split(units)
	require.NotEmpty(t, chunks)

	var aChunks, bChunks int
	for _, ch := range chunks {
		switch ch.Source {
		case "https://a.example/page":
			aChunks++
		case "https://b.example/doc.txt":
			bChunks++
			assert.Equal(t, "tiny", ch.Text)
		default:
			t.Fatalf("unexpected source %q", ch.Source)
		}
	}
	assert.Greater(t, aChunks, 1)
	assert.Equal(t, 1, bChunks)
}

func TestNewSplitterClampsOverlap(t *testing.T) {
	s := NewSplitter(100, 500)
	assert.Less(t, s.overlap, s.size)

	// a degenerate overlap must not stall the window
	pieces := s.splitText(corpus(100))
	assert.NotEmpty(t, pieces)
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	assert.Empty(t, s.splitText(""))
}
