package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-ai/concierge/internal/acquire"
	"github.com/concierge-ai/concierge/internal/chunker"
	"github.com/concierge-ai/concierge/internal/index"
	"github.com/concierge-ai/concierge/internal/session"
)

// fakeEmbedder derives a deterministic vector from text length so
// tests never need a model.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, float32(len(text) % 7)}, nil
}

type fakeGenerator struct {
	err     error
	answer  string
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "generated answer", nil
}

// stubStore returns canned hits, for exercising the answer path alone.
type stubStore struct {
	hits []index.Scored
	err  error
}

func (s *stubStore) Replace(context.Context, string, []chunker.Chunk, [][]float32) error {
	return nil
}

func (s *stubStore) Search(context.Context, string, []float32, int) ([]index.Scored, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *stubStore) Stats(context.Context, string) (index.Stats, error) {
	return index.Stats{}, nil
}

func newTestEngine(store index.Store, gen Generator) (*Engine, *session.Store) {
	sessions := session.NewStore(0)
	acq := acquire.New(&http.Client{}, 1000, 1<<20, nil)
	eng := New(acq, chunker.NewSplitter(200, 40), store, sessions, &fakeEmbedder{}, gen, 3, nil)
	return eng, sessions
}

func TestChatNotTrained(t *testing.T) {
	eng, _ := newTestEngine(index.NewMemory(), &fakeGenerator{})
	_, err := eng.Chat(context.Background(), "kc_t", "sess", "hello?")
	assert.ErrorIs(t, err, index.ErrNotTrained)
}

func TestChatSourceDedupAndCap(t *testing.T) {
	store := &stubStore{hits: []index.Scored{
		{Text: "1", Source: "X", Score: 0.9},
		{Text: "2", Source: "X", Score: 0.8},
		{Text: "3", Source: "Y", Score: 0.7},
		{Text: "4", Source: "Z", Score: 0.6},
		{Text: "5", Source: "W", Score: 0.5},
	}}
	eng, _ := newTestEngine(store, &fakeGenerator{})

	answer, err := eng.Chat(context.Background(), "kc_t", "sess", "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, answer.Sources)
}

func TestChatConfidenceIsMeanSimilarity(t *testing.T) {
	store := &stubStore{hits: []index.Scored{
		{Text: "a", Source: "s", Score: 0.8},
		{Text: "b", Source: "s", Score: 0.4},
	}}
	eng, _ := newTestEngine(store, &fakeGenerator{})

	answer, err := eng.Chat(context.Background(), "kc_t", "sess", "q")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, answer.Confidence, 1e-9)
}

func TestChatAppendsMemoryInOrder(t *testing.T) {
	store := &stubStore{hits: []index.Scored{{Text: "a", Source: "s", Score: 1}}}
	gen := &fakeGenerator{}
	eng, sessions := newTestEngine(store, gen)

	_, err := eng.Chat(context.Background(), "kc_t", "sess", "first question")
	require.NoError(t, err)
	_, err = eng.Chat(context.Background(), "kc_t", "sess", "second question")
	require.NoError(t, err)

	turns := sessions.History("sess")
	require.Len(t, turns, 2)
	assert.Equal(t, "first question", turns[0].Question)
	assert.Equal(t, "second question", turns[1].Question)

	// the second prompt carries the first turn as conversation context
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "first question")
	assert.Contains(t, gen.prompts[1], "Conversation So Far")
}

func TestChatGenerationFailureLeavesMemoryUntouched(t *testing.T) {
	store := &stubStore{hits: []index.Scored{{Text: "a", Source: "s", Score: 1}}}
	eng, sessions := newTestEngine(store, &fakeGenerator{err: errors.New("model offline")})

	_, err := eng.Chat(context.Background(), "kc_t", "sess", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer failed")
	assert.Empty(t, sessions.History("sess"))
}

func TestChatPromptGroundsOnRetrievedChunks(t *testing.T) {
	store := &stubStore{hits: []index.Scored{
		{Text: "we are open 9 to 5", Source: "https://site/hours", Score: 0.9},
	}}
	gen := &fakeGenerator{}
	eng, _ := newTestEngine(store, gen)

	_, err := eng.Chat(context.Background(), "kc_t", "sess", "when are you open?")
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "we are open 9 to 5")
	assert.Contains(t, gen.prompts[0], "https://site/hours")
	assert.Contains(t, gen.prompts[0], "when are you open?")
}

func TestTrainEmptyCorpus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	eng, _ := newTestEngine(index.NewMemory(), &fakeGenerator{})
	_, err := eng.Train(context.Background(), TrainRequest{
		TenantID:   "kc_t",
		WebsiteURL: srv.URL,
	})
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestTrainThenChat(t *testing.T) {
	page := strings.Repeat("Our product ships worldwide. ", 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>" + page + "</p></body></html>"))
	}))
	defer srv.Close()

	eng, _ := newTestEngine(index.NewMemory(), &fakeGenerator{answer: "We ship worldwide."})

	result, err := eng.Train(context.Background(), TrainRequest{
		TenantID:   "kc_t",
		WebsiteURL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 0, result.PDFsProcessed)

	answer, err := eng.Chat(context.Background(), "kc_t", "sess", "do you ship abroad?")
	require.NoError(t, err)
	assert.Equal(t, "We ship worldwide.", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, srv.URL, answer.Sources[0])

	cfg, err := eng.Config("kc_t")
	require.NoError(t, err)
	assert.Equal(t, srv.URL, cfg.WebsiteURL)
	assert.Equal(t, 1, cfg.DocumentCount)
	assert.False(t, cfg.TrainedAt.IsZero())
}

func TestTrainPartialSourceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/bad") {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte("plain document body " + r.URL.Path))
	}))
	defer srv.Close()

	eng, _ := newTestEngine(index.NewMemory(), &fakeGenerator{})
	result, err := eng.Train(context.Background(), TrainRequest{
		TenantID: "kc_t",
		DocURLs:  []string{srv.URL + "/a.txt", srv.URL + "/bad.txt", srv.URL + "/b.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsProcessed)
}

func TestTrainEmbedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("document body"))
	}))
	defer srv.Close()

	sessions := session.NewStore(0)
	acq := acquire.New(&http.Client{}, 1000, 1<<20, nil)
	eng := New(acq, chunker.NewSplitter(200, 40), index.NewMemory(), sessions,
		&fakeEmbedder{err: errors.New("embed service down")}, &fakeGenerator{}, 3, nil)

	_, err := eng.Train(context.Background(), TrainRequest{
		TenantID: "kc_t",
		DocURLs:  []string{srv.URL + "/a.txt"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training failed")

	// a failed build must not leave a partial index behind
	_, err = eng.Chat(context.Background(), "kc_t", "sess", "q")
	assert.ErrorIs(t, err, index.ErrNotTrained)
}

func TestConfigLastWriteWins(t *testing.T) {
	eng, _ := newTestEngine(index.NewMemory(), &fakeGenerator{})

	_, err := eng.Config("kc_t")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	eng.SetConfig("kc_t", TenantConfig{WebsiteURL: "https://a.example", MaxPages: 10})
	eng.SetConfig("kc_t", TenantConfig{WebsiteURL: "https://b.example", IncludePDFs: true})

	cfg, err := eng.Config("kc_t")
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", cfg.WebsiteURL)
	assert.True(t, cfg.IncludePDFs)
	assert.Zero(t, cfg.MaxPages)
}

func TestDistinctSourcesSkipsEmpty(t *testing.T) {
	got := distinctSources([]index.Scored{
		{Source: ""},
		{Source: "A"},
		{Source: "A"},
	})
	assert.Equal(t, []string{"A"}, got)
}

func TestConfidenceClamped(t *testing.T) {
	assert.Zero(t, confidence(nil))
	assert.Equal(t, 1.0, confidence([]index.Scored{{Score: 1.5}}))
	assert.Zero(t, confidence([]index.Scored{{Score: -0.5}}))
}
