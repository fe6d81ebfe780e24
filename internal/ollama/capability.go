package ollama

import (
	"context"
	"time"
)

// Embedder binds a client to a fixed embedding model and per-call
// timeout. It satisfies the engine's embedding capability.
type Embedder struct {
	client  *Client
	model   string
	timeout time.Duration
}

func NewEmbedder(client *Client, model string, timeout time.Duration) *Embedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Embedder{client: client, model: model, timeout: timeout}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Embed(ctx, e.model, text)
}

// Generator binds a client to a fixed chat model and per-call timeout.
// It satisfies the engine's generation capability.
type Generator struct {
	client  *Client
	model   string
	timeout time.Duration
}

func NewGenerator(client *Client, model string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Generator{client: client, model: model, timeout: timeout}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.Generate(ctx, &GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
	})
}
