package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/concierge-ai/concierge/config"
	"github.com/concierge-ai/concierge/internal/acquire"
	"github.com/concierge-ai/concierge/internal/chunker"
	"github.com/concierge-ai/concierge/internal/engine"
	"github.com/concierge-ai/concierge/internal/index"
	"github.com/concierge-ai/concierge/internal/ollama"
	"github.com/concierge-ai/concierge/internal/server"
	"github.com/concierge-ai/concierge/internal/session"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Server.Debug {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize index store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	client := ollama.NewClient(cfg.Ollama.BaseURL)
	embedder := ollama.NewEmbedder(client, cfg.Ollama.EmbedModel, cfg.EmbedTimeout())
	generator := ollama.NewGenerator(client, cfg.Ollama.ChatModel, cfg.GenerateTimeout())

	acquirer := acquire.New(
		&http.Client{Timeout: cfg.FetchTimeout()},
		cfg.Fetch.RequestsPerSecond,
		cfg.Fetch.MaxBodyBytes,
		log,
	)
	splitter := chunker.NewSplitter(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	sessions := session.NewStore(cfg.Session.MaxTurns)

	eng := engine.New(acquirer, splitter, store, sessions, embedder, generator, cfg.Processing.TopK, log)
	srv := server.New(cfg, eng, log)

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildStore selects the index backend from config.
func buildStore(ctx context.Context, cfg *config.Config) (index.Store, func(), error) {
	switch cfg.Index.Backend {
	case "", "memory":
		return index.NewMemory(), func() {}, nil
	case "postgres":
		pg, err := index.NewPostgres(ctx, cfg.Index.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}
