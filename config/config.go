package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Addr  string `yaml:"addr"`
		Debug bool   `yaml:"debug"`
	} `yaml:"server"`
	Ollama struct {
		BaseURL            string `yaml:"base_url"`
		ChatModel          string `yaml:"chat_model"`
		EmbedModel         string `yaml:"embed_model"`
		EmbedTimeoutSec    int    `yaml:"embed_timeout_seconds"`
		GenerateTimeoutSec int    `yaml:"generate_timeout_seconds"`
	} `yaml:"ollama"`
	Index struct {
		Backend     string `yaml:"backend"` // "memory" or "postgres"
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"index"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		TopK         int `yaml:"top_k"`
	} `yaml:"processing"`
	Session struct {
		MaxTurns int `yaml:"max_turns"` // 0 keeps full history
	} `yaml:"session"`
	Fetch struct {
		TimeoutSec        int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		MaxBodyBytes      int64   `yaml:"max_body_bytes"`
	} `yaml:"fetch"`
}

// EmbedTimeout returns the embedding call timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Ollama.EmbedTimeoutSec) * time.Second
}

// GenerateTimeout returns the generation call timeout.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.Ollama.GenerateTimeoutSec) * time.Second
}

// FetchTimeout returns the per-fetch timeout for content acquisition.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// Load loads configuration from the given file, falling back to defaults
// when the path is empty or the file does not exist. Environment variables
// override file values for deployment-specific settings.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides file values with environment variables where set.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CONCIERGE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Index.PostgresDSN = v
	}
	if v := os.Getenv("CONCIERGE_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":8000"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.ChatModel = "llama3.1"
	cfg.Ollama.EmbedModel = "nomic-embed-text"
	cfg.Ollama.EmbedTimeoutSec = 30
	cfg.Ollama.GenerateTimeoutSec = 120
	cfg.Index.Backend = "memory"
	cfg.Index.PostgresDSN = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Processing.ChunkSize = 1000
	cfg.Processing.ChunkOverlap = 200
	cfg.Processing.TopK = 3
	cfg.Session.MaxTurns = 0
	cfg.Fetch.TimeoutSec = 20
	cfg.Fetch.RequestsPerSecond = 4
	cfg.Fetch.MaxBodyBytes = 32 << 20

	return cfg
}
