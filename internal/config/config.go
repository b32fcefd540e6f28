// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	// Storage
	DataDir   string `envconfig:"DATA_DIR" default:"./data/projects"`
	PapersDir string `envconfig:"PAPERS_DIR" default:"./data/papers"`

	// LLM (optional; chat endpoints surface a collaborator error without it)
	LLMAPIKey     string        `envconfig:"LLM_API_KEY"`
	LLMModel      string        `envconfig:"LLM_MODEL" default:"gemini-2.0-flash"`
	LLMBaseURL    string        `envconfig:"LLM_BASE_URL"`
	LLMTimeout    time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
	LLMMaxTokens  int           `envconfig:"LLM_MAX_TOKENS" default:"4096"`
	HistoryWindow int           `envconfig:"LLM_HISTORY_WINDOW" default:"10"`

	// Literature search
	ArxivBaseURL           string        `envconfig:"ARXIV_BASE_URL" default:"http://export.arxiv.org/api/query"`
	SemanticScholarBaseURL string        `envconfig:"SEMANTIC_SCHOLAR_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	SemanticScholarAPIKey  string        `envconfig:"SEMANTIC_SCHOLAR_API_KEY"`
	SearchTimeout          time.Duration `envconfig:"SEARCH_TIMEOUT" default:"30s"`
	SearchMaxResults       int           `envconfig:"SEARCH_MAX_RESULTS" default:"30"`

	// PDF download
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"60s"`
	MaxFullTextLen  int           `envconfig:"MAX_FULL_TEXT_LEN" default:"100000"`

	// Streaming
	KeepAliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"30s"`

	// Background tasks
	TaskTimeout time.Duration `envconfig:"TASK_TIMEOUT" default:"5m"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.PapersDir == "" {
		return fmt.Errorf("PAPERS_DIR must not be empty")
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("LLM_HISTORY_WINDOW must be at least 1")
	}
	if c.KeepAliveInterval < time.Second {
		return fmt.Errorf("KEEPALIVE_INTERVAL must be at least 1s")
	}
	return nil
}

// LLMEnabled returns true if an LLM API key is configured.
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != ""
}
