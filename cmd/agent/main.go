package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reslab/research-agent/internal/agent"
	"github.com/reslab/research-agent/internal/api"
	"github.com/reslab/research-agent/internal/config"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/health"
	"github.com/reslab/research-agent/internal/llm"
	"github.com/reslab/research-agent/internal/metrics"
	"github.com/reslab/research-agent/internal/pdf"
	"github.com/reslab/research-agent/internal/registry"
	"github.com/reslab/research-agent/internal/search"
	"github.com/reslab/research-agent/internal/store"
	"github.com/reslab/research-agent/internal/tasks"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Local overrides; absence is not an error
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	st, err := store.New(cfg.DataDir, cfg.PapersDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	reg := registry.New(st, logger)
	bus := event.NewBus(logger)
	m := metrics.New()
	runner := tasks.NewRunner(cfg.TaskTimeout, m, logger)
	fetcher := pdf.NewFetcher(cfg.DownloadTimeout, logger)

	var provider llm.Provider
	var discussion *agent.Discussion
	var writer *agent.Writer
	if cfg.LLMEnabled() {
		opts := []llm.GeminiOption{
			llm.WithModel(cfg.LLMModel),
			llm.WithMaxTokens(cfg.LLMMaxTokens),
			llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
			llm.WithLogger(logger),
		}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, llm.WithBaseURL(cfg.LLMBaseURL))
		}
		provider = llm.NewGeminiProvider(cfg.LLMAPIKey, opts...)
		discussion = agent.NewDiscussion(provider, cfg.HistoryWindow, logger)
		writer = agent.NewWriter(provider, cfg.HistoryWindow, logger)
		logger.Info().Str("model", provider.ModelID()).Msg("language model configured")
	} else {
		logger.Warn().Msg("no LLM API key; chat endpoints will report unavailable")
	}

	pipeline := tasks.NewPipeline(reg, bus, fetcher, provider, runner, cfg.MaxFullTextLen, m, logger)
	chats := tasks.NewChats(reg, bus, discussion, writer, runner, m, logger)

	searcher := search.NewService(cfg.SearchMaxResults, logger,
		search.NewArxiv(cfg.ArxivBaseURL, cfg.SearchTimeout, logger),
		search.NewSemanticScholar(cfg.SemanticScholarBaseURL, cfg.SemanticScholarAPIKey, cfg.SearchTimeout, logger),
	)

	checker := health.NewChecker(logger)
	checker.Register("data_dir", health.DataDirCheck(cfg.DataDir))
	checker.Register("papers_dir", health.DataDirCheck(cfg.PapersDir))
	checker.Register("llm", health.LLMCheck(cfg.LLMEnabled()))

	handlers := api.NewHandlers(reg, bus, chats, pipeline, searcher, checker, m, logger)
	srv := api.NewServer(api.ServerConfig{
		ListenAddr:        cfg.ListenAddr,
		CORSOrigins:       cfg.CORSOrigins,
		KeepAliveInterval: cfg.KeepAliveInterval,
	}, handlers, checker, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	// Let in-flight background units reach their terminal status
	runner.Wait()
	logger.Info().Msg("stopped")
}
