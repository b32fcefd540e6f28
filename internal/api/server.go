package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/health"
	"github.com/reslab/research-agent/internal/metrics"
	"github.com/reslab/research-agent/internal/requestid"
)

// ServerConfig holds the HTTP-facing knobs.
type ServerConfig struct {
	ListenAddr        string
	CORSOrigins       string
	KeepAliveInterval time.Duration
}

// Server is the orchestrator's Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg ServerConfig, h *Handlers, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 30 * time.Second
	}
	h.keepAlive = cfg.KeepAliveInterval

	s := &Server{
		app:      app,
		handlers: h,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, m, logger)
	s.setupRoutes(h, checker, m)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
			AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		}))
	}

	// Request log + metrics middleware
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		// Skip noisy probe logging
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := c.Route().Path
		if m != nil {
			m.RecordRequest(route, strconv.Itoa(status))
			m.ObserveDuration(route, time.Since(start).Seconds())
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", c.Get("X-Request-ID")).
			Msg("api request")

		return err
	})
}

func (s *Server) setupRoutes(h *Handlers, checker *health.Checker, m *metrics.Metrics) {
	// Probe endpoints
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/readyz", func(c *fiber.Ctx) error {
		if checker != nil && !checker.IsReady(c.Context()) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	if m != nil {
		promHandler := fasthttpadaptor.NewFastHTTPHandler(m.Handler())
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			promHandler(c.Context())
			return nil
		})
	}

	v1 := s.app.Group("/api/v1")
	v1.Get("/health", h.HealthDetail)

	projects := v1.Group("/projects")
	projects.Post("/", h.CreateProject)
	projects.Get("/", h.ListProjects)
	projects.Get("/:id", h.GetProject)
	projects.Patch("/:id", h.RenameProject)
	projects.Delete("/:id", h.DeleteProject)

	// Research & Experiment process
	projects.Get("/:id/research", h.ResearchState)
	projects.Post("/:id/research/chat", h.ResearchChat)
	projects.Post("/:id/research/switch-phase", h.SwitchPhase)
	projects.Post("/:id/research/complete", h.CompletePhase)
	projects.Post("/:id/research/reset", h.ResearchReset)
	projects.Get("/:id/research/stream", h.ResearchStream)

	// Paper Writing process
	projects.Get("/:id/writing", h.WritingState)
	projects.Post("/:id/writing/chat", h.WritingChat)
	projects.Post("/:id/writing/reset", h.WritingReset)
	projects.Get("/:id/writing/stream", h.WritingStream)

	// Literature Organization process. The master route registers before
	// the :paperID routes so "master" never matches as a paper ID.
	projects.Get("/:id/papers", h.ListPapers)
	projects.Post("/:id/papers", h.AddPaper)
	projects.Get("/:id/papers/master", h.MasterList)
	projects.Post("/:id/papers/organize", h.OrganizeAll)
	projects.Delete("/:id/papers/:paperID", h.DeletePaper)
	projects.Post("/:id/papers/:paperID/process", h.ProcessPaper)
	projects.Post("/:id/papers/:paperID/download", h.DownloadPaper)
	projects.Get("/:id/papers/:paperID/document", h.PaperDocument)
	projects.Get("/:id/papers/stream", h.PapersStream)

	// Literature Search process
	projects.Post("/:id/search", h.SearchPapers)
	projects.Get("/:id/search/results", h.SearchResults)
	projects.Get("/:id/search/history", h.SearchHistory)
	projects.Post("/:id/search/results/:paperID/organize", h.OrganizeSearchResult)
	projects.Delete("/:id/search/results/:paperID", h.DeleteSearchResult)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, errType, title := classifyError(err)

		ev := logger.Warn()
		if code >= fiber.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("request failed")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     errType,
			Title:    title,
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}

// classifyError maps domain errors onto HTTP statuses. Unrecognized errors
// stay internal so collaborator details never leak to clients.
func classifyError(err error) (code int, errType, title string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, "http_error", fe.Message
	}

	var pre *perrors.PreconditionError
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		return fiber.StatusNotFound, "not_found", "Not Found"
	case errors.Is(err, perrors.ErrLocked), errors.As(err, &pre):
		return fiber.StatusForbidden, "process_locked", "Forbidden"
	case errors.Is(err, perrors.ErrInvalidInput), errors.Is(err, perrors.ErrInvalidPhase):
		return fiber.StatusBadRequest, "invalid_request", "Bad Request"
	case errors.Is(err, perrors.ErrUnavailable):
		return fiber.StatusServiceUnavailable, "unavailable", "Service Unavailable"
	case errors.Is(err, perrors.ErrRateLimit):
		return fiber.StatusTooManyRequests, "rate_limited", "Too Many Requests"
	}
	return fiber.StatusInternalServerError, "internal_error", "Internal Server Error"
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
