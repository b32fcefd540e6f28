package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/health"
	"github.com/reslab/research-agent/internal/metrics"
	"github.com/reslab/research-agent/internal/registry"
	"github.com/reslab/research-agent/internal/search"
	"github.com/reslab/research-agent/internal/tasks"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	registry  *registry.Registry
	bus       *event.Bus
	chats     *tasks.Chats
	pipeline  *tasks.Pipeline
	searcher  *search.Service
	checker   *health.Checker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	startTime time.Time
	keepAlive time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	reg *registry.Registry,
	bus *event.Bus,
	chats *tasks.Chats,
	pipeline *tasks.Pipeline,
	searcher *search.Service,
	checker *health.Checker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		registry:  reg,
		bus:       bus,
		chats:     chats,
		pipeline:  pipeline,
		searcher:  searcher,
		checker:   checker,
		metrics:   m,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
		keepAlive: 30 * time.Second,
	}
}

// HealthDetail handles GET /api/v1/health.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	components := map[string]string{}
	overall := "ok"
	if h.checker != nil {
		for name, status := range h.checker.RunAll(c.Context()) {
			components[name] = string(status)
			if status == health.StatusDown {
				overall = "degraded"
			}
		}
	}

	return c.JSON(HealthDetailResponse{
		Status:     overall,
		Components: components,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	})
}
