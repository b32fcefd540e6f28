// Package tasks runs the fire-and-forget background units: chat turns,
// paper downloads, paper processing, literature searches. Every unit is
// tracked and guaranteed to reach a terminal status, panics included.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reslab/research-agent/internal/metrics"
)

// UnitStatus is the lifecycle state of one background unit.
type UnitStatus string

const (
	UnitRunning   UnitStatus = "running"
	UnitCompleted UnitStatus = "completed"
	UnitFailed    UnitStatus = "failed"
)

// Unit is one tracked background execution.
type Unit struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	ProjectID string     `json:"project_id"`
	Status    UnitStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	mu sync.RWMutex
}

// Snapshot returns a copy safe for concurrent use.
func (u *Unit) Snapshot() Unit {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return Unit{
		ID:        u.ID,
		Kind:      u.Kind,
		ProjectID: u.ProjectID,
		Status:    u.Status,
		Error:     u.Error,
		StartedAt: u.StartedAt,
		EndedAt:   u.EndedAt,
	}
}

func (u *Unit) finish(status UnitStatus, errMsg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Status != UnitRunning {
		return
	}
	now := time.Now().UTC()
	u.Status = status
	u.Error = errMsg
	u.EndedAt = &now
}

// Runner launches and tracks background units.
type Runner struct {
	units   sync.Map // id -> *Unit
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewRunner(timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{
		timeout: timeout,
		metrics: m,
		logger:  logger.With().Str("component", "task-runner").Logger(),
	}
}

// Go launches fn as a tracked unit and returns immediately with a snapshot.
// The unit always reaches completed or failed: an error return, a timeout,
// and a panic all land in failed.
func (r *Runner) Go(kind, projectID string, fn func(ctx context.Context) error) Unit {
	u := &Unit{
		ID:        uuid.NewString(),
		Kind:      kind,
		ProjectID: projectID,
		Status:    UnitRunning,
		StartedAt: time.Now().UTC(),
	}
	r.units.Store(u.ID, u)

	log := r.logger.With().Str("unit_id", u.ID).Str("kind", kind).Str("project_id", projectID).Logger()
	log.Info().Msg("background unit started")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				u.finish(UnitFailed, fmt.Sprintf("panic: %v", rec))
				log.Error().Interface("panic", rec).Msg("background unit panicked")
			}
			snap := u.Snapshot()
			if r.metrics != nil {
				r.metrics.RecordUnit(kind, string(snap.Status))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			u.finish(UnitFailed, err.Error())
			log.Error().Err(err).Msg("background unit failed")
			return
		}
		u.finish(UnitCompleted, "")
		log.Info().Msg("background unit completed")
	}()

	return u.Snapshot()
}

// Get retrieves a unit snapshot by ID.
func (r *Runner) Get(id string) (Unit, bool) {
	v, ok := r.units.Load(id)
	if !ok {
		return Unit{}, false
	}
	return v.(*Unit).Snapshot(), true
}

// ListForProject returns snapshots of all units for a project.
func (r *Runner) ListForProject(projectID string) []Unit {
	var out []Unit
	r.units.Range(func(_, v any) bool {
		u := v.(*Unit)
		if u.ProjectID == projectID {
			out = append(out, u.Snapshot())
		}
		return true
	})
	return out
}

// Wait blocks until every launched unit has finished. Used during shutdown
// and in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
