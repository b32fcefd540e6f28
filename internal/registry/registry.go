// Package registry owns project lifecycle and serializes every mutation of
// a project record behind a per-project lock, so concurrent handlers and
// background workers cannot overwrite each other's read-modify-write.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/state"
	"github.com/reslab/research-agent/internal/store"
)

type Registry struct {
	store  *store.Store
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(s *store.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store:  s,
		logger: logger.With().Str("component", "registry").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (r *Registry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Create makes a new project for the topic and persists it before returning.
func (r *Registry) Create(topic string) (*state.Project, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", perrors.ErrInvalidInput)
	}

	p := state.NewProject(uuid.NewString(), topic)
	if err := r.store.Save(p); err != nil {
		return nil, err
	}
	if err := r.store.EnsurePapersDir(p.ID); err != nil {
		return nil, err
	}

	r.logger.Info().Str("project_id", p.ID).Str("topic", topic).Msg("project created")
	return p, nil
}

// Get returns a snapshot of the project. Callers must not mutate it; all
// writes go through Update.
func (r *Registry) Get(id string) (*state.Project, error) {
	l := r.lockFor(id)
	l.Lock()
	defer l.Unlock()
	return r.store.Load(id)
}

// List returns all known projects.
func (r *Registry) List() ([]*state.Project, error) {
	return r.store.LoadAll()
}

// Update applies fn to the current record and persists the result, all under
// the project's lock. fn returning an error abandons the write. The saved
// project is returned so callers can respond without re-reading.
func (r *Registry) Update(id string, fn func(*state.Project) error) (*state.Project, error) {
	l := r.lockFor(id)
	l.Lock()
	defer l.Unlock()

	p, err := r.store.Load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := r.store.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the project record, its papers folder, and the lock entry.
// Deleting an absent project reports false with no error.
func (r *Registry) Delete(id string) (bool, error) {
	l := r.lockFor(id)
	l.Lock()
	existed, err := r.store.Delete(id)
	l.Unlock()
	if err != nil {
		return existed, err
	}

	r.mu.Lock()
	delete(r.locks, id)
	r.mu.Unlock()

	return existed, nil
}

// Store exposes the underlying store for artifact and document IO that does
// not touch the project record.
func (r *Registry) Store() *store.Store {
	return r.store
}
