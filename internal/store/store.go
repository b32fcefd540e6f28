// Package store persists project records as JSON files, one per project,
// and manages the per-project artifact and paper folders.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/state"
)

// Store handles file-based project persistence. Every save overwrites the
// full record; callers serialize read-modify-write per project id (see the
// registry package).
type Store struct {
	dataDir   string
	papersDir string
	logger    zerolog.Logger
}

// New creates a store rooted at the given directories, creating them if
// needed.
func New(dataDir, papersDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(papersDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create papers dir: %w", err)
	}
	return &Store{
		dataDir:   dataDir,
		papersDir: papersDir,
		logger:    logger.With().Str("component", "project.store").Logger(),
	}, nil
}

func (s *Store) projectPath(id string) string {
	return filepath.Join(s.dataDir, id+".json")
}

func (s *Store) papersPath(id string) string {
	return filepath.Join(s.papersDir, id)
}

// Save writes the full project record. The write goes through a temp file
// and rename so a crash mid-write cannot leave a truncated record.
func (s *Store) Save(p *state.Project) error {
	if p.ID == "" {
		return fmt.Errorf("cannot save project without id: %w", perrors.ErrInvalidInput)
	}
	p.Touch()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project %s: %w", p.ID, err)
	}

	path := s.projectPath(p.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write project %s: %w", p.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize project %s: %w", p.ID, err)
	}

	s.logger.Debug().Str("project_id", p.ID).Msg("project saved")
	return nil
}

// Load reads a project by id, migrating legacy records in place. A missing
// or unreadable record yields ErrNotFound; the caller never sees a partial
// project.
func (s *Store) Load(id string) (*state.Project, error) {
	data, err := os.ReadFile(s.projectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Error().Err(err).Str("project_id", id).Msg("corrupt project record")
		return nil, perrors.ErrNotFound
	}

	if isLegacyRecord(raw) {
		s.logger.Info().Str("project_id", id).Msg("migrating legacy project record")
		p, err := migrateLegacy(data)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", id, err)
		}
		// Write back so migration runs at most once per record.
		if err := s.Save(p); err != nil {
			return nil, err
		}
		return p, nil
	}

	var p state.Project
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Error().Err(err).Str("project_id", id).Msg("corrupt project record")
		return nil, perrors.ErrNotFound
	}
	return &p, nil
}

// LoadAll reads every project in the data directory. Unreadable records are
// skipped so one bad file cannot take down the listing.
func (s *Store) LoadAll() ([]*state.Project, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	var projects []*state.Project
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		p, err := s.Load(id)
		if err != nil {
			s.logger.Warn().Err(err).Str("project_id", id).Msg("skipping unreadable project")
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Delete removes the project record and its papers folder. Idempotent:
// deleting an absent project reports false with no error, and a partial
// prior deletion is finished rather than failed.
func (s *Store) Delete(id string) (bool, error) {
	existed := true
	if err := os.Remove(s.projectPath(id)); err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to delete project %s: %w", id, err)
		}
		existed = false
	}
	if err := os.RemoveAll(s.papersPath(id)); err != nil {
		return existed, fmt.Errorf("failed to delete papers for %s: %w", id, err)
	}
	if existed {
		s.logger.Info().Str("project_id", id).Msg("project deleted")
	}
	return existed, nil
}

// Exists reports whether a record exists for the id.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.projectPath(id))
	return err == nil
}

// EnsurePapersDir creates the papers folder for a project.
func (s *Store) EnsurePapersDir(id string) error {
	return os.MkdirAll(s.papersPath(id), 0o755)
}

// PapersPath returns the on-disk papers folder for a project.
func (s *Store) PapersPath(id string) string {
	return s.papersPath(id)
}

// PaperPDFPath returns the conventional location of a paper's stored PDF.
func (s *Store) PaperPDFPath(projectID, paperID string) string {
	return filepath.Join(s.papersPath(projectID), paperID+".pdf")
}

// NotFound reports whether the error is the store's not-found condition.
func NotFound(err error) bool {
	return errors.Is(err, perrors.ErrNotFound)
}
