package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/state"
)

// Artifact document filenames within a project's papers folder.
const (
	researchDefinitionFile = "Research Definition.md"
	experimentDesignFile   = "Experiment Design.md"
	paperDraftFile         = "Paper.md"
	literatureSubdir       = "Literature Review"
)

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename strips characters that are unsafe in filenames.
func SanitizeFilename(name string) string {
	s := unsafeFilenameRe.ReplaceAllString(name, "")
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		s = s[:120]
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

func artifactFile(phase string) (string, bool) {
	switch phase {
	case string(state.PhaseResearchDefinition):
		return researchDefinitionFile, true
	case string(state.PhaseExperimentDesign):
		return experimentDesignFile, true
	case state.ProcessPaperWriting:
		return paperDraftFile, true
	}
	return "", false
}

// SaveArtifact mirrors an artifact document to the project's papers folder
// so users can read it outside the API. Empty content is a no-op.
func (s *Store) SaveArtifact(projectID, phase, content string) error {
	if content == "" {
		return nil
	}
	name, ok := artifactFile(phase)
	if !ok {
		return fmt.Errorf("unknown artifact phase %q", phase)
	}
	if err := s.EnsurePapersDir(projectID); err != nil {
		return err
	}
	path := filepath.Join(s.papersPath(projectID), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", name, err)
	}
	return nil
}

// ReadArtifact reads a mirrored artifact document. Returns empty when the
// file does not exist.
func (s *Store) ReadArtifact(projectID, phase string) (string, error) {
	name, ok := artifactFile(phase)
	if !ok {
		return "", fmt.Errorf("unknown artifact phase %q", phase)
	}
	data, err := os.ReadFile(filepath.Join(s.papersPath(projectID), name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	return string(data), nil
}

// PaperDocumentName returns the filename used for a paper's generated
// summary document.
func PaperDocumentName(paperID, title string) string {
	if title == "" {
		return paperID + ".md"
	}
	return fmt.Sprintf("%s - %s.md", paperID, SanitizeFilename(title))
}

// SavePaperDocument writes a generated literature summary under the
// project's Literature Review folder.
func (s *Store) SavePaperDocument(projectID, paperID, title, content string) error {
	dir := filepath.Join(s.papersPath(projectID), literatureSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create literature dir: %w", err)
	}
	name := PaperDocumentName(paperID, title)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to save paper document: %w", err)
	}
	return nil
}

// ReadPaperDocument reads a paper's generated summary document.
func (s *Store) ReadPaperDocument(projectID, filename string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.papersPath(projectID), literatureSubdir, filepath.Base(filename)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", perrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to read paper document: %w", err)
	}
	return string(data), nil
}

// DeletePaperDocuments removes all generated documents for a paper entry.
func (s *Store) DeletePaperDocuments(projectID, paperID string) error {
	dir := filepath.Join(s.papersPath(projectID), literatureSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read literature dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), paperID) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete paper document %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// SaveMasterList writes the master reference list for a project.
func (s *Store) SaveMasterList(projectID, filename, content string) error {
	if filename == "" {
		filename = "master.md"
	}
	if err := s.EnsurePapersDir(projectID); err != nil {
		return err
	}
	path := filepath.Join(s.papersPath(projectID), SanitizeFilename(filename))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to save master list: %w", err)
	}
	return nil
}
