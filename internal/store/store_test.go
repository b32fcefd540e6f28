package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "projects"), filepath.Join(dir, "papers"), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := state.NewProject("proj-1", "quantum error correction")
	p.Processes.ResearchExperiment.SetCurrentArtifact("# Research Definition")
	p.AppendMessage(state.ProcessResearchExperiment, state.NewMessage("message", "user", "hello"))
	require.NoError(t, s.Save(p))

	loaded, err := s.Load("proj-1")
	require.NoError(t, err)
	assert.Equal(t, "quantum error correction", loaded.Topic)
	assert.Equal(t, "# Research Definition", loaded.Processes.ResearchExperiment.ResearchDefinitionArtifact)
	require.Len(t, loaded.Processes.ResearchExperiment.Messages, 1)
	assert.Equal(t, "hello", loaded.Processes.ResearchExperiment.Messages[0].Content)
	assert.Equal(t, state.StatusLocked, loaded.Processes.LiteratureSearch.Status)
}

func TestSave_RefreshesUpdatedAt(t *testing.T) {
	s := newTestStore(t)

	p := state.NewProject("proj-1", "topic")
	created := p.CreatedAt
	require.NoError(t, s.Save(p))

	loaded, err := s.Load("proj-1")
	require.NoError(t, err)
	assert.False(t, loaded.UpdatedAt.Before(created))
}

func TestSave_WithoutID(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(&state.Project{})
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}

func TestLoad_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("missing")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestLoad_CorruptRecordIsNotFound(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.projectPath("bad"), []byte("{not json"), 0o644))

	_, err := s.Load("bad")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestLoadAll_SkipsUnreadable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(state.NewProject("a", "topic a")))
	require.NoError(t, s.Save(state.NewProject("b", "topic b")))
	require.NoError(t, os.WriteFile(s.projectPath("bad"), []byte("garbage"), 0o644))

	projects, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestDelete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	p := state.NewProject("proj-1", "topic")
	require.NoError(t, s.Save(p))
	require.NoError(t, s.EnsurePapersDir("proj-1"))
	require.NoError(t, s.SaveArtifact("proj-1", "research_definition", "doc"))

	existed, err := s.Delete("proj-1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.False(t, s.Exists("proj-1"))
	_, statErr := os.Stat(s.papersPath("proj-1"))
	assert.True(t, os.IsNotExist(statErr))

	// Second delete is a clean no-op
	existed, err = s.Delete("proj-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestArtifact_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveArtifact("p1", "research_definition", "# RD"))
	require.NoError(t, s.SaveArtifact("p1", "experiment_design", "# ED"))

	rd, err := s.ReadArtifact("p1", "research_definition")
	require.NoError(t, err)
	assert.Equal(t, "# RD", rd)

	ed, err := s.ReadArtifact("p1", "experiment_design")
	require.NoError(t, err)
	assert.Equal(t, "# ED", ed)

	// Empty content is a no-op, not a truncation
	require.NoError(t, s.SaveArtifact("p1", "research_definition", ""))
	rd, err = s.ReadArtifact("p1", "research_definition")
	require.NoError(t, err)
	assert.Equal(t, "# RD", rd)
}

func TestArtifact_UnknownPhase(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveArtifact("p1", "phase_9", "x"))
	_, err := s.ReadArtifact("p1", "phase_9")
	assert.Error(t, err)
}

func TestPaperDocuments(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SavePaperDocument("p1", "paper_001", "Attention Is All You Need", "# Summary"))
	dir := filepath.Join(s.papersPath("p1"), literatureSubdir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "paper_001")

	require.NoError(t, s.DeletePaperDocuments("p1", "paper_001"))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Deleting when nothing exists is fine
	require.NoError(t, s.DeletePaperDocuments("p1", "paper_999"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "ab", SanitizeFilename(`a/b`))
	assert.Equal(t, "untitled", SanitizeFilename("///"))
	assert.Equal(t, "Attention Is All You Need", SanitizeFilename("Attention Is All You Need"))
}
