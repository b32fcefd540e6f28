package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("research_definition")
	require.NoError(t, err)
	assert.Equal(t, PhaseResearchDefinition, p)

	p, err = ParsePhase("experiment_design")
	require.NoError(t, err)
	assert.Equal(t, PhaseExperimentDesign, p)

	_, err = ParsePhase("phase_3")
	assert.Error(t, err)
}

func TestPhaseArtifact_Isolation(t *testing.T) {
	p := NewProject("p1", "topic")
	re := &p.Processes.ResearchExperiment

	re.SetCurrentArtifact("# Research Definition v1")
	assert.Equal(t, "# Research Definition v1", re.ResearchDefinitionArtifact)
	assert.Empty(t, re.ExperimentDesignArtifact)

	p.SwitchPhase(PhaseExperimentDesign)
	re.SetCurrentArtifact("# Experiment Design v1")
	assert.Equal(t, "# Research Definition v1", re.ResearchDefinitionArtifact)
	assert.Equal(t, "# Experiment Design v1", re.ExperimentDesignArtifact)

	// Round trip: switching back preserves both exactly
	p.SwitchPhase(PhaseResearchDefinition)
	assert.Equal(t, "# Research Definition v1", re.CurrentArtifact())
	p.SwitchPhase(PhaseExperimentDesign)
	assert.Equal(t, "# Experiment Design v1", re.CurrentArtifact())
}

func TestCurrentArtifact_LegacyFallback(t *testing.T) {
	p := NewProject("p1", "topic")
	re := &p.Processes.ResearchExperiment
	re.Artifact = "pre-split document"

	assert.Equal(t, "pre-split document", re.CurrentArtifact())

	re.ResearchDefinitionArtifact = "new document"
	assert.Equal(t, "new document", re.CurrentArtifact())
}

func TestAppendMessage(t *testing.T) {
	p := NewProject("p1", "topic")

	ok := p.AppendMessage(ProcessResearchExperiment, NewMessage("message", "user", "hello"))
	assert.True(t, ok)
	require.Len(t, p.Processes.ResearchExperiment.Messages, 1)
	assert.Equal(t, "user", p.Processes.ResearchExperiment.Messages[0].Agent)

	ok = p.AppendMessage(ProcessPaperWriting, NewMessage("message", "paper_advisor", "draft"))
	assert.True(t, ok)
	assert.Len(t, p.Processes.PaperWriting.Messages, 1)

	// Non-conversational processes have no durable log
	ok = p.AppendMessage(ProcessLiteratureSearch, NewMessage("message", "system", "x"))
	assert.False(t, ok)
	assert.Nil(t, p.MessagesFor(ProcessLiteratureSearch))
}

func TestNextPaperID_Sequential(t *testing.T) {
	p := NewProject("p1", "topic")
	lo := &p.Processes.LiteratureOrganization

	assert.Equal(t, "paper_001", lo.NextPaperID())
	lo.State.Papers = append(lo.State.Papers, PaperEntry{ID: lo.NextPaperID()})
	assert.Equal(t, "paper_002", lo.NextPaperID())
}

func TestNextPaperID_NeverReissuesAfterDelete(t *testing.T) {
	p := NewProject("p1", "topic")
	lo := &p.Processes.LiteratureOrganization
	lo.State.Papers = append(lo.State.Papers,
		PaperEntry{ID: "paper_001"},
		PaperEntry{ID: "paper_002"},
	)

	// Delete the first entry; paper_002 must stay unique.
	lo.State.Papers = lo.State.Papers[1:]
	assert.Equal(t, "paper_003", lo.NextPaperID())

	// An empty collection starts over.
	lo.State.Papers = nil
	assert.Equal(t, "paper_001", lo.NextPaperID())
}

func TestNextPaperID_IgnoresForeignIDs(t *testing.T) {
	p := NewProject("p1", "topic")
	lo := &p.Processes.LiteratureOrganization
	lo.State.Papers = append(lo.State.Papers,
		PaperEntry{ID: "search_001"},
		PaperEntry{ID: "paper_004"},
	)

	assert.Equal(t, "paper_005", lo.NextPaperID())
}

func TestFindPaper(t *testing.T) {
	p := NewProject("p1", "topic")
	lo := &p.Processes.LiteratureOrganization
	lo.State.Papers = append(lo.State.Papers, PaperEntry{ID: "paper_001", Title: "A"})

	found := lo.FindPaper("paper_001")
	require.NotNil(t, found)
	assert.Equal(t, "A", found.Title)

	// Pointer into the slice: mutations stick
	found.Status = PaperCompleted
	assert.Equal(t, PaperCompleted, lo.State.Papers[0].Status)

	assert.Nil(t, lo.FindPaper("paper_999"))
}
