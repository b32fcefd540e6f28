package store

import (
	"encoding/json"
	"fmt"
	"time"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/state"
)

// phaseMapping maps each legacy workflow phase to the new current phase and
// the two completion flags. The table is total over every phase value the
// old flat schema ever produced; anything else is a migration failure for
// that one record.
var phaseMapping = map[string]struct {
	phase      state.Phase
	rdComplete bool
	edComplete bool
}{
	"init":                {state.PhaseResearchDefinition, false, false},
	"phase_1":             {state.PhaseResearchDefinition, false, false},
	"research_definition": {state.PhaseResearchDefinition, false, false},
	"phase_2":             {state.PhaseResearchDefinition, true, false},
	"literature_review":   {state.PhaseResearchDefinition, true, false},
	"phase_3":             {state.PhaseExperimentDesign, true, false},
	"experiment_design":   {state.PhaseExperimentDesign, true, false},
	"phase_4":             {state.PhaseExperimentDesign, true, true},
	"paper_writing":       {state.PhaseExperimentDesign, true, true},
}

// legacyRecord is the pre-process flat schema.
type legacyRecord struct {
	ID               string          `json:"id"`
	Topic            string          `json:"topic"`
	TargetJournal    string          `json:"target_journal"`
	CurrentPhase     string          `json:"current_phase"`
	CreatedAt        string          `json:"created_at"`
	ResearchArtifact string          `json:"research_artifact"`
	Messages         []legacyMessage `json:"messages"`
	State            legacyState     `json:"state"`
}

type legacyMessage struct {
	Type      string `json:"type"`
	Agent     string `json:"agent"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type legacyState struct {
	ResearchTopic          string   `json:"research_topic"`
	RefinedTopic           string   `json:"refined_topic"`
	ResearchQuestions      []string `json:"research_questions"`
	PotentialContributions []string `json:"potential_contributions"`
	SearchKeywords         []string `json:"search_keywords"`
	TargetJournal          string   `json:"target_journal"`
	FinalPaper             string   `json:"final_paper"`
	CoverLetter            string   `json:"cover_letter"`
}

// isLegacyRecord detects the flat pre-process schema: no processes field but
// a top-level current_phase.
func isLegacyRecord(raw map[string]json.RawMessage) bool {
	_, hasProcesses := raw["processes"]
	_, hasPhase := raw["current_phase"]
	return !hasProcesses && hasPhase
}

// migrateLegacy upgrades a flat record into the process structure. The
// derived lock statuses always agree with the completion flags because they
// come from the same unlock evaluation the live mutators use.
func migrateLegacy(data []byte) (*state.Project, error) {
	var old legacyRecord
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrMigration, err)
	}
	if old.ID == "" {
		return nil, fmt.Errorf("%w: record has no id", perrors.ErrMigration)
	}

	phase := old.CurrentPhase
	if phase == "" {
		phase = "phase_1"
	}
	mapping, ok := phaseMapping[phase]
	if !ok {
		return nil, fmt.Errorf("%w: unknown legacy phase %q", perrors.ErrMigration, phase)
	}

	p := state.NewProject(old.ID, old.Topic)
	p.CreatedAt = parseLegacyTime(old.CreatedAt)
	p.ResearchDefinitionComplete = mapping.rdComplete
	p.ExperimentDesignComplete = mapping.edComplete

	re := &p.Processes.ResearchExperiment
	re.CurrentPhase = mapping.phase
	re.Artifact = old.ResearchArtifact
	re.State = state.ResearchExperimentState{
		ResearchTopic:          firstNonEmpty(old.State.ResearchTopic, old.Topic),
		RefinedTopic:           old.State.RefinedTopic,
		ResearchQuestions:      old.State.ResearchQuestions,
		PotentialContributions: old.State.PotentialContributions,
		SearchKeywords:         old.State.SearchKeywords,
	}
	for _, m := range old.Messages {
		re.Messages = append(re.Messages, state.Message{
			Type:      m.Type,
			Agent:     m.Agent,
			Content:   m.Content,
			Timestamp: parseLegacyTime(m.Timestamp),
		})
	}

	pw := &p.Processes.PaperWriting
	pw.State.TargetJournal = firstNonEmpty(old.State.TargetJournal, old.TargetJournal)
	pw.State.FinalPaper = old.State.FinalPaper
	pw.State.CoverLetter = old.State.CoverLetter

	// Lock statuses derive from the flags, never from the table directly.
	state.ApplyUnlocks(p)

	return p, nil
}

// legacyTimeFormats covers the timestamp shapes the old backend wrote.
var legacyTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseLegacyTime(s string) time.Time {
	for _, f := range legacyTimeFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
