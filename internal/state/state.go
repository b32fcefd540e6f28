// Package state defines the project process data model and the unlock rules
// that gate process availability.
package state

import (
	"fmt"
	"time"
)

// ProcessStatus represents the availability of a process.
type ProcessStatus string

const (
	StatusActive   ProcessStatus = "active"
	StatusLocked   ProcessStatus = "locked"
	StatusUnlocked ProcessStatus = "unlocked"
)

// Phase is a sub-state within the Research & Experiment process.
type Phase string

const (
	PhaseResearchDefinition Phase = "research_definition"
	PhaseExperimentDesign   Phase = "experiment_design"
)

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseResearchDefinition, PhaseExperimentDesign:
		return Phase(s), nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// Process names, used as stream/queue keys and in API paths.
const (
	ProcessResearchExperiment     = "research_experiment"
	ProcessLiteratureOrganization = "literature_organization"
	ProcessLiteratureSearch       = "literature_search"
	ProcessPaperWriting           = "paper_writing"
)

// PaperStatus is the processing state of a paper entry.
type PaperStatus string

const (
	PaperPending         PaperStatus = "pending"
	PaperPendingDownload PaperStatus = "pending_download"
	PaperDownloading     PaperStatus = "downloading"
	PaperProcessing      PaperStatus = "processing"
	PaperCompleted       PaperStatus = "completed"
	PaperFailed          PaperStatus = "failed"
)

// PaperType distinguishes search-found papers from user uploads.
type PaperType string

const (
	PaperTypeSearch PaperType = "search"
	PaperTypeUpload PaperType = "upload"
)

// PaperSource identifies where a searched paper came from.
type PaperSource string

const (
	SourceArxiv           PaperSource = "arXiv"
	SourceSemanticScholar PaperSource = "S2"
	SourceUpload          PaperSource = "upload"
)

// Message is one entry in a conversational process's durable log.
type Message struct {
	Type      string    `json:"type"`
	Agent     string    `json:"agent"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(msgType, agent, content string) Message {
	return Message{
		Type:      msgType,
		Agent:     agent,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// ResearchExperimentState holds the structured sub-state of the
// Research & Experiment process.
type ResearchExperimentState struct {
	ResearchTopic          string   `json:"research_topic"`
	RefinedTopic           string   `json:"refined_topic"`
	ResearchQuestions      []string `json:"research_questions"`
	PotentialContributions []string `json:"potential_contributions"`
	SearchKeywords         []string `json:"search_keywords"`
	Hypotheses             []string `json:"hypotheses"`
	Methodology            string   `json:"methodology"`
}

// ResearchExperiment is the always-active conversational process containing
// the research definition and experiment design phases.
type ResearchExperiment struct {
	Status       ProcessStatus           `json:"status"`
	CurrentPhase Phase                   `json:"current_phase"`
	Messages     []Message               `json:"messages"`
	ResearchDefinitionArtifact string    `json:"research_definition_artifact"`
	ExperimentDesignArtifact   string    `json:"experiment_design_artifact"`
	// Artifact is the pre-phase-split field. Kept for wire compatibility;
	// reads fall back to it when the research definition artifact is empty.
	Artifact string                  `json:"artifact"`
	State    ResearchExperimentState `json:"state"`
}

// CurrentArtifact returns the artifact for the current phase.
func (p *ResearchExperiment) CurrentArtifact() string {
	if p.CurrentPhase == PhaseExperimentDesign {
		return p.ExperimentDesignArtifact
	}
	if p.ResearchDefinitionArtifact != "" {
		return p.ResearchDefinitionArtifact
	}
	return p.Artifact
}

// SetCurrentArtifact writes the artifact for the current phase. The other
// phase's artifact is never touched.
func (p *ResearchExperiment) SetCurrentArtifact(content string) {
	if p.CurrentPhase == PhaseExperimentDesign {
		p.ExperimentDesignArtifact = content
		return
	}
	p.ResearchDefinitionArtifact = content
}

// ArtifactFor returns the stored artifact for a specific phase.
func (p *ResearchExperiment) ArtifactFor(phase Phase) string {
	if phase == PhaseExperimentDesign {
		return p.ExperimentDesignArtifact
	}
	if p.ResearchDefinitionArtifact != "" {
		return p.ResearchDefinitionArtifact
	}
	return p.Artifact
}

// SetArtifactFor writes the stored artifact for a specific phase.
func (p *ResearchExperiment) SetArtifactFor(phase Phase, content string) {
	if phase == PhaseExperimentDesign {
		p.ExperimentDesignArtifact = content
		return
	}
	p.ResearchDefinitionArtifact = content
}

// PaperEntry is one literature item, search-found or user-uploaded.
type PaperEntry struct {
	ID         string      `json:"id"`
	Type       PaperType   `json:"type"`
	Title      string      `json:"title"`
	Authors    []string    `json:"authors"`
	Year       int         `json:"year,omitempty"`
	Source     PaperSource `json:"source"`
	PDFURL     string      `json:"pdf_url,omitempty"`
	DOI        string      `json:"doi,omitempty"`
	URL        string      `json:"url,omitempty"`
	Venue      string      `json:"venue,omitempty"`
	Citations  int         `json:"citations"`
	Categories []string    `json:"categories,omitempty"`
	Abstract   string      `json:"abstract"`
	FullText   string      `json:"full_text,omitempty"`
	MDFile     string      `json:"md_file"`
	MDContent  string      `json:"md_content"`
	Status     PaperStatus `json:"status"`
	AddedAt    time.Time   `json:"added_at"`
}

// LiteratureOrganizationState holds the paper collection.
type LiteratureOrganizationState struct {
	Papers   []PaperEntry `json:"papers"`
	MasterMD string       `json:"master_md"`
}

// LiteratureOrganization is the non-conversational, always-unlocked process
// that turns papers into markdown summaries.
type LiteratureOrganization struct {
	Status       ProcessStatus               `json:"status"`
	PapersFolder string                      `json:"papers_folder"`
	State        LiteratureOrganizationState `json:"state"`
}

// FindPaper returns a pointer to the entry with the given ID, or nil.
func (p *LiteratureOrganization) FindPaper(id string) *PaperEntry {
	for i := range p.State.Papers {
		if p.State.Papers[i].ID == id {
			return &p.State.Papers[i]
		}
	}
	return nil
}

// NextPaperID generates the next sequential paper ID (paper_001, paper_002,
// ...). It scans for the highest numeric suffix still in the collection so
// that deleting an entry never frees an ID a surviving paper holds.
func (p *LiteratureOrganization) NextPaperID() string {
	max := 0
	for i := range p.State.Papers {
		var n int
		if _, err := fmt.Sscanf(p.State.Papers[i].ID, "paper_%d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("paper_%03d", max+1)
}

// SearchHistoryEntry records one literature search.
type SearchHistoryEntry struct {
	Query       string    `json:"query"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount int       `json:"result_count"`
	Sources     []string  `json:"sources"`
}

// LiteratureSearchState holds search history and found papers.
type LiteratureSearchState struct {
	SearchHistory  []SearchHistoryEntry `json:"search_history"`
	SearchedPapers []PaperEntry         `json:"searched_papers"`
}

// LiteratureSearch is the non-conversational process gated behind both
// completion flags.
type LiteratureSearch struct {
	Status ProcessStatus         `json:"status"`
	State  LiteratureSearchState `json:"state"`
}

// FindPaper returns a pointer to the search result with the given ID, or nil.
func (p *LiteratureSearch) FindPaper(id string) *PaperEntry {
	for i := range p.State.SearchedPapers {
		if p.State.SearchedPapers[i].ID == id {
			return &p.State.SearchedPapers[i]
		}
	}
	return nil
}

// PaperWritingState holds the structured drafting sub-state.
type PaperWritingState struct {
	IMRADStructure map[string]string `json:"imrad_structure"`
	DraftSections  map[string]string `json:"draft_sections"`
	TargetJournal  string            `json:"target_journal"`
	FinalPaper     string            `json:"final_paper"`
	CoverLetter    string            `json:"cover_letter"`
}

// PaperWriting is the conversational drafting process gated behind both
// completion flags.
type PaperWriting struct {
	Status   ProcessStatus     `json:"status"`
	Messages []Message         `json:"messages"`
	Artifact string            `json:"artifact"`
	State    PaperWritingState `json:"state"`
}

// Processes is the container for the four process tracks.
type Processes struct {
	ResearchExperiment     ResearchExperiment     `json:"research_experiment"`
	LiteratureOrganization LiteratureOrganization `json:"literature_organization"`
	LiteratureSearch       LiteratureSearch       `json:"literature_search"`
	PaperWriting           PaperWriting           `json:"paper_writing"`
}

// Project is the aggregate root: one record per research project.
type Project struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// One-way unlock triggers. Never reset once true.
	ResearchDefinitionComplete bool `json:"research_definition_complete"`
	ExperimentDesignComplete   bool `json:"experiment_design_complete"`

	Processes Processes `json:"processes"`
}

// NewProject creates a fresh project for a topic. Research & Experiment is
// active in the research definition phase, Literature Organization is
// unlocked, the gated processes start locked.
func NewProject(id, topic string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        id,
		Topic:     topic,
		CreatedAt: now,
		UpdatedAt: now,
		Processes: Processes{
			ResearchExperiment: ResearchExperiment{
				Status:       StatusActive,
				CurrentPhase: PhaseResearchDefinition,
				Messages:     []Message{},
				State:        ResearchExperimentState{ResearchTopic: topic},
			},
			LiteratureOrganization: LiteratureOrganization{
				Status:       StatusUnlocked,
				PapersFolder: fmt.Sprintf("papers/%s/", id),
				State:        LiteratureOrganizationState{Papers: []PaperEntry{}, MasterMD: "master.md"},
			},
			LiteratureSearch: LiteratureSearch{
				Status: StatusLocked,
				State:  LiteratureSearchState{SearchHistory: []SearchHistoryEntry{}, SearchedPapers: []PaperEntry{}},
			},
			PaperWriting: PaperWriting{
				Status:   StatusLocked,
				Messages: []Message{},
				State: PaperWritingState{
					IMRADStructure: map[string]string{},
					DraftSections:  map[string]string{},
				},
			},
		},
	}
}

// Touch refreshes the updated timestamp. Called by every mutator.
func (p *Project) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

// AppendMessage appends to a conversational process's durable log. Returns
// false for non-conversational processes.
func (p *Project) AppendMessage(process string, msg Message) bool {
	switch process {
	case ProcessResearchExperiment:
		p.Processes.ResearchExperiment.Messages = append(p.Processes.ResearchExperiment.Messages, msg)
	case ProcessPaperWriting:
		p.Processes.PaperWriting.Messages = append(p.Processes.PaperWriting.Messages, msg)
	default:
		return false
	}
	p.Touch()
	return true
}

// MessagesFor returns the durable log for a conversational process.
func (p *Project) MessagesFor(process string) []Message {
	switch process {
	case ProcessResearchExperiment:
		return p.Processes.ResearchExperiment.Messages
	case ProcessPaperWriting:
		return p.Processes.PaperWriting.Messages
	}
	return nil
}
