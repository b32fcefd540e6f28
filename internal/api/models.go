// Package api exposes the project orchestrator over HTTP: project CRUD,
// the four process surfaces, and per-process SSE streams.
package api

import (
	"time"

	"github.com/reslab/research-agent/internal/search"
	"github.com/reslab/research-agent/internal/state"
)

// --- Request DTOs ---

// CreateProjectRequest is the payload for POST /api/v1/projects.
type CreateProjectRequest struct {
	Topic string `json:"topic"`
}

// RenameProjectRequest is the payload for PATCH /api/v1/projects/:id.
type RenameProjectRequest struct {
	Topic string `json:"topic"`
}

// ChatRequest carries one user turn for a conversational process.
type ChatRequest struct {
	Message string `json:"message"`
}

// SwitchPhaseRequest selects the target phase for the research process.
type SwitchPhaseRequest struct {
	Phase string `json:"phase"`
}

// ResetRequest selects what to clear. An empty body clears both.
type ResetRequest struct {
	Messages *bool `json:"messages,omitempty"`
	Artifact *bool `json:"artifact,omitempty"`
}

// AddPaperRequest is the payload for POST /api/v1/projects/:id/papers.
// Content, when present, is treated as the paper's full text and the entry
// goes straight into processing.
type AddPaperRequest struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	URL      string   `json:"url,omitempty"`
	PDFURL   string   `json:"pdf_url,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	Content  string   `json:"content,omitempty"`
}

// SearchRequest is the payload for POST /api/v1/projects/:id/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// --- Response DTOs ---

// ProjectSummary is the list-view shape of a project.
type ProjectSummary struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	PaperCount int       `json:"paper_count"`
}

// ProjectListResponse wraps the project roster.
type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
	Total    int              `json:"total"`
}

// ProjectResponse wraps one full project record.
type ProjectResponse struct {
	Project *state.Project `json:"project"`
}

// DeleteResponse reports an idempotent delete.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ChatAck acknowledges a scheduled chat turn. The reply arrives on the
// process event stream.
type ChatAck struct {
	UnitID string `json:"unit_id"`
	Status string `json:"status"`
}

// ResearchStateResponse is the research process view with the current
// phase's artifact resolved.
type ResearchStateResponse struct {
	Status          state.ProcessStatus `json:"status"`
	CurrentPhase    state.Phase         `json:"current_phase"`
	CurrentArtifact string              `json:"current_artifact"`
	Messages        []state.Message     `json:"messages"`
}

// SwitchPhaseResponse reports a phase switch. Changed is false for a
// same-phase switch.
type SwitchPhaseResponse struct {
	Phase   state.Phase `json:"phase"`
	Changed bool        `json:"changed"`
}

// CompletePhaseResponse reports a completion attempt.
type CompletePhaseResponse struct {
	Phase           state.Phase `json:"phase"`
	AlreadyComplete bool        `json:"already_complete"`
	Unlocked        []string    `json:"unlocked"`
}

// ResetResponse reports what a reset cleared.
type ResetResponse struct {
	MessagesCleared bool `json:"messages_cleared"`
	ArtifactCleared bool `json:"artifact_cleared"`
}

// WritingStateResponse is the paper writing process view.
type WritingStateResponse struct {
	Status   state.ProcessStatus     `json:"status"`
	Artifact string                  `json:"artifact"`
	Messages []state.Message         `json:"messages"`
	State    state.PaperWritingState `json:"state"`
}

// PaperResponse wraps one collection entry.
type PaperResponse struct {
	Paper state.PaperEntry `json:"paper"`
}

// PaperListResponse wraps the paper collection.
type PaperListResponse struct {
	Papers []state.PaperEntry `json:"papers"`
	Total  int                `json:"total"`
}

// PaperTaskResponse acknowledges a scheduled paper unit.
type PaperTaskResponse struct {
	PaperID string `json:"paper_id"`
	UnitID  string `json:"unit_id"`
	Status  string `json:"status"`
}

// OrganizeResponse reports a bulk processing kick-off.
type OrganizeResponse struct {
	Scheduled int      `json:"scheduled"`
	UnitIDs   []string `json:"unit_ids"`
}

// DocumentResponse carries a generated markdown document.
type DocumentResponse struct {
	PaperID  string `json:"paper_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content"`
}

// SearchResponse reports one multi-source search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []state.PaperEntry `json:"results"`
	Total   int                `json:"total"`
	Sources []string           `json:"sources"`
}

// SearchResultsResponse wraps the stored search results.
type SearchResultsResponse struct {
	Results []state.PaperEntry `json:"results"`
	Total   int                `json:"total"`
}

// SearchHistoryResponse wraps the recorded searches.
type SearchHistoryResponse struct {
	History []state.SearchHistoryEntry `json:"history"`
}

// HealthDetailResponse is the response for GET /api/v1/health.
type HealthDetailResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Uptime     string            `json:"uptime"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// paperFromResult converts a search hit into a collection entry shape.
func paperFromResult(r search.Result) state.PaperEntry {
	return state.PaperEntry{
		Type:      state.PaperTypeSearch,
		Title:     r.Title,
		Authors:   r.Authors,
		Year:      r.Year,
		Venue:     r.Venue,
		Citations: r.Citations,
		Abstract:  r.Abstract,
		URL:       r.URL,
		PDFURL:    r.PDFURL,
		DOI:       r.DOI,
		Source:    sourceLabel(r.Source),
		AddedAt:   time.Now().UTC(),
	}
}

func sourceLabel(name string) state.PaperSource {
	switch name {
	case "arxiv":
		return state.SourceArxiv
	case "semantic_scholar":
		return state.SourceSemanticScholar
	}
	return state.PaperSource(name)
}
