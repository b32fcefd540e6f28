package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/state"
)

// searchGate rejects search operations while the process is locked.
func (h *Handlers) searchGate(projectID string) (*state.Project, error) {
	p, err := h.registry.Get(projectID)
	if err != nil {
		return nil, err
	}
	if !p.LiteratureSearchAccessible() {
		return nil, perrors.NewPrecondition("literature search requires both research phases complete", perrors.ErrLocked)
	}
	return p, nil
}

// SearchPapers handles POST /api/v1/projects/:id/search. Queries all
// configured sources, stores the merged ranking as the current result set,
// and records a history entry.
func (h *Handlers) SearchPapers(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Query == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_query", "Bad Request",
			"Query is required")
	}

	p, err := h.searchGate(c.Params("id"))
	if err != nil {
		return err
	}
	if h.searcher == nil {
		return fmt.Errorf("%w: no search sources configured", perrors.ErrUnavailable)
	}

	results, err := h.searcher.Search(c.Context(), req.Query)
	if err != nil {
		return err
	}

	entries := make([]state.PaperEntry, 0, len(results))
	sources := make(map[string]bool)
	for i, r := range results {
		entry := paperFromResult(r)
		entry.ID = fmt.Sprintf("search_%03d", i+1)
		entry.Status = state.PaperPending
		entries = append(entries, entry)
		sources[r.Source] = true
	}
	sourceNames := make([]string, 0, len(sources))
	for name := range sources {
		sourceNames = append(sourceNames, name)
	}

	_, err = h.registry.Update(p.ID, func(p *state.Project) error {
		ls := &p.Processes.LiteratureSearch
		ls.State.SearchedPapers = entries
		ls.State.SearchHistory = append(ls.State.SearchHistory, state.SearchHistoryEntry{
			Query:       req.Query,
			Timestamp:   time.Now().UTC(),
			ResultCount: len(entries),
			Sources:     sourceNames,
		})
		return nil
	})
	if err != nil {
		return err
	}

	h.bus.Publish(p.ID, state.ProcessLiteratureSearch, event.Event{
		Type: event.TypeSearchComplete,
		Data: map[string]any{"query": req.Query, "result_count": len(entries)},
	})

	return c.JSON(SearchResponse{
		Query:   req.Query,
		Results: entries,
		Total:   len(entries),
		Sources: sourceNames,
	})
}

// SearchResults handles GET /api/v1/projects/:id/search/results.
func (h *Handlers) SearchResults(c *fiber.Ctx) error {
	p, err := h.searchGate(c.Params("id"))
	if err != nil {
		return err
	}
	results := p.Processes.LiteratureSearch.State.SearchedPapers
	return c.JSON(SearchResultsResponse{Results: results, Total: len(results)})
}

// SearchHistory handles GET /api/v1/projects/:id/search/history.
func (h *Handlers) SearchHistory(c *fiber.Ctx) error {
	p, err := h.searchGate(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(SearchHistoryResponse{History: p.Processes.LiteratureSearch.State.SearchHistory})
}

// OrganizeSearchResult handles
// POST /api/v1/projects/:id/search/results/:paperID/organize. Copies the
// result into the collection under a fresh paper ID; a result with a PDF
// link goes through the download stage first.
func (h *Handlers) OrganizeSearchResult(c *fiber.Ctx) error {
	if _, err := h.searchGate(c.Params("id")); err != nil {
		return err
	}

	var entry state.PaperEntry
	_, err := h.registry.Update(c.Params("id"), func(p *state.Project) error {
		found := p.Processes.LiteratureSearch.FindPaper(c.Params("paperID"))
		if found == nil {
			return fmt.Errorf("%w: search result %s", perrors.ErrNotFound, c.Params("paperID"))
		}
		lo := &p.Processes.LiteratureOrganization
		entry = *found
		entry.ID = lo.NextPaperID()
		entry.Status = state.PaperPending
		entry.AddedAt = time.Now().UTC()
		lo.State.Papers = append(lo.State.Papers, entry)
		return nil
	})
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordPaperAdded(string(entry.Source))
	}

	if entry.PDFURL != "" {
		if _, err := h.pipeline.StartDownload(c.Params("id"), entry.ID); err != nil {
			h.logger.Warn().Err(err).Str("paper_id", entry.ID).Msg("could not schedule download")
		} else {
			entry.Status = state.PaperPendingDownload
		}
	}

	return c.Status(fiber.StatusCreated).JSON(PaperResponse{Paper: entry})
}

// DeleteSearchResult handles
// DELETE /api/v1/projects/:id/search/results/:paperID.
func (h *Handlers) DeleteSearchResult(c *fiber.Ctx) error {
	if _, err := h.searchGate(c.Params("id")); err != nil {
		return err
	}

	_, err := h.registry.Update(c.Params("id"), func(p *state.Project) error {
		ls := &p.Processes.LiteratureSearch
		for i := range ls.State.SearchedPapers {
			if ls.State.SearchedPapers[i].ID == c.Params("paperID") {
				ls.State.SearchedPapers = append(ls.State.SearchedPapers[:i], ls.State.SearchedPapers[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: search result %s", perrors.ErrNotFound, c.Params("paperID"))
	})
	if err != nil {
		return err
	}
	return c.JSON(DeleteResponse{Deleted: true})
}
