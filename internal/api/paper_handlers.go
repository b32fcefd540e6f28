package api

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/state"
	"github.com/reslab/research-agent/internal/tasks"
)

// ListPapers handles GET /api/v1/projects/:id/papers.
func (h *Handlers) ListPapers(c *fiber.Ctx) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}
	papers := p.Processes.LiteratureOrganization.State.Papers
	return c.JSON(PaperListResponse{Papers: papers, Total: len(papers)})
}

// AddPaper handles POST /api/v1/projects/:id/papers. Manual entries start
// pending; an entry arriving with its full text goes straight into
// processing.
func (h *Handlers) AddPaper(c *fiber.Ctx) error {
	var req AddPaperRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Title == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_title", "Bad Request",
			"Title is required")
	}

	var entry state.PaperEntry
	_, err := h.registry.Update(c.Params("id"), func(p *state.Project) error {
		lo := &p.Processes.LiteratureOrganization
		entry = state.PaperEntry{
			ID:       lo.NextPaperID(),
			Type:     state.PaperTypeUpload,
			Title:    req.Title,
			Authors:  req.Authors,
			Year:     req.Year,
			Venue:    req.Venue,
			Abstract: req.Abstract,
			URL:      req.URL,
			PDFURL:   req.PDFURL,
			DOI:      req.DOI,
			FullText: req.Content,
			Source:   state.SourceUpload,
			Status:   state.PaperPending,
			AddedAt:  time.Now().UTC(),
		}
		lo.State.Papers = append(lo.State.Papers, entry)
		return nil
	})
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordPaperAdded(string(state.SourceUpload))
	}

	// Full text in hand means there is nothing to wait for.
	if req.Content != "" {
		if _, err := h.pipeline.StartProcessing(c.Params("id"), entry.ID); err != nil {
			h.logger.Warn().Err(err).Str("paper_id", entry.ID).Msg("could not schedule processing")
		} else {
			entry.Status = state.PaperProcessing
		}
	}

	return c.Status(fiber.StatusCreated).JSON(PaperResponse{Paper: entry})
}

// DeletePaper handles DELETE /api/v1/projects/:id/papers/:paperID. Removes
// the entry, its stored PDF, and any generated documents, then rebuilds the
// master list.
func (h *Handlers) DeletePaper(c *fiber.Ctx) error {
	id := c.Params("id")
	paperID := c.Params("paperID")

	updated, err := h.registry.Update(id, func(p *state.Project) error {
		lo := &p.Processes.LiteratureOrganization
		for i := range lo.State.Papers {
			if lo.State.Papers[i].ID == paperID {
				lo.State.Papers = append(lo.State.Papers[:i], lo.State.Papers[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, paperID)
	})
	if err != nil {
		return err
	}

	st := h.registry.Store()
	if err := st.DeletePaperDocuments(id, paperID); err != nil {
		h.logger.Warn().Err(err).Str("paper_id", paperID).Msg("document cleanup failed")
	}
	if err := os.Remove(st.PaperPDFPath(id, paperID)); err != nil && !os.IsNotExist(err) {
		h.logger.Warn().Err(err).Str("paper_id", paperID).Msg("pdf cleanup failed")
	}
	if err := st.SaveMasterList(id, updated.Processes.LiteratureOrganization.State.MasterMD,
		tasks.BuildMasterList(updated)); err != nil {
		h.logger.Warn().Err(err).Str("project_id", id).Msg("master list rebuild failed")
	}

	return c.JSON(DeleteResponse{Deleted: true})
}

// ProcessPaper handles POST /api/v1/projects/:id/papers/:paperID/process.
func (h *Handlers) ProcessPaper(c *fiber.Ctx) error {
	unit, err := h.pipeline.StartProcessing(c.Params("id"), c.Params("paperID"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(PaperTaskResponse{
		PaperID: c.Params("paperID"),
		UnitID:  unit.ID,
		Status:  string(state.PaperProcessing),
	})
}

// DownloadPaper handles POST /api/v1/projects/:id/papers/:paperID/download.
func (h *Handlers) DownloadPaper(c *fiber.Ctx) error {
	unit, err := h.pipeline.StartDownload(c.Params("id"), c.Params("paperID"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(PaperTaskResponse{
		PaperID: c.Params("paperID"),
		UnitID:  unit.ID,
		Status:  string(state.PaperPendingDownload),
	})
}

// OrganizeAll handles POST /api/v1/projects/:id/papers/organize. Schedules
// processing for every still-pending entry.
func (h *Handlers) OrganizeAll(c *fiber.Ctx) error {
	units, err := h.pipeline.OrganizeAll(c.Params("id"))
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return c.Status(fiber.StatusAccepted).JSON(OrganizeResponse{Scheduled: len(ids), UnitIDs: ids})
}

// PaperDocument handles GET /api/v1/projects/:id/papers/:paperID/document.
// Prefers the on-disk document; falls back to the embedded copy when the
// file is gone.
func (h *Handlers) PaperDocument(c *fiber.Ctx) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}
	paper := p.Processes.LiteratureOrganization.FindPaper(c.Params("paperID"))
	if paper == nil {
		return fmt.Errorf("%w: paper %s", perrors.ErrNotFound, c.Params("paperID"))
	}

	if paper.MDFile != "" {
		if content, err := h.registry.Store().ReadPaperDocument(p.ID, paper.MDFile); err == nil {
			return c.JSON(DocumentResponse{PaperID: paper.ID, Filename: paper.MDFile, Content: content})
		}
	}
	if paper.MDContent == "" {
		return fmt.Errorf("%w: no document for paper %s", perrors.ErrNotFound, paper.ID)
	}
	return c.JSON(DocumentResponse{PaperID: paper.ID, Filename: paper.MDFile, Content: paper.MDContent})
}

// MasterList handles GET /api/v1/projects/:id/papers/master. Always built
// from current state so it reflects the collection even after out-of-band
// file edits.
func (h *Handlers) MasterList(c *fiber.Ctx) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(DocumentResponse{
		Filename: p.Processes.LiteratureOrganization.State.MasterMD,
		Content:  tasks.BuildMasterList(p),
	})
}
