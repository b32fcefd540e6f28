package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reslab/research-agent/internal/state"
)

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	p, err := h.registry.Create(req.Topic)
	if err != nil {
		return err
	}

	h.logger.Info().Str("project_id", p.ID).Str("topic", p.Topic).Msg("project created")
	return c.Status(fiber.StatusCreated).JSON(ProjectResponse{Project: p})
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.registry.List()
	if err != nil {
		return err
	}

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, ProjectSummary{
			ID:         p.ID,
			Topic:      p.Topic,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
			PaperCount: len(p.Processes.LiteratureOrganization.State.Papers),
		})
	}

	return c.JSON(ProjectListResponse{Projects: summaries, Total: len(summaries)})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ProjectResponse{Project: p})
}

// RenameProject handles PATCH /api/v1/projects/:id.
func (h *Handlers) RenameProject(c *fiber.Ctx) error {
	var req RenameProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Topic == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_topic", "Bad Request",
			"Topic is required")
	}

	p, err := h.registry.Update(c.Params("id"), func(p *state.Project) error {
		p.Topic = req.Topic
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(ProjectResponse{Project: p})
}

// DeleteProject handles DELETE /api/v1/projects/:id. Idempotent: deleting
// an absent project reports deleted=false. Live streams for the project are
// terminated after the record is gone.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := h.registry.Delete(id)
	if err != nil {
		return err
	}
	h.bus.CloseProject(id)

	return c.JSON(DeleteResponse{Deleted: deleted})
}
