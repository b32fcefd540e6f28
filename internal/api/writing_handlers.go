package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reslab/research-agent/internal/agent"
	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/state"
)

// WritingState handles GET /api/v1/projects/:id/writing.
func (h *Handlers) WritingState(c *fiber.Ctx) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}

	pw := p.Processes.PaperWriting
	return c.JSON(WritingStateResponse{
		Status:   pw.Status,
		Artifact: pw.Artifact,
		Messages: pw.Messages,
		State:    pw.State,
	})
}

// WritingChat handles POST /api/v1/projects/:id/writing/chat. Rejected
// while the process is still gated behind the completion flags.
func (h *Handlers) WritingChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Message == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_message", "Bad Request",
			"Message is required")
	}

	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}
	if !p.PaperWritingAccessible() {
		return perrors.NewPrecondition("paper writing requires both research phases complete", perrors.ErrLocked)
	}

	unit, err := h.chats.StartWritingChat(p.ID, req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(ChatAck{UnitID: unit.ID, Status: string(unit.Status)})
}

// WritingReset handles POST /api/v1/projects/:id/writing/reset.
func (h *Handlers) WritingReset(c *fiber.Ctx) error {
	var req ResetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request",
				"Invalid request body: "+err.Error())
		}
	}
	clearMessages := req.Messages == nil || *req.Messages
	clearArtifact := req.Artifact == nil || *req.Artifact

	_, err := h.registry.Update(c.Params("id"), func(p *state.Project) error {
		pw := &p.Processes.PaperWriting
		if clearMessages {
			pw.Messages = []state.Message{}
		}
		if clearArtifact {
			pw.Artifact = ""
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(ResetResponse{
		MessagesCleared: clearMessages,
		ArtifactCleared: clearArtifact,
	})
}

// WritingStream handles GET /api/v1/projects/:id/writing/stream. A fresh
// conversation opens with a welcome message so the client has something to
// render before the first turn.
func (h *Handlers) WritingStream(c *fiber.Ctx) error {
	welcome := func(p *state.Project) []event.Event {
		if len(p.Processes.PaperWriting.Messages) > 0 {
			return nil
		}
		return []event.Event{{
			Type:    event.TypeMessage,
			Agent:   "assistant",
			Content: agent.PaperWritingWelcome,
		}}
	}
	return h.streamProcess(c, state.ProcessPaperWriting, welcome)
}
