package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/reslab/research-agent/internal/agent"
	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/state"
)

// ResearchState handles GET /api/v1/projects/:id/research.
func (h *Handlers) ResearchState(c *fiber.Ctx) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}

	re := p.Processes.ResearchExperiment
	return c.JSON(ResearchStateResponse{
		Status:          re.Status,
		CurrentPhase:    re.CurrentPhase,
		CurrentArtifact: re.CurrentArtifact(),
		Messages:        re.Messages,
	})
}

// ResearchChat handles POST /api/v1/projects/:id/research/chat. The user
// message is persisted and published immediately; the reply arrives on the
// stream when the scheduled turn finishes.
func (h *Handlers) ResearchChat(c *fiber.Ctx) error {
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

	unit, err := h.chats.StartResearchChat(c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(ChatAck{UnitID: unit.ID, Status: string(unit.Status)})
}

// SwitchPhase handles POST /api/v1/projects/:id/research/switch-phase.
// Artifacts persist per phase, so switching only moves the pointer; a phase
// entered for the first time starts from its default template.
func (h *Handlers) SwitchPhase(c *fiber.Ctx) error {
	var req SwitchPhaseRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	target, err := state.ParsePhase(req.Phase)
	if err != nil {
		return err
	}

	var changed bool
	_, err = h.registry.Update(c.Params("id"), func(p *state.Project) error {
		changed = p.SwitchPhase(target)
		if changed && p.Processes.ResearchExperiment.ArtifactFor(target) == "" {
			p.Processes.ResearchExperiment.SetArtifactFor(target, agent.InitialArtifact(target))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		h.bus.Publish(c.Params("id"), state.ProcessResearchExperiment, event.Event{
			Type: event.TypePhaseSwitch,
			Data: map[string]any{"phase": string(target)},
		})
	}
	return c.JSON(SwitchPhaseResponse{Phase: target, Changed: changed})
}

// CompletePhase handles POST /api/v1/projects/:id/research/complete.
// Completing the current phase flips its one-way flag; once both flags are
// set the gated processes unlock.
func (h *Handlers) CompletePhase(c *fiber.Ctx) error {
	id := c.Params("id")

	var phase state.Phase
	var already bool
	var unlocked []string
	_, err := h.registry.Update(id, func(p *state.Project) error {
		phase = p.Processes.ResearchExperiment.CurrentPhase
		switch phase {
		case state.PhaseResearchDefinition:
			already, unlocked = p.CompleteResearchDefinition()
		case state.PhaseExperimentDesign:
			already, unlocked = p.CompleteExperimentDesign()
		default:
			return fmt.Errorf("%w: %s", perrors.ErrInvalidPhase, phase)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, process := range unlocked {
		h.bus.Publish(id, state.ProcessResearchExperiment, event.Event{
			Type: event.TypeProcessUnlock,
			Data: map[string]any{"process": process},
		})
	}
	if !already {
		h.bus.Publish(id, state.ProcessResearchExperiment, event.Event{
			Type: event.TypeStatus,
			Data: map[string]any{"phase": string(phase), "complete": true},
		})
	}

	if unlocked == nil {
		unlocked = []string{}
	}
	return c.JSON(CompletePhaseResponse{
		Phase:           phase,
		AlreadyComplete: already,
		Unlocked:        unlocked,
	})
}

// ResearchReset handles POST /api/v1/projects/:id/research/reset. Clears
// the conversation and/or the current phase's artifact. Completion flags
// are one-way and are never touched here.
func (h *Handlers) ResearchReset(c *fiber.Ctx) error {
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
		re := &p.Processes.ResearchExperiment
		if clearMessages {
			re.Messages = []state.Message{}
		}
		if clearArtifact {
			re.SetCurrentArtifact("")
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

// ResearchStream handles GET /api/v1/projects/:id/research/stream.
func (h *Handlers) ResearchStream(c *fiber.Ctx) error {
	return h.streamProcess(c, state.ProcessResearchExperiment, nil)
}
