package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reslab/research-agent/internal/agent"
	perrors "github.com/reslab/research-agent/internal/errors"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/metrics"
	"github.com/reslab/research-agent/internal/registry"
	"github.com/reslab/research-agent/internal/state"
)

// Chats schedules conversational turns as background units. The caller gets
// an immediate acknowledgement; replies arrive on the process event stream.
type Chats struct {
	registry   *registry.Registry
	bus        *event.Bus
	discussion *agent.Discussion
	writer     *agent.Writer
	runner     *Runner
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewChats(reg *registry.Registry, bus *event.Bus, discussion *agent.Discussion, writer *agent.Writer, runner *Runner, m *metrics.Metrics, logger zerolog.Logger) *Chats {
	return &Chats{
		registry:   reg,
		bus:        bus,
		discussion: discussion,
		writer:     writer,
		runner:     runner,
		metrics:    m,
		logger:     logger.With().Str("component", "chats").Logger(),
	}
}

// appendAndPublish writes the message to the durable log first, then puts it
// on the live stream. Persist-then-publish keeps replay consistent: a
// subscriber replaying the record and then draining the queue sees every
// message at least once.
func (c *Chats) appendAndPublish(projectID, process string, msg state.Message) error {
	_, err := c.registry.Update(projectID, func(p *state.Project) error {
		if !p.AppendMessage(process, msg) {
			return fmt.Errorf("%w: process %s is not conversational", perrors.ErrInvalidInput, process)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.bus.Publish(projectID, process, event.Event{
		Type:      msg.Type,
		Agent:     msg.Agent,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
	return nil
}

func (c *Chats) publishError(projectID, process string, err error) {
	c.bus.Publish(projectID, process, event.Event{
		Type: event.TypeError,
		Data: map[string]any{"error": err.Error()},
	})
}

// StartResearchChat schedules one research discussion turn.
func (c *Chats) StartResearchChat(projectID, message string) (Unit, error) {
	if c.discussion == nil {
		return Unit{}, fmt.Errorf("%w: no language model configured", perrors.ErrUnavailable)
	}

	if err := c.appendAndPublish(projectID, state.ProcessResearchExperiment,
		state.NewMessage(event.TypeMessage, "user", message)); err != nil {
		return Unit{}, err
	}

	unit := c.runner.Go("research_chat", projectID, func(ctx context.Context) error {
		err := c.researchTurn(ctx, projectID, message)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			c.publishError(projectID, state.ProcessResearchExperiment, err)
		}
		if c.metrics != nil {
			c.metrics.RecordChatTurn(state.ProcessResearchExperiment, outcome)
		}
		return err
	})
	return unit, nil
}

func (c *Chats) researchTurn(ctx context.Context, projectID, message string) error {
	p, err := c.registry.Get(projectID)
	if err != nil {
		return err
	}
	re := p.Processes.ResearchExperiment
	phase := re.CurrentPhase

	// History excludes the user message just appended; it travels as the
	// current turn instead.
	history := re.Messages
	if n := len(history); n > 0 && history[n-1].Agent == "user" {
		history = history[:n-1]
	}

	var reply agent.Reply
	if len(history) == 0 && phase == state.PhaseResearchDefinition {
		reply, err = c.discussion.Start(ctx, p.Topic)
	} else {
		reply, err = c.discussion.Chat(ctx, phase, p.Topic, re.CurrentArtifact(), history, message)
	}
	if err != nil {
		return err
	}

	if err := c.appendAndPublish(projectID, state.ProcessResearchExperiment,
		state.NewMessage(event.TypeMessage, "assistant", reply.Text)); err != nil {
		return err
	}

	if reply.ArtifactUpdated {
		if _, err := c.registry.Update(projectID, func(p *state.Project) error {
			p.Processes.ResearchExperiment.SetArtifactFor(phase, reply.Artifact)
			return nil
		}); err != nil {
			return err
		}
		if err := c.registry.Store().SaveArtifact(projectID, string(phase), reply.Artifact); err != nil {
			c.logger.Warn().Err(err).Str("project_id", projectID).Msg("artifact mirror write failed")
		}
		c.bus.Publish(projectID, state.ProcessResearchExperiment, event.Event{
			Type:    event.TypeArtifact,
			Content: reply.Artifact,
			Data:    map[string]any{"phase": string(phase)},
		})
	}
	return nil
}

// StartWritingChat schedules one paper writing turn. Callers check the
// process gate before scheduling.
func (c *Chats) StartWritingChat(projectID, message string) (Unit, error) {
	if c.writer == nil {
		return Unit{}, fmt.Errorf("%w: no language model configured", perrors.ErrUnavailable)
	}

	if err := c.appendAndPublish(projectID, state.ProcessPaperWriting,
		state.NewMessage(event.TypeMessage, "user", message)); err != nil {
		return Unit{}, err
	}

	unit := c.runner.Go("writing_chat", projectID, func(ctx context.Context) error {
		err := c.writingTurn(ctx, projectID, message)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			c.publishError(projectID, state.ProcessPaperWriting, err)
		}
		if c.metrics != nil {
			c.metrics.RecordChatTurn(state.ProcessPaperWriting, outcome)
		}
		return err
	})
	return unit, nil
}

func (c *Chats) writingTurn(ctx context.Context, projectID, message string) error {
	p, err := c.registry.Get(projectID)
	if err != nil {
		return err
	}
	re := p.Processes.ResearchExperiment

	history := p.Processes.PaperWriting.Messages
	if n := len(history); n > 0 && history[n-1].Agent == "user" {
		history = history[:n-1]
	}

	reply, err := c.writer.Chat(ctx,
		re.ArtifactFor(state.PhaseResearchDefinition),
		re.ArtifactFor(state.PhaseExperimentDesign),
		history, message)
	if err != nil {
		return err
	}

	if err := c.appendAndPublish(projectID, state.ProcessPaperWriting,
		state.NewMessage(event.TypeMessage, "assistant", reply.Text)); err != nil {
		return err
	}

	if reply.ArtifactUpdated {
		if _, err := c.registry.Update(projectID, func(p *state.Project) error {
			p.Processes.PaperWriting.Artifact = reply.Artifact
			return nil
		}); err != nil {
			return err
		}
		if err := c.registry.Store().SaveArtifact(projectID, state.ProcessPaperWriting, reply.Artifact); err != nil {
			c.logger.Warn().Err(err).Str("project_id", projectID).Msg("paper artifact mirror write failed")
		}
		c.bus.Publish(projectID, state.ProcessPaperWriting, event.Event{
			Type:    event.TypeArtifact,
			Content: reply.Artifact,
		})
	}
	return nil
}
