// Package agent holds the conversational layers on top of the llm provider:
// the phase-aware research discussion and the paper writing assistant. Agents
// are stateless; every call receives the conversation state it needs, so the
// registry stays the single owner of project data.
package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reslab/research-agent/internal/llm"
	"github.com/reslab/research-agent/internal/state"
)

// defaultHistoryWindow bounds how many prior messages travel to the model.
const defaultHistoryWindow = 10

// Reply is the outcome of one agent turn. ArtifactUpdated reports whether
// the model emitted a fresh artifact; when false, Artifact is empty and the
// caller keeps the previous one.
type Reply struct {
	Text            string
	Artifact        string
	ArtifactUpdated bool
}

// Discussion runs the research conversation for both discussion phases.
type Discussion struct {
	provider llm.Provider
	window   int
	logger   zerolog.Logger
}

func NewDiscussion(provider llm.Provider, historyWindow int, logger zerolog.Logger) *Discussion {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Discussion{
		provider: provider,
		window:   historyWindow,
		logger:   logger.With().Str("component", "discussion-agent").Logger(),
	}
}

// InitialArtifact returns the empty artifact template for a phase.
func InitialArtifact(phase state.Phase) string {
	if phase == state.PhaseExperimentDesign {
		return initialExperimentDesignArtifact
	}
	return initialResearchDefinitionArtifact
}

func systemPromptFor(phase state.Phase, topic, artifact string) string {
	tpl := researchDefinitionSystemPrompt
	if phase == state.PhaseExperimentDesign {
		tpl = experimentDesignSystemPrompt
	}
	if artifact == "" {
		artifact = InitialArtifact(phase)
	}
	return strings.NewReplacer(
		"{{topic}}", topic,
		"{{artifact}}", artifact,
	).Replace(tpl)
}

// HistoryWindow converts the tail of the stored conversation into provider
// turns. Only durable user and assistant messages travel; control events in
// the log are skipped.
func HistoryWindow(msgs []state.Message, window int) []llm.Message {
	if window <= 0 {
		window = defaultHistoryWindow
	}

	var out []llm.Message
	for _, m := range msgs {
		if m.Type != "message" {
			continue
		}
		role := "model"
		if m.Agent == "user" {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	if len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// Start opens a new discussion on the topic and returns the agent's opening
// assessment.
func (d *Discussion) Start(ctx context.Context, topic string) (Reply, error) {
	system := systemPromptFor(state.PhaseResearchDefinition, topic, "")
	prompt := strings.ReplaceAll(initialDiscussionPrompt, "{{topic}}", topic)

	raw, err := d.provider.Generate(ctx, system, nil, prompt)
	if err != nil {
		return Reply{}, err
	}
	return splitReply(raw), nil
}

// Chat continues the discussion in the given phase. artifact is the current
// phase artifact and history the stored conversation log.
func (d *Discussion) Chat(ctx context.Context, phase state.Phase, topic, artifact string, history []state.Message, userMessage string) (Reply, error) {
	system := systemPromptFor(phase, topic, artifact)

	raw, err := d.provider.Generate(ctx, system, HistoryWindow(history, d.window), userMessage)
	if err != nil {
		return Reply{}, err
	}

	reply := splitReply(raw)
	d.logger.Debug().
		Str("phase", string(phase)).
		Bool("artifact_updated", reply.ArtifactUpdated).
		Msg("discussion turn complete")
	return reply, nil
}

func splitReply(raw string) Reply {
	clean, artifact, found := ExtractArtifact(raw)
	return Reply{Text: clean, Artifact: artifact, ArtifactUpdated: found}
}
