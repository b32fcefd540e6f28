package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reslab/research-agent/internal/llm"
	"github.com/reslab/research-agent/internal/state"
)

// contextCap bounds how much of each upstream artifact is embedded in the
// paper writing system prompt.
const contextCap = 8000

// Writer runs the paper writing conversation. It is grounded on the two
// discussion artifacts, both of which must exist before the process unlocks.
type Writer struct {
	provider llm.Provider
	window   int
	logger   zerolog.Logger
}

func NewWriter(provider llm.Provider, historyWindow int, logger zerolog.Logger) *Writer {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Writer{
		provider: provider,
		window:   historyWindow,
		logger:   logger.With().Str("component", "writing-agent").Logger(),
	}
}

// InitialPaperArtifact is the paper artifact before any writing happened.
func InitialPaperArtifact() string {
	return initialPaperArtifact
}

func writingSystemPrompt(researchDefinition, experimentDesign string) string {
	return strings.NewReplacer(
		"{{research_definition}}", capOrPlaceholder(researchDefinition),
		"{{experiment_design}}", capOrPlaceholder(experimentDesign),
	).Replace(paperWritingSystemPrompt)
}

func capOrPlaceholder(s string) string {
	if s == "" {
		return "[not provided]"
	}
	if len(s) > contextCap {
		return s[:contextCap]
	}
	return s
}

// Chat continues the paper writing conversation.
func (w *Writer) Chat(ctx context.Context, researchDefinition, experimentDesign string, history []state.Message, userMessage string) (Reply, error) {
	system := writingSystemPrompt(researchDefinition, experimentDesign)

	raw, err := w.provider.Generate(ctx, system, HistoryWindow(history, w.window), userMessage)
	if err != nil {
		return Reply{}, err
	}

	reply := splitReply(raw)
	w.logger.Debug().Bool("artifact_updated", reply.ArtifactUpdated).Msg("writing turn complete")
	return reply, nil
}
