package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reslab/research-agent/internal/llm"
	"github.com/reslab/research-agent/internal/state"
)

// stubProvider records the last call and returns a canned response.
type stubProvider struct {
	response string
	err      error

	lastSystem  string
	lastHistory []llm.Message
	lastMessage string
}

func (s *stubProvider) Generate(_ context.Context, system string, history []llm.Message, userMessage string) (string, error) {
	s.lastSystem = system
	s.lastHistory = history
	s.lastMessage = userMessage
	return s.response, s.err
}

func (s *stubProvider) ModelID() string { return "stub" }

func TestExtractArtifact(t *testing.T) {
	clean, artifact, found := ExtractArtifact("Here is my take.\n\n<artifact>\n# Research Definition\ncontent\n</artifact>")
	assert.True(t, found)
	assert.Equal(t, "Here is my take.", clean)
	assert.Equal(t, "# Research Definition\ncontent", artifact)
}

func TestExtractArtifact_NoBlockKeepsResponse(t *testing.T) {
	clean, artifact, found := ExtractArtifact("Just a plain answer.")
	assert.False(t, found)
	assert.Equal(t, "Just a plain answer.", clean)
	assert.Empty(t, artifact)
}

func TestDiscussion_Chat_PhaseSelectsPrompt(t *testing.T) {
	stub := &stubProvider{response: "ok"}
	d := NewDiscussion(stub, 10, zerolog.Nop())

	_, err := d.Chat(context.Background(), state.PhaseResearchDefinition, "my topic", "", nil, "hi")
	require.NoError(t, err)
	assert.Contains(t, stub.lastSystem, "Research Definition")
	assert.Contains(t, stub.lastSystem, "research advisor")
	assert.Contains(t, stub.lastSystem, "my topic")

	_, err = d.Chat(context.Background(), state.PhaseExperimentDesign, "my topic", "", nil, "hi")
	require.NoError(t, err)
	assert.Contains(t, stub.lastSystem, "Experiment Design")
	assert.Contains(t, stub.lastSystem, "methodologist")
}

func TestDiscussion_Chat_EmbedsCurrentArtifact(t *testing.T) {
	stub := &stubProvider{response: "ok"}
	d := NewDiscussion(stub, 10, zerolog.Nop())

	_, err := d.Chat(context.Background(), state.PhaseResearchDefinition, "t", "## custom artifact state", nil, "hi")
	require.NoError(t, err)
	assert.Contains(t, stub.lastSystem, "## custom artifact state")
}

func TestDiscussion_Chat_ArtifactRoundTrip(t *testing.T) {
	stub := &stubProvider{response: "Good progress.\n<artifact>updated</artifact>"}
	d := NewDiscussion(stub, 10, zerolog.Nop())

	reply, err := d.Chat(context.Background(), state.PhaseResearchDefinition, "t", "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Good progress.", reply.Text)
	assert.True(t, reply.ArtifactUpdated)
	assert.Equal(t, "updated", reply.Artifact)
}

func TestHistoryWindow_BoundsAndFilters(t *testing.T) {
	var msgs []state.Message
	msgs = append(msgs, state.NewMessage("status_update", "system", "noise"))
	for i := 0; i < 15; i++ {
		agent := "user"
		if i%2 == 1 {
			agent = "assistant"
		}
		msgs = append(msgs, state.NewMessage("message", agent, fmt.Sprintf("turn-%d", i)))
	}

	window := HistoryWindow(msgs, 10)
	require.Len(t, window, 10)
	// Keeps the most recent turns, oldest first.
	assert.Equal(t, "turn-5", window[0].Content)
	assert.Equal(t, "turn-14", window[9].Content)
	// Control messages never travel to the model.
	for _, m := range window {
		assert.NotEqual(t, "noise", m.Content)
	}
	// Roles map user/assistant onto provider roles.
	assert.Equal(t, "model", window[0].Role)
	assert.Equal(t, "user", window[1].Role)
}

func TestDiscussion_Start_UsesInitialPrompt(t *testing.T) {
	stub := &stubProvider{response: "welcome\n<artifact>fresh</artifact>"}
	d := NewDiscussion(stub, 10, zerolog.Nop())

	reply, err := d.Start(context.Background(), "LLM agents for peer review")
	require.NoError(t, err)
	assert.Contains(t, stub.lastMessage, "LLM agents for peer review")
	assert.Empty(t, stub.lastHistory)
	assert.Equal(t, "welcome", reply.Text)
	assert.Equal(t, "fresh", reply.Artifact)
}

func TestWriter_Chat_EmbedsBothArtifacts(t *testing.T) {
	stub := &stubProvider{response: "titles\n<artifact># Candidate</artifact>"}
	w := NewWriter(stub, 10, zerolog.Nop())

	reply, err := w.Chat(context.Background(), "RD content", "ED content", nil, "generate titles")
	require.NoError(t, err)
	assert.Contains(t, stub.lastSystem, "RD content")
	assert.Contains(t, stub.lastSystem, "ED content")
	assert.Equal(t, "titles", reply.Text)
	assert.Equal(t, "# Candidate", reply.Artifact)
}

func TestWriter_Chat_MissingContextPlaceholder(t *testing.T) {
	stub := &stubProvider{response: "ok"}
	w := NewWriter(stub, 10, zerolog.Nop())

	_, err := w.Chat(context.Background(), "", "", nil, "hello")
	require.NoError(t, err)
	assert.Contains(t, stub.lastSystem, "[not provided]")
}

func TestWriter_ContextCapped(t *testing.T) {
	stub := &stubProvider{response: "ok"}
	w := NewWriter(stub, 10, zerolog.Nop())

	huge := make([]byte, contextCap+500)
	for i := range huge {
		huge[i] = 'a'
	}
	_, err := w.Chat(context.Background(), string(huge), "", nil, "hello")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(stub.lastSystem), len(paperWritingSystemPrompt)+2*contextCap)
}
