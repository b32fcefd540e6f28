package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reslab/research-agent/internal/agent"
	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/registry"
	"github.com/reslab/research-agent/internal/state"
	"github.com/reslab/research-agent/internal/store"
)

type chatFixture struct {
	registry *registry.Registry
	bus      *event.Bus
	runner   *Runner
	chats    *Chats
	provider *fakeProvider
}

func newChatFixture(t *testing.T, provider *fakeProvider) *chatFixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(dir+"/projects", dir+"/papers", zerolog.Nop())
	require.NoError(t, err)

	reg := registry.New(s, zerolog.Nop())
	bus := event.NewBus(zerolog.Nop())
	runner := NewRunner(time.Minute, nil, zerolog.Nop())
	discussion := agent.NewDiscussion(provider, 0, zerolog.Nop())
	writer := agent.NewWriter(provider, 0, zerolog.Nop())
	return &chatFixture{
		registry: reg,
		bus:      bus,
		runner:   runner,
		chats:    NewChats(reg, bus, discussion, writer, runner, nil, zerolog.Nop()),
		provider: provider,
	}
}

func drain(sub *event.Subscription) []event.Event {
	var out []event.Event
	for {
		ev, ok := sub.TryNext()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestResearchChat_AppendsAndPublishes(t *testing.T) {
	provider := &fakeProvider{response: "Let us begin.\n<artifact>\n# Research Definition\ndraft\n</artifact>"}
	f := newChatFixture(t, provider)
	p, err := f.registry.Create("quantum error correction")
	require.NoError(t, err)

	sub := f.bus.Subscribe(p.ID, state.ProcessResearchExperiment)
	defer sub.Close()

	unit, err := f.chats.StartResearchChat(p.ID, "hello")
	require.NoError(t, err)
	f.runner.Wait()

	final, _ := f.runner.Get(unit.ID)
	assert.Equal(t, UnitCompleted, final.Status)

	// Durable record has both sides of the turn.
	updated, err := f.registry.Get(p.ID)
	require.NoError(t, err)
	msgs := updated.Processes.ResearchExperiment.Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Agent)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Agent)
	assert.Equal(t, "Let us begin.", msgs[1].Content)

	// Artifact landed in state and on the stream.
	assert.Contains(t, updated.Processes.ResearchExperiment.CurrentArtifact(), "# Research Definition")

	events := drain(sub)
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{event.TypeMessage, event.TypeMessage, event.TypeArtifact}, types)
	assert.Equal(t, "user", events[0].Agent)
	assert.Equal(t, "assistant", events[1].Agent)
	assert.Equal(t, "research_definition", events[2].Data["phase"])
}

func TestResearchChat_FirstTurnUsesTopic(t *testing.T) {
	provider := &fakeProvider{response: "Welcome."}
	f := newChatFixture(t, provider)
	p, err := f.registry.Create("graph neural networks")
	require.NoError(t, err)

	_, err = f.chats.StartResearchChat(p.ID, "start")
	require.NoError(t, err)
	f.runner.Wait()

	// The opening turn is driven by the project topic.
	assert.Contains(t, provider.lastMessage, "graph neural networks")
}

func TestResearchChat_ModelErrorFailsUnitAndPublishes(t *testing.T) {
	provider := &fakeProvider{err: errors.New("quota exceeded")}
	f := newChatFixture(t, provider)
	p, err := f.registry.Create("topic")
	require.NoError(t, err)

	sub := f.bus.Subscribe(p.ID, state.ProcessResearchExperiment)
	defer sub.Close()

	unit, err := f.chats.StartResearchChat(p.ID, "hello")
	require.NoError(t, err)
	f.runner.Wait()

	final, _ := f.runner.Get(unit.ID)
	assert.Equal(t, UnitFailed, final.Status)
	assert.Contains(t, final.Error, "quota exceeded")

	var sawError bool
	for _, ev := range drain(sub) {
		if ev.Type == event.TypeError {
			sawError = true
		}
	}
	assert.True(t, sawError)

	// The user message is still on the record; no assistant reply was added.
	updated, err := f.registry.Get(p.ID)
	require.NoError(t, err)
	require.Len(t, updated.Processes.ResearchExperiment.Messages, 1)
	assert.Equal(t, "user", updated.Processes.ResearchExperiment.Messages[0].Agent)
}

func TestResearchChat_NoDiscussionAgent(t *testing.T) {
	dir := t.TempDir()
	s, err := store.New(dir+"/projects", dir+"/papers", zerolog.Nop())
	require.NoError(t, err)
	reg := registry.New(s, zerolog.Nop())
	chats := NewChats(reg, event.NewBus(zerolog.Nop()), nil, nil,
		NewRunner(time.Minute, nil, zerolog.Nop()), nil, zerolog.Nop())

	p, err := reg.Create("topic")
	require.NoError(t, err)

	_, err = chats.StartResearchChat(p.ID, "hello")
	assert.Error(t, err)
	_, err = chats.StartWritingChat(p.ID, "hello")
	assert.Error(t, err)
}

func TestResearchChat_UnknownProject(t *testing.T) {
	f := newChatFixture(t, &fakeProvider{response: "hi"})
	_, err := f.chats.StartResearchChat("nope", "hello")
	assert.Error(t, err)
}

func TestWritingChat_UsesBothArtifacts(t *testing.T) {
	provider := &fakeProvider{response: "Draft ready.\n<artifact>\n# Paper\n</artifact>"}
	f := newChatFixture(t, provider)
	p, err := f.registry.Create("topic")
	require.NoError(t, err)

	_, err = f.registry.Update(p.ID, func(p *state.Project) error {
		re := &p.Processes.ResearchExperiment
		re.SetArtifactFor(state.PhaseResearchDefinition, "RD artifact body")
		re.SetArtifactFor(state.PhaseExperimentDesign, "ED artifact body")
		return nil
	})
	require.NoError(t, err)

	sub := f.bus.Subscribe(p.ID, state.ProcessPaperWriting)
	defer sub.Close()

	unit, err := f.chats.StartWritingChat(p.ID, "write the introduction")
	require.NoError(t, err)
	f.runner.Wait()

	final, _ := f.runner.Get(unit.ID)
	assert.Equal(t, UnitCompleted, final.Status)

	assert.Contains(t, provider.lastSystem, "RD artifact body")
	assert.Contains(t, provider.lastSystem, "ED artifact body")

	updated, err := f.registry.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Paper", updated.Processes.PaperWriting.Artifact)

	var sawArtifact bool
	for _, ev := range drain(sub) {
		if ev.Type == event.TypeArtifact {
			sawArtifact = true
			assert.Equal(t, "# Paper", ev.Content)
		}
	}
	assert.True(t, sawArtifact)
}

func TestWritingChat_KeepsProcessStreamsSeparate(t *testing.T) {
	provider := &fakeProvider{response: "ok"}
	f := newChatFixture(t, provider)
	p, err := f.registry.Create("topic")
	require.NoError(t, err)

	researchSub := f.bus.Subscribe(p.ID, state.ProcessResearchExperiment)
	defer researchSub.Close()

	_, err = f.chats.StartWritingChat(p.ID, "hello")
	require.NoError(t, err)
	f.runner.Wait()

	assert.Empty(t, drain(researchSub))

	updated, err := f.registry.Get(p.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Processes.ResearchExperiment.Messages)
	assert.Len(t, updated.Processes.PaperWriting.Messages, 2)
}
