package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/health"
	"github.com/reslab/research-agent/internal/metrics"
	"github.com/reslab/research-agent/internal/pdf"
	"github.com/reslab/research-agent/internal/registry"
	"github.com/reslab/research-agent/internal/state"
	"github.com/reslab/research-agent/internal/store"
	"github.com/reslab/research-agent/internal/tasks"
)

// streamFixture serves the app on an in-memory listener so tests can read
// the SSE body incrementally; app.Test buffers the whole response and
// cannot observe a live stream.
type streamFixture struct {
	client   *http.Client
	registry *registry.Registry
	bus      *event.Bus
	metrics  *metrics.Metrics
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()
	logger := zerolog.Nop()
	dir := t.TempDir()
	s, err := store.New(dir+"/projects", dir+"/papers", logger)
	require.NoError(t, err)

	reg := registry.New(s, logger)
	bus := event.NewBus(logger)
	runner := tasks.NewRunner(time.Minute, nil, logger)
	fetcher := pdf.NewFetcher(5*time.Second, logger)
	pipeline := tasks.NewPipeline(reg, bus, fetcher, nil, runner, 100_000, nil, logger)
	chats := tasks.NewChats(reg, bus, nil, nil, runner, nil, logger)

	m := metrics.New()
	checker := health.NewChecker(logger)
	handlers := NewHandlers(reg, bus, chats, pipeline, nil, checker, m, logger)
	srv := NewServer(ServerConfig{KeepAliveInterval: 25 * time.Millisecond}, handlers, checker, m, logger)

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = srv.App().Shutdown() })

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
			return ln.Dial()
		},
	}}
	return &streamFixture{client: client, registry: reg, bus: bus, metrics: m}
}

func (f *streamFixture) open(t *testing.T, path string) (*http.Response, *bufio.Reader) {
	t.Helper()
	resp, err := f.client.Get("http://stream.local" + path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	return resp, bufio.NewReader(resp.Body)
}

// nextEvent reads SSE frames, skipping keep-alive pings.
func nextEvent(t *testing.T, r *bufio.Reader) event.Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev event.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		if ev.Type == "ping" {
			continue
		}
		return ev
	}
}

func TestResearchStream_ReplayPrecedesLive(t *testing.T) {
	f := newStreamFixture(t)
	p, err := f.registry.Create("stream topic")
	require.NoError(t, err)

	const turns = 3
	_, err = f.registry.Update(p.ID, func(p *state.Project) error {
		for i := 0; i < turns; i++ {
			p.AppendMessage(state.ProcessResearchExperiment,
				state.NewMessage(event.TypeMessage, "user", fmt.Sprintf("turn-%d", i)))
		}
		return nil
	})
	require.NoError(t, err)

	resp, r := f.open(t, "/api/v1/projects/"+p.ID+"/research/stream")
	defer resp.Body.Close()

	ev := nextEvent(t, r)
	require.Equal(t, "connected", ev.Type)

	// The durable log arrives first, in append order.
	for i := 0; i < turns; i++ {
		ev = nextEvent(t, r)
		assert.Equal(t, event.TypeMessage, ev.Type)
		assert.Equal(t, fmt.Sprintf("turn-%d", i), ev.Content)
	}

	f.bus.Publish(p.ID, state.ProcessResearchExperiment,
		event.Event{Type: event.TypeMessage, Agent: "assistant", Content: "live tail"})
	ev = nextEvent(t, r)
	assert.Equal(t, "live tail", ev.Content)
}

func TestStream_StopsOnClientDisconnect(t *testing.T) {
	f := newStreamFixture(t)
	p, err := f.registry.Create("stream topic")
	require.NoError(t, err)

	resp, r := f.open(t, "/api/v1/projects/"+p.ID+"/research/stream")
	ev := nextEvent(t, r)
	require.Equal(t, "connected", ev.Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StreamsActive))

	require.NoError(t, resp.Body.Close())

	// The next keep-alive flush notices the dead client and the writer
	// loop exits.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.StreamsActive) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_ProjectCloseSendsDone(t *testing.T) {
	f := newStreamFixture(t)
	p, err := f.registry.Create("stream topic")
	require.NoError(t, err)

	resp, r := f.open(t, "/api/v1/projects/"+p.ID+"/research/stream")
	defer resp.Body.Close()
	ev := nextEvent(t, r)
	require.Equal(t, "connected", ev.Type)

	f.bus.CloseProject(p.ID)

	ev = nextEvent(t, r)
	assert.Equal(t, event.TypeDone, ev.Type)
	for err = nil; err == nil; {
		_, err = r.ReadString('\n')
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestWritingStream_WelcomeOnEmptyConversation(t *testing.T) {
	f := newStreamFixture(t)
	p, err := f.registry.Create("stream topic")
	require.NoError(t, err)

	resp, r := f.open(t, "/api/v1/projects/"+p.ID+"/writing/stream")
	defer resp.Body.Close()

	ev := nextEvent(t, r)
	require.Equal(t, "connected", ev.Type)
	ev = nextEvent(t, r)
	assert.Equal(t, event.TypeMessage, ev.Type)
	assert.Contains(t, ev.Content, "Paper Writing Assistant")
}
