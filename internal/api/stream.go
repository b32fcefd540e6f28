package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/reslab/research-agent/internal/event"
	"github.com/reslab/research-agent/internal/state"
)

// streamProcess serves one process event stream over SSE. The durable
// conversation log is replayed first, then the live queue is drained; the
// at-least-once overlap between the two is documented client behavior.
// A keep-alive ping goes out after each quiet interval; a failed flush
// means the client is gone and ends the stream.
func (h *Handlers) streamProcess(c *fiber.Ctx, process string, opening func(*state.Project) []event.Event) error {
	p, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.bus.Subscribe(p.ID, process)
	replay := p.MessagesFor(process)
	var openingEvents []event.Event
	if opening != nil {
		openingEvents = opening(p)
	}
	keepAlive := h.keepAlive

	if h.metrics != nil {
		h.metrics.StreamsActive.Inc()
	}
	logger := h.logger.With().Str("project_id", p.ID).Str("process", process).Logger()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		if h.metrics != nil {
			defer h.metrics.StreamsActive.Dec()
		}

		writeSSE(w, event.Event{Type: "connected", Timestamp: time.Now().UTC()})
		for _, msg := range replay {
			writeSSE(w, event.Event{
				Type:      msg.Type,
				Agent:     msg.Agent,
				Content:   msg.Content,
				Timestamp: msg.Timestamp,
			})
		}
		for _, ev := range openingEvents {
			writeSSE(w, ev)
		}
		if w.Flush() != nil {
			return
		}

		for {
			ctx, cancel := context.WithTimeout(context.Background(), keepAlive)
			ev, err := sub.Next(ctx)
			cancel()

			switch {
			case err == nil:
				writeSSE(w, ev)
			case errors.Is(err, event.ErrClosed):
				writeSSE(w, event.Event{Type: event.TypeDone, Timestamp: time.Now().UTC()})
				_ = w.Flush()
				logger.Debug().Msg("stream closed")
				return
			default:
				// quiet interval elapsed
				writeSSE(w, event.Event{Type: "ping", Timestamp: time.Now().UTC()})
			}

			if w.Flush() != nil {
				logger.Debug().Msg("stream client disconnected")
				return
			}
		}
	}))
	return nil
}

// writeSSE encodes one event in SSE wire format. Control events that fail
// to marshal are skipped rather than breaking the stream.
func writeSSE(w *bufio.Writer, ev event.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// PapersStream handles GET /api/v1/projects/:id/papers/stream. Carries
// paper status transitions and processing errors.
func (h *Handlers) PapersStream(c *fiber.Ctx) error {
	return h.streamProcess(c, state.ProcessLiteratureOrganization, nil)
}
