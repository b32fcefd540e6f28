// Package event provides in-process fan-out of per-project, per-process
// events to streaming subscribers. Durable history lives in the project
// record; the bus only carries the live tail.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is a single unit on a process stream. Durable conversation events
// carry Agent and Content; control events (status transitions, errors,
// completion markers) carry structured Data instead.
type Event struct {
	Type      string         `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Common event types.
const (
	TypeMessage        = "message"
	TypeArtifact       = "artifact_update"
	TypeStatus         = "status_update"
	TypePhaseSwitch    = "phase_switch"
	TypeProcessUnlock  = "process_unlock"
	TypePaperUpdate    = "paper_update"
	TypeSearchComplete = "search_complete"
	TypeError          = "error"
	TypeDone           = "done"
)

// Bus fans events out to subscribers keyed by (project, process). Queues
// are created lazily on the first subscribe and publishing to a key with no
// subscribers is a cheap no-op.
type Bus struct {
	mu     sync.Mutex
	subs   map[streamKey][]*Subscription
	logger zerolog.Logger
}

type streamKey struct {
	projectID string
	process   string
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[streamKey][]*Subscription),
		logger: logger.With().Str("component", "event-bus").Logger(),
	}
}

// Publish delivers ev to every current subscriber on the stream. It never
// blocks: each subscriber holds its own unbounded buffer, so a stalled
// consumer slows nobody else down.
func (b *Bus) Publish(projectID, process string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	// remove shifts the registered slice in place, so take a snapshot
	// before iterating outside the lock.
	targets := append([]*Subscription(nil), b.subs[streamKey{projectID, process}]...)
	b.mu.Unlock()

	for _, sub := range targets {
		sub.push(ev)
	}
}

// Subscribe registers a live listener on the stream. The caller must call
// sub.Close when done or the subscription leaks.
func (b *Bus) Subscribe(projectID, process string) *Subscription {
	sub := &Subscription{
		bus:    b,
		key:    streamKey{projectID, process},
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.subs[sub.key] = append(b.subs[sub.key], sub)
	b.mu.Unlock()

	b.logger.Debug().
		Str("project_id", projectID).
		Str("process", process).
		Msg("subscriber attached")
	return sub
}

// CloseProject drops every subscription for the project. Used on project
// deletion so open streams terminate instead of idling forever.
func (b *Bus) CloseProject(projectID string) {
	b.mu.Lock()
	var closing []*Subscription
	for key, subs := range b.subs {
		if key.projectID == projectID {
			closing = append(closing, subs...)
			delete(b.subs, key)
		}
	}
	b.mu.Unlock()

	for _, sub := range closing {
		sub.markClosed()
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.key]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.key]) == 0 {
		delete(b.subs, sub.key)
	}
}

// Subscription is one listener's unbounded FIFO view of a stream.
type Subscription struct {
	bus *Bus
	key streamKey

	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, the context ends, or the
// subscription is closed. A closed subscription still drains its remaining
// buffer before reporting ErrClosed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Event{}, ErrClosed
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// TryNext pops the next buffered event without blocking.
func (s *Subscription) TryNext() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.markClosed()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
