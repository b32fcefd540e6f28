// Package retry wraps calls to external collaborators with exponential
// backoff. Each collaborator class gets its own policy: model generation is
// slow and expensive so it gives up early, while the public literature
// search tiers throttle aggressively and reward patience.
package retry

import (
	"context"
	"math/rand"
	"time"

	perrors "github.com/reslab/research-agent/internal/errors"
)

// Policy controls how a call is retried. Delays double per attempt up to
// Cap; Jitter spreads waiters so throttled clients do not re-collide.
type Policy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Jitter   bool
}

// LLM is the policy for model generation calls.
func LLM() Policy {
	return Policy{Attempts: 3, Base: time.Second, Cap: 15 * time.Second, Jitter: true}
}

// Search is the policy for literature search providers. The keyless
// Semantic Scholar tier returns 429 on roughly one request per second, so
// back off further and try longer than the model policy does.
func Search() Policy {
	return Policy{Attempts: 4, Base: 2 * time.Second, Cap: 30 * time.Second, Jitter: true}
}

// Do runs fn until it succeeds, fails non-retryably, exhausts the policy's
// attempts, or the context ends. Retryability is decided by
// perrors.IsRetryable.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.Base
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !perrors.IsRetryable(err) || attempt >= p.Attempts {
			return err
		}

		wait := delay
		if p.Jitter && delay >= 2 {
			wait = delay/2 + time.Duration(rand.Int63n(int64(delay/2)))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > p.Cap {
			delay = p.Cap
		}
	}
}
