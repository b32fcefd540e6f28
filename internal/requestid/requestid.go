// Package requestid tags each request with an ID and carries it through
// context for log correlation.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New mints a request ID and returns the enriched context and the ID.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, ctxKey{}, id), id
}

// FromContext reports the request ID carried by the context, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
