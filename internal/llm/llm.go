// Package llm abstracts the text generation backend behind a small provider
// interface so the conversation layer never touches wire formats.
package llm

import "context"

// Message is one prior conversation turn. Role is "user" or "model".
type Message struct {
	Role    string
	Content string
}

// Provider generates a single completion for a system prompt, prior history,
// and the latest user message.
type Provider interface {
	Generate(ctx context.Context, system string, history []Message, userMessage string) (string, error)
	ModelID() string
}
