package domain

import "context"

// Completer abstracts any chat/LLM provider. The full ordered conversation is
// replayed on every call; the provider returns a single assistant reply.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
