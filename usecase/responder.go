package usecase

import (
	"context"

	"github.com/voxloop/voxloop/domain"
)

// Responder produces one assistant reply per call by replaying the entire
// conversation to the completion provider.
type Responder struct {
	completer domain.Completer
}

func NewResponder(completer domain.Completer) *Responder {
	return &Responder{completer: completer}
}

// Generate appends the user message, sends the full history to the completion
// provider, appends the reply, and returns it.
//
// Provider errors are returned to the caller as-is, with no retry. A turn is
// not atomic: when the provider fails, the user message stays appended and
// the conversation is left without a matching assistant message.
func (r *Responder) Generate(ctx context.Context, convo *domain.Conversation, userText string) (string, error) {
	if err := convo.AppendUser(userText); err != nil {
		return "", err
	}

	reply, err := r.completer.Complete(ctx, convo.Snapshot())
	if err != nil {
		return "", err
	}

	if err := convo.AppendAssistant(reply); err != nil {
		return "", err
	}

	return reply, nil
}
