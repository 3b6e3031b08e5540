package domain

import "errors"

// ErrConversationNotInitialized is returned when a message is appended to a
// conversation that was not created through NewConversation.
var ErrConversationNotInitialized = errors.New("conversation not initialized")

// Conversation is an append-only, ordered log of messages. The first message
// is always the system prompt set at creation; it is never removed or
// reordered. The log is never truncated, so it grows without bound over the
// life of a session.
//
// A Conversation is not safe for concurrent use. Callers that share one
// across goroutines must serialize access (the session does this).
type Conversation struct {
	messages []Message
}

// NewConversation creates a conversation holding exactly one system message.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{
		messages: []Message{{Role: SystemRole, Content: systemPrompt}},
	}
}

// AppendUser appends a user message to the log.
func (c *Conversation) AppendUser(text string) error {
	if len(c.messages) == 0 {
		return ErrConversationNotInitialized
	}
	c.messages = append(c.messages, Message{Role: UserRole, Content: text})
	return nil
}

// AppendAssistant appends an assistant message to the log. Callers append an
// assistant message only after the corresponding user message.
func (c *Conversation) AppendAssistant(text string) error {
	if len(c.messages) == 0 {
		return ErrConversationNotInitialized
	}
	c.messages = append(c.messages, Message{Role: AssistantRole, Content: text})
	return nil
}

// Snapshot returns a copy of the full ordered log. Mutating the returned
// slice does not affect the conversation.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int {
	return len(c.messages)
}
