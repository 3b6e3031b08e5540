package domain

// Role tags a conversation message with its author.
type Role string

const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// Message is a single entry in a conversation. Immutable once created.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
