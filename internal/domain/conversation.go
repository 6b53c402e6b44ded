package domain

import "time"

// Message roles. The values match what the generator APIs expect, so the
// transcript can be fed to them without translation.
const (
	RoleRespondent = "user"
	RoleAssistant  = "assistant"
)

// Conversation is one interview session. At most one conversation per user
// is open (EndedAt == nil) at any time. Concluded is set when the generator
// emitted the terminal sentinel: such a conversation never receives another
// generation call until the user explicitly restarts.
type Conversation struct {
	ID        int64
	UserID    int64
	StartedAt time.Time
	EndedAt   *time.Time
	Concluded bool
}

// Open reports whether the conversation still accepts turns.
func (c *Conversation) Open() bool {
	return c.EndedAt == nil
}

// Message is one turn in a conversation. Immutable once written.
type Message struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	CreatedAt      time.Time
}
