package chat

import "time"

// Role tags who produced a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one immutable line of a transcript.
type Entry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SystemEntry builds the persona instruction entry that heads every prompt transcript.
func SystemEntry(content string) Entry {
	return Entry{Role: RoleSystem, Content: content, CreatedAt: time.Now().UTC()}
}

// UserEntry builds a user entry.
func UserEntry(content string) Entry {
	return Entry{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// AssistantEntry builds an assistant entry.
func AssistantEntry(content string) Entry {
	return Entry{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}
