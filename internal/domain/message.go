package domain

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation tracks an exchange between a user and the copilot, optionally
// anchored to a tracked document.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	DocumentPath string    `json:"documentPath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Messages     []Message `json:"messages,omitempty"`
}

// ConversationKey derives the stable lookup key for a user/document pair so
// repeated requests without an explicit conversation id land in the same
// conversation.
func ConversationKey(userID, documentPath string) string {
	if documentPath == "" {
		return userID
	}
	return userID + ":" + documentPath
}
