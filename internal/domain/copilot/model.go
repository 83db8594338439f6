package copilot

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var validRoles = []string{RoleUser, RoleAssistant, RoleSystem}

// Message is one conversation turn sent by the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// Reply is an assistant turn returned to the client.
type Reply struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChatResponse struct {
	Messages []Reply `json:"messages"`
}
