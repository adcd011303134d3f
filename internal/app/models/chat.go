package models

// Chat roles accepted in a conversation history.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one earlier turn of a concierge conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

// ChatRequest asks the concierge a question, optionally continuing a conversation.
type ChatRequest struct {
	Message             string        `json:"message" validate:"required,max=2000"`
	ConversationHistory []ChatMessage `json:"conversation_history" validate:"max=50,dive"`
}

type ChatResponse struct {
	Response string `json:"response"`
}
