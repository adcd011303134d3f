package chat

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/FACorreiaa/go-radar/internal/app/models"
)

// GeminiResponder replays the history into a Gemini chat session and sends the new message.
type GeminiResponder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiResponder returns nil, nil when no API key is configured.
func NewGeminiResponder(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiResponder, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GeminiResponder{client: client, model: model, timeout: timeout}, nil
}

func (g *GeminiResponder) Respond(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   400,
	}
	session, err := g.client.Chats.Create(ctx, g.model, config, toContents(history))
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	result, err := session.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return result.Text(), nil
}

func toContents(history []models.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == models.ChatRoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}
