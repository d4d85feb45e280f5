package services

import (
	"context"
)

// ProviderStatus reports whether a completion provider can serve requests.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusDisabled ProviderStatus = "disabled"
)

// ChatMessageRole defines the role of the message sender (system, user, assistant).
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant" // "model" for Gemini
)

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    ChatMessageRole
	Content string
}

// CompletionService defines the interface for generating chat responses.
// Complete is the single-prompt shortcut the batch classifier calls.
type CompletionService interface {
	GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error)
	Complete(ctx context.Context, prompt string) (string, error)
	Status() ProviderStatus
	Name() string      // Provider name (e.g., "openai", "gemini")
	ModelName() string // Specific model used
}

func userPrompt(prompt string) []ChatMessage {
	return []ChatMessage{{Role: ChatMessageRoleUser, Content: prompt}}
}
