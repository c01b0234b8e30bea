// Package narrator talks to the text-completion provider that writes the story
package narrator

//go:generate mockgen -destination=mock/mock_client.go -package=narratormock github.com/KirkDiggler/rpg-narrator/internal/clients/narrator Client

import (
	"context"
)

// Role of a message in the conversation sent to the provider
type Role string

// Roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of prior conversation or context
type Message struct {
	Role    Role
	Content string
}

// Client produces narration for a prompt
type Client interface {
	// Narrate sends the system rules and conversation and returns the reply.
	// Returns errors.Unavailable for provider or network failures, which are retryable
	// Returns errors.DeadlineExceeded when the call times out
	Narrate(ctx context.Context, input *NarrateInput) (*NarrateOutput, error)
}

// NarrateInput is one completion request
type NarrateInput struct {
	System   string
	Messages []Message
	// MaxTokens overrides the configured reply cap when positive
	MaxTokens int
}

// NarrateOutput is the provider reply and its token cost
type NarrateOutput struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
