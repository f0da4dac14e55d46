// Package llm defines the chat model contract the memory engine consumes.
package llm

import (
	"context"
	"errors"
)

// ErrProvider is returned when a chat model call fails
// (network, model, or malformed response).
var ErrProvider = errors.New("chat model failed")

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a chat completion request.
type Message struct {
	Role    Role
	Content string
}

// ChatModel generates a text completion for an ordered message sequence.
// It is used both to answer users and to extract facts from their messages.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
