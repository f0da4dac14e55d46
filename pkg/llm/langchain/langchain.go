// Package langchain implements pkg/llm's ChatModel on top of langchaingo,
// giving a single client across Ollama, OpenAI, and Anthropic backends.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/recallhq/recall/pkg/llm"
)

// Supported provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds configuration for the langchaingo chat model.
type Config struct {
	// Provider selects the backend: "ollama", "openai", or "anthropic".
	Provider string

	// Model is the model name (e.g., "llama3.2", "gpt-4o-mini").
	Model string

	// Target is the server URL for self-hosted backends (Ollama).
	Target string

	// APIKey authenticates hosted backends (OpenAI, Anthropic).
	APIKey string
}

// Model wraps a langchaingo llms.Model as a llm.ChatModel.
type Model struct {
	model     llms.Model
	modelName string
}

// New creates a chat model for the configured provider.
func New(cfg Config) (*Model, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Provider {
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.Target != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Target))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return &Model{
		model:     model,
		modelName: cfg.Model,
	}, nil
}

// Complete generates a completion for the given message sequence.
func (m *Model) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(mapRole(msg.Role), msg.Content))
	}

	response, err := m.model.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrProvider, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", llm.ErrProvider)
	}

	return response.Choices[0].Content, nil
}

// ModelName returns the configured model name.
func (m *Model) ModelName() string {
	return m.modelName
}

func mapRole(role llm.Role) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

var _ llm.ChatModel = (*Model)(nil)
