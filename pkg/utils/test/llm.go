package testutils

import (
	"context"
	"sync"

	"github.com/recallhq/recall/pkg/llm"
)

// MockChatModel is a test chat model that replays queued responses and
// records every message batch it receives.
type MockChatModel struct {
	mu sync.Mutex

	// Responses are returned in order; once drained, Complete returns
	// Fallback.
	Responses []string

	// Fallback is returned when Responses is exhausted.
	Fallback string

	// Err, when set, is returned by every Complete call.
	Err error

	// Requests accumulates the message batches passed to Complete.
	Requests [][]llm.Message
}

func NewMockChatModel(responses ...string) *MockChatModel {
	return &MockChatModel{
		Responses: responses,
		Fallback:  "ok",
	}
}

func (m *MockChatModel) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, append([]llm.Message(nil), messages...))

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	return m.Fallback, nil
}
