package engine

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
)

// MockEngine is a deterministic engine for tests. Materialize never touches
// the network and Answer returns a fixed reply.
type MockEngine struct {
	// AnswerText is what every materialized model answers. Defaults to
	// "stub-answer".
	AnswerText string

	// MaterializeErr, when set, makes Materialize fail.
	MaterializeErr error

	materializeCalls atomic.Int64
}

// NewMockEngine creates a mock engine with the default stub answer.
func NewMockEngine() *MockEngine {
	return &MockEngine{AnswerText: "stub-answer"}
}

// MaterializeCalls reports how many models have been materialized.
func (e *MockEngine) MaterializeCalls() int64 {
	return e.materializeCalls.Load()
}

func (e *MockEngine) Materialize(_ context.Context, definition []byte) (Model, error) {
	if e.MaterializeErr != nil {
		return nil, e.MaterializeErr
	}
	if _, err := DecodeDefinition(definition); err != nil {
		return nil, err
	}
	e.materializeCalls.Add(1)
	return &mockModel{answer: e.AnswerText}, nil
}

func (e *MockEngine) Train(_ context.Context, language string, data []byte) ([]byte, error) {
	if language == "" {
		return nil, errors.New("training requires a language")
	}
	def := &Definition{Language: language, Prompt: "mock", Data: data}
	return def.Encode()
}

type mockModel struct {
	answer string
}

func (m *mockModel) Answer(_ context.Context, question string) (string, error) {
	if question == "" {
		return "", errors.New("empty question")
	}
	return m.answer, nil
}

func (m *mockModel) Close() error {
	return nil
}
