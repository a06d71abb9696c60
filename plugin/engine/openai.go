package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds the connection settings for the OpenAI-compatible
// backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type openaiEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an engine backed by an OpenAI-compatible chat
// completion API.
func NewOpenAIEngine(cfg *OpenAIConfig) (Engine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai engine requires an API key")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openaiEngine{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

func (e *openaiEngine) Materialize(_ context.Context, definition []byte) (Model, error) {
	def, err := DecodeDefinition(definition)
	if err != nil {
		return nil, err
	}

	return &openaiModel{
		client: e.client,
		model:  e.model,
		prompt: def.Prompt,
	}, nil
}

func (e *openaiEngine) Train(_ context.Context, language string, data []byte) ([]byte, error) {
	if language == "" {
		return nil, errors.New("training requires a language")
	}

	// Training here is prompt composition: the intent examples become the
	// system prompt of the materialized model.
	def := &Definition{
		Language: language,
		Prompt: fmt.Sprintf(
			"You are a conversational assistant. Reply in language %q. "+
				"Ground every answer in the following intent examples:\n%s",
			language, data),
		Data: data,
	}
	return def.Encode()
}

type openaiModel struct {
	client *openai.Client
	model  string
	prompt string
}

func (m *openaiModel) Answer(ctx context.Context, question string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: m.prompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (m *openaiModel) Close() error {
	return nil
}
