package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is used for classification and structure generation.
const DefaultChatModel = openai.GPT4oMini

// ErrEmptyCompletion is returned when the model answers with no content.
var ErrEmptyCompletion = errors.New("empty chat completion")

// ChatAPI is the seam between ChatClient and the OpenAI SDK. *openai.Client
// satisfies it.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient runs JSON-mode chat completions.
type ChatClient struct {
	api         ChatAPI
	model       string
	temperature float32
}

// NewChatClient creates a chat client. An empty model uses DefaultChatModel.
func NewChatClient(api ChatAPI, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{api: api, model: model, temperature: 0.2}
}

// Model returns the chat model name.
func (c *ChatClient) Model() string {
	return c.model
}

// CompleteJSON sends a system and user message and decodes the JSON answer
// into out.
func (c *ChatClient) CompleteJSON(ctx context.Context, system, user string, out interface{}) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return ErrEmptyCompletion
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), out); err != nil {
		return fmt.Errorf("decode chat completion: %w", err)
	}
	return nil
}
