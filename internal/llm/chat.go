// Package llm wraps the chat-completion calls the pipeline makes for chunk
// context enrichment and relevance scoring.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the model used for enrichment and rerank scoring.
const DefaultChatModel = openai.GPT4oMini

// ChatClient produces a single completion for a system/user prompt pair.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIChat implements ChatClient against the OpenAI chat API.
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// NewOpenAIChat creates a chat client, defaulting the model.
func NewOpenAIChat(apiKey, model string) *OpenAIChat {
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIChat{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
