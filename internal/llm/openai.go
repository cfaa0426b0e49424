package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient also serves Ollama and other OpenAI-compatible endpoints.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey string, model string, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIClient{
		client: client,
		model:  model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return "", eris.New("no response choices")
}
