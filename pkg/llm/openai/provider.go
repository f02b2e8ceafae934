package openai

import (
	"ai-tutoring-be/pkg/llm"
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider also serves OpenAI-compatible endpoints through baseURL.
type OpenAIProvider struct {
	client *goopenai.Client
	model  string
}

var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, &llm.ErrConfiguration{Provider: "openai", Missing: []string{"OPENAI_API_KEY"}}
	}

	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.GPT4oMini
	}

	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model, Temperature: 0.7}, options...)

	messages := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case llm.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:               opts.Model,
		Messages:            messages,
		MaxCompletionTokens: opts.MaxTokens,
		Temperature:         float32(opts.Temperature),
	})
	if err != nil {
		return "", p.mapError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *OpenAIProvider) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized:
		return &llm.ErrConfiguration{Provider: p.Name(), Missing: []string{"valid OPENAI_API_KEY"}}
	case status == http.StatusTooManyRequests:
		return &llm.ErrRateLimit{Err: err}
	case status >= 400 && status < 500:
		return &llm.ErrBadRequest{StatusCode: status, Err: err}
	}
	return &llm.ErrProviderUnavailable{Provider: p.Name(), StatusCode: status, Err: err}
}
