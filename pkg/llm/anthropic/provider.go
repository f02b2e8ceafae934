package anthropic

import (
	"ai-tutoring-be/pkg/llm"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicModels maps friendly names to Anthropic model IDs.
var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

type AnthropicProvider struct {
	client *sdk.Client
	model  string
}

var _ llm.LLMProvider = &AnthropicProvider{}

func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, &llm.ErrConfiguration{Provider: "anthropic", Missing: []string{"ANTHROPIC_API_KEY"}}
	}

	client := sdk.NewClient(option.WithAPIKey(apiKey))
	if id, ok := anthropicModels[model]; ok {
		model = id
	}
	if model == "" {
		model = anthropicModels["claude-haiku"]
	}

	return &AnthropicProvider{client: &client, model: model}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(llm.Options{Model: p.model, MaxTokens: 1024}, options...)
	system, turns := llm.SplitSystem(history)

	messages := make([]sdk.MessageParam, len(turns))
	for i, m := range turns {
		role := sdk.MessageParamRoleUser
		if m.Role == llm.RoleAssistant {
			role = sdk.MessageParamRoleAssistant
		}
		messages[i] = sdk.MessageParam{
			Role:    role,
			Content: []sdk.ContentBlockParamUnion{sdk.NewTextBlock(m.Content)},
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(opts.Model),
		MaxTokens: int64(opts.MaxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.mapError(ctx, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in Anthropic response")
	}
	return sb.String(), nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *AnthropicProvider) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return &llm.ErrConfiguration{Provider: p.Name(), Missing: []string{"valid ANTHROPIC_API_KEY"}}
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &llm.ErrRateLimit{Err: err}
		case apiErr.StatusCode >= 500:
			return &llm.ErrProviderUnavailable{Provider: p.Name(), StatusCode: apiErr.StatusCode, Err: err}
		case apiErr.StatusCode >= 400:
			return &llm.ErrBadRequest{StatusCode: apiErr.StatusCode, Err: err}
		}
	}
	return &llm.ErrProviderUnavailable{Provider: p.Name(), Err: err}
}
