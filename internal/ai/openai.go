package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIProvider implements Provider with the go-openai client.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIOption customises an OpenAIProvider.
type OpenAIOption func(*openai.ClientConfig, *OpenAIProvider)

// WithOpenAIBaseURL points the client at a compatible endpoint (tests, proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAIProvider) { cfg.BaseURL = url }
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(_ *openai.ClientConfig, p *OpenAIProvider) { p.model = model }
}

// NewOpenAIProvider returns ErrMissingAPIKey when apiKey is blank.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	cfg := openai.DefaultConfig(apiKey)
	p := &OpenAIProvider{model: defaultOpenAIModel}
	for _, opt := range opts {
		opt(&cfg, p)
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p, nil
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Generate maps req onto a chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	ccr := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.maxTokens(),
	}
	if req.Temperature != nil {
		ccr.Temperature = float32(*req.Temperature)
		// Temperature is omitempty in the client; a zero would fall back to the server default of 1.
		if ccr.Temperature == 0 {
			ccr.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if req.JSONMode {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderOpenAI, Message: "API returned empty choices array"}
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return &Response{
		Text:       resp.Choices[0].Message.Content,
		Provider:   ProviderOpenAI,
		Model:      model,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			InputTokens:  clampTokens(resp.Usage.PromptTokens),
			OutputTokens: clampTokens(resp.Usage.CompletionTokens),
		},
	}, nil
}

func classifyOpenAIError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := newStatusError(ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message, apiErr.Type)
		e.Err = err
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := newStatusError(ProviderOpenAI, reqErr.HTTPStatusCode, reqErr.Error(), "")
		e.Err = err
		return e
	}
	return &Error{Kind: KindUnknown, Provider: ProviderOpenAI, Message: err.Error(), Err: err}
}
