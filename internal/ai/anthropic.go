package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicEndpoint     = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

// AnthropicProvider calls the Messages API over plain HTTP.
type AnthropicProvider struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// AnthropicOption customises an AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicEndpoint overrides the Messages API URL.
func WithAnthropicEndpoint(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.endpoint = url }
}

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// WithAnthropicHTTPClient replaces the HTTP client.
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.httpClient = c }
}

// NewAnthropicProvider returns ErrMissingAPIKey when apiKey is blank.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	p := &AnthropicProvider{
		apiKey:   apiKey,
		endpoint: anthropicEndpoint,
		model:    defaultAnthropicModel,
		// long generations routinely take tens of seconds; ctx still cancels earlier
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends req to the Messages endpoint.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	reqBody, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   req.maxTokens(),
		System:      req.System,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: ProviderAnthropic, Message: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderAnthropic, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderAnthropic, Message: "do request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderAnthropic, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb anthropicErrorBody
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		return nil, newStatusError(ProviderAnthropic, resp.StatusCode, msg, string(body))
	}

	var ar anthropicResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderAnthropic, Message: "unmarshal response", Details: string(body), Err: err}
	}

	var text strings.Builder
	for _, block := range ar.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderAnthropic, Message: "API returned no text content", Details: string(body)}
	}

	if ar.Model != "" {
		model = ar.Model
	}
	return &Response{
		Text:       text.String(),
		Provider:   ProviderAnthropic,
		Model:      model,
		StopReason: ar.StopReason,
		Usage: Usage{
			InputTokens:  clampTokens(ar.Usage.InputTokens),
			OutputTokens: clampTokens(ar.Usage.OutputTokens),
		},
	}, nil
}
