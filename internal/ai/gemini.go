package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements Provider using Google's Gemini models.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiOption customises a GeminiProvider.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model      string
	clientOpts []option.ClientOption
}

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) { s.model = model }
}

// WithGeminiClientOptions passes extra options (endpoint, http client) to the SDK.
func WithGeminiClientOptions(opts ...option.ClientOption) GeminiOption {
	return func(s *geminiSettings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// NewGeminiProvider initializes a new Gemini client.
// Returns ErrMissingAPIKey when apiKey is blank.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	s := geminiSettings{model: defaultGeminiModel}
	for _, opt := range opts {
		opt(&s)
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, s.clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: s.model}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

// Generate replays earlier turns as chat history and sends the last message.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, invalidRequest(ProviderGemini, "at least one message is required")
	}
	modelName := req.Model
	if modelName == "" {
		modelName = p.model
	}

	model := p.client.GenerativeModel(modelName)
	model.SetMaxOutputTokens(int32(req.maxTokens()))
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	session := model.StartChat()
	last := req.Messages[len(req.Messages)-1]
	for _, m := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderGemini, Message: "no response candidates from Gemini"}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return nil, &Error{Kind: KindUnknown, Provider: ProviderGemini, Message: "API returned no text content"}
	}

	out := &Response{
		Text:       text.String(),
		Provider:   ProviderGemini,
		Model:      modelName,
		StopReason: resp.Candidates[0].FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  clampTokens(int(resp.UsageMetadata.PromptTokenCount)),
			OutputTokens: clampTokens(int(resp.UsageMetadata.CandidatesTokenCount)),
		}
	}
	return out, nil
}

func classifyGeminiError(err error) *Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		e := newStatusError(ProviderGemini, gerr.Code, gerr.Message, gerr.Body)
		e.Err = err
		return e
	}
	return &Error{Kind: KindUnknown, Provider: ProviderGemini, Message: err.Error(), Err: err}
}
