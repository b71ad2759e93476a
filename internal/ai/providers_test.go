package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func userRequest(text string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: text}}}
}

func TestNewProvidersRequireKey(t *testing.T) {
	_, err := NewAnthropicProvider("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewOpenAIProvider(" ")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewGeminiProvider(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAnthropicGenerate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"claude-3-5-haiku-20241022","stop_reason":"end_turn",
			"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}],
			"usage":{"input_tokens":12,"output_tokens":5}}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("sk-test", WithAnthropicEndpoint(srv.URL))
	require.NoError(t, err)

	req := userRequest("hi")
	req.System = "be brief"
	req.Temperature = Temperature(0.3)
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, ProviderAnthropic, resp.Provider)
	assert.Equal(t, "claude-3-5-haiku-20241022", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 5}, resp.Usage)

	assert.Equal(t, defaultAnthropicModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.Equal(t, "be brief", got.System)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
}

func TestAnthropicGenerateClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"auth", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, ErrAuthentication},
		{"rate", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`, ErrRateLimit},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, ErrServer},
		{"bad request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`, ErrInvalidRequest},
		{"non-json body", 502, `<html>bad gateway</html>`, ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, err := NewAnthropicProvider("k", WithAnthropicEndpoint(srv.URL))
			require.NoError(t, err)
			_, err = p.Generate(context.Background(), userRequest("hi"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.status, e.StatusCode)
			assert.Equal(t, tt.body, e.Details)
		})
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-openai", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini-2024-07-18",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":20,"completion_tokens":4,"total_tokens":24}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-openai", WithOpenAIBaseURL(srv.URL))
	require.NoError(t, err)

	req := userRequest("give me json")
	req.System = "system prompt"
	req.JSONMode = true
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 20, OutputTokens: 4}, resp.Usage)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
}

func TestOpenAIGenerateSendsZeroTemperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("k", WithOpenAIBaseURL(srv.URL))
	require.NoError(t, err)

	req := userRequest("extract")
	req.Temperature = Temperature(0)
	_, err = p.Generate(context.Background(), req)
	require.NoError(t, err)

	temp, ok := got["temperature"]
	require.True(t, ok, "temperature missing from request body")
	assert.InDelta(t, 0, temp.(float64), 1e-6)

	// Unset temperature stays off the wire.
	got = nil
	_, err = p.Generate(context.Background(), userRequest("chat"))
	require.NoError(t, err)
	_, ok = got["temperature"]
	assert.False(t, ok)
}

func TestOpenAIGenerateClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrAuthentication},
		{429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, ErrQuotaExceeded},
		{429, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, ErrRateLimit},
		{500, `{"error":{"message":"server had an error","type":"server_error"}}`, ErrServer},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		}))

		p, err := NewOpenAIProvider("k", WithOpenAIBaseURL(srv.URL))
		require.NoError(t, err)
		_, err = p.Generate(context.Background(), userRequest("hi"))
		assert.ErrorIs(t, err, tt.want, "status=%d body=%s", tt.status, tt.body)
		srv.Close()
	}
}

// redirectTransport sends every request to the test server regardless of host.
type redirectTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t redirectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	r.Host = t.target.Host
	return t.base.RoundTrip(r)
}

func newTestGemini(t *testing.T, srv *httptest.Server) *GeminiProvider {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	hc := &http.Client{Transport: redirectTransport{target: target, base: srv.Client().Transport}}

	p, err := NewGeminiProvider(context.Background(), "gm-test",
		WithGeminiClientOptions(option.WithHTTPClient(hc)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestGeminiGenerate(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"[\"Kyoto\","},{"text":"\"Osaka\"]"}]},
			"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":31,"candidatesTokenCount":9,"totalTokenCount":40}}`))
	}))
	defer srv.Close()

	p := newTestGemini(t, srv)
	req := Request{
		System: "travel agent",
		Messages: []Message{
			{Role: RoleUser, Content: "suggest somewhere"},
			{Role: RoleAssistant, Content: "where from?"},
			{Role: RoleUser, Content: "from Tokyo, as json"},
		},
		JSONMode:    true,
		MaxTokens:   256,
		Temperature: Temperature(0.2),
	}
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, `["Kyoto","Osaka"]`, resp.Text)
	assert.Equal(t, ProviderGemini, resp.Provider)
	assert.Equal(t, defaultGeminiModel, resp.Model)
	assert.Equal(t, "FinishReasonStop", resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 31, OutputTokens: 9}, resp.Usage)

	assert.True(t, strings.HasSuffix(path, "models/"+defaultGeminiModel+":generateContent"), path)

	contents := got["contents"].([]any)
	require.Len(t, contents, 3)
	wantRoles := []string{"user", "model", "user"}
	for i, c := range contents {
		assert.Equal(t, wantRoles[i], c.(map[string]any)["role"], "content %d", i)
	}
	last := contents[2].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "from Tokyo, as json", last["text"])

	sys := got["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "travel agent", sys["text"])

	cfg := got["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.EqualValues(t, 256, cfg["maxOutputTokens"])
	assert.InDelta(t, 0.2, cfg["temperature"].(float64), 1e-6)
}

func TestGeminiGenerateNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	_, err := newTestGemini(t, srv).Generate(context.Background(), userRequest("hi"))
	var e *Error
	require.True(t, errors.As(err, &e), "got %v", err)
	assert.Equal(t, KindUnknown, e.Kind)
	assert.Equal(t, ProviderGemini, e.Provider)
}

func TestGeminiGenerateWithoutMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := newTestGemini(t, srv).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGeminiGenerateClassifiesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	_, err := newTestGemini(t, srv).Generate(context.Background(), userRequest("hi"))
	var e *Error
	require.True(t, errors.As(err, &e), "got %v", err)
	assert.Equal(t, ProviderGemini, e.Provider)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode)
}
