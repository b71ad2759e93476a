package ai

import (
	"fmt"
	"strings"
	"time"
)

// MaxTokensCeiling is the hard upper bound accepted for Request.MaxTokens.
const MaxTokensCeiling = 8192

// DefaultMaxTokens is used when a request leaves MaxTokens at zero.
const DefaultMaxTokens = 2048

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral generation request.
type Request struct {
	// Messages in conversation order; the last one is the prompt being answered.
	Messages []Message `json:"messages"`
	System   string    `json:"system,omitempty"`
	// Model overrides the provider's default model when set.
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	// Temperature is optional; nil leaves the provider default.
	Temperature *float64 `json:"temperature,omitempty"`
	// JSONMode asks providers that support it to constrain output to JSON.
	JSONMode bool `json:"-"`
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(v float64) *float64 { return &v }

// Validate checks the request bounds.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return invalidRequest("", "at least one message is required")
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return invalidRequest("", fmt.Sprintf("message %d: unsupported role %q", i, m.Role))
		}
		if strings.TrimSpace(m.Content) == "" {
			return invalidRequest("", fmt.Sprintf("message %d: empty content", i))
		}
	}
	if r.MaxTokens < 0 || r.MaxTokens > MaxTokensCeiling {
		return invalidRequest("", fmt.Sprintf("max_tokens must be within [0, %d], got %d", MaxTokensCeiling, r.MaxTokens))
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return invalidRequest("", fmt.Sprintf("temperature must be within [0, 1], got %g", *r.Temperature))
	}
	return nil
}

func (r Request) maxTokens() int {
	if r.MaxTokens == 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a provider-neutral generation result.
type Response struct {
	Text             string        `json:"text"`
	Usage            Usage         `json:"usage"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	StopReason       string        `json:"stop_reason,omitempty"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Latency          time.Duration `json:"-"`
}

// UsageEvent is what the client reports to a UsageRecorder after a successful call.
type UsageEvent struct {
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Latency      time.Duration
}

func clampTokens(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
