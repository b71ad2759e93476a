// README: Provider-polymorphic LLM facade: request validation, provider selection, metrics and usage reporting.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wayfare/internal/metrics"
)

// Client fronts the configured providers. It is safe for concurrent use.
type Client struct {
	providers map[string]Provider
	order     []string
	recorder  UsageRecorder
	logger    *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithUsageRecorder reports every successful call to r.
func WithUsageRecorder(r UsageRecorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds the facade. Nil providers are ignored so callers can pass
// the result of optional constructors directly; zero usable providers is an error.
func NewClient(providers []Provider, opts ...ClientOption) (*Client, error) {
	c := &Client{providers: make(map[string]Provider), logger: slog.Default()}
	var extra []string
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if _, dup := c.providers[name]; dup {
			return nil, fmt.Errorf("duplicate llm provider %q", name)
		}
		c.providers[name] = p
		if !isPriorityProvider(name) {
			extra = append(extra, name)
		}
	}
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}
	for _, name := range autoPriority {
		if _, ok := c.providers[name]; ok {
			c.order = append(c.order, name)
		}
	}
	c.order = append(c.order, extra...)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func isPriorityProvider(name string) bool {
	for _, n := range autoPriority {
		if n == name {
			return true
		}
	}
	return false
}

// AvailableProviders lists configured providers in auto priority order.
func (c *Client) AvailableProviders() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Has reports whether the named provider is configured.
func (c *Client) Has(name string) bool {
	_, ok := c.providers[name]
	return ok
}

// GenerateText validates req and sends it to the provider selected by hint.
// "auto" (or empty) walks the priority list and returns the first success; a named
// hint uses only that provider.
func (c *Client) GenerateText(ctx context.Context, req Request, hint string) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	candidates, err := c.resolve(hint)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i, p := range candidates {
		resp, err := c.call(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(candidates)-1 {
			c.logger.WarnContext(ctx, "llm provider failed, trying next",
				slog.String("provider", p.Name()),
				slog.String("kind", string(KindOf(err))),
				slog.Any("error", err))
		}
	}
	return nil, lastErr
}

// ChatOption tweaks a Chat call.
type ChatOption func(*chatSettings)

type chatSettings struct {
	hint        string
	model       string
	maxTokens   int
	temperature *float64
}

// WithProvider selects a provider hint (default "auto").
func WithProvider(hint string) ChatOption {
	return func(s *chatSettings) { s.hint = hint }
}

// WithModel overrides the provider's default model.
func WithModel(model string) ChatOption {
	return func(s *chatSettings) { s.model = model }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) ChatOption {
	return func(s *chatSettings) { s.maxTokens = n }
}

// WithTemperature sets sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(s *chatSettings) { s.temperature = &t }
}

// Chat sends a single user message and returns the reply text.
func (c *Client) Chat(ctx context.Context, message, systemPrompt string, opts ...ChatOption) (string, error) {
	s := chatSettings{hint: HintAuto}
	for _, opt := range opts {
		opt(&s)
	}
	resp, err := c.GenerateText(ctx, Request{
		Messages:    []Message{{Role: RoleUser, Content: message}},
		System:      systemPrompt,
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}, s.hint)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *Client) resolve(hint string) ([]Provider, error) {
	if hint == "" || hint == HintAuto {
		out := make([]Provider, 0, len(c.order))
		for _, name := range c.order {
			out = append(out, c.providers[name])
		}
		return out, nil
	}
	p, ok := c.providers[hint]
	if !ok {
		return nil, invalidRequest("", fmt.Sprintf("provider %q is not configured (available: %v)", hint, c.order))
	}
	return []Provider{p}, nil
}

func (c *Client) call(ctx context.Context, p Provider, req Request) (*Response, error) {
	ctx, span := otel.Tracer("wayfare/ai").Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.provider", p.Name()), attribute.String("llm.model", req.Model))

	start := time.Now()
	resp, err := p.Generate(ctx, req)
	elapsed := time.Since(start)

	model := req.Model
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}
	if model == "" {
		model = "default"
	}
	metrics.LLMLatency.WithLabelValues(p.Name(), model).Observe(elapsed.Seconds())

	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			err = &Error{Kind: KindUnknown, Provider: p.Name(), Message: err.Error(), Err: err}
		}
		metrics.LLMRequests.WithLabelValues(p.Name(), model, string(KindOf(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}

	resp.Latency = elapsed
	resp.EstimatedCostUSD = EstimateCost(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	metrics.LLMRequests.WithLabelValues(p.Name(), model, "ok").Inc()
	metrics.LLMTokens.WithLabelValues(p.Name(), model, "input").Add(float64(resp.Usage.InputTokens))
	metrics.LLMTokens.WithLabelValues(p.Name(), model, "output").Add(float64(resp.Usage.OutputTokens))
	metrics.LLMCostUSD.WithLabelValues(p.Name(), model).Add(resp.EstimatedCostUSD)
	span.SetAttributes(
		attribute.String("llm.model", resp.Model),
		attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
	)

	if c.recorder != nil {
		ev := UsageEvent{
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostUSD:      resp.EstimatedCostUSD,
			Latency:      elapsed,
		}
		if rerr := c.recorder.Record(ctx, ev); rerr != nil {
			c.logger.WarnContext(ctx, "failed to record llm usage", slog.String("provider", ev.Provider), slog.Any("error", rerr))
		}
	}
	return resp, nil
}
