package ai

import (
	"context"
	"errors"
	"strings"
)

// Keys holds the provider API keys; blank keys leave that provider out.
type Keys struct {
	Anthropic string
	OpenAI    string
	Gemini    string
}

// NewProviders builds one provider per non-blank key in auto-priority order.
// The returned close func releases SDK resources and is safe to call when err != nil.
func NewProviders(ctx context.Context, keys Keys) ([]Provider, func() error, error) {
	var (
		providers []Provider
		closers   []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if strings.TrimSpace(keys.Anthropic) != "" {
		p, err := NewAnthropicProvider(keys.Anthropic)
		if err != nil {
			return nil, closeAll, err
		}
		providers = append(providers, p)
	}
	if strings.TrimSpace(keys.OpenAI) != "" {
		p, err := NewOpenAIProvider(keys.OpenAI)
		if err != nil {
			return nil, closeAll, err
		}
		providers = append(providers, p)
	}
	if strings.TrimSpace(keys.Gemini) != "" {
		p, err := NewGeminiProvider(ctx, keys.Gemini)
		if err != nil {
			return nil, closeAll, err
		}
		providers = append(providers, p)
		closers = append(closers, p.Close)
	}

	if len(providers) == 0 {
		return nil, closeAll, ErrNoProviders
	}
	return providers, closeAll, nil
}
