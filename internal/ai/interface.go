package ai

import (
	"context"
)

// Provider names used as hints and in the auto priority order.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"

	// HintAuto lets the client pick the first configured provider that succeeds.
	HintAuto = "auto"
)

// autoPriority is the fixed order tried for HintAuto.
var autoPriority = []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini}

// Provider is one hosted LLM backend.
// Implementations must return *Error for every provider-side failure.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// UsageRecorder persists successful calls for cost reporting.
type UsageRecorder interface {
	Record(ctx context.Context, ev UsageEvent) error
}
