package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"wayfare/internal/ai"
)

// ErrUnknownExtractor is returned for an input method with no registered extractor.
var ErrUnknownExtractor = errors.New("unknown input method")

// Extractor turns one kind of user input into a TravelerProfile.
type Extractor interface {
	ExtractRequirements(ctx context.Context, input string) (*TravelerProfile, error)
}

// ExtractorRegistry maps an input method ("form", "text") to its extractor.
type ExtractorRegistry map[string]Extractor

// NewExtractorRegistry registers the form extractor, plus the free-text one when llm is set.
func NewExtractorRegistry(llm *ai.Client) ExtractorRegistry {
	r := ExtractorRegistry{"form": FormExtractor{}}
	if llm != nil {
		r["text"] = &TextExtractor{llm: llm, hint: ai.HintAuto}
	}
	return r
}

// Methods lists registered keys in sorted order.
func (r ExtractorRegistry) Methods() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Extract dispatches input to the extractor registered for method.
func (r ExtractorRegistry) Extract(ctx context.Context, method, input string) (*TravelerProfile, error) {
	ex, ok := r[method]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownExtractor, method, strings.Join(r.Methods(), ", "))
	}
	return ex.ExtractRequirements(ctx, input)
}

// FormExtractor decodes a structured form submission.
type FormExtractor struct{}

func (FormExtractor) ExtractRequirements(_ context.Context, input string) (*TravelerProfile, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(input)))
	dec.DisallowUnknownFields()
	var p TravelerProfile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	normalizeProfile(&p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// TextExtractor asks the LLM to pull a profile out of free text.
type TextExtractor struct {
	llm  *ai.Client
	hint string
}

func (e *TextExtractor) ExtractRequirements(ctx context.Context, input string) (*TravelerProfile, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("input text is empty")
	}
	p, _, err := ai.GenerateJSON(ctx, e.llm, ai.Request{
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: fmt.Sprintf(extractionPrompt, input)}},
		MaxTokens:   512,
		Temperature: ai.Temperature(0),
	}, e.hint, func(p *TravelerProfile) error {
		normalizeProfile(p)
		return p.Validate()
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func normalizeProfile(p *TravelerProfile) {
	p.Origin = strings.TrimSpace(p.Origin)
	p.Budget = strings.ToLower(strings.TrimSpace(p.Budget))
	interests := p.Interests[:0]
	seen := make(map[string]bool, len(p.Interests))
	for _, in := range p.Interests {
		in = strings.ToLower(strings.TrimSpace(in))
		if in == "" || seen[in] {
			continue
		}
		seen[in] = true
		interests = append(interests, in)
	}
	p.Interests = interests
}
