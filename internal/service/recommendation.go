package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"wayfare/internal/ai"
	"wayfare/internal/metrics"
)

// ErrNoUsableModels is returned when none of the fallback models has a configured provider.
var ErrNoUsableModels = errors.New("no fallback model has a configured provider")

// DefaultFallbackModels is the priority list used when none is configured.
var DefaultFallbackModels = []ModelChoice{
	{Provider: ai.ProviderAnthropic, Model: "claude-sonnet-4-20250514"},
	{Provider: ai.ProviderAnthropic, Model: "claude-3-5-haiku-20241022"},
	{Provider: ai.ProviderOpenAI, Model: "gpt-4o-mini"},
	{Provider: ai.ProviderGemini, Model: "gemini-2.0-flash"},
}

const (
	destinationMaxTokens = 2048
	sectionMaxTokens     = 1500
)

// RecommendationService turns traveller profiles into destination suggestions and itineraries.
type RecommendationService struct {
	llm    *ai.Client
	models []ModelChoice
	logger *slog.Logger
	now    func() time.Time
}

// NewRecommendationService keeps only the models whose provider is configured on llm,
// preserving their order.
func NewRecommendationService(llm *ai.Client, models []ModelChoice, logger *slog.Logger) (*RecommendationService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(models) == 0 {
		models = DefaultFallbackModels
	}
	var usable []ModelChoice
	for _, m := range models {
		if llm.Has(m.Provider) {
			usable = append(usable, m)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoUsableModels
	}
	return &RecommendationService{llm: llm, models: usable, logger: logger, now: time.Now}, nil
}

// Models returns the effective fallback list.
func (s *RecommendationService) Models() []ModelChoice {
	return append([]ModelChoice(nil), s.models...)
}

// withFallback tries each model in order and stops at the first success.
// Any error moves on; when the list is exhausted the last error is returned.
func withFallback[T any](ctx context.Context, s *RecommendationService, operation string, fn func(context.Context, ModelChoice) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, m := range s.models {
		out, err := fn(ctx, m)
		if err == nil {
			return out, nil
		}
		lastErr = fmt.Errorf("%s: %w", m, err)
		if ctx.Err() != nil {
			break
		}
		metrics.ModelFallbacks.WithLabelValues(operation, m.Model).Inc()
		if i < len(s.models)-1 {
			s.logger.WarnContext(ctx, "model failed, falling back",
				slog.String("operation", operation),
				slog.String("model", m.String()),
				slog.String("next", s.models[i+1].String()),
				slog.Any("error", err))
		}
	}
	return zero, lastErr
}

// SuggestDestinations asks for destination ideas matching the profile.
func (s *RecommendationService) SuggestDestinations(ctx context.Context, profile TravelerProfile) ([]Destination, error) {
	if err := profile.Validate(); err != nil {
		return nil, &ai.Error{Kind: ai.KindInvalidRequest, Message: err.Error(), Err: err}
	}

	ctx, span := otel.Tracer("wayfare/service").Start(ctx, "recommendations.destinations")
	defer span.End()

	prompt := buildDestinationPrompt(profile, s.now())
	dests, err := withFallback(ctx, s, "destinations", func(ctx context.Context, m ModelChoice) ([]Destination, error) {
		var decoded []Destination
		_, _, err := ai.GenerateJSON(ctx, s.llm, ai.Request{
			Messages:    []ai.Message{{Role: ai.RoleUser, Content: prompt}},
			System:      plannerSystemPrompt,
			Model:       m.Model,
			MaxTokens:   destinationMaxTokens,
			Temperature: ai.Temperature(0.7),
		}, m.Provider, func(raw *json.RawMessage) error {
			d, err := decodeDestinations(*raw)
			decoded = d
			return err
		})
		return decoded, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "all models failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("destinations.count", len(dests)))
	return dests, nil
}

// decodeDestinations accepts a bare array or an object wrapping one.
func decodeDestinations(raw json.RawMessage) ([]Destination, error) {
	var list []Destination
	if err := json.Unmarshal(raw, &list); err != nil {
		var obj map[string]json.RawMessage
		if objErr := json.Unmarshal(raw, &obj); objErr != nil {
			return nil, fmt.Errorf("expected a JSON array of destinations: %w", err)
		}
		inner, ok := wrappedArray(obj)
		if !ok {
			return nil, errors.New("response object does not contain a destinations array")
		}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, fmt.Errorf("decode destinations: %w", err)
		}
	}
	if len(list) == 0 {
		return nil, errors.New("no destinations returned")
	}
	for i, d := range list {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("destination %d has no name", i)
		}
	}
	return list, nil
}

func wrappedArray(obj map[string]json.RawMessage) (json.RawMessage, bool) {
	for _, key := range []string{"destinations", "suggestions", "results"} {
		if v, ok := obj[key]; ok {
			return v, true
		}
	}
	// otherwise accept the only array-valued field
	var found json.RawMessage
	for _, v := range obj {
		trimmed := strings.TrimSpace(string(v))
		if strings.HasPrefix(trimmed, "[") {
			if found != nil {
				return nil, false
			}
			found = v
		}
	}
	return found, found != nil
}

// GenerateItinerary builds all four sections concurrently. A section that fails on
// every model holds placeholder text and is listed in Failed; the bundle is always returned.
func (s *RecommendationService) GenerateItinerary(ctx context.Context, req ItineraryRequest) *ItineraryBundle {
	ctx, span := otel.Tracer("wayfare/service").Start(ctx, "recommendations.itinerary")
	defer span.End()
	span.SetAttributes(attribute.String("itinerary.destination", req.Destination))

	now := s.now()
	texts := make([]string, len(Sections))
	failed := make([]bool, len(Sections))

	// sections never return errors, so one failure can't cancel the others
	var g errgroup.Group
	for i, section := range Sections {
		g.Go(func() error {
			text, err := s.generateSection(ctx, section, req, now)
			if err != nil {
				metrics.ItinerarySectionFailures.WithLabelValues(string(section)).Inc()
				s.logger.ErrorContext(ctx, "itinerary section failed on every model",
					slog.String("section", string(section)), slog.Any("error", err))
				texts[i] = section.Placeholder()
				failed[i] = true
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	bundle := &ItineraryBundle{
		ID:          uuid.New(),
		Destination: req.Destination,
		Lodging:     texts[0],
		Dining:      texts[1],
		Activities:  texts[2],
		Tips:        texts[3],
		GeneratedAt: now.UTC(),
		Failed:      []Section{},
	}
	for i, f := range failed {
		if f {
			bundle.Failed = append(bundle.Failed, Sections[i])
		}
	}
	span.SetAttributes(attribute.Int("itinerary.failed_sections", len(bundle.Failed)))
	return bundle
}

func (s *RecommendationService) generateSection(ctx context.Context, section Section, req ItineraryRequest, now time.Time) (string, error) {
	ctx, span := otel.Tracer("wayfare/service").Start(ctx, "itinerary.section")
	defer span.End()
	span.SetAttributes(attribute.String("itinerary.section", string(section)))

	prompt := buildSectionPrompt(section, req, now)
	text, err := withFallback(ctx, s, "itinerary_"+string(section), func(ctx context.Context, m ModelChoice) (string, error) {
		resp, err := s.llm.GenerateText(ctx, ai.Request{
			Messages:    []ai.Message{{Role: ai.RoleUser, Content: prompt}},
			System:      plannerSystemPrompt,
			Model:       m.Model,
			MaxTokens:   sectionMaxTokens,
			Temperature: ai.Temperature(0.7),
		}, m.Provider)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", &ai.Error{Kind: ai.KindUnknown, Provider: resp.Provider, Message: "empty section text"}
		}
		return text, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "all models failed")
	}
	return text, err
}
