package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TravelerProfile captures who is travelling and what they enjoy.
type TravelerProfile struct {
	Origin         string   `json:"origin"`
	Adults         int      `json:"adults"`
	Children       int      `json:"children"`
	ChildAges      []int    `json:"child_ages,omitempty"`
	Interests      []string `json:"interests"`
	Budget         string   `json:"budget,omitempty"`
	TripLengthDays int      `json:"trip_length_days,omitempty"`
}

// Validate checks the profile is usable in a prompt.
func (p *TravelerProfile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Origin) == "" {
		errs = append(errs, errors.New("origin is required"))
	}
	if p.Adults < 1 {
		errs = append(errs, errors.New("at least one adult is required"))
	}
	if p.Children < 0 {
		errs = append(errs, errors.New("children cannot be negative"))
	}
	if len(p.ChildAges) > p.Children {
		errs = append(errs, fmt.Errorf("%d child ages given for %d children", len(p.ChildAges), p.Children))
	}
	for _, age := range p.ChildAges {
		if age < 0 || age > 17 {
			errs = append(errs, fmt.Errorf("child age %d outside [0, 17]", age))
		}
	}
	if p.TripLengthDays < 0 || p.TripLengthDays > 60 {
		errs = append(errs, fmt.Errorf("trip length %d days outside [0, 60]", p.TripLengthDays))
	}
	return errors.Join(errs...)
}

// Destination is one suggested place to visit.
type Destination struct {
	Name          string   `json:"name"`
	Country       string   `json:"country,omitempty"`
	Description   string   `json:"description"`
	WhyItFits     string   `json:"why_it_fits,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
	BestMonths    []string `json:"best_months,omitempty"`
	TravelTime    string   `json:"travel_time,omitempty"`
	EstimatedCost string   `json:"estimated_cost,omitempty"`
}

// ItineraryRequest asks for a full itinerary for one chosen destination.
type ItineraryRequest struct {
	Destination string          `json:"destination"`
	Profile     TravelerProfile `json:"profile"`
}

// Validate checks the destination and the embedded profile.
func (r *ItineraryRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Destination) == "" {
		errs = append(errs, errors.New("destination is required"))
	}
	if err := r.Profile.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("profile: %w", err))
	}
	return errors.Join(errs...)
}

// Section is one independently generated part of an itinerary.
type Section string

const (
	SectionLodging    Section = "lodging"
	SectionDining     Section = "dining"
	SectionActivities Section = "activities"
	SectionTips       Section = "tips"
)

// Sections lists itinerary sections in display order.
var Sections = []Section{SectionLodging, SectionDining, SectionActivities, SectionTips}

// Title is the capitalised section name used in user-facing text.
func (s Section) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Placeholder is the text shown when a section could not be generated.
func (s Section) Placeholder() string {
	return s.Title() + " recommendations are temporarily unavailable. Please try again later."
}

// ItineraryBundle is built once per request and never mutated afterwards.
type ItineraryBundle struct {
	ID          uuid.UUID `json:"id"`
	Destination string    `json:"destination"`
	Lodging     string    `json:"lodging"`
	Dining      string    `json:"dining"`
	Activities  string    `json:"activities"`
	Tips        string    `json:"tips"`
	GeneratedAt time.Time `json:"generated_at"`
	// Failed lists sections that hold placeholder text.
	Failed []Section `json:"failed_sections"`
}

// ModelChoice is one entry in the fallback list.
type ModelChoice struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (m ModelChoice) String() string { return m.Provider + "/" + m.Model }

// ParseModelChoices reads "provider/model" entries, keeping their order.
func ParseModelChoices(entries []string) ([]ModelChoice, error) {
	out := make([]ModelChoice, 0, len(entries))
	for _, e := range entries {
		provider, model, ok := strings.Cut(strings.TrimSpace(e), "/")
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("model %q: expected provider/model", e)
		}
		out = append(out, ModelChoice{Provider: strings.ToLower(provider), Model: model})
	}
	return out, nil
}
