// README: LLM usage ledger: records provider calls and reports monthly spend.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wayfare/internal/ai"
)

// Service records LLM usage and builds monthly reports.
// It satisfies ai.UsageRecorder.
type Service struct {
	store *Store
	now   func() time.Time
}

// NewService creates a Service backed by the given Store.
func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Record stores one successful call.
func (s *Service) Record(ctx context.Context, ev ai.UsageEvent) error {
	return s.store.Insert(ctx, Event{
		ID:           uuid.New(),
		Provider:     ev.Provider,
		Model:        ev.Model,
		InputTokens:  ev.InputTokens,
		OutputTokens: ev.OutputTokens,
		CostUSD:      ev.CostUSD,
		LatencyMS:    ev.Latency.Milliseconds(),
		CreatedAt:    s.now().UTC(),
	})
}

// MonthlySummary reports spend for month ("YYYY-MM"); empty means the current UTC month.
func (s *Service) MonthlySummary(ctx context.Context, month string) (*MonthlySummary, error) {
	if month == "" {
		month = s.now().UTC().Format(MonthLayout)
	}
	start, err := time.ParseInLocation(MonthLayout, month, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}

	models, err := s.store.Summarize(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	summary := &MonthlySummary{Month: month, Models: models}
	if summary.Models == nil {
		summary.Models = []ModelSummary{}
	}
	for _, m := range models {
		summary.TotalCalls += m.Calls
		summary.TotalCostUSD += m.CostUSD
	}
	return summary, nil
}
