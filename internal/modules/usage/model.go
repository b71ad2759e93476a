package usage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMonth is returned when a month filter is not in YYYY-MM form.
var ErrInvalidMonth = errors.New("month must be formatted as YYYY-MM")

// MonthLayout is the accepted month format.
const MonthLayout = "2006-01"

// Event is one recorded LLM call.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	LatencyMS    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelSummary aggregates one provider/model pair.
type ModelSummary struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Calls        int64   `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// MonthlySummary is the spend report for one calendar month (UTC).
type MonthlySummary struct {
	Month        string         `json:"month"`
	Models       []ModelSummary `json:"models"`
	TotalCalls   int64          `json:"total_calls"`
	TotalCostUSD float64        `json:"total_cost_usd"`
}
