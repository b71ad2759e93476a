package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store handles usage_events persistence.
type Store struct {
	db DB
}

// NewStore returns a Store backed by the given connection pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Insert appends one event.
func (s *Store) Insert(ctx context.Context, ev Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO usage_events (id, provider, model, input_tokens, output_tokens, cost_usd, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.Provider, ev.Model, ev.InputTokens, ev.OutputTokens, ev.CostUSD, ev.LatencyMS, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// Summarize aggregates events with from <= created_at < to, grouped by provider and model.
func (s *Store) Summarize(ctx context.Context, from, to time.Time) ([]ModelSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT provider, model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)::float8
		FROM usage_events
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY provider, model
		ORDER BY provider, model
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var m ModelSummary
		if err := rows.Scan(&m.Provider, &m.Model, &m.Calls, &m.InputTokens, &m.OutputTokens, &m.CostUSD); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage summary: %w", err)
	}
	return out, nil
}
