// README: Smoke cases for routing, recommendations, LLM and usage endpoints plus DB/Redis checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 90 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

var (
	seattle    = map[string]float64{"lat": 47.6062, "lng": -122.3321}
	tacoma     = map[string]float64{"lat": 47.2529, "lng": -122.4443}
	everett    = map[string]float64{"lat": 47.9790, "lng": -122.2021}
	bellevue   = map[string]float64{"lat": 47.6101, "lng": -122.2015}
	validRoute = map[string]any{"origin": seattle, "destination": tacoma}
	family     = map[string]any{
		"origin":     "Seattle, WA",
		"adults":     2,
		"children":   1,
		"child_ages": []int{7},
		"interests":  []string{"beaches", "food"},
		"budget":     "moderate",
	}
)

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "usage ledger DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "route cache Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables from the migration file exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),
		httpCaseMethod("API: metrics", http.MethodGet, base+"/metrics", nil, []int{200}, nil),

		// Routing
		httpCase("Routes: compute (valid)", base+"/api/routes/compute", validRoute, []int{200}, []int{502}),
		httpCase("Routes: compute (missing destination -> 400)", base+"/api/routes/compute", map[string]any{"origin": seattle}, []int{400}, nil),
		httpCase("Routes: compute (latitude 91 -> 400)", base+"/api/routes/compute", map[string]any{
			"origin":      map[string]float64{"lat": 91, "lng": 0},
			"destination": tacoma,
		}, []int{400}, nil),
		httpCase("Routes: compute (unknown mode -> 400)", base+"/api/routes/compute", map[string]any{
			"origin": seattle, "destination": tacoma, "mode": "hovercraft",
		}, []int{400}, nil),
		httpCase("Routes: matrix 1x3", base+"/api/routes/matrix", map[string]any{
			"origins":      []any{seattle},
			"destinations": []any{tacoma, everett, bellevue},
		}, []int{200}, []int{502}),
		httpCase("Routes: optimize 3 waypoints", base+"/api/routes/optimize", map[string]any{
			"origin":           seattle,
			"waypoints":        []any{tacoma, everett, bellevue},
			"return_to_origin": true,
		}, []int{200}, []int{502}),
		httpCase("Routes: optimize via matrix", base+"/api/routes/optimize", map[string]any{
			"origin":     seattle,
			"waypoints":  []any{tacoma, everett, bellevue},
			"use_matrix": true,
		}, []int{200}, []int{502}),
		httpCase("Routes: optimize via matrix (25 waypoints -> 400)", base+"/api/routes/optimize", map[string]any{
			"origin":     seattle,
			"waypoints":  repeatPoint(tacoma, 25),
			"use_matrix": true,
		}, []int{400}, nil),

		// LLM façade
		httpCaseMethod("LLM: providers", http.MethodGet, base+"/api/llm/providers", nil, []int{200}, nil),
		httpCase("LLM: chat (unknown provider -> 400)", base+"/api/llm/chat", map[string]any{
			"message": "hi", "provider": "nonexistent",
		}, []int{400}, nil),
		httpCase("LLM: chat (temperature 2 -> 400)", base+"/api/llm/chat", map[string]any{
			"message": "hi", "temperature": 2,
		}, []int{400}, nil),
		httpCase("LLM: chat (max_tokens 9000 -> 400)", base+"/api/llm/chat", map[string]any{
			"message": "hi", "max_tokens": 9000,
		}, []int{400}, nil),
		httpCaseMethod("Usage: bad month -> 400", http.MethodGet, base+"/api/llm/usage?month=2026-13", nil, []int{400}, []int{503}),
		httpCaseMethod("Usage: current month", http.MethodGet, base+"/api/llm/usage", nil, []int{200}, []int{503}),

		// Recommendations
		httpCase("Recs: destinations (no adults -> 400)", base+"/api/recommendations/destinations", map[string]any{
			"origin": "Seattle, WA",
		}, []int{400}, nil),
		httpCase("Recs: itinerary (missing destination -> 400)", base+"/api/recommendations/itinerary", map[string]any{
			"profile": family,
		}, []int{400}, nil),
		httpCase("Requirements: form extract", base+"/api/requirements/extract", map[string]any{
			"method": "form",
			"input":  mustJSON(family),
		}, []int{200}, nil),
		httpCase("Requirements: unknown method -> 400", base+"/api/requirements/extract", map[string]any{
			"method": "carrier-pigeon", "input": "hello",
		}, []int{400}, nil),
		liveCase(r.cfg, httpCase("Recs: destinations (live)", base+"/api/recommendations/destinations", family, []int{200}, []int{401, 402, 429, 502})),
		liveCase(r.cfg, httpCase("Recs: itinerary (live)", base+"/api/recommendations/itinerary", map[string]any{
			"destination": "San Diego, CA",
			"profile":     family,
		}, []int{200}, nil)),
		liveCase(r.cfg, httpCase("Requirements: text extract (live)", base+"/api/requirements/extract", map[string]any{
			"method": "text",
			"input":  "Two adults and our 7 year old from Seattle, we love beaches and food, mid-range budget.",
		}, []int{200}, []int{401, 402, 429, 502})),

		manualCase("Error: revoked provider key -> 401", "rotate a key and call /api/llm/chat with that provider"),
		manualCase("Error: Redis down -> route cache degrades to direct calls", "stop Redis and repeat Routes: compute"),

		// Concurrency
		{
			Name:  "Concurrency: same route pair in parallel",
			Focus: "route cache stays consistent under concurrent callers",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentSame(ctx, r, base+"/api/routes/compute", validRoute)
			},
		},

		// Performance
		{
			Name:  "Perf: cached route compute throughput",
			Focus: "repeat pair served from cache",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/routes/compute", validRoute)
			},
		},
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = strings.NewReader(string(b))
			}
			req, _ := http.NewRequestWithContext(ctx, method, url, reader)
			req.Header.Set("Content-Type", "application/json")
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			latency := time.Since(start)

			if contains(okStatuses, resp.StatusCode) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			if contains(pendingStatuses, resp.StatusCode) {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

// liveCase skips tc unless token-spending cases are enabled.
func liveCase(cfg Config, tc TestCase) TestCase {
	if cfg.LiveLLM {
		return tc
	}
	tc.Run = func(context.Context, *Runner) Result {
		return Result{Status: "SKIP", Note: "live-llm=false"}
	}
	return tc
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

func concurrentSame(ctx context.Context, r *Runner, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	wg := sync.WaitGroup{}
	var mu sync.Mutex
	statuses := map[int]int{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.httpc.Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			mu.Lock()
			statuses[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if statuses[http.StatusBadGateway] == r.cfg.Concurrency {
		return Result{Status: "PENDING", Note: "routing provider unavailable"}
	}
	if statuses[http.StatusOK] == r.cfg.Concurrency {
		return Result{Status: "PASS", Note: fmt.Sprintf("ok=%d", statuses[http.StatusOK])}
	}
	return Result{Status: "FAIL", Note: fmt.Sprintf("statuses=%v", statuses)}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				mu.Lock()
				if resp.StatusCode != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func repeatPoint(p map[string]float64, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
