package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/ai"
	"wayfare/internal/http/handlers"
	"wayfare/internal/maps"
	"wayfare/internal/modules/usage"
	"wayfare/internal/service"
	"wayfare/internal/types"
)

// lineRouter measures distance along longitude only.
type lineRouter struct {
	err         error
	matrixCalls atomic.Int32
}

func (r *lineRouter) ComputeRoute(_ context.Context, a, b types.GeoPoint, _ maps.RouteOptions) (*maps.RouteResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := types.ValidatePoints([]types.GeoPoint{a, b}); err != nil {
		return nil, err
	}
	d := int(abs(a.Lng-b.Lng) * 100000)
	return &maps.RouteResult{DistanceMeters: d, DurationSeconds: d / 10, DistanceText: maps.FormatDistance(d)}, nil
}

func (r *lineRouter) ComputeMatrix(ctx context.Context, origins, dests []types.GeoPoint, opts maps.RouteOptions) (maps.RouteMatrix, error) {
	r.matrixCalls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	m := make(maps.RouteMatrix, len(origins))
	for i, o := range origins {
		m[i] = make([]*maps.RouteResult, len(dests))
		for j, d := range dests {
			if i == 0 && j == len(dests)-1 {
				continue // unreachable cell
			}
			m[i][j], _ = r.ComputeRoute(ctx, o, d, opts)
		}
	}
	return m, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// echoProvider answers every request; failWith makes it fail instead.
type echoProvider struct {
	name     string
	reply    func(ai.Request) string
	failWith error
}

func (p *echoProvider) Name() string { return p.name }

func (p *echoProvider) Generate(_ context.Context, req ai.Request) (*ai.Response, error) {
	if p.failWith != nil {
		return nil, p.failWith
	}
	return &ai.Response{
		Text:     p.reply(req),
		Provider: p.name,
		Model:    req.Model,
		Usage:    ai.Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

type stubUsage struct {
	summary *usage.MonthlySummary
	err     error
	month   string
}

func (s *stubUsage) MonthlySummary(_ context.Context, month string) (*usage.MonthlySummary, error) {
	s.month = month
	return s.summary, s.err
}

type fixture struct {
	engine *gin.Engine
	router *lineRouter
}

func newFixture(t *testing.T, provider *echoProvider, reporter handlers.UsageReporter) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	llm, err := ai.NewClient([]ai.Provider{provider})
	require.NoError(t, err)
	recs, err := service.NewRecommendationService(llm, []service.ModelChoice{{Provider: provider.name, Model: "m1"}}, nil)
	require.NoError(t, err)

	router := &lineRouter{}
	optimizer := service.NewRouteOptimizer(router, router, nil)

	rh := handlers.NewRouteHandler(router, optimizer)
	rec := handlers.NewRecommendationHandler(recs, service.NewExtractorRegistry(llm))
	lh := handlers.NewLLMHandler(llm, reporter)

	r := gin.New()
	r.POST("/api/routes/compute", rh.Compute)
	r.POST("/api/routes/matrix", rh.Matrix)
	r.POST("/api/routes/optimize", rh.Optimize)
	r.POST("/api/recommendations/destinations", rec.Destinations)
	r.POST("/api/recommendations/itinerary", rec.Itinerary)
	r.POST("/api/requirements/extract", rec.Extract)
	r.POST("/api/llm/chat", lh.Chat)
	r.GET("/api/llm/providers", lh.Providers)
	r.GET("/api/llm/usage", lh.Usage)
	return &fixture{engine: r, router: router}
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func staticProvider(text string) *echoProvider {
	return &echoProvider{name: ai.ProviderAnthropic, reply: func(ai.Request) string { return text }}
}

func TestComputeRoute(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)

	w := doRequest(f.engine, http.MethodPost, "/api/routes/compute", map[string]any{
		"origin":      map[string]float64{"lat": 0, "lng": 0},
		"destination": map[string]float64{"lat": 0, "lng": 0.2},
		"mode":        "walking",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 20000, decode(t, w)["distance_meters"])
}

func TestComputeRouteBadInput(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing destination", map[string]any{"origin": map[string]float64{"lat": 1, "lng": 1}}, http.StatusBadRequest},
		{"bad mode", map[string]any{
			"origin":      map[string]float64{"lat": 1, "lng": 1},
			"destination": map[string]float64{"lat": 1, "lng": 2},
			"mode":        "teleport",
		}, http.StatusBadRequest},
		{"bad coordinate", map[string]any{
			"origin":      map[string]float64{"lat": 91, "lng": 1},
			"destination": map[string]float64{"lat": 1, "lng": 2},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(f.engine, http.MethodPost, "/api/routes/compute", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestComputeRouteErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{maps.ErrNoRouteFound, http.StatusNotFound},
		{&maps.ProviderError{StatusCode: 403, Body: "denied"}, http.StatusBadGateway},
		{maps.ErrEmptyMatrix, http.StatusBadGateway},
		{errors.New("socket closed"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		f := newFixture(t, staticProvider("ok"), nil)
		f.router.err = tt.err
		w := doRequest(f.engine, http.MethodPost, "/api/routes/compute", map[string]any{
			"origin":      map[string]float64{"lat": 0, "lng": 0},
			"destination": map[string]float64{"lat": 0, "lng": 1},
		})
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestComputeMatrixNullCells(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)

	w := doRequest(f.engine, http.MethodPost, "/api/routes/matrix", map[string]any{
		"origins":      []map[string]float64{{"lat": 0, "lng": 0}},
		"destinations": []map[string]float64{{"lat": 0, "lng": 0.1}, {"lat": 0, "lng": 0.2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decode(t, w)["rows"].([]any)
	require.Len(t, rows, 1)
	cells := rows[0].([]any)
	assert.NotNil(t, cells[0])
	assert.Nil(t, cells[1])

	w = doRequest(f.engine, http.MethodPost, "/api/routes/matrix", map[string]any{"origins": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOptimize(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)
	body := map[string]any{
		"origin": map[string]float64{"lat": 0, "lng": 0},
		"waypoints": []map[string]float64{
			{"lat": 0, "lng": 0.3},
			{"lat": 0, "lng": 0.1},
			{"lat": 0, "lng": 0.2},
		},
	}

	w := doRequest(f.engine, http.MethodPost, "/api/routes/optimize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{1.0, 2.0, 0.0}, decode(t, w)["visit_order"])
	assert.Zero(t, f.router.matrixCalls.Load())

	body["use_matrix"] = true
	w = doRequest(f.engine, http.MethodPost, "/api/routes/optimize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["visit_order"], 3)
	assert.EqualValues(t, 1, f.router.matrixCalls.Load())
}

func TestOptimizeTooManyWaypointsForMatrix(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)
	wps := make([]map[string]float64, service.MaxMatrixWaypoints+1)
	for i := range wps {
		wps[i] = map[string]float64{"lat": 0, "lng": float64(i) / 100}
	}
	w := doRequest(f.engine, http.MethodPost, "/api/routes/optimize", map[string]any{
		"origin":     map[string]float64{"lat": 0, "lng": 0},
		"waypoints":  wps,
		"use_matrix": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDestinations(t *testing.T) {
	f := newFixture(t, staticProvider(`[{"name":"Lisbon","country":"Portugal","description":"Hills and tiles."}]`), nil)

	w := doRequest(f.engine, http.MethodPost, "/api/recommendations/destinations", map[string]any{
		"origin": "Boston", "adults": 2, "interests": []string{"food"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dests := decode(t, w)["destinations"].([]any)
	require.Len(t, dests, 1)
	assert.Equal(t, "Lisbon", dests[0].(map[string]any)["name"])

	w = doRequest(f.engine, http.MethodPost, "/api/recommendations/destinations", map[string]any{"origin": "Boston"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(ai.KindInvalidRequest), decode(t, w)["kind"])
}

func TestDestinationsProviderErrors(t *testing.T) {
	tests := []struct {
		kind ai.ErrorKind
		want int
	}{
		{ai.KindAuthentication, http.StatusUnauthorized},
		{ai.KindRateLimit, http.StatusTooManyRequests},
		{ai.KindQuotaExceeded, http.StatusPaymentRequired},
		{ai.KindServer, http.StatusBadGateway},
		{ai.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		p := &echoProvider{name: ai.ProviderOpenAI, failWith: &ai.Error{Kind: tt.kind, Provider: ai.ProviderOpenAI, Message: "nope"}}
		f := newFixture(t, p, nil)
		w := doRequest(f.engine, http.MethodPost, "/api/recommendations/destinations", map[string]any{
			"origin": "Boston", "adults": 1,
		})
		assert.Equal(t, tt.want, w.Code, string(tt.kind))
	}
}

func TestItineraryDegradesInsteadOfFailing(t *testing.T) {
	p := &echoProvider{name: ai.ProviderGemini, failWith: &ai.Error{Kind: ai.KindServer, Message: "down"}}
	f := newFixture(t, p, nil)

	w := doRequest(f.engine, http.MethodPost, "/api/recommendations/itinerary", map[string]any{
		"destination": "Kyoto",
		"profile":     map[string]any{"origin": "Boston", "adults": 2},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Len(t, body["failed_sections"], 4)
	assert.Equal(t, service.SectionDining.Placeholder(), body["dining"])

	w = doRequest(f.engine, http.MethodPost, "/api/recommendations/itinerary", map[string]any{"destination": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtract(t *testing.T) {
	f := newFixture(t, staticProvider(`{"origin":"Chicago","adults":1,"interests":["Jazz"]}`), nil)

	w := doRequest(f.engine, http.MethodPost, "/api/requirements/extract", map[string]any{
		"method": "text", "input": "solo trip from Chicago, love jazz",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decode(t, w)["profile"].(map[string]any)
	assert.Equal(t, "Chicago", profile["origin"])
	assert.Equal(t, []any{"jazz"}, profile["interests"])

	w = doRequest(f.engine, http.MethodPost, "/api/requirements/extract", map[string]any{
		"method": "form", "input": `{"origin":"Chicago","adults":0}`,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(f.engine, http.MethodPost, "/api/requirements/extract", map[string]any{
		"method": "voice", "input": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "available: form, text")
}

func TestChat(t *testing.T) {
	var got ai.Request
	p := &echoProvider{name: ai.ProviderAnthropic, reply: func(req ai.Request) string {
		got = req
		return "Try Porto."
	}}
	f := newFixture(t, p, nil)

	w := doRequest(f.engine, http.MethodPost, "/api/llm/chat", map[string]any{
		"message": " where next? ", "system": "be brief", "provider": "Anthropic", "temperature": 0.2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Try Porto.", body["reply"])
	assert.Equal(t, ai.ProviderAnthropic, body["provider"])
	assert.Equal(t, "where next?", got.Messages[0].Content)
	assert.Equal(t, "be brief", got.System)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)

	w = doRequest(f.engine, http.MethodPost, "/api/llm/chat", map[string]any{"message": "hi", "provider": "openai"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(f.engine, http.MethodPost, "/api/llm/chat", map[string]any{"message": "hi", "temperature": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(f.engine, http.MethodPost, "/api/llm/chat", map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProviders(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)
	w := doRequest(f.engine, http.MethodGet, "/api/llm/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{ai.ProviderAnthropic}, decode(t, w)["providers"])
}

func TestUsage(t *testing.T) {
	f := newFixture(t, staticProvider("ok"), nil)
	w := doRequest(f.engine, http.MethodGet, "/api/llm/usage", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	reporter := &stubUsage{summary: &usage.MonthlySummary{Month: "2026-09", Models: []usage.ModelSummary{}, TotalCalls: 3}}
	f = newFixture(t, staticProvider("ok"), reporter)
	w = doRequest(f.engine, http.MethodGet, "/api/llm/usage?month=2026-09", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-09", reporter.month)
	assert.EqualValues(t, 3, decode(t, w)["total_calls"])

	reporter.err = usage.ErrInvalidMonth
	w = doRequest(f.engine, http.MethodGet, "/api/llm/usage?month=september", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "YYYY-MM"))
}
