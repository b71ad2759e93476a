// README: LLM handlers: direct chat, provider listing and the monthly usage report.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wayfare/internal/ai"
	"wayfare/internal/modules/usage"
)

// UsageReporter is the read side of the usage ledger.
type UsageReporter interface {
	MonthlySummary(ctx context.Context, month string) (*usage.MonthlySummary, error)
}

type LLMHandler struct {
	llm   *ai.Client
	usage UsageReporter
}

// NewLLMHandler creates the handler; reporter may be nil when no ledger is configured.
func NewLLMHandler(llm *ai.Client, reporter UsageReporter) *LLMHandler {
	return &LLMHandler{llm: llm, usage: reporter}
}

type chatReq struct {
	Message     string   `json:"message"`
	System      string   `json:"system"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

// Chat handles POST /api/llm/chat.
func (h *LLMHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(c, http.StatusBadRequest, "missing message")
		return
	}
	hint := strings.ToLower(strings.TrimSpace(req.Provider))
	if hint == "" {
		hint = ai.HintAuto
	}

	resp, err := h.llm.GenerateText(c.Request.Context(), ai.Request{
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: req.Message}},
		System:      req.System,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, hint)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"reply":              resp.Text,
		"provider":           resp.Provider,
		"model":              resp.Model,
		"usage":              resp.Usage,
		"estimated_cost_usd": resp.EstimatedCostUSD,
		"latency_ms":         resp.Latency.Milliseconds(),
	})
}

// Providers handles GET /api/llm/providers.
func (h *LLMHandler) Providers(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"providers": h.llm.AvailableProviders()})
}

// Usage handles GET /api/llm/usage?month=YYYY-MM.
func (h *LLMHandler) Usage(c *gin.Context) {
	if h.usage == nil {
		writeError(c, http.StatusServiceUnavailable, "usage ledger is not configured")
		return
	}
	summary, err := h.usage.MonthlySummary(c.Request.Context(), c.Query("month"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, summary)
}
