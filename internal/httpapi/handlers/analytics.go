package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/analytics"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// AnalyticsHandler exposes §6's Analytics routes, every one of them
// owner-scoped (non-admins never see another owner's bots, §3 invariant 1).
type AnalyticsHandler struct {
	analytics *analytics.Service
}

func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc}
}

func (h *AnalyticsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analytics/performance", h.Performance)
	r.GET("/analytics/performance/:botId", h.PerformanceForBot)
	r.GET("/analytics/comparison", h.Comparison)
	r.GET("/analytics/risk-metrics", h.RiskMetrics)
	r.GET("/analytics/aggregate/best-worst", h.BestWorst)
	r.GET("/analytics/aggregate/by-symbol", h.BySymbol)
	r.GET("/analytics/aggregate/summary", h.Summary)
}

func timeRangeOf(c *gin.Context) string {
	tr := c.Query("timeRange")
	if tr == "" {
		return "all"
	}
	return tr
}

func (h *AnalyticsHandler) Performance(c *gin.Context) {
	perf, err := h.analytics.Performance(middleware.UserID(c), timeRangeOf(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, perf)
}

func (h *AnalyticsHandler) PerformanceForBot(c *gin.Context) {
	botID, err := pathID(c, "botId")
	if err != nil {
		respond.Error(c, err)
		return
	}
	perf, err := h.analytics.PerformanceForBot(botID, middleware.UserID(c), timeRangeOf(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, perf)
}

// Comparison reads ?bot_ids=1,2,3 (§6 GET /analytics/comparison).
func (h *AnalyticsHandler) Comparison(c *gin.Context) {
	raw := c.Query("bot_ids")
	if raw == "" {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "bot_ids", Message: "required, comma-separated bot ids"}))
		return
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "bot_ids", Message: "must be a comma-separated list of positive integers"}))
			return
		}
		ids = append(ids, uint(n))
	}
	perf, err := h.analytics.Comparison(middleware.UserID(c), ids, timeRangeOf(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, perf)
}

func (h *AnalyticsHandler) RiskMetrics(c *gin.Context) {
	botID, err := pathIDFromQuery(c.Query("bot_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	metrics, err := h.analytics.RiskMetrics(botID, middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, metrics)
}

func (h *AnalyticsHandler) BestWorst(c *gin.Context) {
	best, worst, err := h.analytics.BestWorst(middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"best": best, "worst": worst})
}

func (h *AnalyticsHandler) BySymbol(c *gin.Context) {
	stats, err := h.analytics.BySymbol(middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, stats)
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.analytics.Summary(middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, summary)
}
