package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// SettingsHandler exposes §6's Settings routes over config.Settings, the
// single hot-reloadable process-wide map (§9 "Global state").
type SettingsHandler struct {
	settings *config.Settings
	audit    *audit.Logger
}

func NewSettingsHandler(settings *config.Settings, auditLog *audit.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, audit: auditLog}
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	r.GET("/settings", h.All)
	r.GET("/settings/:key", h.Get)
	r.PUT("/settings/:key", h.Set)
	r.POST("/settings", h.Bulk)
	admin.GET("/settings/metadata", h.Metadata)
}

func (h *SettingsHandler) All(c *gin.Context) {
	respond.OK(c, http.StatusOK, h.settings.All())
}

func (h *SettingsHandler) Get(c *gin.Context) {
	key := c.Param("key")
	all := h.settings.All()
	v, ok := all[key]
	if !ok {
		respond.Error(c, apierr.New(apierr.NotFound, "unrecognized setting key"))
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"key": key, "value": v})
}

type setSettingRequest struct {
	Value interface{} `json:"value"`
}

func (h *SettingsHandler) Set(c *gin.Context) {
	key := c.Param("key")
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if err := h.settings.Set(key, req.Value); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("settings.update", "setting", key, middleware.UserID(c), gin.H{"value": req.Value}, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// Bulk accepts {"key1": value1, "key2": value2, ...} and applies each
// key in turn, stopping at the first validation failure (§6 "POST /settings
// (bulk)").
func (h *SettingsHandler) Bulk(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	for key, value := range req {
		if err := h.settings.Set(key, value); err != nil {
			respond.Error(c, err)
			return
		}
	}
	h.audit.Record("settings.bulk_update", "setting", "bulk", middleware.UserID(c), req, c.ClientIP())
	respond.OK(c, http.StatusOK, h.settings.All())
}

// Metadata is the admin-only enumerated key list (§6), useful for a console
// to render a settings form without hardcoding key names client-side.
func (h *SettingsHandler) Metadata(c *gin.Context) {
	respond.OK(c, http.StatusOK, gin.H{
		"keys": []string{
			config.KeyPaperBotInitialBalance, config.KeyLiveBotInitialBalance,
			config.KeyTurnIntervalMs, config.KeyRefreshIntervalMs,
			config.KeyMinimumTradeSizeUSD, config.KeySymbolCooldownMs,
			config.KeyMinimumPositionDurationMs, config.KeyTradingSymbols,
			config.KeyMaxBots, config.KeyMaxPositionsPerBot,
			config.KeyDataRetentionDays, config.KeySessionTimeoutHours,
			config.KeySummaryTokenBudget, config.KeySummaryMinNewDecisions,
			config.KeyEntryFeeRate, config.KeyExitFeeRate, config.KeyMaintenanceMarginRate,
		},
	})
}
