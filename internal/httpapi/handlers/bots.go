package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/config"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/scheduler"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// BotsHandler exposes §6's Bots routes: CRUD plus the lifecycle actions
// (pause, reset, clear-learning, snapshot, force-turn) that reach into the
// Scheduler (C8) to affect the live in-memory runtime alongside the row.
type BotsHandler struct {
	bots       *database.BotRepository
	providers  *database.ProviderRepository
	positions  *database.PositionRepository
	trades     *database.TradeRepository
	decisions  *database.DecisionRepository
	snapshots  *database.SnapshotRepository
	history    *database.HistorySummaryRepository
	settings   *config.Settings
	scheduler  *scheduler.Scheduler
	audit      *audit.Logger
}

func NewBotsHandler(bots *database.BotRepository, providers *database.ProviderRepository, positions *database.PositionRepository, trades *database.TradeRepository, decisions *database.DecisionRepository, snapshots *database.SnapshotRepository, history *database.HistorySummaryRepository, settings *config.Settings, sched *scheduler.Scheduler, auditLog *audit.Logger) *BotsHandler {
	return &BotsHandler{
		bots: bots, providers: providers, positions: positions, trades: trades,
		decisions: decisions, snapshots: snapshots, history: history,
		settings: settings, scheduler: sched, audit: auditLog,
	}
}

func (h *BotsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/bots", h.List)
	r.POST("/bots", h.Create)
	r.GET("/bots/:id", h.Get)
	r.PUT("/bots/:id", h.Update)
	r.DELETE("/bots/:id", h.Delete)
	r.POST("/bots/:id/pause", h.Pause)
	r.POST("/bots/:id/reset", h.Reset)
	r.POST("/bots/:id/clear-learning", h.ClearLearning)
	r.POST("/bots/:id/snapshot", h.Snapshot)
	r.POST("/bots/:id/force-turn", h.ForceTurn)
	r.GET("/bots/:id/trades", h.Trades)
	r.GET("/bots/:id/positions", h.Positions)
	r.GET("/bots/:id/decisions", h.Decisions)
	r.GET("/bots/:id/history-summary", h.HistorySummary)
}

func (h *BotsHandler) List(c *gin.Context) {
	owner := middleware.UserID(c)
	bots, err := h.bots.ListForOwner(owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, bots)
}

type createBotRequest struct {
	Name           string   `json:"name" binding:"required"`
	SystemPrompt   string   `json:"system_prompt" binding:"required"`
	ProviderID     uint     `json:"provider_id" binding:"required"`
	Mode           string   `json:"mode"`
	AllowedSymbols []string `json:"allowed_symbols"`
}

func (h *BotsHandler) Create(c *gin.Context) {
	owner := middleware.UserID(c)
	var req createBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModePaper
	}
	if req.Mode != models.ModePaper && req.Mode != models.ModeReal {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "mode", Message: "must be paper or real"}))
		return
	}
	count, err := h.bots.CountForOwner(owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if int(count) >= h.settings.Int(config.KeyMaxBots) {
		respond.Error(c, apierr.New(apierr.Validation, "maximum bot count reached"))
		return
	}
	provider, err := h.providers.ByIDForOwner(req.ProviderID, owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !provider.Active {
		respond.Error(c, apierr.New(apierr.Validation, "provider is not active"))
		return
	}

	bot := &models.Bot{
		OwnerID:        owner,
		StableID:       uuid.NewString(),
		Name:           req.Name,
		SystemPrompt:   req.SystemPrompt,
		ProviderID:     req.ProviderID,
		Mode:           req.Mode,
		Active:         true,
		AllowedSymbols: models.StringList(req.AllowedSymbols),
	}
	if err := h.bots.Create(bot); err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.scheduler.Spawn(bot); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("bot.create", "bot", idString(bot.ID), owner, nil, c.ClientIP())
	respond.OK(c, http.StatusCreated, bot)
}

func (h *BotsHandler) Get(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, bot)
}

type updateBotRequest struct {
	Name           *string  `json:"name"`
	SystemPrompt   *string  `json:"system_prompt"`
	AllowedSymbols []string `json:"allowed_symbols"`
	Active         *bool    `json:"active"`
}

func (h *BotsHandler) Update(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	var req updateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if req.Name != nil {
		bot.Name = *req.Name
	}
	if req.SystemPrompt != nil {
		bot.SystemPrompt = *req.SystemPrompt
	}
	if req.AllowedSymbols != nil {
		bot.AllowedSymbols = models.StringList(req.AllowedSymbols)
	}
	wasActive := bot.Active
	if req.Active != nil {
		bot.Active = *req.Active
	}
	if err := h.bots.Update(bot); err != nil {
		respond.Error(c, err)
		return
	}
	if wasActive && !bot.Active {
		h.scheduler.Stop(bot.ID)
	} else if !wasActive && bot.Active {
		if err := h.scheduler.Spawn(bot); err != nil {
			respond.Error(c, err)
			return
		}
	} else {
		if err := h.scheduler.Reload(bot.ID); err != nil {
			respond.Error(c, err)
			return
		}
	}
	h.audit.Record("bot.update", "bot", idString(bot.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, bot)
}

func (h *BotsHandler) Delete(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.bots.Delete(bot.ID, middleware.UserID(c)); err != nil {
		respond.Error(c, err)
		return
	}
	h.scheduler.Stop(bot.ID)
	h.audit.Record("bot.delete", "bot", idString(bot.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"deleted": true})
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (h *BotsHandler) Pause(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if err := h.bots.SetPaused(bot.ID, middleware.UserID(c), req.Paused); err != nil {
		respond.Error(c, err)
		return
	}
	h.scheduler.SetPaused(bot.ID, req.Paused)
	h.audit.Record("bot.pause", "bot", idString(bot.ID), middleware.UserID(c), gin.H{"paused": req.Paused}, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"paused": req.Paused})
}

type resetRequest struct {
	ClearLearning bool `json:"clear_learning"`
}

func (h *BotsHandler) Reset(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if bot.Mode != models.ModePaper {
		respond.Error(c, apierr.New(apierr.Validation, "reset is only allowed for paper bots"))
		return
	}
	var req resetRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.scheduler.Reset(bot.ID, req.ClearLearning, h.history); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("bot.reset", "bot", idString(bot.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"reset": true})
}

func (h *BotsHandler) ClearLearning(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.history.ClearLearning(bot.ID); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("bot.clear_learning", "bot", idString(bot.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"cleared": true})
}

func (h *BotsHandler) Snapshot(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	latest, err := h.snapshots.LatestForBot(bot.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, latest)
}

func (h *BotsHandler) ForceTurn(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.scheduler.ForceTurn(bot.ID)
	respond.OK(c, http.StatusAccepted, gin.H{"queued": true})
}

func (h *BotsHandler) Trades(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	limit, offset := respond.Pair(c)
	trades, total, err := h.trades.ListForBot(bot.ID, limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.List(c, trades, total, limit, offset, gin.H{"bot_id": bot.ID})
}

func (h *BotsHandler) Positions(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	status := c.DefaultQuery("status", "all")
	limit, offset := respond.Pair(c)
	positions, total, err := h.positions.ListForBot(bot.ID, status, limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.List(c, positions, total, limit, offset, gin.H{"bot_id": bot.ID, "status": status})
}

func (h *BotsHandler) Decisions(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	limit, offset := respond.Pair(c)
	decisions, total, err := h.decisions.ListForBot(bot.ID, limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.List(c, decisions, total, limit, offset, gin.H{"bot_id": bot.ID})
}

func (h *BotsHandler) HistorySummary(c *gin.Context) {
	bot, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	summary, err := h.history.ForBot(bot.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, summary)
}

func (h *BotsHandler) loadOwned(c *gin.Context) (*models.Bot, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.bots.ByIDForOwner(id, middleware.UserID(c))
}
