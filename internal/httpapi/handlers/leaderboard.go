package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/leaderboard"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// LeaderboardHandler exposes §6's Leaderboard routes. Read routes are
// public (rankings are cross-tenant by design, §4.10); only the manual
// recompute trigger is admin-gated.
type LeaderboardHandler struct {
	repo    *database.LeaderboardRepository
	service *leaderboard.Service
	audit   *audit.Logger
}

func NewLeaderboardHandler(repo *database.LeaderboardRepository, service *leaderboard.Service, auditLog *audit.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{repo: repo, service: service, audit: auditLog}
}

func (h *LeaderboardHandler) RegisterRoutes(public *gin.RouterGroup, admin *gin.RouterGroup) {
	public.GET("/leaderboard/:period", h.ForPeriod)
	public.GET("/leaderboard/stats", h.Stats)
	public.GET("/leaderboard/user/:userId", h.ForUser)
	public.GET("/leaderboard/bot/:botId/history", h.ForBot)
	admin.POST("/leaderboard/update", h.Update)
}

func validPeriod(p string) bool {
	switch p {
	case models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly, models.PeriodAllTime:
		return true
	}
	return false
}

func (h *LeaderboardHandler) ForPeriod(c *gin.Context) {
	period := c.Param("period")
	if !validPeriod(period) {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "period", Message: "must be daily, weekly, monthly, or all-time"}))
		return
	}
	limit, _ := respond.Pair(c)
	entries, err := h.repo.ForPeriod(period, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, entries)
}

func (h *LeaderboardHandler) Stats(c *gin.Context) {
	stats := gin.H{}
	for _, period := range leaderboard.Periods {
		n, err := h.repo.CountForPeriod(period)
		if err != nil {
			respond.Error(c, err)
			return
		}
		stats[period] = n
	}
	respond.OK(c, http.StatusOK, stats)
}

func (h *LeaderboardHandler) ForUser(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		respond.Error(c, err)
		return
	}
	entries, err := h.repo.ForOwner(userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, entries)
}

func (h *LeaderboardHandler) ForBot(c *gin.Context) {
	botID, err := pathID(c, "botId")
	if err != nil {
		respond.Error(c, err)
		return
	}
	entries, err := h.repo.ForBot(botID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, entries)
}

func (h *LeaderboardHandler) Update(c *gin.Context) {
	h.service.RecomputeAll(time.Now())
	h.audit.Record("leaderboard.update", "leaderboard", "all", middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"updated": true})
}
