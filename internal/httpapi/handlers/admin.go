package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/scheduler"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// AdminHandler exposes §6's Admin routes. Every route here sits behind
// middleware.RequireAdmin; it is the one collaborator in the system allowed
// to read or mutate across owner boundaries (§7 invariant 1's carve-out).
type AdminHandler struct {
	users     *database.UserRepository
	bots      *database.BotRepository
	auditRepo *database.AuditRepository
	audit     *audit.Logger
	scheduler *scheduler.Scheduler
}

func NewAdminHandler(users *database.UserRepository, bots *database.BotRepository, auditRepo *database.AuditRepository, auditLog *audit.Logger, sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{users: users, bots: bots, auditRepo: auditRepo, audit: auditLog, scheduler: sched}
}

func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/admin/users", h.ListUsers)
	admin.PUT("/admin/users/:id/role", h.SetRole)
	admin.PUT("/admin/users/:id/status", h.SetStatus)
	admin.DELETE("/admin/users/:id", h.DeleteUser)
	admin.GET("/admin/stats", h.Stats)
	admin.GET("/admin/audit-log", h.AuditLog)
	admin.GET("/admin/bots", h.ListBots)
	admin.GET("/admin/orphaned-bots", h.OrphanedBots)
	admin.DELETE("/admin/orphaned-bots", h.DeleteOrphanedBots)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := respond.Pair(c)
	users, total, err := h.users.List(limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.List(c, users, total, limit, offset, nil)
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respond.Error(c, err)
		return
	}
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "role", Message: "required"}))
		return
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin && req.Role != models.RoleModerator {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "role", Message: "must be user, admin, or moderator"}))
		return
	}
	user, err := h.users.ByID(userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	user.Role = req.Role
	if err := h.users.Update(user); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("admin.user_role_set", "user", idString(userID), middleware.UserID(c), gin.H{"role": req.Role}, c.ClientIP())
	respond.OK(c, http.StatusOK, user)
}

type setStatusRequest struct {
	Active bool `json:"active"`
}

func (h *AdminHandler) SetStatus(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respond.Error(c, err)
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "active", Message: "required boolean"}))
		return
	}
	user, err := h.users.ByID(userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	user.Active = req.Active
	if err := h.users.Update(user); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("admin.user_status_set", "user", idString(userID), middleware.UserID(c), gin.H{"active": req.Active}, c.ClientIP())
	respond.OK(c, http.StatusOK, user)
}

// DeleteUser cascades through every owned bot and its dependent rows
// (internal/database/user_repo.go Delete), then stops each bot's scheduler
// task so the process doesn't keep ticking a row that no longer exists.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respond.Error(c, err)
		return
	}
	owned, err := h.bots.ListForOwner(userID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.users.Delete(userID); err != nil {
		respond.Error(c, err)
		return
	}
	for _, bot := range owned {
		h.scheduler.Stop(bot.ID)
	}
	h.audit.Record("admin.user_delete", "user", idString(userID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"deleted": true})
}

// Stats is the process-wide dashboard summary (§6 GET /admin/stats):
// counts only, computed from the same repositories every other handler uses
// rather than a separate analytical store.
func (h *AdminHandler) Stats(c *gin.Context) {
	_, userTotal, err := h.users.List(1, 0)
	if err != nil {
		respond.Error(c, err)
		return
	}
	_, botTotal, err := h.bots.ListAll(1, 0)
	if err != nil {
		respond.Error(c, err)
		return
	}
	active, err := h.bots.ListActive()
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{
		"user_count":       userTotal,
		"bot_count":        botTotal,
		"active_bot_count": len(active),
		"host":             hostStats(),
	})
}

// hostStats reports the process host's CPU/memory load so an admin watching
// many live bots can tell bot-load problems from host-capacity problems.
// Best-effort: a sampling failure just omits that field rather than failing
// the whole request.
func hostStats() gin.H {
	out := gin.H{}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		out["cpu_percent"] = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["memory_used_percent"] = vm.UsedPercent
	}
	return out
}

func (h *AdminHandler) AuditLog(c *gin.Context) {
	limit, offset := respond.Pair(c)
	entries, total, err := h.auditRepo.ListRecent(limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.List(c, entries, total, limit, offset, nil)
}

func (h *AdminHandler) ListBots(c *gin.Context) {
	limit, offset := respond.Pair(c)
	bots, total, err := h.bots.ListAll(limit, offset)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.List(c, bots, total, limit, offset, nil)
}

// OrphanedBots lists bots whose owner no longer exists — a state that
// shouldn't arise through normal deletion (DeleteUser cascades), but can
// follow a direct database intervention; admins get a read before deciding
// to purge (§6 GET/DELETE /admin/orphaned-bots).
func (h *AdminHandler) OrphanedBots(c *gin.Context) {
	bots, err := h.bots.Orphaned()
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, bots)
}

func (h *AdminHandler) DeleteOrphanedBots(c *gin.Context) {
	n, err := h.bots.DeleteOrphaned()
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("admin.orphaned_bots_delete", "bot", "orphaned", middleware.UserID(c), gin.H{"count": n}, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"deleted": n})
}
