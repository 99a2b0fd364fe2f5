package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/accountsvc"
	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// AuthHandler exposes §6's Auth routes. Grounded on the teacher's
// UserService-backed handler pattern, thinned down so the handler only
// decodes requests and formats responses; all identity logic lives in
// accountsvc.
type AuthHandler struct {
	accounts *accountsvc.Service
	audit    *audit.Logger
}

func NewAuthHandler(accounts *accountsvc.Service, auditLog *audit.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, audit: auditLog}
}

func (h *AuthHandler) RegisterRoutes(public *gin.RouterGroup, authed *gin.RouterGroup) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)
	public.POST("/auth/recover", h.Recover)

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)
	authed.PUT("/auth/me", h.UpdateMe)
	authed.PUT("/auth/password", h.ChangePassword)
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	result, err := h.accounts.Register(req.Username, req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("user.register", "user", idString(result.User.ID), result.User.ID, nil, c.ClientIP())
	respond.OK(c, http.StatusCreated, gin.H{
		"user":            result.User,
		"access_token":    result.Tokens.AccessToken,
		"refresh_token":   result.Tokens.RefreshToken,
		"recovery_phrase": result.RecoveryPhrase,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	u, tokens, err := h.accounts.Login(req.Username, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("user.login", "user", idString(u.ID), u.ID, nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"user": u, "access_token": tokens.AccessToken, "refresh_token": tokens.RefreshToken})
}

// Logout is stateless (no server-side session to revoke, per spec.md §1's
// thin-JWT boundary); it exists so clients have one endpoint to call before
// discarding local tokens, and so the action is still audited.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.audit.Record("user.logout", "user", idString(middleware.UserID(c)), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"logged_out": true})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	tokens, err := h.accounts.Refresh(req.RefreshToken)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"access_token": tokens.AccessToken, "refresh_token": tokens.RefreshToken})
}

type recoverRequest struct {
	Username       string `json:"username" binding:"required"`
	RecoveryPhrase string `json:"recovery_phrase" binding:"required"`
	NewPassword    string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) Recover(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if err := h.accounts.Recover(req.Username, req.RecoveryPhrase, req.NewPassword); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("user.recover", "user", req.Username, 0, nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"recovered": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.accounts.Me(middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, u)
}

type updateMeRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	u, err := h.accounts.UpdateProfile(middleware.UserID(c), req.Email)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("user.update", "user", idString(u.ID), u.ID, nil, c.ClientIP())
	respond.OK(c, http.StatusOK, u)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	userID := middleware.UserID(c)
	if err := h.accounts.ResetPassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("user.password_change", "user", idString(userID), userID, nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"changed": true})
}
