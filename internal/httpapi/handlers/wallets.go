package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/vault"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// WalletsHandler exposes §6's Wallets routes. At most one active Wallet may
// exist per (bot, exchange) pair (§3 invariant); Create/Update enforce this
// by deactivating siblings inside the same transaction the repository uses.
type WalletsHandler struct {
	wallets *database.WalletRepository
	bots    *database.BotRepository
	users   *database.UserRepository
	vault   *vault.Vault
	audit   *audit.Logger
}

func NewWalletsHandler(wallets *database.WalletRepository, bots *database.BotRepository, users *database.UserRepository, v *vault.Vault, auditLog *audit.Logger) *WalletsHandler {
	return &WalletsHandler{wallets: wallets, bots: bots, users: users, vault: v, audit: auditLog}
}

func (h *WalletsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/wallets", h.List)
	r.POST("/wallets", h.Create)
	r.GET("/wallets/:id", h.Get)
	r.PUT("/wallets/:id", h.Update)
	r.DELETE("/wallets/:id", h.Delete)
}

func (h *WalletsHandler) List(c *gin.Context) {
	owner := middleware.UserID(c)
	wallets, err := h.wallets.ListForOwner(owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if botIDStr := c.Query("bot_id"); botIDStr != "" {
		botID, err := pathIDFromQuery(botIDStr)
		if err != nil {
			respond.Error(c, err)
			return
		}
		filtered := wallets[:0]
		for _, w := range wallets {
			if w.BotID == botID {
				filtered = append(filtered, w)
			}
		}
		wallets = filtered
	}
	respond.OK(c, http.StatusOK, wallets)
}

type createWalletRequest struct {
	BotID       uint    `json:"bot_id" binding:"required"`
	ExchangeTag string  `json:"exchange_tag" binding:"required"`
	Key         string  `json:"key" binding:"required"`
	Secret      string  `json:"secret" binding:"required"`
	Address     *string `json:"address"`
}

func (h *WalletsHandler) Create(c *gin.Context) {
	owner := middleware.UserID(c)
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	bot, err := h.bots.ByIDForOwner(req.BotID, owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	user, err := h.users.ByID(owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	encKey, err := h.vault.Encrypt([]byte(req.Key), user.EncryptionSalt)
	if err != nil {
		respond.Error(c, err)
		return
	}
	encSecret, err := h.vault.Encrypt([]byte(req.Secret), user.EncryptionSalt)
	if err != nil {
		respond.Error(c, err)
		return
	}
	wallet := &models.Wallet{
		OwnerID:         owner,
		BotID:           bot.ID,
		ExchangeTag:     req.ExchangeTag,
		EncryptedKey:    encKey,
		EncryptedSecret: encSecret,
		Address:         req.Address,
		Active:          true,
	}
	if err := h.wallets.CreateActive(wallet); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("wallet.create", "wallet", idString(wallet.ID), owner, nil, c.ClientIP())
	respond.OK(c, http.StatusCreated, wallet)
}

func (h *WalletsHandler) Get(c *gin.Context) {
	w, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, w)
}

type updateWalletRequest struct {
	Key     *string `json:"key"`
	Secret  *string `json:"secret"`
	Address *string `json:"address"`
	Active  *bool   `json:"active"`
}

func (h *WalletsHandler) Update(c *gin.Context) {
	w, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	var req updateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	user, err := h.users.ByID(w.OwnerID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if req.Key != nil && *req.Key != "" {
		blob, err := h.vault.Encrypt([]byte(*req.Key), user.EncryptionSalt)
		if err != nil {
			respond.Error(c, err)
			return
		}
		w.EncryptedKey = blob
	}
	if req.Secret != nil && *req.Secret != "" {
		blob, err := h.vault.Encrypt([]byte(*req.Secret), user.EncryptionSalt)
		if err != nil {
			respond.Error(c, err)
			return
		}
		w.EncryptedSecret = blob
	}
	if req.Address != nil {
		w.Address = req.Address
	}
	if req.Active != nil {
		w.Active = *req.Active
	}
	if err := h.wallets.Update(w); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("wallet.update", "wallet", idString(w.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, w)
}

func (h *WalletsHandler) Delete(c *gin.Context) {
	w, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.wallets.Delete(w.ID, middleware.UserID(c)); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("wallet.delete", "wallet", idString(w.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *WalletsHandler) loadOwned(c *gin.Context) (*models.Wallet, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.wallets.ByIDForOwner(id, middleware.UserID(c))
}
