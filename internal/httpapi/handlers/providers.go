package handlers

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/httpapi/respond"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/middleware"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/vault"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// ProvidersHandler exposes §6's Providers routes. API keys are encrypted at
// the boundary (handler) and decrypted by the LLM Dispatcher for calls and
// by List for an admin caller; they are never surfaced to a non-admin
// caller — the redaction happens here, per §4.2's "redact(id) used by read
// paths".
type ProvidersHandler struct {
	providers *database.ProviderRepository
	bots      *database.BotRepository
	users     *database.UserRepository
	vault     *vault.Vault
	dispatch  *llm.Dispatcher
	audit     *audit.Logger
}

func NewProvidersHandler(providers *database.ProviderRepository, bots *database.BotRepository, users *database.UserRepository, v *vault.Vault, dispatch *llm.Dispatcher, auditLog *audit.Logger) *ProvidersHandler {
	return &ProvidersHandler{providers: providers, bots: bots, users: users, vault: v, dispatch: dispatch, audit: auditLog}
}

func (h *ProvidersHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers", h.List)
	r.POST("/providers", h.Create)
	r.GET("/providers/:id", h.Get)
	r.PUT("/providers/:id", h.Update)
	r.DELETE("/providers/:id", h.Delete)
	r.POST("/providers/:id/test", h.Test)
}

// providerView is the API-facing shape: EncryptedAPIKey is never embedded
// directly (its json tag is "-"). APIKeyPreview is a non-reversible mask
// (vault.Redact) over the ciphertext, shown to every caller; APIKey carries
// the decrypted plaintext and is only ever populated for an admin caller
// listing across owners (§4.2, §8 property 5).
type providerView struct {
	*models.Provider
	APIKeyConfigured bool   `json:"api_key_configured"`
	APIKeyPreview    string `json:"api_key_preview,omitempty"`
	APIKey           string `json:"api_key,omitempty"`
}

func toProviderView(p *models.Provider) providerView {
	view := providerView{Provider: p, APIKeyConfigured: len(p.EncryptedAPIKey) > 0}
	if view.APIKeyConfigured {
		view.APIKeyPreview = vault.Redact(base64.StdEncoding.EncodeToString(p.EncryptedAPIKey))
	}
	return view
}

// List returns the caller's own providers, except for an admin caller, who
// receives every owner's providers unscoped (§7 invariant 1's admin
// carve-out, §8 property 5). Admin callers additionally get the decrypted
// api_key; every other caller only ever sees the redacted preview.
func (h *ProvidersHandler) List(c *gin.Context) {
	owner := middleware.UserID(c)
	isAdmin := middleware.Role(c) == models.RoleAdmin

	var providers []models.Provider
	var err error
	if isAdmin {
		providers, err = h.providers.ListAll()
	} else {
		providers, err = h.providers.ListForOwner(owner)
	}
	if err != nil {
		respond.Error(c, err)
		return
	}

	views := make([]providerView, len(providers))
	for i := range providers {
		p := &providers[i]
		view := toProviderView(p)
		if isAdmin && view.APIKeyConfigured {
			if owner, uerr := h.users.ByID(p.OwnerID); uerr == nil {
				plain, derr := h.vault.Decrypt(p.EncryptedAPIKey, owner.EncryptionSalt)
				if derr == nil {
					view.APIKey = string(plain)
				} else {
					log.Printf("[PROVIDERS][WARN] admin list failed to decrypt provider %d: %v", p.ID, derr)
				}
			}
		}
		views[i] = view
	}
	respond.OK(c, http.StatusOK, views)
}

type createProviderRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Variant     string                 `json:"variant" binding:"required"`
	EndpointURL string                 `json:"endpoint_url" binding:"required"`
	Model       string                 `json:"model" binding:"required"`
	APIKey      string                 `json:"api_key"`
	Config      map[string]interface{} `json:"config"`
}

func (h *ProvidersHandler) Create(c *gin.Context) {
	owner := middleware.UserID(c)
	var req createProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if !validVariant(req.Variant) {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "variant", Message: "unrecognized provider variant"}))
		return
	}
	user, err := h.users.ByID(owner)
	if err != nil {
		respond.Error(c, err)
		return
	}
	provider := &models.Provider{
		OwnerID:     owner,
		Name:        req.Name,
		Variant:     req.Variant,
		EndpointURL: req.EndpointURL,
		Model:       req.Model,
		Config:      models.JSONB(req.Config),
		Active:      true,
	}
	if req.APIKey != "" {
		blob, err := h.vault.Encrypt([]byte(req.APIKey), user.EncryptionSalt)
		if err != nil {
			respond.Error(c, err)
			return
		}
		provider.EncryptedAPIKey = blob
	}
	if err := h.providers.Create(provider); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("provider.create", "provider", idString(provider.ID), owner, nil, c.ClientIP())
	respond.OK(c, http.StatusCreated, toProviderView(provider))
}

func (h *ProvidersHandler) Get(c *gin.Context) {
	p, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, toProviderView(p))
}

type updateProviderRequest struct {
	Name        *string                `json:"name"`
	EndpointURL *string                `json:"endpoint_url"`
	Model       *string                `json:"model"`
	APIKey      *string                `json:"api_key"`
	Config      map[string]interface{} `json:"config"`
	Active      *bool                  `json:"active"`
}

func (h *ProvidersHandler) Update(c *gin.Context) {
	p, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	var req updateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apierr.NewValidation(apierr.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.EndpointURL != nil {
		p.EndpointURL = *req.EndpointURL
	}
	if req.Model != nil {
		p.Model = *req.Model
	}
	if req.Config != nil {
		p.Config = models.JSONB(req.Config)
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.APIKey != nil && *req.APIKey != "" {
		user, err := h.users.ByID(p.OwnerID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		blob, err := h.vault.Encrypt([]byte(*req.APIKey), user.EncryptionSalt)
		if err != nil {
			respond.Error(c, err)
			return
		}
		p.EncryptedAPIKey = blob
	}
	if err := h.providers.Update(p); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("provider.update", "provider", idString(p.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, toProviderView(p))
}

func (h *ProvidersHandler) Delete(c *gin.Context) {
	p, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	inUse, err := h.bots.ProviderInUse(p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if inUse {
		respond.Error(c, apierr.New(apierr.Conflict, "provider is referenced by an active bot"))
		return
	}
	if err := h.providers.Delete(p.ID, middleware.UserID(c)); err != nil {
		respond.Error(c, err)
		return
	}
	h.audit.Record("provider.delete", "provider", idString(p.ID), middleware.UserID(c), nil, c.ClientIP())
	respond.OK(c, http.StatusOK, gin.H{"deleted": true})
}

// Test sends a minimal prompt through the real dispatch path so a caller
// can verify credentials before attaching the provider to a bot.
func (h *ProvidersHandler) Test(c *gin.Context) {
	p, err := h.loadOwned(c)
	if err != nil {
		respond.Error(c, err)
		return
	}
	user, err := h.users.ByID(p.OwnerID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
	defer cancel()
	result, err := h.dispatch.Call(ctx, p, user.EncryptionSalt, "ping: reply with the single word \"pong\".", llm.KindSandbox)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"text": result.Text, "latency_ms": result.LatencyMs})
}

func (h *ProvidersHandler) loadOwned(c *gin.Context) (*models.Provider, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.providers.ByIDForOwner(id, middleware.UserID(c))
}

func validVariant(v string) bool {
	switch v {
	case models.VariantOpenAI, models.VariantAnthropic, models.VariantGemini, models.VariantGrok, models.VariantLocal, models.VariantCustom:
		return true
	}
	return false
}
