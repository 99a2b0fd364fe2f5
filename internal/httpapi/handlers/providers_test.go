package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/audit"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/llm"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/vault"
)

func newProvidersTestHandler(t *testing.T) (*ProvidersHandler, *database.ProviderRepository, *database.UserRepository, *vault.Vault) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	providers := database.NewProviderRepository(db)
	bots := database.NewBotRepository(db)
	users := database.NewUserRepository(db)
	v, err := vault.New("")
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	dispatch := llm.New(v)
	auditRepo := database.NewAuditRepository(db)
	auditLog := audit.New(auditRepo)
	return NewProvidersHandler(providers, bots, users, v, dispatch, auditLog), providers, users, v
}

func withRole(c *gin.Context, userID uint, role string) {
	c.Set("userID", userID)
	c.Set("role", role)
}

func seedProviderWithKey(t *testing.T, providers *database.ProviderRepository, users *database.UserRepository, v *vault.Vault, ownerID uint, apiKey string) *models.Provider {
	t.Helper()
	user := &models.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x", Role: models.RoleUser, Active: true}
	salt, err := vault.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt: %v", err)
	}
	user.EncryptionSalt = salt
	user.ID = ownerID
	if err := users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	blob, err := v.Encrypt([]byte(apiKey), salt)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	p := &models.Provider{OwnerID: ownerID, Name: "p", Variant: models.VariantOpenAI, EndpointURL: "https://example.invalid", Model: "gpt", Active: true, EncryptedAPIKey: blob}
	if err := providers.Create(p); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return p
}

// TestProvidersListNonAdminOnlySeesOwnProvidersRedacted asserts a regular
// caller's own providers come back with the key redacted, never in plaintext.
func TestProvidersListNonAdminOnlySeesOwnProvidersRedacted(t *testing.T) {
	h, providers, users, v := newProvidersTestHandler(t)
	seedProviderWithKey(t, providers, users, v, 1, "sk-mine")
	seedProviderWithKey(t, providers, users, v, 2, "sk-other")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/providers", nil)
	withRole(c, 1, models.RoleUser)

	h.List(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	views := body["data"].([]interface{})
	if len(views) != 1 {
		t.Fatalf("expected only the caller's own provider, got %d", len(views))
	}
	view := views[0].(map[string]interface{})
	if view["api_key"] != nil && view["api_key"] != "" {
		t.Fatalf("expected no plaintext api_key for a non-admin caller, got %v", view["api_key"])
	}
	if view["api_key_preview"] == nil || view["api_key_preview"] == "" {
		t.Fatal("expected a redacted api_key_preview")
	}
}

// TestProvidersListAdminSeesEveryOwnerWithDecryptedKey covers spec scenario
// S5: the same /providers endpoint returns every owner's providers to an
// admin, with the actual key visible rather than just redacted.
func TestProvidersListAdminSeesEveryOwnerWithDecryptedKey(t *testing.T) {
	h, providers, users, v := newProvidersTestHandler(t)
	seedProviderWithKey(t, providers, users, v, 1, "sk-mine")
	seedProviderWithKey(t, providers, users, v, 2, "sk-other")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/providers", nil)
	withRole(c, 99, models.RoleAdmin)

	h.List(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	views := body["data"].([]interface{})
	if len(views) != 2 {
		t.Fatalf("expected both owners' providers for an admin, got %d", len(views))
	}
	seenKeys := map[string]bool{}
	for _, raw := range views {
		view := raw.(map[string]interface{})
		key, _ := view["api_key"].(string)
		if key == "" {
			t.Fatalf("expected admin to see the decrypted api_key, view=%v", view)
		}
		seenKeys[key] = true
	}
	if !seenKeys["sk-mine"] || !seenKeys["sk-other"] {
		t.Fatalf("expected both owners' decrypted keys, got %v", seenKeys)
	}
}
