package handlers

import (
	"bytes"
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
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAdminTestHandler(t *testing.T) (*AdminHandler, *database.UserRepository, *database.BotRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := database.NewUserRepository(db)
	bots := database.NewBotRepository(db)
	auditRepo := database.NewAuditRepository(db)
	auditLog := audit.New(auditRepo)
	// Every field scheduler.Stop touches (tasks/runtimes maps) is initialized
	// by New regardless of the nil collaborators below; AdminHandler never
	// calls anything else on it in the routes under test here.
	sched := scheduler.New(nil, bots, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, "")
	return NewAdminHandler(users, bots, auditRepo, auditLog, sched), users, bots, db
}

func seedUser(t *testing.T, users *database.UserRepository, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: role, Active: true, EncryptionSalt: "salt"}
	if err := users.Create(u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedBot(t *testing.T, bots *database.BotRepository, ownerID uint) *models.Bot {
	t.Helper()
	b := &models.Bot{OwnerID: ownerID, StableID: "bot-" + idString(ownerID), Name: "bot", SystemPrompt: "x", ProviderID: 1, Mode: models.ModePaper, Active: true}
	if err := bots.Create(b); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return b
}

func newTestContext(t *testing.T, method, url string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, url, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func TestAdminListUsers(t *testing.T) {
	h, users, _, _ := newAdminTestHandler(t)
	seedUser(t, users, "alice", models.RoleUser)
	c, rec := newTestContext(t, http.MethodGet, "/admin/users", nil)
	h.ListUsers(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSetRoleValidatesValue(t *testing.T) {
	h, users, _, _ := newAdminTestHandler(t)
	u := seedUser(t, users, "bob", models.RoleUser)
	c, rec := newTestContext(t, http.MethodPut, "/admin/users/x/role", gin.H{"role": "superuser"})
	c.Params = gin.Params{{Key: "id", Value: idString(u.ID)}}
	h.SetRole(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid role, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSetRolePromotesUser(t *testing.T) {
	h, users, _, _ := newAdminTestHandler(t)
	u := seedUser(t, users, "carol", models.RoleUser)
	c, rec := newTestContext(t, http.MethodPut, "/admin/users/x/role", gin.H{"role": models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: idString(u.ID)}}
	h.SetRole(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	reloaded, err := users.ByID(u.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if reloaded.Role != models.RoleAdmin {
		t.Fatalf("expected role to be promoted to admin, got %q", reloaded.Role)
	}
}

func TestAdminSetStatusDisablesUser(t *testing.T) {
	h, users, _, _ := newAdminTestHandler(t)
	u := seedUser(t, users, "dave", models.RoleUser)
	c, rec := newTestContext(t, http.MethodPut, "/admin/users/x/status", gin.H{"active": false})
	c.Params = gin.Params{{Key: "id", Value: idString(u.ID)}}
	h.SetStatus(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	reloaded, err := users.ByID(u.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if reloaded.Active {
		t.Fatal("expected the user to be disabled")
	}
}

func TestAdminDeleteUserCascadesAndStopsBots(t *testing.T) {
	h, users, bots, _ := newAdminTestHandler(t)
	u := seedUser(t, users, "erin", models.RoleUser)
	seedBot(t, bots, u.ID)
	c, rec := newTestContext(t, http.MethodDelete, "/admin/users/x", nil)
	c.Params = gin.Params{{Key: "id", Value: idString(u.ID)}}
	h.DeleteUser(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := users.ByID(u.ID); err == nil {
		t.Fatal("expected the user to be gone")
	}
}

func TestAdminStatsReportsCounts(t *testing.T) {
	h, users, bots, _ := newAdminTestHandler(t)
	u := seedUser(t, users, "frank", models.RoleUser)
	seedBot(t, bots, u.ID)
	c, rec := newTestContext(t, http.MethodGet, "/admin/stats", nil)
	h.Stats(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	data := body["data"].(map[string]interface{})
	if data["user_count"].(float64) < 1 {
		t.Fatalf("expected at least 1 user, got %v", data["user_count"])
	}
	if data["host"] == nil {
		t.Fatal("expected a host stats panel")
	}
}

func TestAdminOrphanedBotsListsAndDeletes(t *testing.T) {
	h, users, bots, db := newAdminTestHandler(t)
	u := seedUser(t, users, "grace", models.RoleUser)
	seedBot(t, bots, u.ID)
	// Deleting the user row directly (bypassing UserRepository.Delete's bot
	// cascade) is what actually produces the orphaned-bot state this route
	// exists to detect.
	if err := db.Delete(&models.User{}, u.ID).Error; err != nil {
		t.Fatalf("delete user row directly: %v", err)
	}

	c, rec := newTestContext(t, http.MethodGet, "/admin/orphaned-bots", nil)
	h.OrphanedBots(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	c, rec = newTestContext(t, http.MethodDelete, "/admin/orphaned-bots", nil)
	h.DeleteOrphanedBots(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
