package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/internal/auth"
	"github.com/arenahq/bot-arena/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthedEngine(issuer *auth.Issuer) *gin.Engine {
	engine := gin.New()
	engine.GET("/whoami", RequireAuth(issuer), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "role": Role(c)})
	})
	admin := engine.Group("/admin", RequireAuth(issuer), RequireAdmin())
	admin.GET("/only", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return engine
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	issuer := auth.NewIssuer("access", "refresh")
	engine := newAuthedEngine(issuer)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsGarbageToken(t *testing.T) {
	issuer := auth.NewIssuer("access", "refresh")
	engine := newAuthedEngine(issuer)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	issuer := auth.NewIssuer("access", "refresh")
	u := &models.User{Role: models.RoleUser}
	u.ID = 42
	token, err := issuer.AccessToken(u)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	engine := newAuthedEngine(issuer)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAdminRejectsNonAdmin(t *testing.T) {
	issuer := auth.NewIssuer("access", "refresh")
	u := &models.User{Role: models.RoleUser}
	u.ID = 1
	token, err := issuer.AccessToken(u)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	engine := newAuthedEngine(issuer)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAdminAcceptsAdmin(t *testing.T) {
	issuer := auth.NewIssuer("access", "refresh")
	u := &models.User{Role: models.RoleAdmin}
	u.ID = 2
	token, err := issuer.AccessToken(u)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	engine := newAuthedEngine(issuer)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
