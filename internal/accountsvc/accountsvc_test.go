package accountsvc

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/auth"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

func newTestService(t *testing.T) (*Service, *database.UserRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := database.NewUserRepository(db)
	issuer := auth.NewIssuer("access-secret", "refresh-secret")
	return New(users, issuer), users
}

func TestRegisterIssuesTokensAndRecoveryPhrase(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Register("alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if res.RecoveryPhrase == "" {
		t.Fatal("expected a recovery phrase")
	}
	if res.User.EncryptionSalt == "" {
		t.Fatal("expected a per-user encryption salt to be set")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("bob", "bob@example.com", "short"); !apierr.Is(err, apierr.Validation) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("carol", "carol@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	u, tokens, err := svc.Login("carol", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Username != "carol" || tokens.AccessToken == "" {
		t.Fatalf("unexpected login result: %+v", u)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("dave", "dave@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.Login("dave", "wrong-password"); !apierr.Is(err, apierr.Auth) {
		t.Fatalf("expected Auth error, got %v", err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	svc, users := newTestService(t)
	res, err := svc.Register("erin", "erin@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res.User.Active = false
	if err := users.Update(res.User); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, _, err := svc.Login("erin", "password123"); !apierr.Is(err, apierr.Forbidden) {
		t.Fatalf("expected Forbidden error, got %v", err)
	}
}

func TestRefreshIssuesNewTokenPair(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Register("frank", "frank@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	tokens, err := svc.Refresh(res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected a fresh token pair")
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Refresh("not-a-jwt"); !apierr.Is(err, apierr.Auth) {
		t.Fatalf("expected Auth error, got %v", err)
	}
}

func TestRecoverResetsPasswordAndInvalidatesOldOne(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Register("grace", "grace@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Recover("grace", res.RecoveryPhrase, "newpassword1"); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if _, _, err := svc.Login("grace", "password123"); err == nil {
		t.Fatal("expected old password to no longer work")
	}
	if _, _, err := svc.Login("grace", "newpassword1"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestRecoverRejectsWrongPhrase(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register("heidi", "heidi@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Recover("heidi", "totally wrong phrase", "newpassword1"); !apierr.Is(err, apierr.Auth) {
		t.Fatalf("expected Auth error, got %v", err)
	}
}

func TestResetPasswordRequiresCurrentPassword(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Register("ivan", "ivan@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.ResetPassword(res.User.ID, "wrong-current", "newpassword1"); !apierr.Is(err, apierr.Auth) {
		t.Fatalf("expected Auth error, got %v", err)
	}
	if err := svc.ResetPassword(res.User.ID, "password123", "newpassword1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
}

func TestUpdateProfileChangesEmail(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Register("judy", "judy@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	u, err := svc.UpdateProfile(res.User.ID, "judy-new@example.com")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Email != "judy-new@example.com" {
		t.Fatalf("expected email to be updated, got %q", u.Email)
	}
}
