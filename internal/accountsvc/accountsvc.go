// Package accountsvc is the user-identity collaborator behind the Auth
// routes (§6): registration, login, token refresh, recovery, and profile
// mutation. Grounded on the teacher's internal/services/user_service.go
// (UserService wrapping a repo + auth package, bcrypt password hashing,
// access+refresh token pair on login), generalized to the injectable
// auth.Issuer and extended with the vault-backed per-user salt and a
// one-time recovery phrase the distilled spec's register/recover routes
// require but the teacher's Signup/Login never needed.
package accountsvc

import (
	"crypto/rand"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/arenahq/bot-arena/internal/auth"
	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/internal/vault"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

type Service struct {
	users  *database.UserRepository
	issuer *auth.Issuer
}

func New(users *database.UserRepository, issuer *auth.Issuer) *Service {
	return &Service{users: users, issuer: issuer}
}

// Tokens is the pair every successful auth flow returns.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// RegisterResult additionally carries the one-time recovery phrase — shown
// to the caller exactly once, at registration, and never retrievable again.
type RegisterResult struct {
	User           *models.User
	Tokens         Tokens
	RecoveryPhrase string
}

func (s *Service) Register(username, email, password string) (*RegisterResult, error) {
	if len(password) < 8 {
		return nil, apierr.NewValidation(apierr.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "hash password", err)
	}
	salt, err := vault.NewSalt()
	if err != nil {
		return nil, err
	}
	phrase, err := generateRecoveryPhrase()
	if err != nil {
		return nil, err
	}
	phraseHash, err := bcrypt.GenerateFromPassword([]byte(phrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "hash recovery phrase", err)
	}

	u := &models.User{
		Username:           username,
		Email:              email,
		PasswordHash:       string(hash),
		Role:               models.RoleUser,
		Active:             true,
		EncryptionSalt:     salt,
		RecoveryPhraseHash: string(phraseHash),
	}
	if err := s.users.Create(u); err != nil {
		return nil, err
	}
	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: u, Tokens: tokens, RecoveryPhrase: phrase}, nil
}

func (s *Service) Login(username, password string) (*models.User, Tokens, error) {
	u, err := s.users.ByUsername(username)
	if err != nil {
		return nil, Tokens{}, apierr.New(apierr.Auth, "invalid username or password")
	}
	if !u.Active {
		return nil, Tokens{}, apierr.New(apierr.Forbidden, "account disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, Tokens{}, apierr.New(apierr.Auth, "invalid username or password")
	}
	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, Tokens{}, err
	}
	return u, tokens, nil
}

func (s *Service) Refresh(refreshToken string) (Tokens, error) {
	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return Tokens{}, apierr.New(apierr.Auth, "invalid or expired refresh token")
	}
	u, err := s.users.ByID(claims.UserID)
	if err != nil {
		return Tokens{}, apierr.New(apierr.Auth, "account no longer exists")
	}
	if !u.Active {
		return Tokens{}, apierr.New(apierr.Forbidden, "account disabled")
	}
	return s.issueTokens(u)
}

// Recover resets a password given a valid username+recovery-phrase pair,
// per §6 POST /auth/recover. It never issues new tokens: the caller must
// log in again with the new password.
func (s *Service) Recover(username, phrase, newPassword string) error {
	u, err := s.users.ByUsername(username)
	if err != nil {
		return apierr.New(apierr.Auth, "invalid recovery credentials")
	}
	if u.RecoveryPhraseHash == "" || bcrypt.CompareHashAndPassword([]byte(u.RecoveryPhraseHash), []byte(phrase)) != nil {
		return apierr.New(apierr.Auth, "invalid recovery credentials")
	}
	return s.setPassword(u, newPassword)
}

func (s *Service) ResetPassword(userID uint, currentPassword, newPassword string) error {
	u, err := s.users.ByID(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return apierr.New(apierr.Auth, "current password is incorrect")
	}
	return s.setPassword(u, newPassword)
}

func (s *Service) setPassword(u *models.User, newPassword string) error {
	if len(newPassword) < 8 {
		return apierr.NewValidation(apierr.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "hash password", err)
	}
	u.PasswordHash = string(hash)
	return s.users.Update(u)
}

func (s *Service) UpdateProfile(userID uint, email string) (*models.User, error) {
	u, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if email != "" {
		u.Email = email
	}
	if err := s.users.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Me(userID uint) (*models.User, error) {
	return s.users.ByID(userID)
}

func (s *Service) issueTokens(u *models.User) (Tokens, error) {
	access, err := s.issuer.AccessToken(u)
	if err != nil {
		return Tokens{}, apierr.Wrap(apierr.Internal, "issue access token", err)
	}
	refresh, err := s.issuer.RefreshToken(u)
	if err != nil {
		return Tokens{}, apierr.Wrap(apierr.Internal, "issue refresh token", err)
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

var recoveryWords = []string{
	"anchor", "basin", "cedar", "delta", "ember", "flint", "glade", "harbor",
	"inlet", "jasper", "kiln", "lumen", "meadow", "nomad", "onyx", "pivot",
	"quartz", "ridge", "summit", "talon", "umbra", "vapor", "willow", "xenon",
	"yield", "zephyr", "brook", "cinder", "dune", "ferrous", "granite", "haven",
}

// generateRecoveryPhrase returns six space-separated words drawn from a
// fixed wordlist using crypto/rand, shown to the caller exactly once.
func generateRecoveryPhrase() (string, error) {
	words := make([]string, 6)
	for i := range words {
		n, err := randIndex(len(recoveryWords))
		if err != nil {
			return "", apierr.Wrap(apierr.Internal, "generate recovery phrase", err)
		}
		words[i] = recoveryWords[n]
	}
	return strings.Join(words, " "), nil
}

func randIndex(n int) (int, error) {
	b := make([]byte, 1)
	for {
		if _, err := rand.Read(b); err != nil {
			return 0, err
		}
		if int(b[0]) < (256/n)*n {
			return int(b[0]) % n, nil
		}
	}
}
