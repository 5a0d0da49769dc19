/*
Package user implements account signup and login.

Passwords are stored as bcrypt hashes. Successful signup and login return a signed
token whose username the websocket handshake later trusts.
*/
package user

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"tempchat/internal/app/model"
	"tempchat/internal/app/store"
	"tempchat/internal/pkg/auth/jwt"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6

	// maxPasswordBytes is the bcrypt input limit.
	maxPasswordBytes = 72
)

// AccountStore is the subset of store.Store the service needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, username, displayName, passwordHash string) (*model.Account, error)
	GetAccount(ctx context.Context, username string) (*model.Account, error)
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Account *model.Account `json:"user"`
	Token   string         `json:"token"`
}

// Service handles account registration and authentication.
type Service struct {
	store     AccountStore
	jwtSecret string
	tokenTTL  time.Duration
	hashCost  int
	now       func() time.Time
}

// NewService creates a Service. tokenTTL bounds issued tokens; zero means jwt.AccountTokenExpiration.
func NewService(s AccountStore, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = jwt.AccountTokenExpiration
	}
	return &Service{
		store:     s,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// ValidateUsername trims name and checks its length.
func ValidateUsername(name string) (string, *errs.CustomError) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return "", errs.NewError(errs.ErrInvalidUsername)
	}
	return name, nil
}

func validatePassword(password string) *errs.CustomError {
	if len(password) < MinPasswordLength || len(password) > maxPasswordBytes {
		return errs.NewError(errs.ErrInvalidPassword)
	}
	return nil
}

// Signup registers username with password. The display name defaults to the username.
func (s *Service) Signup(ctx context.Context, username, password string) (*AuthResult, error) {
	username, cErr := ValidateUsername(username)
	if cErr != nil {
		return nil, cErr
	}
	if cErr := validatePassword(password); cErr != nil {
		return nil, cErr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	acc, err := s.store.CreateAccount(ctx, username, username, string(hash))
	if errors.Is(err, store.ErrConflict) {
		return nil, errs.NewError(errs.ErrUserAlreadyExists)
	}
	if err != nil {
		return nil, errs.NewError(errs.ErrStorageFailed, err)
	}

	logx.Info("Account created", "username", acc.Username)
	return s.issue(acc)
}

// Login verifies the credentials and records the login time.
func (s *Service) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errs.NewError(errs.ErrInvalidCredentials)
	}

	acc, err := s.store.GetAccount(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.NewError(errs.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, errs.NewError(errs.ErrStorageFailed, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, errs.NewError(errs.ErrInvalidCredentials)
	}

	now := s.now()
	if err := s.store.TouchLastLogin(ctx, acc.Username, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NewError(errs.ErrInvalidCredentials)
		}
		return nil, errs.NewError(errs.ErrStorageFailed, err)
	}
	acc.LastLogin = now

	return s.issue(acc)
}

// issue signs a token that expires no later than the account itself.
func (s *Service) issue(acc *model.Account) (*AuthResult, error) {
	ttl := s.tokenTTL
	if remaining := acc.ExpiresAt.Sub(s.now()); remaining > 0 && remaining < ttl {
		ttl = remaining
	}

	token, err := jwt.GenerateToken(&jwt.Payload{
		Username:    acc.Username,
		DisplayName: acc.DisplayName,
	}, s.jwtSecret, ttl)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return &AuthResult{Account: acc, Token: token}, nil
}
