package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	errEmptyName     = fmt.Errorf("%w: name is required", core.ErrValidation)
	errInvalidEmail  = fmt.Errorf("%w: invalid email address", core.ErrValidation)
	errShortPassword = fmt.Errorf("%w: password must be at least 8 characters", core.ErrValidation)
)

// AuthStore is the slice of the record store the credential service needs.
type AuthStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	CreateSession(ctx context.Context, s *core.Session) error
	GetSession(ctx context.Context, token string) (*core.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuthService issues credentials and resolves bearer tokens to stable user
// ids. The ledger core never sees a raw credential, only the resolved id.
type AuthService struct {
	store      AuthStore
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(store AuthStore, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		store:      store,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Register creates a user with a bcrypt password hash and opens a session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*core.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, "", errEmptyName
	}
	if !strings.Contains(email, "@") {
		return nil, "", errInvalidEmail
	}
	if len(password) < 8 {
		return nil, "", errShortPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, "", fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &core.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and opens a fresh session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Resolve maps a bearer token to its user id, failing for unknown or
// expired sessions.
func (s *AuthService) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidCredentials
	}

	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if s.now().After(sess.ExpiresAt) {
		return "", ErrInvalidCredentials
	}
	return sess.UserID, nil
}

// PruneSessions drops expired sessions and returns how many were removed.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}

func (s *AuthService) openSession(ctx context.Context, userID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	sess := &core.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
