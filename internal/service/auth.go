// Package service contains application services for authentication and catalog items.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/skillmarket/internal/errs"
	"github.com/and161185/skillmarket/internal/model"
	"github.com/and161185/skillmarket/internal/repository"
	"github.com/and161185/skillmarket/internal/token"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 8

// PasswordHasher derives and checks credential records.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, record string) bool
	NeedsRehash(record string) bool
}

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Sign(id model.Identity) (string, token.Claims, error)
}

// AuthService defines registration, login and identity lookup.
type AuthService interface {
	// Register creates a new user and returns a token for it.
	Register(ctx context.Context, email, username, password string) (model.Tokens, model.User, error)
	// Login checks credentials and returns a token.
	Login(ctx context.Context, email, password string) (model.Tokens, model.User, error)
	// Me returns the user behind an authenticated identity.
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	log    *zap.Logger

	dummyOnce sync.Once
	dummy     string
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, hasher: hasher, tokens: tokens, log: log}
}

// NormalizeEmail trims and lower-cases an email; uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates input, hashes the password and stores the user.
func (s *AuthServiceImpl) Register(ctx context.Context, email, username, password string) (model.Tokens, model.User, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: email, username, and password are required", errs.ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	rec, err := s.hasher.Hash(password)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}

	u := model.User{ID: uid, Email: email, Username: username, PasswordHash: rec}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.Tokens{}, model.User{}, err
	}

	tok, err := s.issue(u)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, u, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// both return errs.ErrUnauthorized after comparable work.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (model.Tokens, model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: email and password are required", errs.ErrValidation)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// burn the same derivation cost as a real check
			_ = s.hasher.Verify(password, s.dummyRecord())
			return model.Tokens{}, model.User{}, errs.ErrUnauthorized
		}
		return model.Tokens{}, model.User{}, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}

	tok, err := s.issue(*u)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

// Me loads the current user.
func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	return s.users.GetByID(ctx, userID)
}

// rehash upgrades a stored record to the current scheme (best-effort).
func (s *AuthServiceImpl) rehash(ctx context.Context, u *model.User, password string) {
	rec, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn("rehash password", zap.String("user_id", u.ID.String()), zap.Error(err))
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, rec); err != nil {
		s.log.Warn("store rehashed password", zap.String("user_id", u.ID.String()), zap.Error(err))
		return
	}
	u.PasswordHash = rec
}

func (s *AuthServiceImpl) issue(u model.User) (model.Tokens, error) {
	signed, claims, err := s.tokens.Sign(u.Identity())
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *AuthServiceImpl) dummyRecord() string {
	s.dummyOnce.Do(func() {
		rec, err := s.hasher.Hash(uuid.Must(uuid.NewV4()).String())
		if err != nil {
			s.log.Warn("dummy credential record", zap.Error(err))
		}
		s.dummy = rec
	})
	return s.dummy
}
