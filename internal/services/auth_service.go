package services

//go:generate mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/apperrors"
	"github.com/thereayou/innohub-chat/internal/models"
	"github.com/thereayou/innohub-chat/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type RegisterInput struct {
	Name        string `validate:"required,min=2,max=100"`
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=8,max=72"`
	AccountType string `validate:"required,oneof=innovator buyer"`
}

type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users      UserStore
	jwtManager *auth.JWTManager
	blacklist  TokenBlacklist
	logger     *slog.Logger
}

func NewAuthService(users UserStore, jwtManager *auth.JWTManager, blacklist TokenBlacklist, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, jwtManager: jwtManager, blacklist: blacklist, logger: logger}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		AccountType:  in.AccountType,
		LastSeenAt:   time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "account_type", user.AccountType)
	return s.issue(user)
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	if err := s.users.UpdateLastSeen(ctx, user.ID); err != nil {
		s.logger.Warn("could not update last seen", "user_id", user.ID, "error", err)
	}

	return s.issue(user)
}

// Logout revokes token until it expires.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	exp, err := s.jwtManager.Expiry(token)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	return s.blacklist.Revoke(ctx, token, time.Until(exp))
}

// Authenticate resolves a bearer token to an identity. Only tokens that
// verify are looked up in the blacklist; a lookup failure rejects the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.jwtManager.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthorized)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid user id", apperrors.ErrUnauthorized)
	}

	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		s.logger.Warn("token blacklist unavailable", "error", err)
		return Identity{}, fmt.Errorf("%w: token check failed", apperrors.ErrUnauthorized)
	}
	if revoked {
		return Identity{}, fmt.Errorf("%w: token is blacklisted", apperrors.ErrUnauthorized)
	}

	return Identity{UserID: userID, Role: claims.Role}, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.jwtManager.Generate(user.ID.String(), user.AccountType)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
