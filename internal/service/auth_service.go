package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/auth"
	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/repository"
	"github.com/bid2build/bid2build/internal/validation"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// Account is a user together with the role profile and documents captured at registration.
type Account struct {
	User      *domain.User
	Profile   *domain.Profile
	Documents []domain.Document
}

// AuthService coordinates login, logout and password flows.
type AuthService struct {
	store       repository.Store
	revocations repository.RevocationStore
	dispatcher  events.Dispatcher
	tokenMgr    *auth.TokenManager
	logger      *zap.Logger
	bcryptCost  int
	resetTTL    time.Duration
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store       repository.Store
	Revocations repository.RevocationStore
	Dispatcher  events.Dispatcher
	Tokens      *auth.TokenManager
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:       deps.Store,
		revocations: deps.Revocations,
		dispatcher:  deps.Dispatcher,
		tokenMgr:    tokens,
		logger:      logger,
		bcryptCost:  cfg.BcryptCost,
		resetTTL:    time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute,
	}
}

// Login authenticates a user and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.store.Repos().Users.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Status.CanSignIn() {
		return nil, "", time.Time{}, apperrors.NewForbidden("account is not allowed to sign in")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.revocations == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, tokenID, time.Until(expiresAt))
}

// Me loads the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*Account, error) {
	repos := s.store.Repos()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	account := &Account{User: user}

	profile, err := repos.Profiles.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		account.Profile = profile
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	docs, err := repos.Documents.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	account.Documents = docs
	return account, nil
}

// RequestPasswordReset persists a reset token and announces it for delivery. Unknown emails
// succeed silently with a nil token so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	repos := s.store.Repos()
	user, err := repos.Users.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := repos.PasswordResets.Create(ctx, token); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventPasswordResetRequested, user.ID, nil, events.PasswordResetRequestedPayload{
		Email:     user.Email,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}))
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if errs := passwordFieldErrors("newPassword", newPassword); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	return s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		token, err := repos.PasswordResets.GetByToken(ctx, tokenStr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewValidationError("reset token is invalid", nil)
			}
			return err
		}
		if !token.Usable(time.Now()) {
			return apperrors.NewValidationError("reset token expired or already used", nil)
		}

		user, err := repos.Users.GetByID(ctx, token.UserID)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		return repos.PasswordResets.MarkUsed(ctx, token.ID)
	})
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if errs := passwordFieldErrors("newPassword", newPassword); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}

	users := s.store.Repos().Users
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return users.Update(ctx, user)
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	users := s.store.Repos().Users
	email = validation.NormalizeEmail(email)
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Email:        email,
		FirstName:    "Site",
		LastName:     "Admin",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
	}
	if err := users.Create(ctx, admin); err != nil && !errors.Is(err, repository.ErrDuplicateEmail) {
		return err
	}
	s.logger.Info("bootstrap admin ensured", zap.String("email", email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func passwordFieldErrors(field, password string) []apperrors.FieldError {
	msgs := validation.ValidatePassword(password)
	errs := make([]apperrors.FieldError, 0, len(msgs))
	for _, msg := range msgs {
		errs = append(errs, apperrors.FieldError{Field: field, Message: msg})
	}
	return errs
}
