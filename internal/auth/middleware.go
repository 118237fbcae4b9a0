package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/repository"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User      *domain.User
	TokenID   string
	ExpiresAt time.Time
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens  *TokenManager
	users   repository.UserRepository
	revoked repository.RevocationStore
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, revoked repository.RevocationStore) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, revoked: revoked}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if revoked {
			return apperrors.NewUnauthorized("token has been revoked")
		}
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Status.CanSignIn() {
		return apperrors.NewForbidden("account is " + strings.ToLower(string(user.Status)))
	}

	principal := &Principal{User: user, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
