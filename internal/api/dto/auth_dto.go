package dto

import (
	"time"

	"github.com/bid2build/bid2build/internal/domain"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequest asks for a reset token to be sent to email.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,b2b_email"`
}

// PasswordResetConfirmRequest redeems a reset token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// PasswordChangeRequest changes the caller's password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Phone     string            `json:"phone,omitempty"`
	Role      domain.UserRole   `json:"role"`
	Status    domain.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewUserResponse converts a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterResponse is returned by POST /api/auth/register.
type RegisterResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	User      UserResponse       `json:"user"`
	Documents []DocumentResponse `json:"documents"`
	AuthResponse
}

// LoginResponse is returned by POST /api/auth/login.
type LoginResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
	AuthResponse
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	Success   bool               `json:"success"`
	User      UserResponse       `json:"user"`
	Profile   map[string]string  `json:"profile,omitempty"`
	Documents []DocumentResponse `json:"documents"`
}

// MessageResponse acknowledges an action without a payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
	Details map[string]any         `json:"details,omitempty"`
}
