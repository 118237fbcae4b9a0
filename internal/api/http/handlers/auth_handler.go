package handlers

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/auth"
	"github.com/bid2build/bid2build/internal/service"
	"github.com/bid2build/bid2build/internal/validation"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

const (
	// HeaderIdempotencyKey carries the client generated id of one registration attempt.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplayed marks a response served from a previous attempt.
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

// baseFields are the multipart keys bound to service.RegistrationInput; every other scalar
// belongs to the role sub-form.
var baseFields = map[string]struct{}{
	"email": {}, "firstName": {}, "lastName": {}, "phone": {},
	"password": {}, "confirmPassword": {}, "userRole": {},
}

// AuthHandler exposes registration, session and password endpoints.
type AuthHandler struct {
	registration *service.RegistrationService
	auth         *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(registration *service.RegistrationService, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{registration: registration, auth: authService}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	key := c.Get(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return apperrors.NewFieldErrors("Validation failed", []apperrors.FieldError{
			{Field: HeaderIdempotencyKey, Message: "must be at most 255 characters"},
		})
	}

	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return apperrors.NewValidationError("expected multipart/form-data", nil)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("invalid multipart body", map[string]any{"reason": err.Error()})
	}

	in := registrationInput(form.Value)
	keys := make([]string, 0, len(form.File))
	for field := range form.File {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	for _, field := range keys {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		in.Files = append(in.Files, service.UploadedFile{
			Field:       field,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	result, err := h.registration.Register(c.UserContext(), key, in)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	message := "Registration successful"
	if result.Replayed {
		status = http.StatusOK
		c.Set(HeaderIdempotentReplayed, "true")
	}
	if len(result.Documents) > 0 {
		message = "Registration successful. Your documents are awaiting review."
	}
	return c.Status(status).JSON(dto.RegisterResponse{
		Success:      true,
		Message:      message,
		User:         dto.NewUserResponse(result.User),
		Documents:    dto.NewDocumentResponses(result.Documents),
		AuthResponse: dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
	})
}

func registrationInput(values map[string][]string) service.RegistrationInput {
	first := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	in := service.RegistrationInput{
		Email:           first("email"),
		FirstName:       first("firstName"),
		LastName:        first("lastName"),
		Phone:           first("phone"),
		Password:        first("password"),
		ConfirmPassword: first("confirmPassword"),
		UserRole:        first("userRole"),
		RoleFields:      make(map[string]string),
	}
	for key := range values {
		if _, base := baseFields[key]; !base {
			in.RoleFields[key] = first(key)
		}
	}
	return in
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if errs := validation.Struct(&req); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{
		Success:      true,
		User:         dto.NewUserResponse(user),
		AuthResponse: dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal.TokenID, principal.ExpiresAt); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "Logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	account, err := h.auth.Me(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	resp := dto.MeResponse{
		Success:   true,
		User:      dto.NewUserResponse(account.User),
		Documents: dto.NewDocumentResponses(account.Documents),
	}
	if account.Profile != nil {
		resp.Profile = account.Profile.Attributes
	}
	return c.JSON(resp)
}

// RequestPasswordReset handles POST /api/auth/password/reset/request. The response is the same
// whether or not the address is registered.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if errs := validation.Struct(&req); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}
	if _, err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(dto.MessageResponse{
		Success: true,
		Message: "If the address is registered, a reset link has been sent",
	})
}

// ConfirmPasswordReset handles POST /api/auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if errs := validation.Struct(&req); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}
	if err := h.auth.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "Password updated"})
}

// ChangePassword handles POST /api/auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if errs := validation.Struct(&req); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}
	if err := h.auth.ChangePassword(c.UserContext(), principal.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "Password updated"})
}
