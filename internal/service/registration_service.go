package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/auth"
	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/observability"
	"github.com/bid2build/bid2build/internal/repository"
	"github.com/bid2build/bid2build/internal/storage"
	"github.com/bid2build/bid2build/internal/validation"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// UploadedFile is one file part of the registration form.
type UploadedFile struct {
	Field       string
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// RegistrationInput carries the base fields, the role sub-form scalars and the attached files.
type RegistrationInput struct {
	Email           string `json:"email" validate:"required,max=254,b2b_email"`
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"omitempty,b2b_phone"`
	Password        string `json:"password" validate:"required,b2b_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	UserRole        string `json:"userRole" validate:"required,b2b_role"`

	RoleFields map[string]string `json:"-"`
	Files      []UploadedFile    `json:"-"`
}

// RegistrationResult is what a successful (or replayed) registration yields.
type RegistrationResult struct {
	User      *domain.User
	Documents []domain.Document
	Token     string
	ExpiresAt time.Time
	Replayed  bool
}

// registrationRecord is what the idempotency store keeps for a completed attempt.
type registrationRecord struct {
	Email     string    `json:"email"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegistrationService creates marketplace accounts from the registration wizard.
type RegistrationService struct {
	store       repository.Store
	idempotency repository.IdempotencyStore
	documents   storage.DocumentStore
	dispatcher  events.Dispatcher
	tokens      *auth.TokenManager
	metrics     *observability.Metrics
	logger      *zap.Logger

	bcryptCost   int
	maxFileBytes int64
	idemTTL      time.Duration
}

// RegistrationDependencies bundles collaborators for the registration service.
type RegistrationDependencies struct {
	Store       repository.Store
	Idempotency repository.IdempotencyStore
	Documents   storage.DocumentStore
	Dispatcher  events.Dispatcher
	Tokens      *auth.TokenManager
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewRegistrationService builds the service.
func NewRegistrationService(cfg *config.Config, deps RegistrationDependencies) *RegistrationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		store:        deps.Store,
		idempotency:  deps.Idempotency,
		documents:    deps.Documents,
		dispatcher:   deps.Dispatcher,
		tokens:       deps.Tokens,
		metrics:      deps.Metrics,
		logger:       logger,
		bcryptCost:   cfg.Auth.BcryptCost,
		maxFileBytes: cfg.Upload.MaxFileBytes(),
		idemTTL:      cfg.Idempotency.TTL(),
	}
}

// Register validates the form, stores the account with its profile and documents atomically,
// and issues an access token. A non-empty idempotencyKey makes retries of the same attempt
// return the original result instead of creating a second account.
func (s *RegistrationService) Register(ctx context.Context, idempotencyKey string, in RegistrationInput) (*RegistrationResult, error) {
	role, fieldErrs := s.validate(&in)
	if len(fieldErrs) > 0 {
		s.metrics.RecordRegistration(roleLabel(role), "rejected")
		return nil, apperrors.NewFieldErrors("Validation failed", fieldErrs)
	}
	email := validation.NormalizeEmail(in.Email)

	if idempotencyKey != "" && s.idempotency != nil {
		state, stored, err := s.idempotency.Reserve(ctx, idempotencyKey, s.idemTTL)
		if err != nil {
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
		switch state {
		case repository.IdempotencyInProgress:
			return nil, apperrors.NewConflict("A registration with this Idempotency-Key is already in progress")
		case repository.IdempotencyCompleted:
			return s.replay(ctx, email, role, stored)
		}
	}

	result, err := s.create(ctx, email, role, in)
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(context.WithoutCancel(ctx), idempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", zap.Error(relErr))
			}
		}
		outcome := "failed"
		var de *apperrors.DomainError
		if errors.As(err, &de) && de.HTTPStatus < 500 {
			outcome = "rejected"
		}
		s.metrics.RecordRegistration(roleLabel(role), outcome)
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		record, _ := json.Marshal(registrationRecord{Email: email, UserID: result.User.ID, Token: result.Token, ExpiresAt: result.ExpiresAt})
		if err := s.idempotency.Complete(ctx, idempotencyKey, record, s.idemTTL); err != nil {
			s.logger.Warn("store idempotency record", zap.String("user_id", result.User.ID), zap.Error(err))
		}
	}
	s.metrics.RecordRegistration(roleLabel(role), "created")

	kinds := make([]string, 0, len(result.Documents))
	for _, doc := range result.Documents {
		kinds = append(kinds, doc.Kind)
	}
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, result.User.ID, nil, events.UserRegisteredPayload{
		Email:     result.User.Email,
		FirstName: result.User.FirstName,
		LastName:  result.User.LastName,
		Role:      result.User.Role,
		Status:    result.User.Status,
		Documents: kinds,
	}))

	s.logger.Info("user registered",
		zap.String("user_id", result.User.ID),
		zap.String("role", string(role)),
		zap.String("status", string(result.User.Status)),
		zap.Int("documents", len(result.Documents)))
	return result, nil
}

func (s *RegistrationService) validate(in *RegistrationInput) (domain.UserRole, []apperrors.FieldError) {
	errs := validation.Struct(in)

	role, ok := domain.ParseUserRole(in.UserRole)
	if !ok {
		return role, errs
	}

	fileKeys := make([]string, 0, len(in.Files))
	for _, f := range in.Files {
		fileKeys = append(fileKeys, f.Field)
		if s.maxFileBytes > 0 && f.Size > s.maxFileBytes {
			errs = append(errs, apperrors.FieldError{Field: f.Field, Message: fmt.Sprintf("file exceeds the %d MB limit", s.maxFileBytes>>20)})
		}
	}
	errs = append(errs, validation.RoleData(role, in.RoleFields, fileKeys)...)
	return role, errs
}

func (s *RegistrationService) create(ctx context.Context, email string, role domain.UserRole, in RegistrationInput) (*RegistrationResult, error) {
	repos := s.store.Repos()
	if _, err := repos.Users.GetByEmail(ctx, email); err == nil {
		return nil, duplicateEmailError()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	schema, _ := domain.SchemaFor(role)
	status := domain.UserStatusActive
	if schema.RequiresReview() {
		status = domain.UserStatusPendingReview
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
	}
	profile := &domain.Profile{UserID: user.ID, Role: role, Attributes: profileAttributes(schema, in.RoleFields)}

	docs, err := s.saveFiles(ctx, user.ID, in.Files)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}
		if err := tx.Profiles.Create(ctx, profile); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		for i := range docs {
			if err := tx.Documents.Create(ctx, &docs[i]); err != nil {
				return fmt.Errorf("create document %s: %w", docs[i].Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		s.deleteFiles(docs)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, duplicateEmailError()
		}
		return nil, err
	}

	token, exp, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &RegistrationResult{User: user, Documents: docs, Token: token, ExpiresAt: exp}, nil
}

// saveFiles writes every upload to the document store, undoing the ones already written on failure.
func (s *RegistrationService) saveFiles(ctx context.Context, userID string, files []UploadedFile) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		doc, err := s.saveFile(ctx, userID, f)
		if err != nil {
			s.deleteFiles(docs)
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *RegistrationService) saveFile(ctx context.Context, userID string, f UploadedFile) (domain.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return domain.Document{}, fmt.Errorf("open upload %s: %w", f.Field, err)
	}
	defer rc.Close()

	obj, err := s.documents.Save(ctx, userID, f.Field, rc)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return domain.Document{}, apperrors.NewFieldErrors("Validation failed", []apperrors.FieldError{
			{Field: f.Field, Message: "must be a PDF, JPEG, PNG or WebP file"},
		})
	case errors.Is(err, storage.ErrTooLarge):
		return domain.Document{}, apperrors.NewFieldErrors("Validation failed", []apperrors.FieldError{
			{Field: f.Field, Message: fmt.Sprintf("file exceeds the %d MB limit", s.maxFileBytes>>20)},
		})
	case err != nil:
		return domain.Document{}, fmt.Errorf("store upload %s: %w", f.Field, err)
	}

	return domain.Document{
		UserID:     userID,
		Kind:       f.Field,
		StorageKey: obj.Key,
		FileName:   f.FileName,
		MimeType:   obj.ContentType,
		SizeBytes:  obj.Size,
		Status:     domain.DocumentStatusPending,
	}, nil
}

func (s *RegistrationService) deleteFiles(docs []domain.Document) {
	for _, doc := range docs {
		if err := s.documents.Delete(context.Background(), doc.StorageKey); err != nil {
			s.logger.Warn("remove orphaned upload", zap.String("key", doc.StorageKey), zap.Error(err))
		}
	}
}

func (s *RegistrationService) replay(ctx context.Context, email string, role domain.UserRole, stored []byte) (*RegistrationResult, error) {
	var record registrationRecord
	if err := json.Unmarshal(stored, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	if record.Email != email {
		return nil, apperrors.NewDomainError("IDEMPOTENCY_KEY_REUSED", "Idempotency-Key was already used for a different registration", http.StatusUnprocessableEntity, nil)
	}

	repos := s.store.Repos()
	user, err := repos.Users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("load replayed user: %w", err)
	}
	docs, err := repos.Documents.ListByUser(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("load replayed documents: %w", err)
	}
	s.metrics.RecordRegistration(roleLabel(role), "replayed")
	return &RegistrationResult{User: user, Documents: docs, Token: record.Token, ExpiresAt: record.ExpiresAt, Replayed: true}, nil
}

func (s *RegistrationService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// profileAttributes keeps the non-empty scalars the role's sub-form declares.
func profileAttributes(schema domain.RoleSchema, fields map[string]string) map[string]string {
	attrs := make(map[string]string, len(schema.Fields))
	for _, spec := range schema.Fields {
		if v := strings.TrimSpace(fields[spec.Key]); v != "" {
			attrs[spec.Key] = v
		}
	}
	return attrs
}

func roleLabel(role domain.UserRole) string {
	if role == "" {
		return "unknown"
	}
	return string(role)
}

func duplicateEmailError() error {
	return apperrors.NewConflict("Email already registered", apperrors.FieldError{Field: "email", Message: "already registered"})
}
