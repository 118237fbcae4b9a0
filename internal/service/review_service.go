package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/observability"
	"github.com/bid2build/bid2build/internal/repository"
	"github.com/bid2build/bid2build/internal/storage"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// ReviewDecision is an admin verdict on one identity document.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

func alreadyReviewed() error {
	return apperrors.NewConflict("document has already been reviewed")
}

// ReviewOutcome reports the reviewed document and the owner's status after the decision.
type ReviewOutcome struct {
	Document  *domain.Document
	User      *domain.User
	OldStatus domain.UserStatus
}

// StatusChanged reports whether the decision moved the owner to a new status.
func (o *ReviewOutcome) StatusChanged() bool {
	return o.User != nil && o.OldStatus != o.User.Status
}

// ReviewService lets administrators verify the documents uploaded at registration.
type ReviewService struct {
	store      repository.Store
	documents  storage.DocumentStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewReviewService builds the service.
func NewReviewService(store repository.Store, documents storage.DocumentStore, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		store:      store,
		documents:  documents,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// ListByStatus pages through documents in the given review state, oldest first.
func (s *ReviewService) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Repos().Documents.ListByStatus(ctx, status, limit, offset)
}

// OpenDocument returns the metadata and content of a stored document. The caller closes the reader.
func (s *ReviewService) OpenDocument(ctx context.Context, id string) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.store.Repos().Documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("document", map[string]any{"id": id})
		}
		return nil, nil, err
	}
	rc, err := s.documents.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open document %s: %w", doc.ID, err)
	}
	return doc, rc, nil
}

// Review records the decision and recomputes the owner's status: every document approved
// activates a pending account, any rejection rejects it.
func (s *ReviewService) Review(ctx context.Context, reviewerID, documentID string, decision ReviewDecision, note string) (*ReviewOutcome, error) {
	var newStatus domain.DocumentStatus
	switch decision {
	case DecisionApprove:
		newStatus = domain.DocumentStatusApproved
	case DecisionReject:
		newStatus = domain.DocumentStatusRejected
		if strings.TrimSpace(note) == "" {
			return nil, apperrors.NewFieldErrors("Validation failed", []apperrors.FieldError{{Field: "note", Message: "is required when rejecting"}})
		}
	default:
		return nil, apperrors.NewFieldErrors("Validation failed", []apperrors.FieldError{{Field: "decision", Message: "must be one of: approve, reject"}})
	}

	outcome := &ReviewOutcome{}
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		doc, err := repos.Documents.GetByID(ctx, documentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("document", map[string]any{"id": documentID})
			}
			return err
		}

		// Decisions on one owner's documents serialize on the owner row, so the
		// document reads below see every decision committed before this one.
		user, err := repos.Users.GetForUpdate(ctx, doc.UserID)
		if err != nil {
			return err
		}
		outcome.User = user
		outcome.OldStatus = user.Status

		if doc, err = repos.Documents.GetByID(ctx, documentID); err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusPending {
			return alreadyReviewed()
		}

		reviewedAt := s.now().UTC()
		doc.Status = newStatus
		doc.ReviewerID = &reviewerID
		doc.ReviewNote = strings.TrimSpace(note)
		doc.ReviewedAt = &reviewedAt
		if err := repos.Documents.UpdateReview(ctx, doc); err != nil {
			if errors.Is(err, repository.ErrAlreadyReviewed) {
				return alreadyReviewed()
			}
			return err
		}
		outcome.Document = doc

		docs, err := repos.Documents.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		next := nextUserStatus(user.Status, docs)
		if next == user.Status {
			return nil
		}
		if err := repos.Users.UpdateStatus(ctx, user.ID, next); err != nil {
			return err
		}
		user.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReview(string(decision))
	s.publish(ctx, events.NewEvent(events.EventDocumentReviewed, outcome.User.ID, &reviewerID, events.DocumentReviewedPayload{
		DocumentID: outcome.Document.ID,
		Kind:       outcome.Document.Kind,
		Decision:   outcome.Document.Status,
		Note:       outcome.Document.ReviewNote,
	}))
	if outcome.StatusChanged() {
		s.publish(ctx, events.NewEvent(events.EventUserStatusChanged, outcome.User.ID, &reviewerID, events.UserStatusChangedPayload{
			Email:     outcome.User.Email,
			OldStatus: outcome.OldStatus,
			NewStatus: outcome.User.Status,
		}))
	}
	s.logger.Info("document reviewed",
		zap.String("document_id", outcome.Document.ID),
		zap.String("decision", string(decision)),
		zap.String("user_status", string(outcome.User.Status)))
	return outcome, nil
}

// nextUserStatus only moves accounts that are still waiting on review.
func nextUserStatus(current domain.UserStatus, docs []domain.Document) domain.UserStatus {
	if current != domain.UserStatusPendingReview || len(docs) == 0 {
		return current
	}
	allApproved := true
	for _, doc := range docs {
		switch doc.Status {
		case domain.DocumentStatusRejected:
			return domain.UserStatusRejected
		case domain.DocumentStatusPending:
			allApproved = false
		}
	}
	if allApproved {
		return domain.UserStatusActive
	}
	return current
}

func (s *ReviewService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
