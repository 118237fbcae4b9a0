package service

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/repository"
	"github.com/bid2build/bid2build/internal/storage"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

type ReviewServiceSuite struct {
	suite.Suite
	store    *repository.MemoryStore
	recorder *recordedEvents
	register *RegistrationService
	review   *ReviewService
}

func TestReviewServiceSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceSuite))
}

func (s *ReviewServiceSuite) SetupTest() {
	dir := s.T().TempDir()
	cfg := testConfig(dir)
	s.store = repository.NewMemoryStore()
	docs, err := storage.NewLocalStore(dir, cfg.Upload.MaxFileBytes(), cfg.Upload.AllowedTypes)
	s.Require().NoError(err)

	dispatcher := events.NewInMemoryDispatcher()
	s.recorder = &recordedEvents{}
	dispatcher.Subscribe(events.EventDocumentReviewed, s.recorder.handle)
	dispatcher.Subscribe(events.EventUserStatusChanged, s.recorder.handle)

	s.register = NewRegistrationService(cfg, RegistrationDependencies{
		Store:     s.store,
		Documents: docs,
		Tokens:    newTestTokens(),
	})
	s.review = NewReviewService(s.store, docs, dispatcher, nil, zap.NewNop())
}

func (s *ReviewServiceSuite) registerConstructor() *RegistrationResult {
	in := architectInput()
	in.UserRole = "Constructor"
	in.RoleFields = map[string]string{
		"companyName":    "Lovelace Builders",
		"specialization": "Commercial",
		"licenseNumber":  "C-42",
	}
	in.Files = []UploadedFile{pdfUpload(domain.FileBusinessCertificate), pdfUpload(domain.FileRelevantLicenses)}

	result, err := s.register.Register(context.Background(), "", in)
	s.Require().NoError(err)
	s.Require().Len(result.Documents, 2)
	return result
}

func (s *ReviewServiceSuite) TestApprovingEveryDocumentActivatesUser() {
	ctx := context.Background()
	reg := s.registerConstructor()

	pending, err := s.review.ListByStatus(ctx, domain.DocumentStatusPending, 0, 0)
	s.Require().NoError(err)
	s.Len(pending, 2)

	first, err := s.review.Review(ctx, "admin-1", reg.Documents[0].ID, DecisionApprove, "")
	s.Require().NoError(err)
	s.Equal(domain.UserStatusPendingReview, first.User.Status)
	s.False(first.StatusChanged())

	second, err := s.review.Review(ctx, "admin-1", reg.Documents[1].ID, DecisionApprove, "looks good")
	s.Require().NoError(err)
	s.Equal(domain.UserStatusActive, second.User.Status)
	s.True(second.StatusChanged())
	s.Equal("admin-1", *second.Document.ReviewerID)

	user, err := s.store.Repos().Users.GetByID(ctx, reg.User.ID)
	s.Require().NoError(err)
	s.Equal(domain.UserStatusActive, user.Status)

	s.Equal([]events.EventType{
		events.EventDocumentReviewed,
		events.EventDocumentReviewed,
		events.EventUserStatusChanged,
	}, s.recorder.types())
}

func (s *ReviewServiceSuite) TestRejectionRejectsUser() {
	ctx := context.Background()
	reg := s.registerConstructor()

	_, err := s.review.Review(ctx, "admin-1", reg.Documents[0].ID, DecisionReject, "  ")
	s.True(apperrors.IsCode(err, "VALIDATION_FAILED"))

	outcome, err := s.review.Review(ctx, "admin-1", reg.Documents[0].ID, DecisionReject, "expired certificate")
	s.Require().NoError(err)
	s.Equal(domain.UserStatusRejected, outcome.User.Status)
	s.Equal(domain.DocumentStatusRejected, outcome.Document.Status)

	_, err = s.review.Review(ctx, "admin-1", reg.Documents[0].ID, DecisionApprove, "")
	var de *apperrors.DomainError
	s.Require().ErrorAs(err, &de)
	s.Equal(http.StatusConflict, de.HTTPStatus)
}

func (s *ReviewServiceSuite) TestUnknownDecisionAndDocument() {
	_, err := s.review.Review(context.Background(), "admin-1", "missing", ReviewDecision("maybe"), "")
	s.True(apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = s.review.Review(context.Background(), "admin-1", "missing", DecisionApprove, "")
	s.True(apperrors.IsCode(err, "NOT_FOUND"))

	_, _, err = s.review.OpenDocument(context.Background(), "missing")
	s.True(apperrors.IsCode(err, "NOT_FOUND"))
}

func (s *ReviewServiceSuite) TestOpenDocument() {
	reg := s.registerConstructor()

	doc, rc, err := s.review.OpenDocument(context.Background(), reg.Documents[0].ID)
	s.Require().NoError(err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal(pdfContent, content)
	s.Equal(domain.FileBusinessCertificate, doc.Kind)
}

func TestNextUserStatus(t *testing.T) {
	approved := domain.Document{Status: domain.DocumentStatusApproved}
	pending := domain.Document{Status: domain.DocumentStatusPending}
	rejected := domain.Document{Status: domain.DocumentStatusRejected}

	tests := []struct {
		name    string
		current domain.UserStatus
		docs    []domain.Document
		want    domain.UserStatus
	}{
		{"all approved", domain.UserStatusPendingReview, []domain.Document{approved, approved}, domain.UserStatusActive},
		{"still pending", domain.UserStatusPendingReview, []domain.Document{approved, pending}, domain.UserStatusPendingReview},
		{"any rejected", domain.UserStatusPendingReview, []domain.Document{approved, rejected}, domain.UserStatusRejected},
		{"no documents", domain.UserStatusPendingReview, nil, domain.UserStatusPendingReview},
		{"suspended untouched", domain.UserStatusSuspended, []domain.Document{approved}, domain.UserStatusSuspended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextUserStatus(tt.current, tt.docs); got != tt.want {
				t.Errorf("nextUserStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
