package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/auth"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/service"
	"github.com/bid2build/bid2build/internal/validation"
	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// DocumentsHandler serves the admin identity-document review queue.
type DocumentsHandler struct {
	review *service.ReviewService
}

// NewDocumentsHandler constructs handler.
func NewDocumentsHandler(reviewService *service.ReviewService) *DocumentsHandler {
	return &DocumentsHandler{review: reviewService}
}

// List handles GET /api/admin/documents?status=pending&limit=&offset=.
func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	status := domain.DocumentStatus(strings.ToUpper(c.Query("status", string(domain.DocumentStatusPending))))
	switch status {
	case domain.DocumentStatusPending, domain.DocumentStatusApproved, domain.DocumentStatusRejected:
	default:
		return apperrors.NewFieldErrors("Validation failed", []apperrors.FieldError{
			{Field: "status", Message: "must be one of: pending, approved, rejected"},
		})
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	docs, err := h.review.ListByStatus(c.UserContext(), status, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(dto.DocumentListResponse{
		Success:   true,
		Documents: dto.NewDocumentResponses(docs),
		Limit:     limit,
		Offset:    offset,
	})
}

// Download handles GET /api/admin/documents/:id/file.
func (h *DocumentsHandler) Download(c *fiber.Ctx) error {
	doc, rc, err := h.review.OpenDocument(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName))
	// fasthttp closes the stream once the body has been written
	return c.SendStream(rc, int(doc.SizeBytes))
}

// Review handles POST /api/admin/documents/:id/review.
func (h *DocumentsHandler) Review(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if errs := validation.Struct(&req); len(errs) > 0 {
		return apperrors.NewFieldErrors("Validation failed", errs)
	}

	outcome, err := h.review.Review(c.UserContext(), principal.User.ID, c.Params("id"), service.ReviewDecision(req.Decision), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(dto.ReviewResponse{
		Success:    true,
		Document:   dto.NewDocumentResponse(*outcome.Document),
		UserStatus: outcome.User.Status,
	})
}
