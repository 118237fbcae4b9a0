package dto

import (
	"time"

	"github.com/bid2build/bid2build/internal/domain"
)

// DocumentResponse describes an uploaded identity document.
type DocumentResponse struct {
	ID         string                `json:"id"`
	UserID     string                `json:"userId"`
	Kind       string                `json:"kind"`
	FileName   string                `json:"fileName"`
	MimeType   string                `json:"mimeType"`
	SizeBytes  int64                 `json:"sizeBytes"`
	Status     domain.DocumentStatus `json:"status"`
	ReviewNote string                `json:"reviewNote,omitempty"`
	ReviewedAt *time.Time            `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// NewDocumentResponse converts a domain document.
func NewDocumentResponse(d domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		UserID:     d.UserID,
		Kind:       d.Kind,
		FileName:   d.FileName,
		MimeType:   d.MimeType,
		SizeBytes:  d.SizeBytes,
		Status:     d.Status,
		ReviewNote: d.ReviewNote,
		ReviewedAt: d.ReviewedAt,
		CreatedAt:  d.CreatedAt,
	}
}

// NewDocumentResponses converts a list, never returning nil.
func NewDocumentResponses(docs []domain.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, NewDocumentResponse(d))
	}
	return out
}

// DocumentListResponse pages pending documents for reviewers.
type DocumentListResponse struct {
	Success   bool               `json:"success"`
	Documents []DocumentResponse `json:"documents"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// ReviewRequest is an admin decision on one document.
type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Note     string `json:"note" validate:"max=1000"`
}

// ReviewResponse reports the decision and where it left the owner.
type ReviewResponse struct {
	Success    bool              `json:"success"`
	Document   DocumentResponse  `json:"document"`
	UserStatus domain.UserStatus `json:"userStatus"`
}
