package domain

import "time"

// DocumentStatus tracks the admin review of an uploaded identity document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusApproved DocumentStatus = "APPROVED"
	DocumentStatusRejected DocumentStatus = "REJECTED"
)

// Document stores metadata for a file attached at registration. Kind is the form key
// the file was uploaded under (see FileKeys).
type Document struct {
	ID         string
	UserID     string
	Kind       string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	Status     DocumentStatus
	ReviewerID *string
	ReviewNote string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}
