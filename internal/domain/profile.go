package domain

import "time"

// Profile holds the role-specific scalar answers given at registration,
// keyed by their form names (companyName, licenseNumber, ...).
type Profile struct {
	UserID     string
	Role       UserRole
	Attributes map[string]string
	CreatedAt  time.Time
}
