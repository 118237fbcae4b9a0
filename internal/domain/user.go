package domain

import (
	"strings"
	"time"
)

// UserRole is the marketplace role an account registers under.
type UserRole string

const (
	RoleCustomer    UserRole = "Customer"
	RoleConstructor UserRole = "Constructor"
	RoleSupplier    UserRole = "Supplier"
	RoleArchitect   UserRole = "Architect"
	RoleAdmin       UserRole = "Admin"
)

// RegistrableRoles lists the roles offered by the sign-up form.
var RegistrableRoles = []UserRole{RoleCustomer, RoleConstructor, RoleSupplier, RoleArchitect}

// ParseUserRole resolves a role name case-insensitively. Admin is never registrable.
func ParseUserRole(s string) (UserRole, bool) {
	for _, role := range RegistrableRoles {
		if strings.EqualFold(string(role), strings.TrimSpace(s)) {
			return role, true
		}
	}
	return "", false
}

// UserStatus represents lifecycle states for a marketplace account.
type UserStatus string

const (
	UserStatusPendingReview UserStatus = "PENDING_REVIEW"
	UserStatusActive        UserStatus = "ACTIVE"
	UserStatusRejected      UserStatus = "REJECTED"
	UserStatusSuspended     UserStatus = "SUSPENDED"
)

// CanSignIn reports whether the status allows issuing tokens.
func (s UserStatus) CanSignIn() bool {
	return s == UserStatusActive || s == UserStatusPendingReview
}

// User is a registered customer, professional, supplier or administrator.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
