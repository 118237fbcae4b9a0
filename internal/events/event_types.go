package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/bid2build/bid2build/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventDocumentReviewed       EventType = "document_reviewed"
	EventUserStatusChanged      EventType = "user_status_changed"
	EventPasswordResetRequested EventType = "password_reset_requested"
)

// RoutingKey is the broker routing key for the event type, e.g. user.registered.
func (t EventType) RoutingKey() string {
	switch t {
	case EventUserRegistered:
		return "user.registered"
	case EventDocumentReviewed:
		return "document.reviewed"
	case EventUserStatusChanged:
		return "user.status_changed"
	case EventPasswordResetRequested:
		return "user.password_reset_requested"
	default:
		return string(t)
	}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, userID string, actorID *string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Role      domain.UserRole   `json:"role"`
	Status    domain.UserStatus `json:"status"`
	Documents []string          `json:"documents,omitempty"`
}

// DocumentReviewedPayload payload.
type DocumentReviewedPayload struct {
	DocumentID string                `json:"document_id"`
	Kind       string                `json:"kind"`
	Decision   domain.DocumentStatus `json:"decision"`
	Note       string                `json:"note,omitempty"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	Email     string            `json:"email"`
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
}

// PasswordResetRequestedPayload payload. Token is delivered to the user's inbox only.
type PasswordResetRequestedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
