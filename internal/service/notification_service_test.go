package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/events"
)

type outbox struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (o *outbox) deliver(_ context.Context, msg Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func newNotifier(t *testing.T, cfg config.NotificationConfig) (events.Dispatcher, *outbox) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	box := &outbox{}
	n := NewNotificationService(dispatcher, zap.NewNop(), cfg)
	n.deliver = box.deliver
	n.RegisterHandlers()
	return dispatcher, box
}

func TestNotificationService_WelcomeMentionsPendingDocuments(t *testing.T) {
	dispatcher, box := newNotifier(t, config.NotificationConfig{EmailFrom: "noreply@bid2build.example"})

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserRegistered, "u-1", nil, events.UserRegisteredPayload{
		Email:     "ada@example.com",
		FirstName: "Ada",
		Role:      domain.RoleConstructor,
		Status:    domain.UserStatusPendingReview,
		Documents: []string{domain.FileBusinessCertificate, domain.FileRelevantLicenses},
	})))

	require.Len(t, box.sent, 1)
	msg := box.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Welcome to Bid2Build", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Ada")
	assert.Contains(t, msg.Body, "businessCertificate, relevantLicenses")
}

func TestNotificationService_StatusChangeEmails(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.UserStatus
		subject string
	}{
		{"approved", domain.UserStatusActive, "Your Bid2Build account is verified"},
		{"rejected", domain.UserStatusRejected, "We could not verify your Bid2Build account"},
		{"suspended", domain.UserStatusSuspended, "Your Bid2Build account status changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, box := newNotifier(t, config.NotificationConfig{EmailFrom: "noreply@bid2build.example"})
			payload := &events.UserStatusChangedPayload{Email: "ada@example.com", OldStatus: domain.UserStatusPendingReview, NewStatus: tt.status}

			require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserStatusChanged, "u-1", nil, payload)))
			require.Len(t, box.sent, 1)
			assert.Equal(t, tt.subject, box.sent[0].Subject)
		})
	}
}

func TestNotificationService_ResetEmailCarriesCode(t *testing.T) {
	dispatcher, box := newNotifier(t, config.NotificationConfig{EmailFrom: "noreply@bid2build.example"})
	expires := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventPasswordResetRequested, "u-1", nil, events.PasswordResetRequestedPayload{
		Email: "ada@example.com", Token: "reset-code", ExpiresAt: expires,
	})))

	require.Len(t, box.sent, 1)
	assert.Contains(t, box.sent[0].Body, "reset-code")
	assert.Contains(t, box.sent[0].Body, "2026-01-02 15:04 UTC")
}

func TestNotificationService_SkipsWithoutSenderOrPayload(t *testing.T) {
	dispatcher, box := newNotifier(t, config.NotificationConfig{})
	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserStatusChanged, "u-1", nil,
		events.UserStatusChangedPayload{Email: "ada@example.com", NewStatus: domain.UserStatusActive})))
	assert.Empty(t, box.sent)

	dispatcher, box = newNotifier(t, config.NotificationConfig{EmailFrom: "noreply@bid2build.example"})
	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserRegistered, "u-1", nil, nil)))
	assert.Empty(t, box.sent)
}

func TestNotificationService_DeliveryFailureSurfaces(t *testing.T) {
	dispatcher, box := newNotifier(t, config.NotificationConfig{EmailFrom: "noreply@bid2build.example"})
	box.err = errors.New("smtp down")

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventUserStatusChanged, "u-1", nil,
		events.UserStatusChangedPayload{Email: "ada@example.com", NewStatus: domain.UserStatusActive}))
	assert.ErrorIs(t, err, box.err)
}
