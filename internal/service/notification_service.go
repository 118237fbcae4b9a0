package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/events"
)

// Notification is an email addressed to one account holder.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// NotificationService writes the emails account events trigger and reports reviews to the
// configured webhook. Until a mail provider is wired in, delivery is a log line.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	deliver    func(ctx context.Context, msg Notification) error
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
	n.deliver = n.logDelivery
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventDocumentReviewed, n.handleDocumentReviewed)
	n.dispatcher.Subscribe(events.EventUserStatusChanged, n.handleUserStatusChanged)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	p, ok := payloadAs[events.UserRegisteredPayload](event)
	if !ok {
		return nil
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\nThanks for joining Bid2Build as a %s.\n", p.FirstName, p.Role)
	if p.Status == domain.UserStatusPendingReview {
		fmt.Fprintf(&body, "\nWe are checking the documents you uploaded (%s). "+
			"You can sign in meanwhile, and we will email you once your account is verified.\n", strings.Join(p.Documents, ", "))
	} else {
		body.WriteString("\nYour account is ready. Sign in to start posting and bidding on projects.\n")
	}
	return n.email(ctx, Notification{To: p.Email, Subject: "Welcome to Bid2Build", Body: body.String()})
}

func (n *NotificationService) handleDocumentReviewed(_ context.Context, event events.Event) error {
	p, ok := payloadAs[events.DocumentReviewedPayload](event)
	if !ok || strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	n.logger.Info("document review webhook",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("user_id", event.UserID),
		zap.String("document_id", p.DocumentID),
		zap.String("kind", p.Kind),
		zap.String("decision", string(p.Decision)))
	return nil
}

func (n *NotificationService) handleUserStatusChanged(ctx context.Context, event events.Event) error {
	p, ok := payloadAs[events.UserStatusChangedPayload](event)
	if !ok {
		return nil
	}
	msg := Notification{To: p.Email}
	switch p.NewStatus {
	case domain.UserStatusActive:
		msg.Subject = "Your Bid2Build account is verified"
		msg.Body = "Good news: every document you uploaded has been approved. Your account is now active.\n"
	case domain.UserStatusRejected:
		msg.Subject = "We could not verify your Bid2Build account"
		msg.Body = "At least one of the documents you uploaded was rejected, so your account cannot be activated.\n" +
			"Reply to this email to send updated documents.\n"
	default:
		msg.Subject = "Your Bid2Build account status changed"
		msg.Body = fmt.Sprintf("Your account status changed from %s to %s.\n", p.OldStatus, p.NewStatus)
	}
	return n.email(ctx, msg)
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	p, ok := payloadAs[events.PasswordResetRequestedPayload](event)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Use this code to choose a new password: %s\n\nIt expires at %s. "+
		"If you did not ask for a reset, you can ignore this email.\n", p.Token, p.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
	return n.email(ctx, Notification{To: p.Email, Subject: "Reset your Bid2Build password", Body: body})
}

func (n *NotificationService) email(ctx context.Context, msg Notification) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || msg.To == "" {
		return nil
	}
	if err := n.deliver(ctx, msg); err != nil {
		return fmt.Errorf("email %q to %s: %w", msg.Subject, msg.To, err)
	}
	return nil
}

// logDelivery leaves the body out of the log: it may carry a reset code.
func (n *NotificationService) logDelivery(_ context.Context, msg Notification) error {
	n.logger.Info("email queued",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

func payloadAs[T any](event events.Event) (T, bool) {
	switch p := event.Payload.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}
