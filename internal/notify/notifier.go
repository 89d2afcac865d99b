// Package notify sends subscription notification emails.
package notify

import (
	"context"
	"errors"
	"strings"

	"polar-billing-bridge/internal/metrics"
)

const (
	kindSuccess = "subscription_success"
	kindError   = "subscription_error"
)

// SubscriptionEmail addresses one notification about a subscription change.
type SubscriptionEmail struct {
	Email             string
	SubscriptionID    string
	ProductName       string
	Status            string
	Amount            *int64
	Currency          string
	RecurringInterval string
	CancelAtPeriodEnd bool
	// PeriodEnd is the human-readable end of the current billing period.
	PeriodEnd string
}

// Notifier is the outbound notification capability used by webhook handling.
type Notifier interface {
	SendSubscriptionSuccessEmail(ctx context.Context, e SubscriptionEmail) error
	SendSubscriptionErrorEmail(ctx context.Context, e SubscriptionEmail) error
}

type EmailNotifier struct {
	sender    Sender
	from      string
	manageURL string
}

// NewEmailNotifier builds a notifier. manageURL, when set, is linked from
// success emails.
func NewEmailNotifier(sender Sender, from, manageURL string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from, manageURL: manageURL}
}

func (n *EmailNotifier) SendSubscriptionSuccessEmail(ctx context.Context, e SubscriptionEmail) error {
	subject, html, text, err := renderSuccess(e, n.manageURL)
	if err != nil {
		return err
	}
	return n.send(ctx, kindSuccess, e.Email, subject, html, text)
}

func (n *EmailNotifier) SendSubscriptionErrorEmail(ctx context.Context, e SubscriptionEmail) error {
	html, text, err := renderError(e)
	if err != nil {
		return err
	}
	return n.send(ctx, kindError, e.Email, "We could not update your subscription", html, text)
}

func (n *EmailNotifier) send(ctx context.Context, kind, to, subject, html, text string) error {
	if strings.TrimSpace(to) == "" {
		metrics.NotificationsTotal.WithLabelValues(kind, "skipped").Inc()
		return errors.New("notification recipient is empty")
	}

	err := n.sender.Send(ctx, Message{
		From:    n.from,
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "error").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(kind, "sent").Inc()
	return nil
}
