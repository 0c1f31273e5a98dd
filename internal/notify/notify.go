// Package notify delivers user notifications. Delivery is best effort: a
// Sender reports failures to its caller, which logs them and moves on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Notification kinds double as AMQP routing keys.
const (
	KindPaymentOffer     = "waitlist.payment_offer"
	KindOfferExpired     = "waitlist.offer_expired"
	KindPaymentConfirmed = "waitlist.payment_confirmed"
	KindPaymentRejected  = "waitlist.payment_rejected"
	KindMatchRefund      = "match.refund"
	KindMatchCancelled   = "match.cancelled"
	KindSellerCancelled  = "match.seller_cancelled"
	KindConfirmReminder  = "match.confirm_reminder"
	KindAccountSuspended = "settlement.account_suspended"
)

type Notification struct {
	Kind    string            `json:"kind"`
	UserId  string            `json:"user_id"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Payload map[string]string `json:"payload,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
	Close()
}

// LogSender writes notifications to the log. It is the fallback when no
// broker or push gateway is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.Logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"user_id", n.UserId,
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}

func (s *LogSender) Close() {}

// New builds the Sender named by kind ("amqp", "grpc" or "log"). When the
// broker cannot be reached at startup it logs and falls back to LogSender.
func New(kind, amqpURL, pushAddr string, logger *slog.Logger) (Sender, error) {
	switch kind {
	case "", "log":
		return &LogSender{Logger: logger}, nil
	case "amqp":
		sender, err := NewEventSender(amqpURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, notifications will be logged", "error", err)
			return &LogSender{Logger: logger}, nil
		}
		return sender, nil
	case "grpc":
		return NewPushSender(pushAddr)
	}
	return nil, fmt.Errorf("unknown notifier %q", kind)
}
