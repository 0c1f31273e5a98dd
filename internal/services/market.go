package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"matchmarket-service/internal/metrics"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/store"

	"github.com/shopspring/decimal"
)

// Notifier delivers one notification. Errors are logged by the caller and
// never affect the state transition that produced the notification.
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) error
}

// OfferExpiry identifies one payment offer and the moment it lapses.
type OfferExpiry struct {
	ApplicantId string    `json:"applicant_id"`
	MatchId     string    `json:"match_id"`
	UserId      string    `json:"user_id"`
	Gender      string    `json:"gender"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OfferScheduler arms the one-shot timer of a payment offer.
type OfferScheduler interface {
	ScheduleOfferExpiry(ctx context.Context, offer OfferExpiry) error
}

const (
	SettingCommissionRate      = "commission_rate"
	SettingOfferTimeoutMinutes = "payment_offer_timeout_minutes"
)

// Options are the business knobs shared by every service. Zero durations and
// a nil Location fall back to DefaultOptions. Rates are used as given, so a
// zero rate means no commission or no ad share; start from DefaultOptions.
type Options struct {
	OfferTimeout   time.Duration
	CommissionRate decimal.Decimal
	AdRevenueShare decimal.Decimal
	CancelWindow   time.Duration
	ReminderDelay  time.Duration
	ReminderWindow time.Duration
	Location       *time.Location
}

func DefaultOptions() Options {
	return Options{
		OfferTimeout:   10 * time.Minute,
		CommissionRate: decimal.NewFromFloat(0.15),
		AdRevenueShare: decimal.NewFromFloat(0.5),
		CancelWindow:   time.Hour,
		ReminderDelay:  time.Hour,
		ReminderWindow: 2 * time.Hour,
		Location:       time.UTC,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.OfferTimeout <= 0 {
		o.OfferTimeout = d.OfferTimeout
	}
	if o.CancelWindow <= 0 {
		o.CancelWindow = d.CancelWindow
	}
	if o.ReminderDelay <= 0 {
		o.ReminderDelay = d.ReminderDelay
	}
	if o.ReminderWindow <= 0 {
		o.ReminderWindow = d.ReminderWindow
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	return o
}

// base carries the collaborators every service needs.
type base struct {
	Store    store.Store
	Notifier Notifier
	Logger   *slog.Logger
	Options  Options
	Now      func() time.Time
}

func newBase(st store.Store, notifier Notifier, logger *slog.Logger, opts Options) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		Store:    st,
		Notifier: notifier,
		Logger:   logger,
		Options:  opts.withDefaults(),
		Now:      time.Now,
	}
}

func (b *base) now() time.Time {
	return b.Now().In(b.Options.Location)
}

// send delivers n and swallows any failure.
func (b *base) send(ctx context.Context, n notify.Notification) {
	if b.Notifier == nil {
		return
	}
	if n.SentAt.IsZero() {
		n.SentAt = b.now()
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := b.Notifier.Send(sendCtx, n); err != nil {
		metrics.Inc(metrics.NotificationsFailed)
		b.Logger.WarnContext(ctx, "notification failed", "kind", n.Kind, "user_id", n.UserId, "error", err)
	}
}

// settingDecimal reads an app_settings override through st, which is the
// open transaction when called from inside one. A missing or unparsable row
// yields fallback.
func (b *base) settingDecimal(ctx context.Context, st store.Store, key string, fallback decimal.Decimal) decimal.Decimal {
	raw, err := st.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		b.Logger.WarnContext(ctx, "ignoring invalid app setting", "key", key, "value", raw)
		return fallback
	}
	return v
}

func (b *base) offerTimeout(ctx context.Context) time.Duration {
	raw, err := b.Store.GetSetting(ctx, SettingOfferTimeoutMinutes)
	if err != nil {
		return b.Options.OfferTimeout
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		b.Logger.WarnContext(ctx, "ignoring invalid app setting", "key", SettingOfferTimeoutMinutes, "value", raw)
		return b.Options.OfferTimeout
	}
	return time.Duration(minutes) * time.Minute
}

func (b *base) commissionRate(ctx context.Context, st store.Store) decimal.Decimal {
	rate := b.settingDecimal(ctx, st, SettingCommissionRate, b.Options.CommissionRate)
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		b.Logger.WarnContext(ctx, "commission rate out of range, using default", "rate", rate.String())
		return b.Options.CommissionRate
	}
	return rate
}
