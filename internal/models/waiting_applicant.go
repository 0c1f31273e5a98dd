package models

import (
	"time"
)

// Waitlist entry statuses. Rows are deleted once they leave the waitlist, so
// payment_confirmed and cancelled are only ever observed transiently or on
// matches that were cancelled as a whole.
const (
	WaitingStatusWaiting          = "waiting"
	WaitingStatusPaymentRequested = "payment_requested"
	WaitingStatusPaymentSubmitted = "payment_submitted"
	WaitingStatusPaymentConfirmed = "payment_confirmed"
	WaitingStatusPaymentFailed    = "payment_failed"
	WaitingStatusCancelled        = "cancelled"
)

// ActiveWaitingStatuses are the statuses that still hold a place in the queue.
var ActiveWaitingStatuses = []string{
	WaitingStatusWaiting,
	WaitingStatusPaymentRequested,
	WaitingStatusPaymentSubmitted,
}

type WaitingApplicant struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	MatchId            string     `gorm:"column:match_id;size:36;not null;uniqueIndex:idx_waitlist_match_user;index:idx_waitlist_queue" json:"match_id"`
	UserId             string     `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_waitlist_match_user" json:"user_id"`
	UserName           string     `gorm:"column:user_name;size:255" json:"user_name"`
	Gender             string     `gorm:"column:gender;size:10;not null;index:idx_waitlist_queue" json:"gender"`
	NtrpRating         float64    `gorm:"column:ntrp_rating;default:0" json:"ntrp_rating"`
	JoinedAt           time.Time  `gorm:"column:joined_at;not null;index:idx_waitlist_queue" json:"joined_at"`
	Status             string     `gorm:"column:status;size:30;not null;default:waiting;index" json:"status"`
	PaymentRequestedAt *time.Time `gorm:"column:payment_requested_at" json:"payment_requested_at"`
	PaymentExpiresAt   *time.Time `gorm:"column:payment_expires_at;index" json:"payment_expires_at"`
	PaymentSubmittedAt *time.Time `gorm:"column:payment_submitted_at" json:"payment_submitted_at"`
	DepositorName      string     `gorm:"column:depositor_name;size:255" json:"depositor_name"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (WaitingApplicant) TableName() string {
	return "waiting_applicants"
}
