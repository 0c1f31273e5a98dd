package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ParticipantStatusPaymentPending  = "payment_pending"
	ParticipantStatusConfirmed       = "confirmed"
	ParticipantStatusCancelledByUser = "cancelled_by_user"
	ParticipantStatusRefunded        = "refunded"
)

// SlotHoldingStatuses count against a match's capacity.
var SlotHoldingStatuses = []string{
	ParticipantStatusPaymentPending,
	ParticipantStatusConfirmed,
}

type MatchParticipant struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	MatchId            string          `gorm:"column:match_id;size:36;not null;uniqueIndex:idx_participant_match_user" json:"match_id"`
	UserId             string          `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_participant_match_user" json:"user_id"`
	UserName           string          `gorm:"column:user_name;size:255" json:"user_name"`
	Gender             string          `gorm:"column:gender;size:10;not null" json:"gender"`
	NtrpRating         float64         `gorm:"column:ntrp_rating;default:0" json:"ntrp_rating"`
	Status             string          `gorm:"column:status;size:30;not null;index" json:"status"`
	PaymentAmount      decimal.Decimal `gorm:"column:payment_amount;type:decimal(20,2);default:0" json:"payment_amount"`
	DepositorName      string          `gorm:"column:depositor_name;size:255" json:"depositor_name"`
	PaymentSubmittedAt *time.Time      `gorm:"column:payment_submitted_at" json:"payment_submitted_at"`
	PaymentConfirmedAt *time.Time      `gorm:"column:payment_confirmed_at" json:"payment_confirmed_at"`
	CancelledAt        *time.Time      `gorm:"column:cancelled_at" json:"cancelled_at"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MatchParticipant) TableName() string {
	return "match_participants"
}
