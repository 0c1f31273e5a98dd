package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	MatchStatusOpen      = "open"
	MatchStatusCancelled = "cancelled"
	MatchStatusCompleted = "completed"

	GenderMale   = "male"
	GenderFemale = "female"

	MatchTypeSingles = "singles"
	MatchTypeDoubles = "doubles"
)

// ValidGender reports whether g is one of the capacity buckets a match tracks.
func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale
}

type Match struct {
	ID                    string          `gorm:"primaryKey;size:36" json:"id"`
	SellerId              string          `gorm:"column:seller_id;size:36;not null;index" json:"seller_id"`
	Title                 string          `gorm:"column:title;size:255;not null" json:"title"`
	Venue                 string          `gorm:"column:venue;size:255" json:"venue"`
	MatchDate             datatypes.Date  `gorm:"column:match_date;not null;index" json:"match_date"`
	StartTime             datatypes.Time  `gorm:"column:start_time;not null" json:"start_time"`
	EndTime               datatypes.Time  `gorm:"column:end_time;not null" json:"end_time"`
	BasePrice             decimal.Decimal `gorm:"column:base_price;type:decimal(20,2);not null;default:0" json:"base_price"`
	CurrentPrice          decimal.Decimal `gorm:"column:current_price;type:decimal(20,2);not null;default:0" json:"current_price"`
	ExpectedMale          int             `gorm:"column:expected_male;default:0" json:"expected_male"`
	ExpectedFemale        int             `gorm:"column:expected_female;default:0" json:"expected_female"`
	CurrentMale           int             `gorm:"column:current_male;default:0" json:"current_male"`
	CurrentFemale         int             `gorm:"column:current_female;default:0" json:"current_female"`
	CurrentTotal          int             `gorm:"column:current_total;default:0" json:"current_total"`
	WaitingCount          int             `gorm:"column:waiting_count;default:0" json:"waiting_count"`
	MatchType             string          `gorm:"column:match_type;size:20;default:singles" json:"match_type"`
	NtrpMin               float64         `gorm:"column:ntrp_min;default:0" json:"ntrp_min"`
	NtrpMax               float64         `gorm:"column:ntrp_max;default:0" json:"ntrp_max"`
	AdEnabled             bool            `gorm:"column:ad_enabled;default:false" json:"ad_enabled"`
	AdViews               int             `gorm:"column:ad_views;default:0" json:"ad_views"`
	AdClicks              int             `gorm:"column:ad_clicks;default:0" json:"ad_clicks"`
	AdRevenue             decimal.Decimal `gorm:"column:ad_revenue;type:decimal(20,2);default:0" json:"ad_revenue"`
	IsClosed              bool            `gorm:"column:is_closed;default:false" json:"is_closed"`
	Status                string          `gorm:"column:status;size:20;not null;default:open;index" json:"status"`
	CancelledAt           *time.Time      `gorm:"column:cancelled_at" json:"cancelled_at"`
	SettledAt             *time.Time      `gorm:"column:settled_at" json:"settled_at"`
	ConfirmReminderSentAt *time.Time      `gorm:"column:confirm_reminder_sent_at" json:"confirm_reminder_sent_at"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Match) TableName() string {
	return "matches"
}

func (m Match) ExpectedTotal() int {
	return m.ExpectedMale + m.ExpectedFemale
}

func (m Match) ExpectedFor(gender string) int {
	if gender == GenderFemale {
		return m.ExpectedFemale
	}
	return m.ExpectedMale
}

func (m Match) CurrentFor(gender string) int {
	if gender == GenderFemale {
		return m.CurrentFemale
	}
	return m.CurrentMale
}

// StartsAt combines the calendar date and the time-of-day start column in loc.
func (m Match) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := time.Time(m.MatchDate)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return day.Add(time.Duration(m.StartTime))
}
