package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EarningsRecord is the settled revenue of one match. There is at most one
// row per match; re-settling replaces it.
type EarningsRecord struct {
	ID                string          `gorm:"primaryKey;size:36" json:"id"`
	MatchId           string          `gorm:"column:match_id;size:36;not null;uniqueIndex" json:"match_id"`
	SellerId          string          `gorm:"column:seller_id;size:36;not null;index:idx_earnings_seller_date" json:"seller_id"`
	MatchTitle        string          `gorm:"column:match_title;size:255" json:"match_title"`
	MatchDate         datatypes.Date  `gorm:"column:match_date;not null;index:idx_earnings_seller_date" json:"match_date"`
	ParticipantCount  int             `gorm:"column:participant_count;default:0" json:"participant_count"`
	BaseCost          decimal.Decimal `gorm:"column:base_cost;type:decimal(20,2);default:0" json:"base_cost"`
	TotalPaid         decimal.Decimal `gorm:"column:total_paid;type:decimal(20,2);default:0" json:"total_paid"`
	AdditionalRevenue decimal.Decimal `gorm:"column:additional_revenue;type:decimal(20,2);default:0" json:"additional_revenue"`
	AdViews           int             `gorm:"column:ad_views;default:0" json:"ad_views"`
	AdClicks          int             `gorm:"column:ad_clicks;default:0" json:"ad_clicks"`
	AdRevenue         decimal.Decimal `gorm:"column:ad_revenue;type:decimal(20,2);default:0" json:"ad_revenue"`
	AdShare           decimal.Decimal `gorm:"column:ad_share;type:decimal(20,2);default:0" json:"ad_share"`
	TotalRevenue      decimal.Decimal `gorm:"column:total_revenue;type:decimal(20,2);default:0" json:"total_revenue"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (EarningsRecord) TableName() string {
	return "earnings"
}
