package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SettlementStatusPending   = "pending"
	SettlementStatusPaid      = "paid" // reported by the seller, not yet reconciled
	SettlementStatusConfirmed = "confirmed"
)

type MonthlySettlement struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	SellerId           string          `gorm:"column:seller_id;size:36;not null;uniqueIndex:idx_settlement_seller_period" json:"seller_id"`
	Year               int             `gorm:"column:year;not null;uniqueIndex:idx_settlement_seller_period;index:idx_settlement_period" json:"year"`
	Month              int             `gorm:"column:month;not null;uniqueIndex:idx_settlement_seller_period;index:idx_settlement_period" json:"month"`
	MatchCount         int             `gorm:"column:match_count;default:0" json:"match_count"`
	TotalRevenue       decimal.Decimal `gorm:"column:total_revenue;type:decimal(20,2);default:0" json:"total_revenue"`
	AdditionalRevenue  decimal.Decimal `gorm:"column:additional_revenue;type:decimal(20,2);default:0" json:"additional_revenue"`
	CommissionDue      decimal.Decimal `gorm:"column:commission_due;type:decimal(20,2);default:0" json:"commission_due"`
	TotalPaidAmount    decimal.Decimal `gorm:"column:total_paid_amount;type:decimal(20,2);default:0" json:"total_paid_amount"`
	UnpaidAmount       decimal.Decimal `gorm:"column:unpaid_amount;type:decimal(20,2);default:0" json:"unpaid_amount"`
	PaymentStatus      string          `gorm:"column:payment_status;size:20;not null;default:pending" json:"payment_status"`
	IsBlocked          bool            `gorm:"column:is_blocked;default:false" json:"is_blocked"`
	IsAccountSuspended bool            `gorm:"column:is_account_suspended;default:false" json:"is_account_suspended"`
	SuspendedAt        *time.Time      `gorm:"column:suspended_at" json:"suspended_at"`
	ReportedPaidAt     *time.Time      `gorm:"column:reported_paid_at" json:"reported_paid_at"`
	AdminNotes         string          `gorm:"column:admin_notes;type:text" json:"admin_notes"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MonthlySettlement) TableName() string {
	return "monthly_settlements"
}

// SettlementPayment is append-only; corrections are made by deleting a row.
type SettlementPayment struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	SettlementId string          `gorm:"column:settlement_id;size:36;not null;index" json:"settlement_id"`
	ReceiptNo    string          `gorm:"column:receipt_no;size:40;index" json:"receipt_no"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	PaidAt       time.Time       `gorm:"column:paid_at;not null" json:"paid_at"`
	Method       string          `gorm:"column:method;size:50" json:"method"`
	Notes        string          `gorm:"column:notes;type:text" json:"notes"`
	RecordedBy   string          `gorm:"column:recorded_by;size:36" json:"recorded_by"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (SettlementPayment) TableName() string {
	return "settlement_payments"
}
