// Package store is the persistence gateway of the match market. Every
// read/write the coordination services perform goes through Store, backed by
// gorm on MySQL, Postgres or SQLite.
package store

import (
	"context"
	"errors"
	"time"

	"matchmarket-service/internal/models"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)

// ApplicantPatch holds the columns a waitlist transition writes. Nil pointers
// and empty strings are left untouched.
type ApplicantPatch struct {
	Status             string
	PaymentRequestedAt *time.Time
	PaymentExpiresAt   *time.Time
	PaymentSubmittedAt *time.Time
	DepositorName      string
}

type Store interface {
	// Transaction runs fn against a store bound to a single database
	// transaction. A non-nil error from fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetMatch(ctx context.Context, id string) (*models.Match, error)
	ListMatchesByStatus(ctx context.Context, status string) ([]models.Match, error)
	AdjustWaitingCount(ctx context.Context, matchID string, delta int) error
	// ReserveSlot increments the gender and total counters only while the
	// gender counter is below its expected capacity.
	ReserveSlot(ctx context.Context, matchID, gender string) (bool, error)
	ReleaseSlot(ctx context.Context, matchID, gender string) error
	TransitionMatch(ctx context.Context, matchID, from, to string, at time.Time) (bool, error)
	MarkReminderSent(ctx context.Context, matchID string, at time.Time) (bool, error)

	CreateApplicant(ctx context.Context, a *models.WaitingApplicant) error
	GetApplicant(ctx context.Context, id string) (*models.WaitingApplicant, error)
	FindApplicant(ctx context.Context, matchID, userID string) (*models.WaitingApplicant, error)
	NextWaitingApplicant(ctx context.Context, matchID, gender string) (*models.WaitingApplicant, error)
	CountWaitingUpTo(ctx context.Context, matchID string, joinedAt time.Time) (int64, error)
	ListApplicants(ctx context.Context, matchID string, statuses ...string) ([]models.WaitingApplicant, error)
	ListExpiredOffers(ctx context.Context, now time.Time) ([]models.WaitingApplicant, error)
	TransitionApplicant(ctx context.Context, id string, from []string, patch ApplicantPatch) (bool, error)
	DeleteApplicant(ctx context.Context, id string) error

	FindParticipant(ctx context.Context, matchID, userID string) (*models.MatchParticipant, error)
	CreateParticipant(ctx context.Context, p *models.MatchParticipant) error
	UpdateParticipant(ctx context.Context, p *models.MatchParticipant) error
	DeleteParticipant(ctx context.Context, id string) error
	ListParticipants(ctx context.Context, matchID string, statuses ...string) ([]models.MatchParticipant, error)

	DeleteEarningsByMatch(ctx context.Context, matchID string) error
	CreateEarnings(ctx context.Context, e *models.EarningsRecord) error
	// ListEarnings returns a seller's records with from <= match_date < to.
	ListEarnings(ctx context.Context, sellerID string, from, to time.Time) ([]models.EarningsRecord, error)
	ListEarningSellers(ctx context.Context, from, to time.Time) ([]string, error)

	GetSettlement(ctx context.Context, id string) (*models.MonthlySettlement, error)
	FindSettlement(ctx context.Context, sellerID string, year, month int) (*models.MonthlySettlement, error)
	CreateSettlement(ctx context.Context, s *models.MonthlySettlement) error
	UpdateSettlement(ctx context.Context, s *models.MonthlySettlement) error
	ListSettlements(ctx context.Context, year, month int) ([]models.MonthlySettlement, error)
	CreateSettlementPayment(ctx context.Context, p *models.SettlementPayment) error
	GetSettlementPayment(ctx context.Context, id string) (*models.SettlementPayment, error)
	DeleteSettlementPayment(ctx context.Context, id string) error
	ListSettlementPayments(ctx context.Context, settlementID string) ([]models.SettlementPayment, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetSetting(ctx context.Context, key string) (string, error)
}
