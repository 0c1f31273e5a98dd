package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"matchmarket-service/internal/models"
	"matchmarket-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EarningsService settles matches into earnings records and feeds the
// monthly settlement of the seller.
type EarningsService struct {
	base
	Settlements *SettlementService
}

func NewEarningsService(st store.Store, settlements *SettlementService, logger *slog.Logger, opts Options) *EarningsService {
	return &EarningsService{
		base:        newBase(st, nil, logger, opts),
		Settlements: settlements,
	}
}

type SettleResult struct {
	Earnings   models.EarningsRecord    `json:"earnings"`
	Settlement models.MonthlySettlement `json:"settlement"`
}

// ComputeEarnings derives the earnings of a match from its confirmed
// participants. A participant without a recorded amount counts at base price.
func ComputeEarnings(match models.Match, confirmed []models.MatchParticipant, adShareRate decimal.Decimal) models.EarningsRecord {
	count := len(confirmed)
	baseCost := match.BasePrice.Mul(decimal.NewFromInt(int64(count)))

	totalPaid := decimal.Zero
	for _, p := range confirmed {
		if p.PaymentAmount.IsPositive() {
			totalPaid = totalPaid.Add(p.PaymentAmount)
		} else {
			totalPaid = totalPaid.Add(match.BasePrice)
		}
	}

	additional := totalPaid.Sub(baseCost)
	if additional.IsNegative() {
		additional = decimal.Zero
	}

	adShare := decimal.Zero
	if match.AdEnabled {
		adShare = match.AdRevenue.Mul(adShareRate).Round(2)
	}

	return models.EarningsRecord{
		MatchId:           match.ID,
		SellerId:          match.SellerId,
		MatchTitle:        match.Title,
		MatchDate:         match.MatchDate,
		ParticipantCount:  count,
		BaseCost:          baseCost,
		TotalPaid:         totalPaid,
		AdditionalRevenue: additional,
		AdViews:           match.AdViews,
		AdClicks:          match.AdClicks,
		AdRevenue:         match.AdRevenue,
		AdShare:           adShare,
		TotalRevenue:      totalPaid.Add(adShare),
	}
}

// SettleMatch records that the match took place. Re-settling replaces the
// earnings record, so repeated calls converge on the same numbers. An empty
// sellerID skips the ownership check (admin and reconciliation callers).
func (s *EarningsService) SettleMatch(ctx context.Context, matchID, sellerID string) (*SettleResult, error) {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	if sellerID != "" && match.SellerId != sellerID {
		return nil, ErrForbidden
	}
	if match.Status == models.MatchStatusCancelled {
		return nil, fmt.Errorf("%w: match was cancelled", ErrInvalidState)
	}

	matchDate := time.Time(match.MatchDate)
	year, month := matchDate.Year(), int(matchDate.Month())

	var result SettleResult
	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteEarningsByMatch(ctx, matchID); err != nil {
			return err
		}
		confirmed, err := tx.ListParticipants(ctx, matchID, models.ParticipantStatusConfirmed)
		if err != nil {
			return err
		}

		record := ComputeEarnings(*match, confirmed, s.Options.AdRevenueShare)
		record.ID = uuid.New().String()
		if err := tx.CreateEarnings(ctx, &record); err != nil {
			return err
		}
		if _, err := tx.TransitionMatch(ctx, matchID, models.MatchStatusOpen, models.MatchStatusCompleted, s.now()); err != nil {
			return err
		}

		settlement, err := s.Settlements.recomputeIn(ctx, tx, match.SellerId, year, month)
		if err != nil {
			return err
		}
		result = SettleResult{Earnings: record, Settlement: *settlement}
		return nil
	})
	if err != nil {
		return nil, storeErr("settle match", err)
	}

	s.Logger.InfoContext(ctx, "match settled",
		"match_id", matchID,
		"seller_id", match.SellerId,
		"participants", result.Earnings.ParticipantCount,
		"additional_revenue", result.Earnings.AdditionalRevenue.String(),
	)
	return &result, nil
}
