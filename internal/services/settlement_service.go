package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"matchmarket-service/internal/metrics"
	"matchmarket-service/internal/models"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/store"
	"matchmarket-service/pkg/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementService keeps the monthly commission obligation of every seller.
// Totals are always rebuilt from earnings and payment rows, never patched.
type SettlementService struct {
	base
}

func NewSettlementService(st store.Store, notifier Notifier, logger *slog.Logger, opts Options) *SettlementService {
	return &SettlementService{base: newBase(st, notifier, logger, opts)}
}

type AddPaymentRequest struct {
	SettlementId string          `json:"-"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	PaidAt       time.Time       `json:"paid_at"`
	Method       string          `json:"method"`
	Notes        string          `json:"notes"`
	RecordedBy   string          `json:"-"`
}

type PaymentResult struct {
	Settlement models.MonthlySettlement `json:"settlement"`
	Payment    models.SettlementPayment `json:"payment"`
}

type SettlementSummary struct {
	models.MonthlySettlement
	SellerName string                     `json:"seller_name"`
	Payments   []models.SettlementPayment `json:"payments"`
}

type SettlementStats struct {
	Year               int             `json:"year"`
	Month              int             `json:"month"`
	SellerCount        int             `json:"seller_count"`
	TotalCommissionDue decimal.Decimal `json:"total_commission_due"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	TotalUnpaid        decimal.Decimal `json:"total_unpaid"`
	SuspendedCount     int             `json:"suspended_count"`
	SettledCount       int             `json:"settled_count"`
	CompletionRate     float64         `json:"completion_rate"`
}

func validPeriod(year, month int) error {
	if year < 2000 || month < 1 || month > 12 {
		return fmt.Errorf("%w: invalid period %d-%02d", ErrInvalidInput, year, month)
	}
	return nil
}

// monthRange returns [first day of month, first day of next month). Match
// dates are calendar dates stored at UTC midnight, so the bounds are too.
func monthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// applyTotals re-derives paid, unpaid and status from the payment rows. Only
// an exact match between paid and due is confirmed. A seller-reported "paid"
// survives only while something is still unpaid, and an overpaid month
// (due lowered after payment) stays pending for an admin to resolve.
func applyTotals(s *models.MonthlySettlement, payments []models.SettlementPayment) {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	s.TotalPaidAmount = paid
	s.UnpaidAmount = s.CommissionDue.Sub(paid)

	switch {
	case s.UnpaidAmount.IsZero():
		s.PaymentStatus = models.SettlementStatusConfirmed
	case s.UnpaidAmount.IsPositive() && s.PaymentStatus == models.SettlementStatusPaid && s.ReportedPaidAt != nil:
	default:
		s.PaymentStatus = models.SettlementStatusPending
	}
}

// Recompute rebuilds the settlement of one seller and month from its
// earnings records.
func (s *SettlementService) Recompute(ctx context.Context, sellerID string, year, month int) (*models.MonthlySettlement, error) {
	if err := validPeriod(year, month); err != nil {
		return nil, err
	}
	var out *models.MonthlySettlement
	err := s.Store.Transaction(ctx, func(tx store.Store) error {
		var err error
		out, err = s.recomputeIn(ctx, tx, sellerID, year, month)
		return err
	})
	if err != nil {
		return nil, storeErr("recompute settlement", err)
	}
	return out, nil
}

func (s *SettlementService) recomputeIn(ctx context.Context, tx store.Store, sellerID string, year, month int) (*models.MonthlySettlement, error) {
	from, to := monthRange(year, month)
	records, err := tx.ListEarnings(ctx, sellerID, from, to)
	if err != nil {
		return nil, err
	}

	totalRevenue := decimal.Zero
	additional := decimal.Zero
	for _, r := range records {
		totalRevenue = totalRevenue.Add(r.TotalRevenue)
		additional = additional.Add(r.AdditionalRevenue)
	}
	commission := additional.Mul(s.commissionRate(ctx, tx)).Round(2)

	settlement, err := tx.FindSettlement(ctx, sellerID, year, month)
	create := errors.Is(err, store.ErrRecordNotFound)
	if err != nil && !create {
		return nil, err
	}
	if create {
		settlement = &models.MonthlySettlement{
			ID:            uuid.New().String(),
			SellerId:      sellerID,
			Year:          year,
			Month:         month,
			PaymentStatus: models.SettlementStatusPending,
		}
	}
	settlement.MatchCount = len(records)
	settlement.TotalRevenue = totalRevenue
	settlement.AdditionalRevenue = additional
	settlement.CommissionDue = commission

	var payments []models.SettlementPayment
	if !create {
		if payments, err = tx.ListSettlementPayments(ctx, settlement.ID); err != nil {
			return nil, err
		}
	}
	applyTotals(settlement, payments)

	if create {
		err = tx.CreateSettlement(ctx, settlement)
	} else {
		err = tx.UpdateSettlement(ctx, settlement)
	}
	if err != nil {
		return nil, err
	}

	if settlement.UnpaidAmount.IsNegative() {
		metrics.Inc(metrics.SettlementsOverpaid)
		s.Logger.WarnContext(ctx, "settlement overpaid, needs admin review",
			"settlement_id", settlement.ID,
			"seller_id", sellerID,
			"commission_due", commission.String(),
			"paid", settlement.TotalPaidAmount.String(),
		)
	}

	metrics.Inc(metrics.SettlementsRecomputed)
	s.Logger.InfoContext(ctx, "settlement recomputed",
		"settlement_id", settlement.ID,
		"seller_id", sellerID,
		"period", fmt.Sprintf("%d-%02d", year, month),
		"match_count", settlement.MatchCount,
		"commission_due", commission.String(),
	)
	return settlement, nil
}

// RecomputeMonth rebuilds every settlement of a month: sellers with earnings
// in it and sellers that already have a row for it.
func (s *SettlementService) RecomputeMonth(ctx context.Context, year, month int) (int, error) {
	if err := validPeriod(year, month); err != nil {
		return 0, err
	}
	from, to := monthRange(year, month)
	sellers, err := s.Store.ListEarningSellers(ctx, from, to)
	if err != nil {
		return 0, storeErr("list earning sellers", err)
	}
	existing, err := s.Store.ListSettlements(ctx, year, month)
	if err != nil {
		return 0, storeErr("list settlements", err)
	}

	seen := make(map[string]bool, len(sellers)+len(existing))
	for _, id := range sellers {
		seen[id] = true
	}
	for _, st := range existing {
		if !seen[st.SellerId] {
			seen[st.SellerId] = true
			sellers = append(sellers, st.SellerId)
		}
	}

	done := 0
	for _, sellerID := range sellers {
		if _, err := s.Recompute(ctx, sellerID, year, month); err != nil {
			s.Logger.ErrorContext(ctx, "reconciliation failed", "seller_id", sellerID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// AddPayment records a manual payment. It is rejected before any write when
// it would take the total paid past the commission due.
func (s *SettlementService) AddPayment(ctx context.Context, req AddPaymentRequest) (*PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.PaidAt.IsZero() {
		req.PaidAt = s.now()
	}

	var result PaymentResult
	err := s.Store.Transaction(ctx, func(tx store.Store) error {
		settlement, err := tx.GetSettlement(ctx, req.SettlementId)
		if err != nil {
			return err
		}
		payments, err := tx.ListSettlementPayments(ctx, settlement.ID)
		if err != nil {
			return err
		}
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}
		if paid.Add(req.Amount).GreaterThan(settlement.CommissionDue) {
			return fmt.Errorf("%w: %s remaining", ErrOverpayment, settlement.CommissionDue.Sub(paid).StringFixed(2))
		}

		payment := models.SettlementPayment{
			ID:           uuid.New().String(),
			SettlementId: settlement.ID,
			ReceiptNo:    common.GenerateReceiptNo(req.PaidAt),
			Amount:       req.Amount.Round(2),
			PaidAt:       req.PaidAt,
			Method:       req.Method,
			Notes:        req.Notes,
			RecordedBy:   req.RecordedBy,
		}
		if err := tx.CreateSettlementPayment(ctx, &payment); err != nil {
			return err
		}
		applyTotals(settlement, append(payments, payment))
		if err := tx.UpdateSettlement(ctx, settlement); err != nil {
			return err
		}
		result = PaymentResult{Settlement: *settlement, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, storeErr("add settlement payment", err)
	}

	s.Logger.InfoContext(ctx, "settlement payment recorded",
		"settlement_id", req.SettlementId,
		"receipt_no", result.Payment.ReceiptNo,
		"amount", result.Payment.Amount.String(),
		"unpaid", result.Settlement.UnpaidAmount.String(),
	)
	return &result, nil
}

// DeletePayment removes a payment row and re-derives the parent totals.
func (s *SettlementService) DeletePayment(ctx context.Context, paymentID string) (*models.MonthlySettlement, error) {
	var settlement *models.MonthlySettlement
	err := s.Store.Transaction(ctx, func(tx store.Store) error {
		payment, err := tx.GetSettlementPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := tx.DeleteSettlementPayment(ctx, paymentID); err != nil {
			return err
		}
		if settlement, err = tx.GetSettlement(ctx, payment.SettlementId); err != nil {
			return err
		}
		payments, err := tx.ListSettlementPayments(ctx, settlement.ID)
		if err != nil {
			return err
		}
		applyTotals(settlement, payments)
		return tx.UpdateSettlement(ctx, settlement)
	})
	if err != nil {
		return nil, storeErr("delete settlement payment", err)
	}
	s.Logger.InfoContext(ctx, "settlement payment deleted", "settlement_id", settlement.ID, "payment_id", paymentID, "unpaid", settlement.UnpaidAmount.String())
	return settlement, nil
}

// SetSuspended toggles the seller's suspension. is_blocked and
// is_account_suspended always move together.
func (s *SettlementService) SetSuspended(ctx context.Context, settlementID string, suspended bool, notes string) (*models.MonthlySettlement, error) {
	settlement, err := s.Store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	settlement.IsAccountSuspended = suspended
	settlement.IsBlocked = suspended
	if suspended {
		now := s.now()
		settlement.SuspendedAt = &now
	} else {
		settlement.SuspendedAt = nil
	}
	if notes != "" {
		settlement.AdminNotes = notes
	}
	if err := s.Store.UpdateSettlement(ctx, settlement); err != nil {
		return nil, storeErr("update settlement", err)
	}

	s.Logger.InfoContext(ctx, "settlement suspension changed", "settlement_id", settlementID, "seller_id", settlement.SellerId, "suspended", suspended)
	if suspended {
		s.send(ctx, notify.Notification{
			Kind:   notify.KindAccountSuspended,
			UserId: settlement.SellerId,
			Title:  "Account suspended",
			Body:   fmt.Sprintf("Your account is suspended until %s of commission for %d-%02d is paid.", settlement.UnpaidAmount.StringFixed(2), settlement.Year, settlement.Month),
			Payload: map[string]string{
				"settlement_id": settlementID,
				"unpaid":        settlement.UnpaidAmount.StringFixed(2),
			},
		})
	}
	return settlement, nil
}

// ReportPaid lets the seller flag a settlement as paid. It stays "paid"
// until an admin records the payments that settle it.
func (s *SettlementService) ReportPaid(ctx context.Context, settlementID, sellerID string) (*models.MonthlySettlement, error) {
	settlement, err := s.Store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	if settlement.SellerId != sellerID {
		return nil, ErrForbidden
	}
	if !settlement.UnpaidAmount.IsPositive() {
		return nil, fmt.Errorf("%w: settlement is already settled", ErrInvalidState)
	}
	now := s.now()
	settlement.PaymentStatus = models.SettlementStatusPaid
	settlement.ReportedPaidAt = &now
	if err := s.Store.UpdateSettlement(ctx, settlement); err != nil {
		return nil, storeErr("update settlement", err)
	}
	s.Logger.InfoContext(ctx, "seller reported payment", "settlement_id", settlementID, "seller_id", sellerID)
	return settlement, nil
}

// CurrentPeriod returns the year and month of now in the business location.
func (s *SettlementService) CurrentPeriod() (int, int) {
	now := s.now()
	return now.Year(), int(now.Month())
}

func (s *SettlementService) Stats(ctx context.Context, year, month int) (*SettlementStats, error) {
	if err := validPeriod(year, month); err != nil {
		return nil, err
	}
	settlements, err := s.Store.ListSettlements(ctx, year, month)
	if err != nil {
		return nil, storeErr("list settlements", err)
	}

	stats := &SettlementStats{
		Year:               year,
		Month:              month,
		SellerCount:        len(settlements),
		TotalCommissionDue: decimal.Zero,
		TotalPaid:          decimal.Zero,
		TotalUnpaid:        decimal.Zero,
	}
	for _, st := range settlements {
		stats.TotalCommissionDue = stats.TotalCommissionDue.Add(st.CommissionDue)
		stats.TotalPaid = stats.TotalPaid.Add(st.TotalPaidAmount)
		if st.UnpaidAmount.IsPositive() {
			stats.TotalUnpaid = stats.TotalUnpaid.Add(st.UnpaidAmount)
		}
		if st.IsAccountSuspended {
			stats.SuspendedCount++
		}
		if st.PaymentStatus == models.SettlementStatusConfirmed {
			stats.SettledCount++
		}
	}
	if stats.SellerCount > 0 {
		rate := decimal.NewFromInt(int64(stats.SettledCount)).
			Div(decimal.NewFromInt(int64(stats.SellerCount))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		stats.CompletionRate = rate.InexactFloat64()
	}
	return stats, nil
}

func (s *SettlementService) ListSummaries(ctx context.Context, year, month int) ([]SettlementSummary, error) {
	if err := validPeriod(year, month); err != nil {
		return nil, err
	}
	settlements, err := s.Store.ListSettlements(ctx, year, month)
	if err != nil {
		return nil, storeErr("list settlements", err)
	}
	summaries := make([]SettlementSummary, 0, len(settlements))
	for _, st := range settlements {
		summary, err := s.summarize(ctx, st)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UnpaidAmount.GreaterThan(summaries[j].UnpaidAmount)
	})
	return summaries, nil
}

func (s *SettlementService) GetSummary(ctx context.Context, settlementID string) (*SettlementSummary, error) {
	settlement, err := s.Store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	return s.summarize(ctx, *settlement)
}

func (s *SettlementService) summarize(ctx context.Context, st models.MonthlySettlement) (*SettlementSummary, error) {
	payments, err := s.Store.ListSettlementPayments(ctx, st.ID)
	if err != nil {
		return nil, storeErr("list settlement payments", err)
	}
	summary := &SettlementSummary{MonthlySettlement: st, Payments: payments}
	if user, err := s.Store.GetUser(ctx, st.SellerId); err == nil {
		summary.SellerName = user.Name
	}
	if summary.Payments == nil {
		summary.Payments = []models.SettlementPayment{}
	}
	return summary, nil
}
