package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchmarket-service/internal/models"

	"gorm.io/gorm"
)

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{DB: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func slotColumns(gender string) (current, expected string) {
	if gender == models.GenderFemale {
		return "current_female", "expected_female"
	}
	return "current_male", "expected_male"
}

// --- matches ---

func (s *GormStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) ListMatchesByStatus(ctx context.Context, status string) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).Where("status = ?", status).Order("match_date ASC, start_time ASC").Find(&matches).Error
	return matches, translate(err)
}

func (s *GormStore) AdjustWaitingCount(ctx context.Context, matchID string, delta int) error {
	err := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", matchID).
		UpdateColumn("waiting_count", gorm.Expr("CASE WHEN waiting_count + ? < 0 THEN 0 ELSE waiting_count + ? END", delta, delta)).
		Error
	return translate(err)
}

func (s *GormStore) ReserveSlot(ctx context.Context, matchID, gender string) (bool, error) {
	current, expected := slotColumns(gender)
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where(fmt.Sprintf("id = ? AND %s < %s", current, expected), matchID).
		UpdateColumns(map[string]interface{}{
			current:         gorm.Expr(current + " + 1"),
			"current_total": gorm.Expr("current_total + 1"),
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ReleaseSlot(ctx context.Context, matchID, gender string) error {
	current, _ := slotColumns(gender)
	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.Match{}).
		Where(fmt.Sprintf("id = ? AND %s > 0", current), matchID).
		UpdateColumn(current, gorm.Expr(current+" - 1")).Error; err != nil {
		return translate(err)
	}
	err := db.Model(&models.Match{}).
		Where("id = ? AND current_total > 0", matchID).
		UpdateColumn("current_total", gorm.Expr("current_total - 1")).Error
	return translate(err)
}

func (s *GormStore) TransitionMatch(ctx context.Context, matchID, from, to string, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.MatchStatusCancelled:
		updates["cancelled_at"] = at
		updates["is_closed"] = true
	case models.MatchStatusCompleted:
		updates["settled_at"] = at
		updates["is_closed"] = true
	}
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, from).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkReminderSent(ctx context.Context, matchID string, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND confirm_reminder_sent_at IS NULL", matchID).
		Update("confirm_reminder_sent_at", at)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// --- waiting applicants ---

func (s *GormStore) CreateApplicant(ctx context.Context, a *models.WaitingApplicant) error {
	return translate(s.DB.WithContext(ctx).Create(a).Error)
}

func (s *GormStore) GetApplicant(ctx context.Context, id string) (*models.WaitingApplicant, error) {
	var a models.WaitingApplicant
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) FindApplicant(ctx context.Context, matchID, userID string) (*models.WaitingApplicant, error) {
	var a models.WaitingApplicant
	if err := s.DB.WithContext(ctx).Where("match_id = ? AND user_id = ?", matchID, userID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) NextWaitingApplicant(ctx context.Context, matchID, gender string) (*models.WaitingApplicant, error) {
	var a models.WaitingApplicant
	err := s.DB.WithContext(ctx).
		Where("match_id = ? AND gender = ? AND status = ?", matchID, gender, models.WaitingStatusWaiting).
		Order("joined_at ASC").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) CountWaitingUpTo(ctx context.Context, matchID string, joinedAt time.Time) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.WaitingApplicant{}).
		Where("match_id = ? AND status = ? AND joined_at <= ?", matchID, models.WaitingStatusWaiting, joinedAt).
		Count(&count).Error
	return count, translate(err)
}

func (s *GormStore) ListApplicants(ctx context.Context, matchID string, statuses ...string) ([]models.WaitingApplicant, error) {
	query := s.DB.WithContext(ctx).Where("match_id = ?", matchID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var applicants []models.WaitingApplicant
	err := query.Order("joined_at ASC").Find(&applicants).Error
	return applicants, translate(err)
}

func (s *GormStore) ListExpiredOffers(ctx context.Context, now time.Time) ([]models.WaitingApplicant, error) {
	var applicants []models.WaitingApplicant
	err := s.DB.WithContext(ctx).
		Where("status = ? AND payment_expires_at <= ?", models.WaitingStatusPaymentRequested, now).
		Order("payment_expires_at ASC").
		Find(&applicants).Error
	return applicants, translate(err)
}

func (s *GormStore) TransitionApplicant(ctx context.Context, id string, from []string, patch ApplicantPatch) (bool, error) {
	updates := map[string]interface{}{"status": patch.Status}
	if patch.PaymentRequestedAt != nil {
		updates["payment_requested_at"] = *patch.PaymentRequestedAt
	}
	if patch.PaymentExpiresAt != nil {
		updates["payment_expires_at"] = *patch.PaymentExpiresAt
	}
	if patch.PaymentSubmittedAt != nil {
		updates["payment_submitted_at"] = *patch.PaymentSubmittedAt
	}
	if patch.DepositorName != "" {
		updates["depositor_name"] = patch.DepositorName
	}
	res := s.DB.WithContext(ctx).Model(&models.WaitingApplicant{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) DeleteApplicant(ctx context.Context, id string) error {
	return translate(s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.WaitingApplicant{}).Error)
}

// --- participants ---

func (s *GormStore) FindParticipant(ctx context.Context, matchID, userID string) (*models.MatchParticipant, error) {
	var p models.MatchParticipant
	if err := s.DB.WithContext(ctx).Where("match_id = ? AND user_id = ?", matchID, userID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) CreateParticipant(ctx context.Context, p *models.MatchParticipant) error {
	return translate(s.DB.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) UpdateParticipant(ctx context.Context, p *models.MatchParticipant) error {
	return translate(s.DB.WithContext(ctx).Save(p).Error)
}

func (s *GormStore) DeleteParticipant(ctx context.Context, id string) error {
	return translate(s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.MatchParticipant{}).Error)
}

func (s *GormStore) ListParticipants(ctx context.Context, matchID string, statuses ...string) ([]models.MatchParticipant, error) {
	query := s.DB.WithContext(ctx).Where("match_id = ?", matchID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var participants []models.MatchParticipant
	err := query.Order("created_at ASC").Find(&participants).Error
	return participants, translate(err)
}

// --- earnings ---

func (s *GormStore) DeleteEarningsByMatch(ctx context.Context, matchID string) error {
	return translate(s.DB.WithContext(ctx).Where("match_id = ?", matchID).Delete(&models.EarningsRecord{}).Error)
}

func (s *GormStore) CreateEarnings(ctx context.Context, e *models.EarningsRecord) error {
	return translate(s.DB.WithContext(ctx).Create(e).Error)
}

func (s *GormStore) ListEarnings(ctx context.Context, sellerID string, from, to time.Time) ([]models.EarningsRecord, error) {
	var records []models.EarningsRecord
	err := s.DB.WithContext(ctx).
		Where("seller_id = ? AND match_date >= ? AND match_date < ?", sellerID, from, to).
		Order("match_date ASC").
		Find(&records).Error
	return records, translate(err)
}

func (s *GormStore) ListEarningSellers(ctx context.Context, from, to time.Time) ([]string, error) {
	var sellers []string
	err := s.DB.WithContext(ctx).Model(&models.EarningsRecord{}).
		Where("match_date >= ? AND match_date < ?", from, to).
		Distinct("seller_id").
		Pluck("seller_id", &sellers).Error
	return sellers, translate(err)
}

// --- settlements ---

func (s *GormStore) GetSettlement(ctx context.Context, id string) (*models.MonthlySettlement, error) {
	var m models.MonthlySettlement
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) FindSettlement(ctx context.Context, sellerID string, year, month int) (*models.MonthlySettlement, error) {
	var m models.MonthlySettlement
	err := s.DB.WithContext(ctx).
		Where("seller_id = ? AND year = ? AND month = ?", sellerID, year, month).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) CreateSettlement(ctx context.Context, m *models.MonthlySettlement) error {
	return translate(s.DB.WithContext(ctx).Create(m).Error)
}

func (s *GormStore) UpdateSettlement(ctx context.Context, m *models.MonthlySettlement) error {
	return translate(s.DB.WithContext(ctx).Save(m).Error)
}

func (s *GormStore) ListSettlements(ctx context.Context, year, month int) ([]models.MonthlySettlement, error) {
	var settlements []models.MonthlySettlement
	err := s.DB.WithContext(ctx).
		Where("year = ? AND month = ?", year, month).
		Order("unpaid_amount DESC").
		Find(&settlements).Error
	return settlements, translate(err)
}

func (s *GormStore) CreateSettlementPayment(ctx context.Context, p *models.SettlementPayment) error {
	return translate(s.DB.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) GetSettlementPayment(ctx context.Context, id string) (*models.SettlementPayment, error) {
	var p models.SettlementPayment
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) DeleteSettlementPayment(ctx context.Context, id string) error {
	return translate(s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.SettlementPayment{}).Error)
}

func (s *GormStore) ListSettlementPayments(ctx context.Context, settlementID string) ([]models.SettlementPayment, error) {
	var payments []models.SettlementPayment
	err := s.DB.WithContext(ctx).
		Where("settlement_id = ?", settlementID).
		Order("paid_at ASC, created_at ASC").
		Find(&payments).Error
	return payments, translate(err)
}

// --- users & settings ---

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.AppSetting
	if err := s.DB.WithContext(ctx).Where(&models.AppSetting{Key: key}).First(&setting).Error; err != nil {
		return "", translate(err)
	}
	return setting.Value, nil
}
