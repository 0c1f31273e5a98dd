package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"matchmarket-service/internal/metrics"
	"matchmarket-service/internal/models"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/store"

	"github.com/google/uuid"
)

// WaitlistService runs the per-applicant state machine:
// waiting -> payment_requested -> payment_submitted -> payment_confirmed,
// with cancellation by the user, by an admin or by the offer timer.
type WaitlistService struct {
	base
	Scheduler OfferScheduler
}

func NewWaitlistService(st store.Store, notifier Notifier, scheduler OfferScheduler, logger *slog.Logger, opts Options) *WaitlistService {
	return &WaitlistService{
		base:      newBase(st, notifier, logger, opts),
		Scheduler: scheduler,
	}
}

type JoinRequest struct {
	MatchId    string  `json:"match_id"`
	UserId     string  `json:"user_id"`
	UserName   string  `json:"user_name"`
	Gender     string  `json:"gender"`
	NtrpRating float64 `json:"ntrp_rating"`
}

type JoinResult struct {
	Applicant models.WaitingApplicant `json:"applicant"`
	Position  int64                   `json:"position"`
}

type SubmitPaymentRequest struct {
	MatchId       string `json:"match_id"`
	UserId        string `json:"user_id"`
	DepositorName string `json:"depositor_name"`
}

// AdminWaitlistRequest names a waitlist entry by its match and user.
type AdminWaitlistRequest struct {
	MatchId string `json:"match_id" binding:"required"`
	UserId  string `json:"user_id" binding:"required"`
	Reason  string `json:"reason"`
}

type WaitlistEntry struct {
	models.WaitingApplicant
	Position int `json:"position"`
}

// Join appends the user to the match's waitlist and returns their 1-based
// position among waiting entries.
func (s *WaitlistService) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	match, err := s.Store.GetMatch(ctx, req.MatchId)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	if match.Status != models.MatchStatusOpen || match.IsClosed {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, match.Status)
	}

	if req.UserName == "" || req.Gender == "" {
		if user, err := s.Store.GetUser(ctx, req.UserId); err == nil {
			if req.UserName == "" {
				req.UserName = user.Name
			}
			if req.Gender == "" {
				req.Gender = user.Gender
			}
			if req.NtrpRating == 0 {
				req.NtrpRating = user.NtrpRating
			}
		}
	}
	if !models.ValidGender(req.Gender) {
		return nil, fmt.Errorf("%w: unknown gender %q", ErrInvalidInput, req.Gender)
	}

	if p, err := s.Store.FindParticipant(ctx, req.MatchId, req.UserId); err == nil && isSlotHolding(p.Status) {
		return nil, fmt.Errorf("%w: user already holds a slot", ErrInvalidState)
	}

	applicant := models.WaitingApplicant{
		ID:         uuid.New().String(),
		MatchId:    req.MatchId,
		UserId:     req.UserId,
		UserName:   req.UserName,
		Gender:     req.Gender,
		NtrpRating: req.NtrpRating,
		JoinedAt:   s.now(),
		Status:     models.WaitingStatusWaiting,
	}

	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		existing, err := tx.FindApplicant(ctx, req.MatchId, req.UserId)
		switch {
		case err == nil && isActiveWaiting(existing.Status):
			return ErrAlreadyWaiting
		case err == nil:
			// a failed or cancelled leftover does not block a fresh join
			if err := tx.DeleteApplicant(ctx, existing.ID); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrRecordNotFound):
			return err
		}

		if err := tx.CreateApplicant(ctx, &applicant); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyWaiting
			}
			return err
		}
		return tx.AdjustWaitingCount(ctx, req.MatchId, 1)
	})
	if err != nil {
		return nil, storeErr("join waitlist", err)
	}

	position, err := s.Store.CountWaitingUpTo(ctx, req.MatchId, applicant.JoinedAt)
	if err != nil {
		return nil, storeErr("count waitlist", err)
	}

	s.Logger.InfoContext(ctx, "joined waitlist", "match_id", req.MatchId, "user_id", req.UserId, "applicant_id", applicant.ID, "position", position)
	return &JoinResult{Applicant: applicant, Position: position}, nil
}

// Cancel removes the user's own waitlist entry. Withdrawing from an open
// payment offer passes the slot on to the next waiter.
func (s *WaitlistService) Cancel(ctx context.Context, matchID, userID string) error {
	applicant, err := s.Store.FindApplicant(ctx, matchID, userID)
	if err != nil {
		return storeErr("find applicant", err)
	}
	if applicant.Status == models.WaitingStatusPaymentSubmitted {
		return fmt.Errorf("%w: payment is awaiting admin review", ErrInvalidState)
	}

	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteApplicant(ctx, applicant.ID); err != nil {
			return err
		}
		if isActiveWaiting(applicant.Status) {
			return tx.AdjustWaitingCount(ctx, matchID, -1)
		}
		return nil
	})
	if err != nil {
		return storeErr("cancel waitlist", err)
	}
	s.Logger.InfoContext(ctx, "left waitlist", "match_id", matchID, "user_id", userID, "applicant_id", applicant.ID, "status", applicant.Status)

	if applicant.Status == models.WaitingStatusPaymentRequested {
		if _, err := s.OfferSlot(ctx, matchID, applicant.Gender); err != nil {
			return err
		}
	}
	return nil
}

// OfferSlot offers a vacated slot of the given gender to the earliest waiting
// applicant. A nil applicant with a nil error means nobody was eligible.
func (s *WaitlistService) OfferSlot(ctx context.Context, matchID, gender string) (*models.WaitingApplicant, error) {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	if match.Status != models.MatchStatusOpen {
		return nil, nil
	}
	if match.CurrentFor(gender) >= match.ExpectedFor(gender) {
		return nil, nil
	}

	timeout := s.offerTimeout(ctx)
	for {
		next, err := s.Store.NextWaitingApplicant(ctx, matchID, gender)
		if errors.Is(err, store.ErrRecordNotFound) {
			s.Logger.InfoContext(ctx, "no eligible waiter", "match_id", matchID, "gender", gender)
			return nil, nil
		}
		if err != nil {
			return nil, storeErr("next waiting applicant", err)
		}

		requestedAt := s.now()
		expiresAt := requestedAt.Add(timeout)
		ok, err := s.Store.TransitionApplicant(ctx, next.ID, []string{models.WaitingStatusWaiting}, store.ApplicantPatch{
			Status:             models.WaitingStatusPaymentRequested,
			PaymentRequestedAt: &requestedAt,
			PaymentExpiresAt:   &expiresAt,
		})
		if err != nil {
			return nil, storeErr("request payment", err)
		}
		if !ok {
			// claimed concurrently, try whoever is next
			continue
		}
		next.Status = models.WaitingStatusPaymentRequested
		next.PaymentRequestedAt = &requestedAt
		next.PaymentExpiresAt = &expiresAt

		metrics.Inc(metrics.OffersMade)
		s.Logger.InfoContext(ctx, "payment offer made", "match_id", matchID, "user_id", next.UserId, "applicant_id", next.ID, "expires_at", expiresAt)

		if s.Scheduler != nil {
			if err := s.Scheduler.ScheduleOfferExpiry(ctx, OfferExpiry{
				ApplicantId: next.ID,
				MatchId:     matchID,
				UserId:      next.UserId,
				Gender:      gender,
				ExpiresAt:   expiresAt,
			}); err != nil {
				// the overdue-offer sweep still expires it
				s.Logger.ErrorContext(ctx, "failed to schedule offer expiry", "applicant_id", next.ID, "error", err)
			}
		}

		s.send(ctx, notify.Notification{
			Kind:   notify.KindPaymentOffer,
			UserId: next.UserId,
			Title:  "A slot opened up",
			Body:   fmt.Sprintf("Pay %s for %s before %s to take the slot.", match.CurrentPrice.StringFixed(2), match.Title, expiresAt.Format("15:04")),
			Payload: map[string]string{
				"match_id":   matchID,
				"amount":     match.CurrentPrice.StringFixed(2),
				"expires_at": expiresAt.Format(time.RFC3339),
			},
		})
		return next, nil
	}
}

// HandleOfferExpiry fires when an offer's timer lapses. It is a no-op unless
// the applicant is still payment_requested past the deadline; otherwise the
// entry is cancelled and the slot is offered to the next waiter, whose own
// timer continues the chain until the gender's queue is empty.
func (s *WaitlistService) HandleOfferExpiry(ctx context.Context, offer OfferExpiry) (*models.WaitingApplicant, error) {
	applicant, err := s.Store.GetApplicant(ctx, offer.ApplicantId)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get applicant", err)
	}
	if applicant.Status != models.WaitingStatusPaymentRequested {
		return nil, nil
	}
	if applicant.PaymentExpiresAt != nil && s.now().Before(*applicant.PaymentExpiresAt) {
		return nil, nil
	}

	expired := false
	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.TransitionApplicant(ctx, applicant.ID, []string{models.WaitingStatusPaymentRequested}, store.ApplicantPatch{
			Status: models.WaitingStatusCancelled,
		})
		if err != nil || !ok {
			return err
		}
		if err := tx.DeleteApplicant(ctx, applicant.ID); err != nil {
			return err
		}
		expired = true
		return tx.AdjustWaitingCount(ctx, applicant.MatchId, -1)
	})
	if err != nil {
		return nil, storeErr("expire offer", err)
	}
	if !expired {
		return nil, nil
	}

	metrics.Inc(metrics.OffersExpired)
	s.Logger.InfoContext(ctx, "payment offer expired", "match_id", applicant.MatchId, "user_id", applicant.UserId, "applicant_id", applicant.ID)
	s.send(ctx, notify.Notification{
		Kind:    notify.KindOfferExpired,
		UserId:  applicant.UserId,
		Title:   "Payment window closed",
		Body:    "Your payment offer expired and the slot was passed on.",
		Payload: map[string]string{"match_id": applicant.MatchId},
	})

	return s.OfferSlot(ctx, applicant.MatchId, applicant.Gender)
}

// ExpireOverdueOffers expires every offer whose deadline has passed. It
// covers timers that were lost or never armed.
func (s *WaitlistService) ExpireOverdueOffers(ctx context.Context) (int, error) {
	overdue, err := s.Store.ListExpiredOffers(ctx, s.now())
	if err != nil {
		return 0, storeErr("list expired offers", err)
	}
	expired := 0
	for _, a := range overdue {
		if _, err := s.HandleOfferExpiry(ctx, OfferExpiry{ApplicantId: a.ID, MatchId: a.MatchId, UserId: a.UserId, Gender: a.Gender}); err != nil {
			s.Logger.ErrorContext(ctx, "failed to expire offer", "applicant_id", a.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// SubmitPayment records the user's claim to have paid. The slot is reserved
// now, not at confirmation, so two submissions cannot both take the last
// slot. When no slot is left the entry becomes payment_failed and
// ErrCapacityFull is returned.
func (s *WaitlistService) SubmitPayment(ctx context.Context, req SubmitPaymentRequest) (*models.MatchParticipant, error) {
	match, err := s.Store.GetMatch(ctx, req.MatchId)
	if err != nil {
		return nil, storeErr("get match", err)
	}

	applicant, err := s.Store.FindApplicant(ctx, req.MatchId, req.UserId)
	if errors.Is(err, store.ErrRecordNotFound) {
		return s.resubmitParticipant(ctx, req)
	}
	if err != nil {
		return nil, storeErr("find applicant", err)
	}

	switch applicant.Status {
	case models.WaitingStatusPaymentSubmitted:
		p, err := s.Store.FindParticipant(ctx, req.MatchId, req.UserId)
		return p, storeErr("find participant", err)
	case models.WaitingStatusPaymentRequested:
		if applicant.PaymentExpiresAt != nil && s.now().After(*applicant.PaymentExpiresAt) {
			return nil, ErrOfferExpired
		}
	default:
		return nil, fmt.Errorf("%w: no open payment offer", ErrInvalidState)
	}
	if match.Status != models.MatchStatusOpen {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, match.Status)
	}

	now := s.now()
	var participant models.MatchParticipant
	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.TransitionApplicant(ctx, applicant.ID, []string{models.WaitingStatusPaymentRequested}, store.ApplicantPatch{
			Status:             models.WaitingStatusPaymentSubmitted,
			PaymentSubmittedAt: &now,
			DepositorName:      req.DepositorName,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: offer is no longer open", ErrInvalidState)
		}

		existing, err := tx.FindParticipant(ctx, req.MatchId, req.UserId)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		if existing != nil && isSlotHolding(existing.Status) {
			return fmt.Errorf("%w: user already holds a slot", ErrInvalidState)
		}

		reserved, err := tx.ReserveSlot(ctx, req.MatchId, applicant.Gender)
		if err != nil {
			return err
		}
		if !reserved {
			return ErrCapacityFull
		}

		if existing != nil {
			participant = *existing
		} else {
			participant = models.MatchParticipant{
				ID:      uuid.New().String(),
				MatchId: req.MatchId,
				UserId:  req.UserId,
			}
		}
		participant.UserName = applicant.UserName
		participant.Gender = applicant.Gender
		participant.NtrpRating = applicant.NtrpRating
		participant.Status = models.ParticipantStatusPaymentPending
		participant.PaymentAmount = match.CurrentPrice
		participant.DepositorName = req.DepositorName
		participant.PaymentSubmittedAt = &now
		participant.PaymentConfirmedAt = nil
		participant.CancelledAt = nil

		if existing != nil {
			return tx.UpdateParticipant(ctx, &participant)
		}
		return tx.CreateParticipant(ctx, &participant)
	})
	if errors.Is(err, ErrCapacityFull) {
		s.failSubmission(ctx, applicant)
		return nil, ErrCapacityFull
	}
	if err != nil {
		return nil, storeErr("submit payment", err)
	}

	metrics.Inc(metrics.OffersSubmitted)
	s.Logger.InfoContext(ctx, "payment submitted", "match_id", req.MatchId, "user_id", req.UserId, "applicant_id", applicant.ID, "amount", participant.PaymentAmount.String())
	return &participant, nil
}

// resubmitParticipant handles a submission from a user who only exists as a
// pending participant, refreshing the depositor details.
func (s *WaitlistService) resubmitParticipant(ctx context.Context, req SubmitPaymentRequest) (*models.MatchParticipant, error) {
	p, err := s.Store.FindParticipant(ctx, req.MatchId, req.UserId)
	if err != nil {
		return nil, storeErr("find participant", err)
	}
	if p.Status != models.ParticipantStatusPaymentPending {
		return nil, fmt.Errorf("%w: participant is %s", ErrInvalidState, p.Status)
	}
	now := s.now()
	p.PaymentSubmittedAt = &now
	if req.DepositorName != "" {
		p.DepositorName = req.DepositorName
	}
	if err := s.Store.UpdateParticipant(ctx, p); err != nil {
		return nil, storeErr("update participant", err)
	}
	return p, nil
}

func (s *WaitlistService) failSubmission(ctx context.Context, applicant *models.WaitingApplicant) {
	err := s.Store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.TransitionApplicant(ctx, applicant.ID, []string{models.WaitingStatusPaymentRequested}, store.ApplicantPatch{
			Status: models.WaitingStatusPaymentFailed,
		})
		if err != nil || !ok {
			return err
		}
		return tx.AdjustWaitingCount(ctx, applicant.MatchId, -1)
	})
	if err != nil {
		s.Logger.ErrorContext(ctx, "failed to record failed submission", "applicant_id", applicant.ID, "error", err)
		return
	}
	s.Logger.WarnContext(ctx, "submission rejected, match full", "match_id", applicant.MatchId, "user_id", applicant.UserId, "gender", applicant.Gender)
}

// ConfirmPayment promotes a submitted applicant to a confirmed participant.
// Counters are untouched since the slot was reserved on submission.
func (s *WaitlistService) ConfirmPayment(ctx context.Context, req AdminWaitlistRequest) (*models.MatchParticipant, error) {
	participant, err := s.Store.FindParticipant(ctx, req.MatchId, req.UserId)
	if err != nil {
		return nil, storeErr("find participant", err)
	}
	if participant.Status != models.ParticipantStatusPaymentPending && participant.Status != models.ParticipantStatusConfirmed {
		return nil, fmt.Errorf("%w: participant is %s", ErrInvalidState, participant.Status)
	}
	applicant, err := s.Store.FindApplicant(ctx, req.MatchId, req.UserId)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return nil, storeErr("find applicant", err)
	}

	alreadyConfirmed := participant.Status == models.ParticipantStatusConfirmed
	now := s.now()
	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		if applicant != nil {
			if _, err := tx.TransitionApplicant(ctx, applicant.ID, []string{models.WaitingStatusPaymentSubmitted}, store.ApplicantPatch{
				Status: models.WaitingStatusPaymentConfirmed,
			}); err != nil {
				return err
			}
			if err := tx.DeleteApplicant(ctx, applicant.ID); err != nil {
				return err
			}
			if isActiveWaiting(applicant.Status) {
				if err := tx.AdjustWaitingCount(ctx, req.MatchId, -1); err != nil {
					return err
				}
			}
		}
		if alreadyConfirmed {
			return nil
		}
		participant.Status = models.ParticipantStatusConfirmed
		participant.PaymentConfirmedAt = &now
		return tx.UpdateParticipant(ctx, participant)
	})
	if err != nil {
		return nil, storeErr("confirm payment", err)
	}
	if alreadyConfirmed {
		return participant, nil
	}

	metrics.Inc(metrics.PaymentsConfirmed)
	s.Logger.InfoContext(ctx, "payment confirmed", "match_id", req.MatchId, "user_id", req.UserId, "participant_id", participant.ID)
	s.send(ctx, notify.Notification{
		Kind:    notify.KindPaymentConfirmed,
		UserId:  req.UserId,
		Title:   "You're in",
		Body:    "Your payment was confirmed. See you on court.",
		Payload: map[string]string{"match_id": req.MatchId},
	})
	return participant, nil
}

// RejectPayment removes a waitlist entry on an admin's decision. A rejected
// submission also drops its pending participant row, releases the reserved
// slot and offers it to the next waiter.
func (s *WaitlistService) RejectPayment(ctx context.Context, req AdminWaitlistRequest) error {
	applicant, err := s.Store.FindApplicant(ctx, req.MatchId, req.UserId)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return storeErr("find applicant", err)
	}
	participant, err := s.Store.FindParticipant(ctx, req.MatchId, req.UserId)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return storeErr("find participant", err)
	}
	if participant != nil && participant.Status != models.ParticipantStatusPaymentPending {
		participant = nil
	}
	if applicant == nil && participant == nil {
		return ErrNotFound
	}

	gender := ""
	reoffer := false
	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		if applicant != nil {
			gender = applicant.Gender
			if err := tx.DeleteApplicant(ctx, applicant.ID); err != nil {
				return err
			}
			if isActiveWaiting(applicant.Status) {
				if err := tx.AdjustWaitingCount(ctx, req.MatchId, -1); err != nil {
					return err
				}
			}
			reoffer = applicant.Status == models.WaitingStatusPaymentRequested
		}
		if participant != nil {
			gender = participant.Gender
			if err := tx.DeleteParticipant(ctx, participant.ID); err != nil {
				return err
			}
			if err := tx.ReleaseSlot(ctx, req.MatchId, participant.Gender); err != nil {
				return err
			}
			reoffer = true
		}
		return nil
	})
	if err != nil {
		return storeErr("reject payment", err)
	}

	s.Logger.InfoContext(ctx, "payment rejected", "match_id", req.MatchId, "user_id", req.UserId, "reason", req.Reason)
	body := "Your payment could not be verified."
	if req.Reason != "" {
		body = body + " " + req.Reason
	}
	s.send(ctx, notify.Notification{
		Kind:    notify.KindPaymentRejected,
		UserId:  req.UserId,
		Title:   "Payment rejected",
		Body:    body,
		Payload: map[string]string{"match_id": req.MatchId, "reason": req.Reason},
	})

	if reoffer {
		if _, err := s.OfferSlot(ctx, req.MatchId, gender); err != nil {
			return err
		}
	}
	return nil
}

// CancelParticipation withdraws a participant from a match, frees their slot
// and offers it to the next waiter of the same gender.
func (s *WaitlistService) CancelParticipation(ctx context.Context, matchID, userID string) (*models.WaitingApplicant, error) {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	if match.Status != models.MatchStatusOpen {
		return nil, fmt.Errorf("%w: match is %s", ErrInvalidState, match.Status)
	}
	participant, err := s.Store.FindParticipant(ctx, matchID, userID)
	if err != nil {
		return nil, storeErr("find participant", err)
	}
	if !isSlotHolding(participant.Status) {
		return nil, fmt.Errorf("%w: participant is %s", ErrInvalidState, participant.Status)
	}

	now := s.now()
	err = s.Store.Transaction(ctx, func(tx store.Store) error {
		participant.Status = models.ParticipantStatusCancelledByUser
		participant.CancelledAt = &now
		if err := tx.UpdateParticipant(ctx, participant); err != nil {
			return err
		}
		if err := tx.ReleaseSlot(ctx, matchID, participant.Gender); err != nil {
			return err
		}
		applicant, err := tx.FindApplicant(ctx, matchID, userID)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteApplicant(ctx, applicant.ID); err != nil {
			return err
		}
		if isActiveWaiting(applicant.Status) {
			return tx.AdjustWaitingCount(ctx, matchID, -1)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("cancel participation", err)
	}
	s.Logger.InfoContext(ctx, "participant withdrew", "match_id", matchID, "user_id", userID, "gender", participant.Gender)

	return s.OfferSlot(ctx, matchID, participant.Gender)
}

// ListWaitlist returns the active entries of a match in queue order.
func (s *WaitlistService) ListWaitlist(ctx context.Context, matchID string) ([]WaitlistEntry, error) {
	if _, err := s.Store.GetMatch(ctx, matchID); err != nil {
		return nil, storeErr("get match", err)
	}
	applicants, err := s.Store.ListApplicants(ctx, matchID, models.ActiveWaitingStatuses...)
	if err != nil {
		return nil, storeErr("list applicants", err)
	}
	entries := make([]WaitlistEntry, 0, len(applicants))
	for i, a := range applicants {
		entries = append(entries, WaitlistEntry{WaitingApplicant: a, Position: i + 1})
	}
	return entries, nil
}

func isActiveWaiting(status string) bool {
	for _, s := range models.ActiveWaitingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func isSlotHolding(status string) bool {
	for _, s := range models.SlotHoldingStatuses {
		if s == status {
			return true
		}
	}
	return false
}
