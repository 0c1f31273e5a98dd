package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"matchmarket-service/internal/metrics"
	"matchmarket-service/internal/models"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/store"
)

// MatchMonitorService scans open matches on a schedule. Under-enrolled
// matches close to their start are cancelled; matches that have already
// started get one "did it happen" reminder to the seller.
type MatchMonitorService struct {
	base
}

func NewMatchMonitorService(st store.Store, notifier Notifier, logger *slog.Logger, opts Options) *MatchMonitorService {
	return &MatchMonitorService{base: newBase(st, notifier, logger, opts)}
}

type MonitorResult struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
	Reminded  int `json:"reminded"`
}

// RunOnce performs one scan. A match is cancelled at most once: the
// open->cancelled transition is claimed before anyone is notified.
func (s *MatchMonitorService) RunOnce(ctx context.Context) (*MonitorResult, error) {
	matches, err := s.Store.ListMatchesByStatus(ctx, models.MatchStatusOpen)
	if err != nil {
		return nil, storeErr("list open matches", err)
	}

	now := s.now()
	result := &MonitorResult{Scanned: len(matches)}
	for _, m := range matches {
		startsAt := m.StartsAt(s.Options.Location)

		if !now.Before(startsAt.Add(-s.Options.CancelWindow)) && now.Before(startsAt) && m.CurrentTotal < m.ExpectedTotal() {
			cancelled, err := s.autoCancel(ctx, m, now)
			if err != nil {
				s.Logger.ErrorContext(ctx, "auto-cancel failed", "match_id", m.ID, "error", err)
				continue
			}
			if cancelled {
				result.Cancelled++
			}
			continue
		}

		if m.ConfirmReminderSentAt == nil &&
			!now.Before(startsAt.Add(s.Options.ReminderDelay)) &&
			now.Before(startsAt.Add(s.Options.ReminderWindow)) {
			ok, err := s.Store.MarkReminderSent(ctx, m.ID, now)
			if err != nil {
				s.Logger.ErrorContext(ctx, "failed to mark reminder", "match_id", m.ID, "error", err)
				continue
			}
			if !ok {
				continue
			}
			result.Reminded++
			s.send(ctx, notify.Notification{
				Kind:    notify.KindConfirmReminder,
				UserId:  m.SellerId,
				Title:   "Did your match take place?",
				Body:    fmt.Sprintf("Please confirm that %s was played so it can be settled.", m.Title),
				Payload: map[string]string{"match_id": m.ID},
			})
		}
	}

	if result.Cancelled > 0 || result.Reminded > 0 {
		s.Logger.InfoContext(ctx, "match monitor run", "scanned", result.Scanned, "cancelled", result.Cancelled, "reminded", result.Reminded)
	}
	return result, nil
}

func (s *MatchMonitorService) autoCancel(ctx context.Context, m models.Match, now time.Time) (bool, error) {
	var (
		claimed      bool
		participants []models.MatchParticipant
		applicants   []models.WaitingApplicant
	)
	err := s.Store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.TransitionMatch(ctx, m.ID, models.MatchStatusOpen, models.MatchStatusCancelled, now)
		if err != nil || !ok {
			return err
		}
		claimed = true

		if participants, err = tx.ListParticipants(ctx, m.ID, models.SlotHoldingStatuses...); err != nil {
			return err
		}
		for i := range participants {
			participants[i].Status = models.ParticipantStatusRefunded
			participants[i].CancelledAt = &now
			if err := tx.UpdateParticipant(ctx, &participants[i]); err != nil {
				return err
			}
		}

		if applicants, err = tx.ListApplicants(ctx, m.ID, models.ActiveWaitingStatuses...); err != nil {
			return err
		}
		for _, a := range applicants {
			if _, err := tx.TransitionApplicant(ctx, a.ID, models.ActiveWaitingStatuses, store.ApplicantPatch{Status: models.WaitingStatusCancelled}); err != nil {
				return err
			}
		}
		return tx.AdjustWaitingCount(ctx, m.ID, -len(applicants))
	})
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	metrics.Inc(metrics.MatchesAutoCancelled)
	s.Logger.InfoContext(ctx, "match auto-cancelled",
		"match_id", m.ID,
		"current_total", m.CurrentTotal,
		"expected_total", m.ExpectedTotal(),
		"refunds", len(participants),
		"waiters", len(applicants),
	)

	amount := m.CurrentPrice.StringFixed(2)
	for _, p := range participants {
		s.send(ctx, notify.Notification{
			Kind:    notify.KindMatchRefund,
			UserId:  p.UserId,
			Title:   "Match cancelled, refund on the way",
			Body:    fmt.Sprintf("%s did not fill up and was cancelled. %s will be refunded.", m.Title, amount),
			Payload: map[string]string{"match_id": m.ID, "amount": amount},
		})
	}
	for _, a := range applicants {
		s.send(ctx, notify.Notification{
			Kind:    notify.KindMatchCancelled,
			UserId:  a.UserId,
			Title:   "Match cancelled",
			Body:    fmt.Sprintf("%s was cancelled, your waitlist entry was closed.", m.Title),
			Payload: map[string]string{"match_id": m.ID},
		})
	}
	s.send(ctx, notify.Notification{
		Kind:   notify.KindSellerCancelled,
		UserId: m.SellerId,
		Title:  "Your match was cancelled",
		Body:   fmt.Sprintf("%s had %d of %d players an hour before start and was cancelled.", m.Title, m.CurrentTotal, m.ExpectedTotal()),
		Payload: map[string]string{
			"match_id":     m.ID,
			"refund_count": fmt.Sprint(len(participants)),
		},
	})
	return true, nil
}
