package worker

import (
	"context"
	"errors"

	"matchmarket-service/internal/services"

	"github.com/hibiken/asynq"
)

// OfferScheduler arms payment-offer timers as delayed asynq tasks. Each
// offer gets one task id, so re-arming the same offer is a no-op.
type OfferScheduler struct {
	Client *asynq.Client
}

func NewOfferScheduler(client *asynq.Client) *OfferScheduler {
	return &OfferScheduler{Client: client}
}

func (s *OfferScheduler) ScheduleOfferExpiry(ctx context.Context, offer services.OfferExpiry) error {
	task, err := NewOfferExpireTask(offer)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task,
		asynq.ProcessAt(offer.ExpiresAt),
		asynq.TaskID(offerTaskID(offer.ApplicantId)),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
