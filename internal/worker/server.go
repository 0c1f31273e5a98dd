package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"matchmarket-service/internal/services"

	"github.com/hibiken/asynq"
)

type Worker struct {
	Waitlist *services.WaitlistService
	Logger   *slog.Logger
}

func NewWorker(waitlist *services.WaitlistService, logger *slog.Logger) *Worker {
	return &Worker{
		Waitlist: waitlist,
		Logger:   logger,
	}
}

// HandleOfferExpire runs the timeout branch of a payment offer. Store
// failures are returned so asynq retries; a late or duplicate task is a no-op
// inside the service.
func (w *Worker) HandleOfferExpire(ctx context.Context, t *asynq.Task) error {
	var p services.OfferExpiry
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	next, err := w.Waitlist.HandleOfferExpiry(ctx, p)
	if err != nil {
		return err
	}
	if next != nil {
		w.Logger.InfoContext(ctx, "slot passed on", "match_id", p.MatchId, "from_applicant", p.ApplicantId, "to_applicant", next.ID)
	}
	return nil
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentOfferExpire, w.HandleOfferExpire)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, waitlist *services.WaitlistService, logger *slog.Logger) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				"default":     3,
				"low":         1,
			},
		},
	)

	worker := NewWorker(waitlist, logger)
	if err := srv.Run(worker.Mux()); err != nil {
		return fmt.Errorf("could not run server: %w", err)
	}
	return nil
}
