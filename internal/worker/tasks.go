package worker

import (
	"encoding/json"

	"matchmarket-service/internal/services"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypePaymentOfferExpire = "waitlist:offer-expire"
)

const QueueCritical = "critical"

func NewOfferExpireTask(payload services.OfferExpiry) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentOfferExpire, data), nil
}

func offerTaskID(applicantID string) string {
	return "offer-expire:" + applicantID
}
