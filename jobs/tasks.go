package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHousekeeping purges expired auth sessions and stale idempotency keys.
	TaskHousekeeping = "leavedesk:housekeeping"
)

// HousekeepingPayload tunes one housekeeping run.
type HousekeepingPayload struct {
	// IdempotencyRetention overrides the configured retention when positive.
	IdempotencyRetention time.Duration `json:"idempotency_retention,omitempty"`
}

// NewHousekeepingTask builds a housekeeping task.
func NewHousekeepingTask(payload HousekeepingPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHousekeeping, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
