package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/leavedesk/leavedesk/internal/jobs"
)

// SessionPurger deletes expired auth session records.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// KeyPurger deletes idempotency keys older than retention.
type KeyPurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// HousekeepingJob clears expired bookkeeping rows. It never touches leave
// requests.
type HousekeepingJob struct {
	sessions  SessionPurger
	keys      KeyPurger
	retention time.Duration
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewHousekeepingJob constructs the job.
func NewHousekeepingJob(sessions SessionPurger, keys KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *HousekeepingJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &HousekeepingJob{sessions: sessions, keys: keys, retention: retention, logger: logger, metrics: metrics}
}

// Handle processes TaskHousekeeping tasks.
func (j *HousekeepingJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload HousekeepingPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
	return j.metrics.Observe("housekeeping", func() error {
		return j.Run(ctx, payload)
	})
}

// Run performs one housekeeping pass. Both purges are attempted even if
// the first fails.
func (j *HousekeepingJob) Run(ctx context.Context, payload HousekeepingPayload) error {
	retention := j.retention
	if payload.IdempotencyRetention > 0 {
		retention = payload.IdempotencyRetention
	}

	var errs []error
	sessions, err := j.sessions.PurgeExpiredSessions(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge sessions: %w", err))
	} else {
		j.metrics.AddPurged("auth_sessions", sessions)
	}
	keys, err := j.keys.Purge(ctx, retention)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge idempotency keys: %w", err))
	} else {
		j.metrics.AddPurged("idempotency_keys", keys)
	}
	if err := errors.Join(errs...); err != nil {
		j.logger.Error("housekeeping", slog.Any("error", err))
		return err
	}
	j.logger.Info("housekeeping done", slog.Int64("sessions", sessions), slog.Int64("idempotency_keys", keys))
	return nil
}
