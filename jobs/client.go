package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues leavedesk tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client against the asynq Redis.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueHousekeeping schedules an immediate housekeeping run. Requests
// within a minute of each other collapse into one task.
func (c *Client) EnqueueHousekeeping(ctx context.Context, payload HousekeepingPayload) (*asynq.TaskInfo, error) {
	task, err := NewHousekeepingTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
