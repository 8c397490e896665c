package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client submits HR task jobs.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client for the given redis connection.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs: redis address required")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueHRTaskNotify enqueues the notification for one HR task. The task id
// doubles as the asynq task id, so a second enqueue for the same HR task
// returns asynq.ErrTaskIDConflict.
func (c *Client) EnqueueHRTaskNotify(ctx context.Context, payload HRTaskNotifyPayload) (*asynq.TaskInfo, error) {
	task, err := NewHRTaskNotifyTask(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: build hr notify: %w", err)
	}
	return c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("hr-task-notify-%d", payload.TaskID)))
}

// Close releases the redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
