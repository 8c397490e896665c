package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/agrohub/agrohub/jobs"
)

// ErrUsage is returned for unknown or incomplete subcommands.
var ErrUsage = errors.New("usage: agrohub jobs trigger <hr:task:reconcile> | stats | scheduled [size]")

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Run executes a jobs subcommand and prints its result to out.
func (c *JobsCLI) Run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return ErrUsage
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return err
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return err
	case "scheduled":
		size := 10
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return ErrUsage
			}
			size = n
		}
		tasks, err := c.ListScheduled(ctx, size)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if _, err := fmt.Fprintf(out, "%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00")); err != nil {
				return err
			}
		}
		return nil
	default:
		return ErrUsage
	}
}

// Trigger enqueues a supported job by name. Only the reconcile job can run
// without a payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskHRTaskReconcile:
		return c.client.EnqueueContext(ctx, jobs.NewHRTaskReconcileTask(), asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
