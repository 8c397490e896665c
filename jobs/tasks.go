package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agrohub/agrohub/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHRTaskNotify announces a new HR payout task.
	TaskHRTaskNotify = "hr:task:notify"
	// TaskHRTaskReconcile backfills HR tasks for paid incidents that lack one.
	TaskHRTaskReconcile = "hr:task:reconcile"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// HRTaskTitle is the title given to the payout task of an incident.
func HRTaskTitle(incidentID int64) string {
	return fmt.Sprintf("Pay bonus for incident #%d", incidentID)
}

// HRTaskNotifyPayload identifies the HR task to announce.
type HRTaskNotifyPayload struct {
	TaskID     int64   `json:"task_id"`
	IncidentID int64   `json:"incident_id"`
	Amount     float64 `json:"amount"`
	PaidBy     int64   `json:"paid_by"`
}

// NewHRTaskNotifyTask constructs an Asynq task.
func NewHRTaskNotifyTask(payload HRTaskNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHRTaskNotify, data, asynq.MaxRetry(5)), nil
}

// NewHRTaskReconcileTask constructs the periodic reconcile task.
func NewHRTaskReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskHRTaskReconcile, nil, asynq.MaxRetry(1))
}

// HRTask is a row of hr_tasks.
type HRTask struct {
	ID         int64
	IncidentID int64
	Title      string
	Amount     float64
	Status     string
}

// HRTaskStore is the persistence the HR jobs need.
type HRTaskStore interface {
	// MarkNotified moves an open task to notified. It reports false when the
	// task is missing or was already notified.
	MarkNotified(ctx context.Context, taskID int64, at time.Time) (bool, error)
	// BackfillPaid inserts a task for every paid incident without one.
	BackfillPaid(ctx context.Context) ([]HRTask, error)
}

// HRTaskJobs processes HR task notifications and reconciliation.
type HRTaskJobs struct {
	Store   HRTaskStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewHRTaskJobs wires dependencies for the HR task handlers.
func NewHRTaskJobs(store HRTaskStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *HRTaskJobs {
	return &HRTaskJobs{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleNotify processes TaskHRTaskNotify tasks.
func (j *HRTaskJobs) HandleNotify(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("hr task notify: handler not configured")
	}
	var payload HRTaskNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.TaskID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskHRTaskNotify)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("task_id", payload.TaskID), slog.Int64("incident_id", payload.IncidentID))
	updated, err := j.Store.MarkNotified(ctx, payload.TaskID, j.clock())
	if err != nil {
		logger.Error("mark hr task notified", slog.Any("error", err))
		return err
	}
	if !updated {
		logger.Info("hr task already notified or missing")
		return nil
	}
	// Delivery is a log line until the HR inbox integration lands.
	logger.Info("hr task ready for payout", slog.Float64("amount", payload.Amount), slog.Int64("paid_by", payload.PaidBy))
	return nil
}

// HandleReconcile processes TaskHRTaskReconcile tasks.
func (j *HRTaskJobs) HandleReconcile(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("hr task reconcile: handler not configured")
	}
	tracker := j.metrics().Track(TaskHRTaskReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	created, err := j.Store.BackfillPaid(ctx)
	if err != nil {
		j.logger().Error("backfill hr tasks", slog.Any("error", err))
		return err
	}
	j.metrics().AddReconciled(len(created))
	for _, task := range created {
		j.logger().Warn("hr task backfilled for paid incident",
			slog.Int64("task_id", task.ID), slog.Int64("incident_id", task.IncidentID))
	}
	return nil
}

func (j *HRTaskJobs) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *HRTaskJobs) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
