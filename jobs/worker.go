package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// ReconcileSpec runs the HR task backfill every fifteen minutes.
const ReconcileSpec = "*/15 * * * *"

const (
	defaultConcurrency = 5
	shutdownTimeout    = 20 * time.Second
)

// TaskHandler binds a task type to its handler.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration schedules Task on Spec.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects what the worker needs to start.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// Worker runs the asynq server and, when cron entries exist, the scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// HRTaskHandlers returns the registrations for the HR task jobs.
func HRTaskHandlers(j *HRTaskJobs) []TaskHandler {
	return []TaskHandler{
		{Type: TaskHRTaskNotify, Handler: j.HandleNotify},
		{Type: TaskHRTaskReconcile, Handler: j.HandleReconcile},
	}
}

// NewWorker validates cfg and builds the server, mux and scheduler.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	adapter := asynqLogger{logger: logger.With(slog.String("component", "asynq"))}

	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			return nil, fmt.Errorf("worker: incomplete handler registration %q", h.Type)
		}
		mux.Handle(h.Type, h.Handler)
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		ShutdownTimeout: shutdownTimeout,
		Logger:          adapter,
		LogLevel:        asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("job failed",
				slog.String("type", task.Type()),
				slog.Int("retry", retried),
				slog.Int("max_retry", maxRetry),
				slog.Any("error", err))
		}),
	})

	w := &Worker{server: srv, mux: mux, logger: logger}
	if len(cfg.Cron) == 0 {
		return w, nil
	}
	w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   adapter,
		LogLevel: asynq.WarnLevel,
	})
	for _, entry := range cfg.Cron {
		if entry.Spec == "" || entry.Task == nil {
			return nil, fmt.Errorf("worker: incomplete cron registration %q", entry.Spec)
		}
		id, err := w.scheduler.Register(entry.Spec, entry.Task, entry.Options...)
		if err != nil {
			return nil, fmt.Errorf("worker: register %s: %w", entry.Task.Type(), err)
		}
		logger.Info("cron registered", slog.String("type", entry.Task.Type()), slog.String("spec", entry.Spec), slog.String("entry_id", id))
	}
	return w, nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return fmt.Errorf("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("worker: start scheduler: %w", err)
		}
	}
	w.logger.Info("worker started")

	<-ctx.Done()
	w.logger.Info("worker stopping")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

// Fatal logs at error level; the process decides whether to exit.
func (l asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
