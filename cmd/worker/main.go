package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrohub/agrohub/internal/app"
	jobmetrics "github.com/agrohub/agrohub/internal/jobs"
	"github.com/agrohub/agrohub/internal/observability"
	"github.com/agrohub/agrohub/internal/platform/db"
	"github.com/agrohub/agrohub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracing := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: "agrohub-worker",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	hrJobs := jobs.NewHRTaskJobs(jobs.NewPGHRTaskStore(pool), logger, jobmetrics.NewMetrics(nil))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  jobs.HRTaskHandlers(hrJobs),
		Cron: []jobs.CronRegistration{
			{Spec: jobs.ReconcileSpec, Task: jobs.NewHRTaskReconcileTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			_ = metricsServer.Shutdown(context.Background())
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
