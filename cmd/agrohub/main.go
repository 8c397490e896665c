package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agrohub/agrohub/cmd/agrohub/cli"
	"github.com/agrohub/agrohub/internal/app"
	"github.com/agrohub/agrohub/internal/audit"
	audithttp "github.com/agrohub/agrohub/internal/audit/http"
	"github.com/agrohub/agrohub/internal/auth"
	"github.com/agrohub/agrohub/internal/branches"
	"github.com/agrohub/agrohub/internal/incidents"
	"github.com/agrohub/agrohub/internal/observability"
	"github.com/agrohub/agrohub/internal/permissions"
	"github.com/agrohub/agrohub/internal/platform/cache"
	"github.com/agrohub/agrohub/internal/platform/db"
	"github.com/agrohub/agrohub/internal/shared"
	"github.com/agrohub/agrohub/internal/users"
	"github.com/agrohub/agrohub/internal/violations"
	"github.com/agrohub/agrohub/jobs"
)

const serviceName = "agrohub-api"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobs(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	shutdownTracing := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	legacyPool, err := db.NewOptional(ctx, cfg.LegacyPGDSN)
	if err != nil {
		logger.Error("connect legacy postgres", slog.Any("error", err))
		os.Exit(1)
	}
	if legacyPool != nil {
		defer legacyPool.Close()
	}

	var permissionCache permissions.Cache = permissions.NopCache{}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, permission cache disabled", slog.Any("error", err))
	} else {
		permissionCache = permissions.NewRedisCache(redisClient, cfg.PermissionCacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	permissionRepo := permissions.NewRepository(dbpool)
	resolver := permissions.NewResolver(permissionRepo, permissionCache, logger)
	permissionService := permissions.NewService(permissionRepo, resolver, auditLogger, logger)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	userStore := auth.NewUserStore(dbpool)
	var authService *auth.Service
	if legacyPool != nil {
		authService = auth.NewService(userStore, auth.NewLegacyStore(legacyPool), auth.NewIdentityLinker(userStore, logger), tokens, logger)
	} else {
		authService = auth.NewService(userStore, nil, nil, tokens, logger)
	}
	authMiddleware := auth.Middleware{Tokens: tokens, Service: authService, Logger: logger}

	branchService := branches.NewService(branches.NewRepository(dbpool))

	violationService := violations.NewService(violations.ServiceConfig{
		Repository:   violations.NewRepository(dbpool),
		Capabilities: resolver,
		Branches:     branchService,
		Storage:      violations.NewLocalStorage(cfg.UploadDir, "/uploads", cfg.UploadMaxBytes),
		Audit:        auditLogger,
		Logger:       logger,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	incidentService := incidents.NewService(incidents.ServiceConfig{
		Repository:    incidents.NewRepository(dbpool),
		Audit:         auditLogger,
		Idempotency:   idempotencyStore,
		Queue:         jobClient,
		Logger:        logger,
		Strict:        cfg.IncidentStrictTransitions,
		DefaultAmount: cfg.IncidentDefaultAmount,
	})
	if cfg.IncidentStrictTransitions {
		logger.Info("incident transitions are strict")
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		AuthMiddleware:     authMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, authMiddleware, resolver, cfg.IsProduction()),
		UsersHandler:       users.NewHandler(logger, users.NewService(users.NewRepository(dbpool), resolver, auditLogger, logger)),
		BranchesHandler:    branches.NewHandler(logger, branchService),
		ViolationsHandler:  violations.NewHandler(logger, violationService, cfg.UploadMaxBytes),
		PermissionsHandler: permissions.NewHandler(logger, permissionService),
		IncidentsHandler:   incidents.NewHandler(logger, incidentService),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("version", app.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()
	return jobsCLI.Run(ctx, args, os.Stdout)
}
