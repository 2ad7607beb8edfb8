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

	"github.com/leavedesk/leavedesk/internal/app"
	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/leave"
	"github.com/leavedesk/leavedesk/internal/observability"
	"github.com/leavedesk/leavedesk/internal/platform/cache"
	"github.com/leavedesk/leavedesk/internal/platform/db"
	"github.com/leavedesk/leavedesk/internal/profiles"
	"github.com/leavedesk/leavedesk/internal/shared"
	"github.com/leavedesk/leavedesk/jobs"
)

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

	dbpool, err := db.Connect(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.Connect(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, shared.SessionConfig{
		TTL:    cfg.SessionTTL,
		Secure: cfg.IsProduction(),
	})
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	tokens := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL, redisClient)
	authService := auth.NewService(authRepo, tokens)
	identity := auth.NewResolver(authRepo, tokens, logger)

	roleResolver := profiles.NewResolver(profiles.NewRepository(dbpool), logger)
	guard := gate.NewGuard(identity, roleResolver, logger)
	guard.OnDecision(func(res gate.Resource, d gate.Decision) {
		result := "allow"
		if !d.Allow {
			result = d.Target
		}
		metrics.ObserveGate(string(res), result)
	})

	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:    logger,
		Service:   authService,
		Sessions:  sessionManager,
		CSRF:      csrfManager,
		Landing:   guard.LandingFor,
		RateLimit: cfg.AuthRateLimit,
	})

	leaveService := leave.NewService(leave.NewPGStore(dbpool), logger,
		leave.WithIdempotency(shared.NewIdempotencyStore(dbpool)),
		leave.WithSummaryCache(leave.NewSummaryCache(redisClient, cfg.SummaryCacheTTL)),
		leave.WithRecorder(metrics),
	)
	leaveHandler := leave.NewHandler(logger, leaveService, guard)

	inspector := asynq.NewInspector(cfg.Redis().Asynq())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Guard:          guard,
		AuthHandler:    authHandler,
		LeaveHandler:   leaveHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		Checks: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
