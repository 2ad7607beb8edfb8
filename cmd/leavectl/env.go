package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leavedesk/leavedesk/internal/app"
	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/leave"
	"github.com/leavedesk/leavedesk/internal/platform/db"
	"github.com/leavedesk/leavedesk/internal/profiles"
	"github.com/leavedesk/leavedesk/jobs"
)

type accountCreator interface {
	Signup(ctx context.Context, input auth.SignupInput) (*auth.User, error)
}

type profileStore interface {
	FindByEmail(ctx context.Context, email string) (profiles.Profile, error)
	SetRole(ctx context.Context, id string, role profiles.Role) error
}

type housekeepingEnqueuer interface {
	EnqueueHousekeeping(ctx context.Context, payload jobs.HousekeepingPayload) (*asynq.TaskInfo, error)
}

// env holds the collaborators commands act on.
type env struct {
	logger   *slog.Logger
	pool     *pgxpool.Pool
	accounts accountCreator
	profiles profileStore
	leaves   *leave.Service
	jobs     housekeepingEnqueuer
	closers  []func() error
}

func openEnv(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*env, error) {
	pool, err := db.Connect(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	jobClient := jobs.NewClient(cfg.Redis().Asynq())
	return &env{
		logger:   logger,
		pool:     pool,
		accounts: auth.NewService(auth.NewRepository(pool), nil),
		profiles: profiles.NewRepository(pool),
		leaves:   leave.NewService(leave.NewPGStore(pool), logger),
		jobs:     jobClient,
		closers:  []func() error{
			jobClient.Close,
			func() error { pool.Close(); return nil },
		},
	}, nil
}

func (e *env) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.logger.Warn("close", slog.Any("error", err))
		}
	}
}
