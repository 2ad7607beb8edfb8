package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"

	"github.com/leavedesk/leavedesk/internal/platform/db"
	"github.com/leavedesk/leavedesk/migrations"
)

func migrateCommand(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error {
	dryRun := flags.Bool("dry-run", false, "list pending scripts without applying them")
	return func(ctx context.Context, env *env, out io.Writer) error {
		if env.pool == nil {
			return errors.New("migrate: database not configured")
		}
		scripts, err := migrations.All()
		if err != nil {
			return err
		}
		if _, err := env.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return fmt.Errorf("migrate: bookkeeping table: %w", err)
		}
		for _, script := range scripts {
			var applied bool
			if err := env.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, script.Name).Scan(&applied); err != nil {
				return err
			}
			if applied {
				continue
			}
			if *dryRun {
				fmt.Fprintf(out, "pending %s\n", script.Name)
				continue
			}
			err := db.WithTx(ctx, env.pool, func(tx pgx.Tx) error {
				if _, err := tx.Exec(ctx, script.SQL); err != nil {
					return err
				}
				_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, script.Name)
				return err
			})
			if err != nil {
				return fmt.Errorf("migrate %s: %w", script.Name, err)
			}
			fmt.Fprintf(out, "applied %s\n", script.Name)
		}
		return nil
	}
}
