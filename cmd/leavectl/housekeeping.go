package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/leavedesk/leavedesk/jobs"
)

func housekeepingCommand(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error {
	retention := flags.Duration("retention", 0, "idempotency key retention (worker default when zero)")
	return func(ctx context.Context, env *env, out io.Writer) error {
		info, err := env.jobs.EnqueueHousekeeping(ctx, jobs.HousekeepingPayload{IdempotencyRetention: *retention})
		if err != nil {
			return fmt.Errorf("enqueue housekeeping: %w", err)
		}
		fmt.Fprintf(out, "enqueued %s on %s\n", info.ID, info.Queue)
		return nil
	}
}
