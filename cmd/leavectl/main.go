package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/leavedesk/leavedesk/internal/app"
)

const usage = `leavectl: privileged administration for leavedesk.

Usage:
  leavectl <command> [flags]

Commands:
  migrate       apply the embedded database schema
  create-user   create an account (--email --password [--name] [--role])
  set-role      change the role stored on a profile (--email --role)
  seed          create accounts listed in a YAML file (-f users.yaml)
  review        list all leave requests as an admin (--as email [--approve id|--reject id])
  housekeeping  enqueue an immediate housekeeping run
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}
	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	flags := pflag.NewFlagSet("leavectl "+name, pflag.ContinueOnError)
	flags.SetOutput(out)
	exec := cmd(flags)
	if err := flags.Parse(rest); err != nil {
		return err
	}
	if extra := flags.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env, err := openEnv(ctx, cfg, app.NewLogger(cfg).With(slog.String("cmd", name)))
	if err != nil {
		return err
	}
	defer env.Close()
	return exec(ctx, env, out)
}

// command declares its flags on the set and returns the action to run once
// they are parsed.
type command func(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error

var commands = map[string]command{
	"migrate":      migrateCommand,
	"create-user":  createUserCommand,
	"set-role":     setRoleCommand,
	"seed":         seedCommand,
	"review":       reviewCommand,
	"housekeeping": housekeepingCommand,
}
