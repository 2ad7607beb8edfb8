package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/board"
	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/leave"
)

func reviewCommand(flags *pflag.FlagSet) func(ctx context.Context, env *env, out io.Writer) error {
	as := flags.String("as", "", "email of the reviewing admin")
	approve := flags.String("approve", "", "approve the pending request with this id")
	reject := flags.String("reject", "", "reject the pending request with this id")
	return func(ctx context.Context, env *env, out io.Writer) error {
		if *approve != "" && *reject != "" {
			return errors.New("review: --approve and --reject are mutually exclusive")
		}
		actor, err := reviewer(ctx, env, *as)
		if err != nil {
			return err
		}
		b := board.NewBoard(env.leaves, actor)
		if err := b.Load(ctx); err != nil {
			return err
		}
		switch {
		case *approve != "":
			err = decide(ctx, b, *approve, board.Approve, out)
		case *reject != "":
			err = decide(ctx, b, *reject, board.Reject, out)
		}
		if err != nil {
			return err
		}
		printBoard(out, b)
		return nil
	}
}

func reviewer(ctx context.Context, env *env, email string) (gate.Actor, error) {
	if email == "" {
		return gate.Actor{}, errors.New("review: --as is required")
	}
	profile, err := env.profiles.FindByEmail(ctx, email)
	if err != nil {
		return gate.Actor{}, fmt.Errorf("review: %s: %w", email, err)
	}
	actor := gate.Actor{
		Principal: auth.Principal{ID: profile.ID, Email: profile.Email},
		Role:      profile.Role,
	}
	if !actor.IsAdmin() {
		return gate.Actor{}, fmt.Errorf("review: %s is not an admin", email)
	}
	return actor, nil
}

func decide(ctx context.Context, b *board.Board, id string, action board.Action, out io.Writer) error {
	req, err := b.Decide(ctx, id, action)
	switch {
	case errors.Is(err, leave.ErrNotFound):
		return fmt.Errorf("review: no leave request %s", id)
	case errors.Is(err, leave.ErrInvalidTransition):
		return fmt.Errorf("review: request %s was already decided", id)
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "%s is now %s\n", req.ID, req.Status.Label())
	return nil
}

func printBoard(out io.Writer, b *board.Board) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tTYPE\tFROM\tTO\tDAYS\tSTATUS")
	for _, row := range b.Rows() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			row.ID, row.OwnerName, row.LeaveType, row.StartDate, row.EndDate, row.Days(), row.Status.Label())
	}
	tw.Flush()
	t := b.Totals()
	fmt.Fprintf(out, "total %d, pending %d, approved %d, rejected %d\n", t.Total, t.Pending, t.Approved, t.Rejected)
}
