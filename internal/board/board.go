// Package board holds client-side views of leave requests. Their rows are a
// cache of the workflow engine's state and never outlive a failed mutation.
package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/leave"
)

// Action is an admin decision on a pending request.
type Action string

const (
	Approve Action = "approve"
	Reject  Action = "reject"
)

// Status returns the status the action moves a request to.
func (a Action) Status() (leave.Status, error) {
	switch a {
	case Approve:
		return leave.StatusApproved, nil
	case Reject:
		return leave.StatusRejected, nil
	default:
		return "", fmt.Errorf("board: unknown action %q", a)
	}
}

// AdminEngine is the slice of the workflow engine the admin board drives.
type AdminEngine interface {
	ListAll(ctx context.Context, actor gate.Actor) ([]leave.AdminView, error)
	Decide(ctx context.Context, actor gate.Actor, id string, status leave.Status) (leave.LeaveRequest, error)
}

// Board is the admin view of every request.
type Board struct {
	engine AdminEngine
	actor  gate.Actor

	mu   sync.RWMutex
	rows []leave.AdminView
}

// NewBoard constructs a Board for actor. Call Load before reading rows.
func NewBoard(engine AdminEngine, actor gate.Actor) *Board {
	return &Board{engine: engine, actor: actor}
}

// Load replaces the rows with the engine's current state.
func (b *Board) Load(ctx context.Context) error {
	rows, err := b.engine.ListAll(ctx, b.actor)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.rows = rows
	b.mu.Unlock()
	return nil
}

// Rows returns a copy of the cached rows.
func (b *Board) Rows() []leave.AdminView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]leave.AdminView, len(b.rows))
	copy(out, b.rows)
	return out
}

// Totals counts the cached rows per status.
func (b *Board) Totals() leave.Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var sum leave.Summary
	for _, row := range b.rows {
		sum.Add(row.Status)
	}
	return sum
}

// Decide applies action in two phases. The tentative status is shown at
// once; the engine's answer then replaces it. On failure the board is
// reloaded from the engine and the original error is returned.
func (b *Board) Decide(ctx context.Context, id string, action Action) (leave.LeaveRequest, error) {
	status, err := action.Status()
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	b.applyTentative(id, status)

	updated, err := b.engine.Decide(ctx, b.actor, id, status)
	if err != nil {
		if reloadErr := b.Load(ctx); reloadErr != nil {
			b.mu.Lock()
			b.rows = nil
			b.mu.Unlock()
			return leave.LeaveRequest{}, fmt.Errorf("%w (reload failed: %v)", err, reloadErr)
		}
		return leave.LeaveRequest{}, err
	}

	b.mu.Lock()
	for i := range b.rows {
		if b.rows[i].ID == updated.ID {
			b.rows[i].LeaveRequest = updated
		}
	}
	b.mu.Unlock()
	return updated, nil
}

func (b *Board) applyTentative(id string, status leave.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.rows {
		if b.rows[i].ID == id && b.rows[i].Status == leave.StatusPending {
			b.rows[i].Status = status
		}
	}
}
