package board

import (
	"context"
	"sync"

	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/leave"
)

// StaffEngine is the slice of the workflow engine a staff view drives.
type StaffEngine interface {
	Submit(ctx context.Context, actor gate.Actor, in leave.NewRequest, idempotencyKey string) (leave.LeaveRequest, error)
	ListMine(ctx context.Context, actor gate.Actor) ([]leave.LeaveRequest, error)
}

// MyLeaves is a staff member's view of their own requests.
type MyLeaves struct {
	engine StaffEngine
	actor  gate.Actor

	mu   sync.RWMutex
	rows []leave.LeaveRequest
}

// NewMyLeaves constructs the view for actor.
func NewMyLeaves(engine StaffEngine, actor gate.Actor) *MyLeaves {
	return &MyLeaves{engine: engine, actor: actor}
}

// Load replaces the rows with the engine's current state.
func (m *MyLeaves) Load(ctx context.Context) error {
	rows, err := m.engine.ListMine(ctx, m.actor)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.rows = rows
	m.mu.Unlock()
	return nil
}

// Rows returns a copy of the cached rows.
func (m *MyLeaves) Rows() []leave.LeaveRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveRequest, len(m.rows))
	copy(out, m.rows)
	return out
}

// Submit files a request and reloads so the list reflects stored order.
// Nothing is shown before the engine accepts the request.
func (m *MyLeaves) Submit(ctx context.Context, in leave.NewRequest, idempotencyKey string) (leave.LeaveRequest, error) {
	req, err := m.engine.Submit(ctx, m.actor, in, idempotencyKey)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	return req, m.Load(ctx)
}
