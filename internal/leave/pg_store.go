package leave

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, now: time.Now}
}

const leaveColumns = `id::text, owner_id::text, leave_type, start_date, end_date, COALESCE(reason, ''), status, submitted_at`

// Create validates and inserts a new pending request.
func (s *PGStore) Create(ctx context.Context, ownerID string, in NewRequest) (LeaveRequest, error) {
	in, err := Validate(in)
	if err != nil {
		return LeaveRequest{}, err
	}
	req := newRequest(uuid.NewString(), ownerID, in, s.now())
	_, err = s.pool.Exec(ctx, `INSERT INTO leave_requests (id, owner_id, leave_type, start_date, end_date, reason, status, submitted_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		req.ID, req.OwnerID, req.LeaveType, req.StartDate.Time, req.EndDate.Time, req.Reason, string(req.Status), req.SubmittedAt)
	if err != nil {
		return LeaveRequest{}, err
	}
	return req, nil
}

// ListByOwner returns ownerID's requests, newest first.
func (s *PGStore) ListByOwner(ctx context.Context, ownerID string) ([]LeaveRequest, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+leaveColumns+` FROM leave_requests WHERE owner_id = $1 ORDER BY submitted_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]LeaveRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListAll returns all requests joined with the owner's display name.
func (s *PGStore) ListAll(ctx context.Context) ([]AdminView, error) {
	rows, err := s.pool.Query(ctx, `SELECT l.id::text, l.owner_id::text, l.leave_type, l.start_date, l.end_date, COALESCE(l.reason, ''), l.status, l.submitted_at, COALESCE(NULLIF(p.name, ''), $1)
FROM leave_requests l
LEFT JOIN profiles p ON p.id = l.owner_id
ORDER BY l.submitted_at DESC, l.id DESC`, UnknownOwner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminView, 0)
	for rows.Next() {
		var (
			view       AdminView
			start, end time.Time
			status     string
		)
		if err := rows.Scan(&view.ID, &view.OwnerID, &view.LeaveType, &start, &end, &view.Reason, &status, &view.SubmittedAt, &view.OwnerName); err != nil {
			return nil, err
		}
		view.StartDate, view.EndDate, view.Status = DateOf(start), DateOf(end), Status(status)
		out = append(out, view)
	}
	return out, rows.Err()
}

// SetStatus applies a conditional update so that of two racing callers
// exactly one observes the pending row. The guarantee rests entirely on the
// single UPDATE ... WHERE status = 'pending' statement; the EXISTS lookup
// that follows a miss only classifies the failure and never decides a race.
func (s *PGStore) SetStatus(ctx context.Context, id string, status Status) (LeaveRequest, error) {
	if !status.Terminal() {
		return LeaveRequest{}, ErrInvalidTransition
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveRequest{}, ErrNotFound
	}
	req, err := scanRequest(s.pool.QueryRow(ctx, `UPDATE leave_requests SET status = $2
WHERE id = $1 AND status = 'pending'
RETURNING `+leaveColumns, id, string(status)))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return LeaveRequest{}, err
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leave_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return LeaveRequest{}, err
	}
	if !exists {
		return LeaveRequest{}, ErrNotFound
	}
	return LeaveRequest{}, ErrInvalidTransition
}

func scanRequest(row pgx.Row) (LeaveRequest, error) {
	var (
		req        LeaveRequest
		start, end time.Time
		status     string
	)
	if err := row.Scan(&req.ID, &req.OwnerID, &req.LeaveType, &start, &end, &req.Reason, &status, &req.SubmittedAt); err != nil {
		return LeaveRequest{}, err
	}
	req.StartDate, req.EndDate, req.Status = DateOf(start), DateOf(end), Status(status)
	return req, nil
}

var _ Store = (*PGStore)(nil)
