package leave

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/profiles"
	"github.com/leavedesk/leavedesk/internal/shared"
)

const submitScope = "leave.submit"

// Transition outcomes reported to the Recorder.
const (
	OutcomeOK                = "ok"
	OutcomeNotFound          = "not_found"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeForbidden         = "forbidden"
	OutcomeInvalid           = "invalid"
	OutcomeDuplicate         = "duplicate"
	OutcomeError             = "error"
)

// Idempotency claims submission keys.
type Idempotency interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

// Recorder receives workflow outcomes, typically Prometheus counters.
type Recorder interface {
	ObserveTransition(status, outcome string)
	ObserveSubmission(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string, string) {}
func (nopRecorder) ObserveSubmission(string)         {}

// Service is the workflow engine. Every operation takes the acting caller
// explicitly and re-checks its role, whatever the transport already did.
type Service struct {
	store    Store
	idem     Idempotency
	cache    *SummaryCache
	recorder Recorder
	logger   *slog.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithIdempotency enables submission keys.
func WithIdempotency(idem Idempotency) ServiceOption {
	return func(s *Service) { s.idem = idem }
}

// WithSummaryCache caches dashboard counts.
func WithSummaryCache(cache *SummaryCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService constructs the workflow engine.
func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{store: store, recorder: nopRecorder{}, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit creates a pending request owned by the actor. A non-empty
// idempotencyKey that was already used yields ErrDuplicateSubmission.
func (s *Service) Submit(ctx context.Context, actor gate.Actor, in NewRequest, idempotencyKey string) (LeaveRequest, error) {
	if actor.Role != profiles.RoleStaff || actor.Principal.ID == "" {
		s.recorder.ObserveSubmission(OutcomeForbidden)
		return LeaveRequest{}, ErrForbidden
	}
	key := strings.TrimSpace(idempotencyKey)
	claimed := false
	if key != "" && s.idem != nil {
		if err := s.idem.Claim(ctx, submitScope, actor.Principal.ID+":"+key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.recorder.ObserveSubmission(OutcomeDuplicate)
				return LeaveRequest{}, ErrDuplicateSubmission
			}
			s.recorder.ObserveSubmission(OutcomeError)
			return LeaveRequest{}, err
		}
		claimed = true
	}

	req, err := s.store.Create(ctx, actor.Principal.ID, in)
	if err != nil {
		if claimed {
			if relErr := s.idem.Release(ctx, submitScope, actor.Principal.ID+":"+key); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		if errors.Is(err, ErrValidation) {
			s.recorder.ObserveSubmission(OutcomeInvalid)
			return LeaveRequest{}, err
		}
		s.recorder.ObserveSubmission(OutcomeError)
		s.logger.Error("submit leave", slog.String("owner", actor.Principal.ID), slog.Any("error", err))
		return LeaveRequest{}, err
	}
	s.recorder.ObserveSubmission(OutcomeOK)
	s.invalidate(ctx)
	s.logger.Info("leave submitted", slog.String("id", req.ID), slog.String("owner", req.OwnerID))
	return req, nil
}

// ListMine returns the actor's own requests, newest first.
func (s *Service) ListMine(ctx context.Context, actor gate.Actor) ([]LeaveRequest, error) {
	if !actor.Role.Valid() || actor.Principal.ID == "" {
		return nil, ErrForbidden
	}
	return s.store.ListByOwner(ctx, actor.Principal.ID)
}

// ListAll returns every request. Admin only.
func (s *Service) ListAll(ctx context.Context, actor gate.Actor) ([]AdminView, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.ListAll(ctx)
}

// Approve moves a pending request to approved. Admin only.
func (s *Service) Approve(ctx context.Context, actor gate.Actor, id string) (LeaveRequest, error) {
	return s.transition(ctx, actor, id, StatusApproved)
}

// Reject moves a pending request to rejected. Admin only.
func (s *Service) Reject(ctx context.Context, actor gate.Actor, id string) (LeaveRequest, error) {
	return s.transition(ctx, actor, id, StatusRejected)
}

// Decide applies status to id; used by callers holding the target status.
func (s *Service) Decide(ctx context.Context, actor gate.Actor, id string, status Status) (LeaveRequest, error) {
	return s.transition(ctx, actor, id, status)
}

func (s *Service) transition(ctx context.Context, actor gate.Actor, id string, status Status) (LeaveRequest, error) {
	if !actor.IsAdmin() {
		s.recorder.ObserveTransition(string(status), OutcomeForbidden)
		s.logger.Warn("transition denied", slog.String("actor", actor.Principal.ID), slog.String("id", id))
		return LeaveRequest{}, ErrForbidden
	}
	if !status.Terminal() {
		s.recorder.ObserveTransition(string(status), OutcomeInvalidTransition)
		return LeaveRequest{}, ErrInvalidTransition
	}
	req, err := s.store.SetStatus(ctx, id, status)
	switch {
	case err == nil:
		s.recorder.ObserveTransition(string(status), OutcomeOK)
		s.invalidate(ctx)
		s.logger.Info("leave transitioned", slog.String("id", id), slog.String("status", string(status)), slog.String("actor", actor.Principal.ID))
		return req, nil
	case errors.Is(err, ErrNotFound):
		s.recorder.ObserveTransition(string(status), OutcomeNotFound)
	case errors.Is(err, ErrInvalidTransition):
		s.recorder.ObserveTransition(string(status), OutcomeInvalidTransition)
	default:
		s.recorder.ObserveTransition(string(status), OutcomeError)
		s.logger.Error("transition leave", slog.String("id", id), slog.Any("error", err))
	}
	return LeaveRequest{}, err
}

// Summary counts requests visible to the actor: all of them for admins,
// the actor's own for staff.
func (s *Service) Summary(ctx context.Context, actor gate.Actor) (Summary, error) {
	switch {
	case actor.IsAdmin():
		return s.cache.Fetch(ctx, "all", func(ctx context.Context) (Summary, error) {
			rows, err := s.store.ListAll(ctx)
			if err != nil {
				return Summary{}, err
			}
			var sum Summary
			for _, row := range rows {
				sum.Add(row.Status)
			}
			return sum, nil
		})
	case actor.Role == profiles.RoleStaff:
		return s.cache.Fetch(ctx, "owner:"+actor.Principal.ID, func(ctx context.Context) (Summary, error) {
			rows, err := s.store.ListByOwner(ctx, actor.Principal.ID)
			if err != nil {
				return Summary{}, err
			}
			var sum Summary
			for _, row := range rows {
				sum.Add(row.Status)
			}
			return sum, nil
		})
	default:
		return Summary{}, ErrForbidden
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump summary cache", slog.Any("error", err))
	}
}
