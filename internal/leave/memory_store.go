package leave

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NameLookup returns the display name of an owner, or "" if unknown.
type NameLookup func(ctx context.Context, ownerID string) string

// MemoryStore is an in-process Store with the same semantics as PGStore.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]LeaveRequest
	names    NameLookup
	now      func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore. names may be nil.
func NewMemoryStore(names NameLookup) *MemoryStore {
	return &MemoryStore{requests: make(map[string]LeaveRequest), names: names, now: time.Now}
}

// WithClock overrides the submission clock.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Create validates and stores a new pending request.
func (s *MemoryStore) Create(ctx context.Context, ownerID string, in NewRequest) (LeaveRequest, error) {
	in, err := Validate(in)
	if err != nil {
		return LeaveRequest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	req := newRequest(uuid.NewString(), ownerID, in, s.now())
	s.requests[req.ID] = req
	return req, nil
}

// ListByOwner returns ownerID's requests, newest first.
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]LeaveRequest, error) {
	s.mu.Lock()
	out := make([]LeaveRequest, 0)
	for _, req := range s.requests {
		if req.OwnerID == ownerID {
			out = append(out, req)
		}
	}
	s.mu.Unlock()
	sortNewestFirst(out, func(i int) LeaveRequest { return out[i] })
	return out, nil
}

// ListAll returns every request with its owner name, newest first.
func (s *MemoryStore) ListAll(ctx context.Context) ([]AdminView, error) {
	s.mu.Lock()
	out := make([]AdminView, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, AdminView{LeaveRequest: req})
	}
	s.mu.Unlock()
	for i := range out {
		name := ""
		if s.names != nil {
			name = s.names(ctx, out[i].OwnerID)
		}
		if name == "" {
			name = UnknownOwner
		}
		out[i].OwnerName = name
	}
	sortNewestFirst(out, func(i int) LeaveRequest { return out[i].LeaveRequest })
	return out, nil
}

// SetStatus transitions a pending request under the store lock.
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status) (LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return LeaveRequest{}, ErrNotFound
	}
	if !CanTransition(req.Status, status) {
		return LeaveRequest{}, ErrInvalidTransition
	}
	req.Status = status
	s.requests[id] = req
	return req, nil
}

func sortNewestFirst[T any](items []T, at func(int) LeaveRequest) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := at(i), at(j)
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		return a.ID > b.ID
	})
}

var _ Store = (*MemoryStore)(nil)
