// Package leave implements leave requests: their store, the approval
// workflow on top of it and the HTTP surface for both dashboards.
package leave

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the lifecycle state of a leave request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

var titleCase = cases.Title(language.English)

// Label is the display form of s.
func (s Status) Label() string {
	return titleCase.String(string(s))
}

// CanTransition reports whether from -> to is an edge of the workflow.
// Only pending requests move, and only to a terminal status.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
type Date struct {
	time.Time
}

// NewDate returns the Date for year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("leave: invalid date %q", raw)
	}
	return Date{t}, nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// MarshalJSON renders the date as "YYYY-MM-DD", or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", "" and null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LeaveRequest is an employee's request for time off.
type LeaveRequest struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	LeaveType   string    `json:"leaveType"`
	StartDate   Date      `json:"startDate"`
	EndDate     Date      `json:"endDate"`
	Reason      string    `json:"reason,omitempty"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Days returns the inclusive length of the request in calendar days.
func (r LeaveRequest) Days() int {
	if r.EndDate.Before(r.StartDate) {
		return 0
	}
	return int(r.EndDate.Sub(r.StartDate.Time).Hours()/24) + 1
}

// AdminView is a request annotated with its owner's display name.
type AdminView struct {
	LeaveRequest
	OwnerName string `json:"ownerName"`
}

// UnknownOwner is shown when the owner's profile has no name.
const UnknownOwner = "Unknown"

// NewRequest carries the caller supplied fields of a submission.
type NewRequest struct {
	LeaveType string `json:"leaveType" validate:"required,max=64"`
	StartDate Date   `json:"startDate"`
	EndDate   Date   `json:"endDate"`
	Reason    string `json:"reason" validate:"max=1000"`
}

// Summary counts requests per status.
type Summary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Add counts one request with status s.
func (s *Summary) Add(status Status) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusApproved:
		s.Approved++
	case StatusRejected:
		s.Rejected++
	}
}

// SuggestedTypes are offered by the submission form; any non-empty type is accepted.
var SuggestedTypes = []string{"Annual Leave", "Sick Leave", "Personal Leave"}

var (
	// ErrNotFound means no request with the given id exists.
	ErrNotFound = errors.New("leave: not found")
	// ErrInvalidTransition means the request is not pending or the target is not terminal.
	ErrInvalidTransition = errors.New("leave: invalid status transition")
	// ErrForbidden means the actor's role may not perform the operation.
	ErrForbidden = errors.New("leave: forbidden")
	// ErrDuplicateSubmission means the idempotency key was already used.
	ErrDuplicateSubmission = errors.New("leave: duplicate submission")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("leave: validation failed")
)

// ValidationError lists rejected fields with a message each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "leave: validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
