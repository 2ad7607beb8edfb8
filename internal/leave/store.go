package leave

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Store persists leave requests. It performs no role checks: callers are
// authorised upstream.
type Store interface {
	Create(ctx context.Context, ownerID string, in NewRequest) (LeaveRequest, error)
	ListByOwner(ctx context.Context, ownerID string) ([]LeaveRequest, error)
	ListAll(ctx context.Context) ([]AdminView, error)
	// SetStatus moves a pending request to a terminal status atomically.
	// A request that is no longer pending yields ErrInvalidTransition.
	SetStatus(ctx context.Context, id string, status Status) (LeaveRequest, error)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			return name
		})
	})
	return validate
}

// Validate normalises in and checks it. Failures are a *ValidationError.
func Validate(in NewRequest) (NewRequest, error) {
	in.LeaveType = strings.TrimSpace(in.LeaveType)
	in.Reason = strings.TrimSpace(in.Reason)

	fields := make(map[string]string)
	if err := fieldValidator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return in, err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	if in.StartDate.IsZero() {
		fields["startDate"] = "start date is required"
	}
	if in.EndDate.IsZero() {
		fields["endDate"] = "end date is required"
	}
	if _, ok := fields["endDate"]; !ok && !in.StartDate.IsZero() && in.EndDate.Before(in.StartDate) {
		fields["endDate"] = "end date must not be before start date"
	}
	if len(fields) > 0 {
		return in, &ValidationError{Fields: fields}
	}
	return in, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func newRequest(id, ownerID string, in NewRequest, now time.Time) LeaveRequest {
	return LeaveRequest{
		ID:          id,
		OwnerID:     ownerID,
		LeaveType:   in.LeaveType,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Reason:      in.Reason,
		Status:      StatusPending,
		SubmittedAt: now.UTC(),
	}
}
