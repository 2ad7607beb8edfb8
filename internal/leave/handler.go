package leave

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/platform/httpx"
)

// IdempotencyHeader carries the optional submission key.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the dashboards and the leave API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *gate.Guard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard *gate.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers the partitioned routes. Each partition prefix is a
// guarded subtree, so unknown paths below it are gated too. extraAdmin
// mounts further routes inside the guarded /api/admin subtree.
func (h *Handler) MountRoutes(r chi.Router, extraAdmin ...func(chi.Router)) {
	staff := h.guard.Require(gate.StaffArea)
	admin := h.guard.Require(gate.AdminArea)

	r.Route("/dashboard/staff", func(r chi.Router) {
		r.Use(staff)
		r.Get("/", h.staffDashboard)
	})
	r.Route("/api/staff", func(r chi.Router) {
		r.Use(staff)
		r.Get("/leaves", h.listMine)
		r.Post("/leaves", h.submit)
	})
	r.Route("/dashboard/admin", func(r chi.Router) {
		r.Use(admin)
		r.Get("/", h.adminDashboard)
	})
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(admin)
		r.Get("/leaves", h.listAll)
		r.Post("/leaves/{id}/approve", h.decide(StatusApproved))
		r.Post("/leaves/{id}/reject", h.decide(StatusRejected))
		for _, mount := range extraAdmin {
			mount(r)
		}
	})
	r.With(h.guard.RequireAuthenticated).Get("/api/leave-types", h.leaveTypes)
}

type dashboardView struct {
	Email    string            `json:"email"`
	Role     string            `json:"role"`
	Summary  Summary           `json:"summary"`
	Requests any               `json:"requests"`
	Labels   map[string]string `json:"statusLabels"`
}

func statusLabels() map[string]string {
	return map[string]string{
		string(StatusPending):  StatusPending.Label(),
		string(StatusApproved): StatusApproved.Label(),
		string(StatusRejected): StatusRejected.Label(),
	}
}

func (h *Handler) staffDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.ListMine(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboardView{
		Email: actor.Principal.Email, Role: string(actor.Role),
		Summary: summary, Requests: rows, Labels: statusLabels(),
	})
}

func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.ListAll(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboardView{
		Email: actor.Principal.Email, Role: string(actor.Role),
		Summary: summary, Requests: rows, Labels: statusLabels(),
	})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListMine(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListAll(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	in, fields := decodeSubmission(r)
	if len(fields) > 0 {
		httpx.Invalid(w, "leave request is invalid", fields)
		return
	}
	req, err := h.service.Submit(r.Context(), actor, in, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) decide(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		req, err := h.service.Decide(r.Context(), actor, chi.URLParam(r, "id"), status)
		if err != nil {
			h.fail(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, req)
	}
}

func (h *Handler) leaveTypes(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, SuggestedTypes)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (gate.Actor, bool) {
	actor, ok := gate.ActorFromContext(r.Context())
	if !ok {
		h.logger.Error("actor missing from context", slog.String("path", r.URL.Path))
		httpx.Internal(w)
		return gate.Actor{}, false
	}
	return actor, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.Invalid(w, "leave request is invalid", verr.Fields)
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, "leave request not found")
	case errors.Is(err, ErrInvalidTransition):
		httpx.Conflict(w, "leave request is no longer pending")
	case errors.Is(err, ErrDuplicateSubmission):
		httpx.Conflict(w, "this submission was already received")
	case errors.Is(err, ErrForbidden):
		httpx.Forbidden(w, "your role may not perform this action")
	default:
		h.logger.Error("leave request failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}

// decodeSubmission reads a JSON body or a classic form post.
func decodeSubmission(r *http.Request) (NewRequest, map[string]string) {
	var in NewRequest
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return in, map[string]string{"body": err.Error()}
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, map[string]string{"body": "malformed form"}
	}
	fields := make(map[string]string)
	in.LeaveType = r.PostFormValue("leaveType")
	in.Reason = r.PostFormValue("reason")
	for name, dst := range map[string]*Date{"startDate": &in.StartDate, "endDate": &in.EndDate} {
		raw := strings.TrimSpace(r.PostFormValue(name))
		if raw == "" {
			continue
		}
		d, err := ParseDate(raw)
		if err != nil {
			fields[name] = "must be a date in YYYY-MM-DD form"
			continue
		}
		*dst = d
	}
	return in, fields
}
