package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/leavedesk/leavedesk/internal/platform/httpx"
	"github.com/leavedesk/leavedesk/internal/shared"
)

// LandingFunc picks the page an authenticated principal is sent to.
type LandingFunc func(ctx context.Context, principal Principal) (string, error)

// LoginPath is where unauthenticated callers are redirected.
const LoginPath = "/auth/login"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	landing        LandingFunc
	rateLimit      int
	validator      *validator.Validate
}

// HandlerConfig groups Handler dependencies.
type HandlerConfig struct {
	Logger    *slog.Logger
	Service   *Service
	Sessions  *shared.SessionManager
	CSRF      *shared.CSRFManager
	Landing   LandingFunc
	RateLimit int
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        cfg.Service,
		sessionManager: cfg.Sessions,
		csrfManager:    cfg.CSRF,
		landing:        cfg.Landing,
		rateLimit:      cfg.RateLimit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Group(func(r chi.Router) {
		if h.rateLimit > 0 {
			r.Use(httprate.Limit(h.rateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "slow down and retry later")
				}),
			))
		}
		r.Post("/login", h.handleLogin)
		r.Post("/signup", h.handleSignup)
		r.Post("/token", h.handleToken)
	})
	r.Post("/logout", h.handleLogout)
}

type credentialsForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=120"`
}

type formResponse struct {
	CSRFToken string               `json:"csrfToken,omitempty"`
	Flash     *shared.FlashMessage `json:"flash,omitempty"`
	Errors    map[string]string    `json:"errors,omitempty"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	resp := formResponse{CSRFToken: csrfToken}
	if sess != nil {
		resp.Flash = sess.PopFlash()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, errs := h.readCredentials(r)
	if len(errs) > 0 {
		h.rejectForm(w, r, http.StatusBadRequest, errs)
		return
	}
	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		h.rejectForm(w, r, http.StatusBadRequest, map[string]string{"general": "Invalid email or password"})
		return
	}
	principal := Principal{ID: user.ID, Email: user.Email}
	target, err := h.landing(r.Context(), principal)
	if err != nil {
		h.logger.Warn("login landing", slog.String("user", user.ID), slog.Any("error", err))
		h.rejectForm(w, r, http.StatusForbidden, map[string]string{"general": "Profile not found"})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Internal(w)
		return
	}
	h.sessionManager.Rotate(sess)
	sess.SetUser(user.ID)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	form, errs := h.readCredentials(r)
	if len(errs) > 0 {
		h.rejectForm(w, r, http.StatusBadRequest, errs)
		return
	}
	if _, err := h.service.Signup(r.Context(), SignupInput{Email: form.Email, Password: form.Password, Name: form.Name}); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			h.rejectForm(w, r, http.StatusConflict, map[string]string{"Email": "Email is already registered"})
			return
		}
		h.logger.Error("signup", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Account created, please sign in"})
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	form, errs := h.readCredentials(r)
	if len(errs) > 0 {
		httpx.Invalid(w, "invalid credentials payload", errs)
		return
	}
	token, err := h.service.IssueToken(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
			return
		}
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw, ok := BearerToken(r); ok {
		if err := h.service.RevokeToken(r.Context(), raw); err != nil {
			h.logger.Error("revoke token", slog.Any("error", err))
			httpx.Internal(w)
			return
		}
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if sess.User() != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) readCredentials(r *http.Request) (credentialsForm, map[string]string) {
	var form credentialsForm
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			return form, map[string]string{"general": "Malformed request body"}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return form, map[string]string{"general": "Malformed form"}
		}
		form = credentialsForm{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			Name:     r.PostFormValue("name"),
		}
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		} else {
			errs["general"] = err.Error()
		}
	}
	return form, errs
}

func (h *Handler) rejectForm(w http.ResponseWriter, r *http.Request, status int, errs map[string]string) {
	resp := formResponse{Errors: errs}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		resp.CSRFToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
	}
	httpx.JSON(w, status, resp)
}
