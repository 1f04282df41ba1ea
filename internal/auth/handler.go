package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/httpx"
	"github.com/paroquia-cms/paroquia-cms/internal/platform/validate"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	authenticator Authenticator
	loginLimiter  func(http.Handler) http.Handler
	validator     *validator.Validate
}

// NewHandler constructs a Handler instance. loginLimiter may be nil.
func NewHandler(logger *slog.Logger, service *Service, loginLimiter func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		authenticator: Authenticator{Service: service, Logger: logger},
		loginLimiter:  loginLimiter,
		validator:     validate.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.loginLimiter != nil {
			r.Use(h.loginLimiter)
		}
		r.Post("/login", h.handleLogin)
	})
	r.With(h.authenticator.Require).Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, shared.NewValidationError(validate.FieldErrors(err)...))
		return
	}
	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if h.logger != nil {
		h.logger.Info("login", slog.Int64("user_id", session.User.ID))
	}
	httpx.OK(w, http.StatusOK, session)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	httpx.OK(w, http.StatusOK, shared.PrincipalFromContext(r.Context()))
}
