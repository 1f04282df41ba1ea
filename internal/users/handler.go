package users

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/httpx"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Handler manages principal management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	users   *resource.Descriptor
	authn   func(http.Handler) http.Handler
	rbac    rbac.Middleware
	audit   shared.AuditRecorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, users *resource.Descriptor, authn func(http.Handler) http.Handler, rbac rbac.Middleware, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, users: users, authn: authn, rbac: rbac, audit: audit}
}

// MountRoutes registers user routes. Every route requires an admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.authn != nil {
			r.Use(h.authn)
		}
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.Put("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	f, err := resource.ParseFilters(r.URL.Query(), h.users)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	page, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Paginated(w, page.Items, page.Pagination)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, rec)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rec, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), body)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.record(r, "users.create", rec.ID())
	httpx.OK(w, http.StatusCreated, rec)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var body map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rec, err := h.service.Update(r.Context(), shared.PrincipalFromContext(r.Context()), id, body)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.record(r, "users.update", id)
	httpx.OK(w, http.StatusOK, rec)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.PrincipalFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.record(r, "users.delete", id)
	httpx.Message(w, http.StatusOK, "user deleted")
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, h.logger, shared.FieldInvalid("id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) record(r *http.Request, action string, id int64) {
	if h.audit == nil {
		return
	}
	entry := shared.AuditLog{Action: action, Entity: "users", EntityID: strconv.FormatInt(id, 10)}
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		entry.ActorID = p.ID
	}
	if err := h.audit.Record(r.Context(), entry); err != nil && h.logger != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
