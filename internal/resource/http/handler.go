// Package http exposes the resource engine over REST, one Handler per
// descriptor.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/httpx"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// WriteObserver is notified of every write attempt.
type WriteObserver interface {
	Write(resource, action string, err error)
}

// ReportPrinter renders a report as a printable document.
type ReportPrinter interface {
	HTML(ctx context.Context, rep *resource.Report) ([]byte, error)
	PDF(ctx context.Context, rep *resource.Report) ([]byte, error)
}

// Deps are the collaborators shared by every resource handler.
type Deps struct {
	Logger  *slog.Logger
	Engine  *resource.Engine
	Authn   func(http.Handler) http.Handler
	RBAC    rbac.Middleware
	Cache   *ViewCache
	Audit   shared.AuditRecorder
	Metrics WriteObserver
	Printer ReportPrinter
}

// Handler serves the routes of one descriptor.
type Handler struct {
	Deps
	d *resource.Descriptor
}

// NewHandler builds a handler for d.
func NewHandler(d *resource.Descriptor, deps Deps) *Handler {
	return &Handler{Deps: deps, d: d}
}

// MountRoutes registers the descriptor's routes. Visibility views are
// public; everything else requires authentication and the descriptor's
// permission.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, view := range h.d.Views {
		r.Get("/"+string(view), h.handleView(view))
	}
	r.Group(func(r chi.Router) {
		if h.Authn != nil {
			r.Use(h.Authn)
		}
		r.Use(h.RBAC.RequirePermission(h.d.Permission))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		if h.d.OrderField != "" {
			r.Put("/order", h.handleReorder)
		}
		if h.d.Report != nil {
			r.Get("/print/report", h.handleReport)
			if h.Printer != nil {
				r.Get("/print/report.html", h.handlePrint(h.Printer.HTML, "text/html; charset=utf-8", ""))
				r.Get("/print/report.pdf", h.handlePrint(h.Printer.PDF, "application/pdf", ".pdf"))
			}
		}
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		if h.d.Lifecycle != nil {
			r.Post("/{id}/publish", h.handlePublish)
			r.Post("/{id}/unpublish", h.handleUnpublish)
		}
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := resource.ParseFilters(r.URL.Query(), h.d)
	if err != nil {
		h.fail(w, err)
		return
	}
	page, err := h.Engine.List(r.Context(), h.d, f)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.Paginated(w, page.Items, page.Pagination)
}

func (h *Handler) handleView(view resource.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := resource.ViewQuery(h.d, view, r.URL.Query())
		base, err := resource.ParseFilters(q, h.d)
		if err != nil {
			h.fail(w, err)
			return
		}
		now := h.Engine.Now()
		f, err := resource.ViewFilters(h.d, view, base, now)
		if err != nil {
			h.fail(w, err)
			return
		}
		parts := []string{now.Format("2006-01-02"), canonicalQuery(q)}
		payload, err := h.Cache.Fetch(r.Context(), h.d.Name, string(view), parts, func(ctx context.Context) (Entry, error) {
			page, err := h.Engine.List(ctx, h.d, f)
			if err != nil {
				return Entry{}, err
			}
			until, err := h.Engine.VisibleUntil(ctx, h.d, f, now)
			if err != nil {
				return Entry{}, err
			}
			entry := Entry{Value: httpx.Envelope{Success: true, Data: page.Items, Pagination: &page.Pagination}}
			if !until.IsZero() {
				entry.MaxAge = until.Sub(now)
				if entry.MaxAge <= 0 {
					entry.MaxAge = -1
				}
			}
			return entry, nil
		})
		if err != nil {
			h.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.Engine.Get(r.Context(), h.d, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, rec)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.fail(w, err)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	rec, err := h.Engine.Create(r.Context(), h.d, resource.Input{Raw: body}, principal)
	h.written(r, "create", rec.ID(), err)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, rec)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var body map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.Engine.Update(r.Context(), h.d, id, resource.Input{Raw: body})
	h.written(r, "update", id, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, rec)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	err = h.Engine.Remove(r.Context(), h.d, id)
	h.written(r, "delete", id, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, h.d.Name+" deleted")
}

type reorderRequest struct {
	Items []resource.OrderItem `json:"items"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	err := h.Engine.Reorder(r.Context(), h.d, req.Items)
	h.written(r, "reorder", 0, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "order updated")
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.buildReport(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

// handlePrint serves the report rendered by render. A non-empty ext marks
// the body as an inline attachment named after the resource.
func (h *Handler) handlePrint(render func(context.Context, *resource.Report) ([]byte, error), contentType, ext string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := h.buildReport(r)
		if err != nil {
			h.fail(w, err)
			return
		}
		body, err := render(r.Context(), report)
		if err != nil {
			h.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if ext != "" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", h.d.Name+ext))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func (h *Handler) buildReport(r *http.Request) (*resource.Report, error) {
	f, err := resource.ParseFilters(r.URL.Query(), h.d)
	if err != nil {
		return nil, err
	}
	return h.Engine.Report(r.Context(), h.d, f)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "publish", h.Engine.Publish)
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "unpublish", h.Engine.Unpublish)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, *resource.Descriptor, int64) (resource.Record, error)) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := apply(r.Context(), h.d, id)
	h.written(r, action, id, err)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, rec)
}

// written counts the attempt and, on success, invalidates cached views and
// records the audit entry. Audit failures are logged only.
func (h *Handler) written(r *http.Request, action string, id int64, err error) {
	if h.Metrics != nil {
		h.Metrics.Write(h.d.Name, action, err)
	}
	if err != nil {
		return
	}
	ctx := r.Context()
	if cacheErr := h.Cache.Bump(ctx, h.d.Name); cacheErr != nil && h.Logger != nil {
		h.Logger.Warn("view cache bump", slog.String("resource", h.d.Name), slog.Any("error", cacheErr))
	}
	if h.Audit == nil {
		return
	}
	entry := shared.AuditLog{
		Action:   h.d.Name + "." + action,
		Entity:   h.d.Name,
		EntityID: "batch",
	}
	if id > 0 {
		entry.EntityID = strconv.FormatInt(id, 10)
	}
	if p := shared.PrincipalFromContext(ctx); p != nil {
		entry.ActorID = p.ID
	}
	if auditErr := h.Audit.Record(ctx, entry); auditErr != nil && h.Logger != nil {
		h.Logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", auditErr))
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.Logger, err)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.FieldInvalid("id", "id must be a positive integer")
	}
	return id, nil
}

// canonicalQuery renders q with sorted keys and values so equivalent
// requests share a cache entry.
func canonicalQuery(q url.Values) string {
	for k := range q {
		sort.Strings(q[k])
	}
	return q.Encode()
}
