// Package audithttp serves the admin audit timeline.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/audit"
	"github.com/paroquia-cms/paroquia-cms/internal/platform/httpx"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

const (
	dateLayout        = "2006-01-02"
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	authn   func(http.Handler) http.Handler
	rbac    rbac.Middleware
	loc     *time.Location
	now     func() time.Time
}

// NewHandler builds the audit handler. Date filters are read in loc.
func NewHandler(logger *slog.Logger, service TimelineService, authn func(http.Handler) http.Handler, rbac rbac.Middleware, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		logger:  logger,
		service: service,
		authn:   authn,
		rbac:    rbac,
		loc:     loc,
		now:     time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads an inclusive from/to day range, defaulting to the last
// seven days, and converts it to a half-open instant range.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	today := h.now().In(h.loc)
	toDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, h.loc)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, h.loc)
		if err != nil {
			return audit.TimelineFilters{}, shared.FieldInvalid("to", "to must be a date (YYYY-MM-DD)")
		}
		toDay = parsed
	}
	fromDay := toDay.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, h.loc)
		if err != nil {
			return audit.TimelineFilters{}, shared.FieldInvalid("from", "from must be a date (YYYY-MM-DD)")
		}
		fromDay = parsed
	}
	if fromDay.After(toDay) {
		return audit.TimelineFilters{}, shared.FieldInvalid("from", "from must be on or before to")
	}
	if toDay.Sub(fromDay) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, shared.FieldInvalid("from", "range must not exceed 90 days")
	}

	filters := audit.TimelineFilters{
		From:   fromDay,
		To:     toDay.AddDate(0, 0, 1),
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	for _, p := range []struct {
		name   string
		target *int
	}{{"page", &filters.Page}, {"page_size", &filters.PageSize}} {
		if v := strings.TrimSpace(q.Get(p.name)); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 {
				return audit.TimelineFilters{}, shared.FieldInvalid(p.name, p.name+" must be a positive integer")
			}
			*p.target = parsed
		}
	}
	if v := strings.TrimSpace(q.Get("actor_id")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, shared.FieldInvalid("actor_id", "actor_id must be a positive integer")
		}
		filters.ActorID = parsed
	}
	return filters, nil
}
