package resource

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Filters is the request-scoped query input. It is a value: the With*
// helpers return modified copies and never touch the receiver.
type Filters struct {
	Page   int
	Limit  int
	Search string
	// Exact holds coerced values for filterable fields.
	Exact map[string]any
	// Month (1-12) applies to CalendarMonth entities; 0 means unset.
	Month int
	// Active restricts results to currently visible records.
	Active bool
}

// ParseFilters reads page, limit, search, month and filterable fields from q.
// Names that are not filterable for d are ignored.
func ParseFilters(q url.Values, d *Descriptor) (Filters, error) {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	f := Filters{
		Page:   page,
		Limit:  limit,
		Search: strings.TrimSpace(q.Get("search")),
		Exact:  map[string]any{},
	}
	var errs []shared.FieldError
	for _, name := range d.Filterable {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		field, _ := d.Field(name)
		v, err := coerceString(field, raw)
		if err != nil {
			errs = append(errs, shared.FieldError{Field: name, Message: name + " " + err.Error()})
			continue
		}
		f.Exact[name] = v
	}
	if _, ok := d.Temporal.(CalendarMonth); ok {
		if raw := strings.TrimSpace(q.Get("month")); raw != "" {
			month, err := strconv.Atoi(raw)
			if err != nil || month < 1 || month > 12 {
				errs = append(errs, shared.FieldError{Field: "month", Message: "month must be between 1 and 12"})
			} else {
				f.Month = month
			}
		}
	}
	if len(errs) > 0 {
		return Filters{}, shared.NewValidationError(errs...)
	}
	return f, nil
}

// WithActive returns a copy of f restricted to visible records.
func (f Filters) WithActive() Filters {
	f.Active = true
	return f
}

// WithMonth returns a copy of f matching month.
func (f Filters) WithMonth(month int) Filters {
	f.Month = month
	return f
}

// BuildPredicate turns f into a predicate for d. now anchors the active view;
// its location defines "today".
func BuildPredicate(d *Descriptor, f Filters, now time.Time) Predicate {
	terms := And{}
	owned := visibilityFields(d)
	for _, name := range d.Filterable {
		v, ok := f.Exact[name]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		// The visibility view owns its fields: caller values for them are dropped.
		if f.Active && owned[name] {
			continue
		}
		terms = append(terms, Eq{Field: name, Value: v})
	}
	if f.Search != "" && len(d.Searchable) > 0 {
		group := make(Or, 0, len(d.Searchable))
		for _, name := range d.Searchable {
			group = append(group, Contains{Field: name, Term: f.Search})
		}
		terms = append(terms, group)
	}
	if rule, ok := d.Temporal.(CalendarMonth); ok && f.Month >= 1 && f.Month <= 12 {
		terms = append(terms, MonthEq{Field: rule.DateField, Month: f.Month})
	}
	if f.Active {
		if p := activePredicate(d, now); p != nil {
			terms = append(terms, p)
		}
	}
	return terms
}

// OrderBy returns the descriptor's default order followed by the
// deterministic tie-breakers created_at DESC, id DESC.
func OrderBy(d *Descriptor) []OrderKey {
	keys := make([]OrderKey, 0, len(d.DefaultOrder)+2)
	keys = append(keys, d.DefaultOrder...)
	keys = append(keys, OrderKey{Field: "created_at", Dir: Desc}, OrderKey{Field: "id", Dir: Desc})
	return keys
}
