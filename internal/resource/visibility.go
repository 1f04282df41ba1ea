package resource

import (
	"net/url"
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// ViewFilters seeds base with the visibility constraints of v for d. It
// holds no state and performs no I/O; an unsupported view is NotFound.
func ViewFilters(d *Descriptor, v View, base Filters, now time.Time) (Filters, error) {
	if !d.HasView(v) {
		return Filters{}, shared.ErrNotFound
	}
	switch v {
	case ViewActive, ViewToday:
		return base.WithActive(), nil
	case ViewThisMonth:
		if _, ok := d.Temporal.(CalendarMonth); !ok {
			return Filters{}, shared.ErrNotFound
		}
		return base.WithActive().WithMonth(int(now.Month())), nil
	case ViewNextMonth:
		if _, ok := d.Temporal.(CalendarMonth); !ok {
			return Filters{}, shared.ErrNotFound
		}
		return base.WithActive().WithMonth(int(now.Month())%12 + 1), nil
	}
	return Filters{}, shared.ErrNotFound
}

// activePredicate expresses "currently visible" under d's temporal rule.
func activePredicate(d *Descriptor, now time.Time) Predicate {
	today := DateOnly(now)
	flag := func() And {
		if d.ActiveField == "" {
			return And{}
		}
		return And{Eq{Field: d.ActiveField, Value: true}}
	}
	switch rule := d.Temporal.(type) {
	case DateRangeWindow:
		return append(flag(),
			DateOnOrBefore{Field: rule.Start, Date: today},
			DateOnOrAfter{Field: rule.End, Date: today},
		)
	case SingleExpiry:
		return And{
			Eq{Field: rule.Published, Value: true},
			NullOrAtLeast{Field: rule.Expires, At: now},
		}
	case DayOfWeek:
		return append(flag(), Eq{Field: rule.DayField, Value: int64(now.Weekday())})
	default:
		if d.ActiveField == "" {
			return nil
		}
		return flag()
	}
}

// ViewQuery drops from q the parameters view v sets itself, so a caller value
// for them is neither validated nor applied.
func ViewQuery(d *Descriptor, v View, q url.Values) url.Values {
	owned := visibilityFields(d)
	if v == ViewThisMonth || v == ViewNextMonth {
		owned["month"] = true
	}
	kept := make(url.Values, len(q))
	for name, values := range q {
		if !owned[name] {
			kept[name] = values
		}
	}
	return kept
}

// visibilityFields lists the fields an active view constrains itself.
func visibilityFields(d *Descriptor) map[string]bool {
	owned := map[string]bool{}
	if d.ActiveField != "" {
		owned[d.ActiveField] = true
	}
	switch rule := d.Temporal.(type) {
	case DateRangeWindow:
		owned[rule.Start] = true
		owned[rule.End] = true
	case SingleExpiry:
		owned[rule.Published] = true
		owned[rule.Expires] = true
	case DayOfWeek:
		owned[rule.DayField] = true
	}
	return owned
}
