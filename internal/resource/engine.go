package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/validate"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Engine runs the generic operations for any descriptor against a Store.
type Engine struct {
	store    Store
	validate *validator.Validate
	clock    func() time.Time
	loc      *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLocation sets the location that defines "today" for visibility rules.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		validate: validate.New(),
		clock:    time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time in its location.
func (e *Engine) Now() time.Time {
	return e.clock().In(e.loc)
}

// Page is one page of a listing.
type Page struct {
	Items      []Record          `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// OrderItem assigns a new position to one record.
type OrderItem struct {
	ID    int64 `json:"id"`
	Order int64 `json:"order"`
}

// List counts and reads one page of records matching f.
func (e *Engine) List(ctx context.Context, d *Descriptor, f Filters) (Page, error) {
	where := BuildPredicate(d, f, e.Now())
	total, err := e.store.Count(ctx, d, where)
	if err != nil {
		return Page{}, err
	}
	pg := shared.NewPagination(f.Page, f.Limit, total)
	items := []Record{}
	if total > 0 && !pg.Beyond() {
		items, err = e.store.Find(ctx, d, Query{
			Where:  where,
			Order:  OrderBy(d),
			Limit:  pg.Limit,
			Offset: pg.Offset(),
		})
		if err != nil {
			return Page{}, err
		}
	}
	items, err = e.project(ctx, d, items)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Pagination: pg}, nil
}

// VisibleUntil returns the earliest instant after which a record matching the
// active filters f leaves the view through its expiry, or the zero time when
// visibility only changes with the calendar day.
func (e *Engine) VisibleUntil(ctx context.Context, d *Descriptor, f Filters, now time.Time) (time.Time, error) {
	rule, ok := d.Temporal.(SingleExpiry)
	if !ok || !f.Active {
		return time.Time{}, nil
	}
	recs, err := e.store.Find(ctx, d, Query{
		Where: BuildPredicate(d, f, now),
		Order: []OrderKey{{Field: rule.Expires, Dir: Asc}},
		Limit: 1,
	})
	if err != nil || len(recs) == 0 {
		return time.Time{}, err
	}
	until, _ := recs[0][rule.Expires].(time.Time)
	return until, nil
}

// Get loads one record by id.
func (e *Engine) Get(ctx context.Context, d *Descriptor, id int64) (Record, error) {
	rec, err := e.store.Get(ctx, d, id)
	if err != nil {
		return nil, err
	}
	return e.projectOne(ctx, d, rec)
}

// Create validates and persists a new record, stamping the creator from p.
func (e *Engine) Create(ctx context.Context, d *Descriptor, in Input, p *shared.Principal) (Record, error) {
	values, err := decodeInput(d, in)
	if err != nil {
		return nil, err
	}
	if d.CreatorField != "" && p != nil {
		values[d.CreatorField] = p.ID
	}
	if d.OrderField != "" && values[d.OrderField] == nil {
		values[d.OrderField] = int64(0)
	}
	if d.ActiveField != "" && values[d.ActiveField] == nil {
		values[d.ActiveField] = d.Lifecycle == nil || d.Lifecycle.Flag != d.ActiveField
	}
	e.stampLifecycle(d, values, values)

	full := Record{}
	for _, f := range d.Fields {
		full[f.Name] = nil
	}
	for k, v := range values {
		full[k] = v
	}
	if err := validateRecord(e.validate, d, full); err != nil {
		return nil, err
	}
	rec, err := e.store.Insert(ctx, d, values)
	if err != nil {
		return nil, err
	}
	return e.projectOne(ctx, d, rec)
}

// Update merges the provided fields into the stored record, re-validates
// the result and persists it. Absent fields keep their values.
func (e *Engine) Update(ctx context.Context, d *Descriptor, id int64, in Input) (Record, error) {
	current, err := e.store.Get(ctx, d, id)
	if err != nil {
		return nil, err
	}
	values, err := decodeInput(d, in)
	if err != nil {
		return nil, err
	}
	merged := copyRecord(current)
	for k, v := range values {
		merged[k] = v
	}
	e.stampLifecycle(d, merged, values)
	if err := validateRecord(e.validate, d, merged); err != nil {
		return nil, err
	}
	rec, err := e.store.Update(ctx, d, id, values)
	if err != nil {
		return nil, err
	}
	return e.projectOne(ctx, d, rec)
}

// Remove hard-deletes a record.
func (e *Engine) Remove(ctx context.Context, d *Descriptor, id int64) error {
	if _, err := e.store.Get(ctx, d, id); err != nil {
		return err
	}
	return e.store.Delete(ctx, d, id)
}

// Reorder applies every position in one unit of work. Ids that do not exist
// are skipped. Any other failure rolls the batch back and yields
// shared.ErrReorderFailed.
func (e *Engine) Reorder(ctx context.Context, d *Descriptor, items []OrderItem) error {
	if d.OrderField == "" {
		return shared.FieldInvalid("items", d.Name+" cannot be reordered")
	}
	var errs []shared.FieldError
	for i, item := range items {
		if item.ID <= 0 {
			errs = append(errs, shared.FieldError{Field: fmt.Sprintf("items[%d].id", i), Message: "id must be positive"})
		}
		if item.Order < 0 {
			errs = append(errs, shared.FieldError{Field: fmt.Sprintf("items[%d].order", i), Message: "order must be greater than or equal to 0"})
		}
	}
	if len(errs) > 0 {
		return shared.NewValidationError(errs...)
	}
	err := e.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		for _, item := range items {
			_, err := tx.Update(ctx, d, item.ID, Record{d.OrderField: item.Order})
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrReorderFailed, err)
	}
	return nil
}

// Publish moves a record into the published state. The publication stamp is
// set on the first transition only.
func (e *Engine) Publish(ctx context.Context, d *Descriptor, id int64) (Record, error) {
	return e.transition(ctx, d, id, true)
}

// Unpublish returns a record to draft, keeping its publication stamp.
func (e *Engine) Unpublish(ctx context.Context, d *Descriptor, id int64) (Record, error) {
	return e.transition(ctx, d, id, false)
}

func (e *Engine) transition(ctx context.Context, d *Descriptor, id int64, published bool) (Record, error) {
	if d.Lifecycle == nil {
		return nil, shared.ErrNotFound
	}
	current, err := e.store.Get(ctx, d, id)
	if err != nil {
		return nil, err
	}
	values := Record{d.Lifecycle.Flag: published}
	e.stampLifecycle(d, current, values)
	rec, err := e.store.Update(ctx, d, id, values)
	if err != nil {
		return nil, err
	}
	return e.projectOne(ctx, d, rec)
}

// stampLifecycle sets the publication stamp into values when state is about
// to be published and has never been stamped.
func (e *Engine) stampLifecycle(d *Descriptor, state, values Record) {
	lc := d.Lifecycle
	if lc == nil {
		return
	}
	flag, ok := values[lc.Flag].(bool)
	if !ok || !flag {
		return
	}
	if state[lc.StampedAt] != nil || values[lc.StampedAt] != nil {
		return
	}
	now := e.Now()
	values[lc.StampedAt] = now
	state[lc.StampedAt] = now
}

func (e *Engine) projectOne(ctx context.Context, d *Descriptor, rec Record) (Record, error) {
	out, err := e.project(ctx, d, []Record{rec})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// project strips hidden fields, renders dates as YYYY-MM-DD and attaches
// association projections with one lookup per association.
func (e *Engine) project(ctx context.Context, d *Descriptor, recs []Record) ([]Record, error) {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		p := make(Record, len(d.Fields)+len(d.Associations))
		for _, f := range d.Fields {
			if f.Hidden {
				continue
			}
			v := rec[f.Name]
			if t, ok := v.(time.Time); ok && f.Type == TypeDate {
				v = t.Format(dateLayout)
			}
			p[f.Name] = v
		}
		out[i] = p
	}
	for _, a := range d.Associations {
		seen := map[int64]bool{}
		ids := make([]int64, 0, len(recs))
		for _, rec := range recs {
			if id, ok := toInt64(rec[a.ForeignKey]); ok && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		related, err := e.store.Lookup(ctx, a, ids)
		if err != nil {
			return nil, err
		}
		for i, rec := range recs {
			id, ok := toInt64(rec[a.ForeignKey])
			if r, found := related[id]; ok && found {
				out[i][a.Name] = r
			} else {
				out[i][a.Name] = nil
			}
		}
	}
	return out, nil
}
