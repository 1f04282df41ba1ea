// Package resource implements the generic query, visibility and CRUD engine
// shared by every content type. Each content type is described once by a
// Descriptor; the engine never switches on entity names.
package resource

import (
	"fmt"
	"sort"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// FieldType drives value coercion for query-string filters and JSON input.
type FieldType int

const (
	TypeText FieldType = iota
	TypeInt
	TypeBool
	// TypeDate is a calendar date without time of day (YYYY-MM-DD).
	TypeDate
	// TypeTimestamp is an instant (RFC 3339).
	TypeTimestamp
)

// Field declares a column of an entity.
type Field struct {
	Name string
	Type FieldType
	// Rules is a go-playground/validator tag applied on create and update.
	Rules string
	// ReadOnly fields are never accepted from client input.
	ReadOnly bool
	// Hidden fields are never projected into responses.
	Hidden bool
	// Nullable fields may be explicitly cleared with JSON null.
	Nullable bool
}

// Direction of an order key.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// DatePart selects a component of a date used as an order key.
type DatePart string

const (
	// DayOfMonth orders by the day component, ignoring year and month.
	DayOfMonth DatePart = "DAY"
)

// OrderKey is one element of a descriptor's default order.
type OrderKey struct {
	Field string
	Dir   Direction
	// Part orders by a component of a date field instead of the whole value.
	Part DatePart
}

// TemporalRule is one of DateRangeWindow, SingleExpiry, CalendarMonth or
// DayOfWeek. A nil rule means the entity has no temporal visibility.
type TemporalRule interface {
	temporalRule()
}

// DateRangeWindow makes a record visible from Start through End inclusive,
// compared as calendar dates.
type DateRangeWindow struct {
	Start string
	End   string
}

// SingleExpiry makes a record visible while Published is true and Expires is
// null or not yet passed.
type SingleExpiry struct {
	Published string
	Expires   string
}

// CalendarMonth matches records whose DateField falls in a given month of any year.
type CalendarMonth struct {
	DateField string
}

// DayOfWeek matches records whose DayField equals today's weekday (0=Sunday).
type DayOfWeek struct {
	DayField string
}

func (DateRangeWindow) temporalRule() {}
func (SingleExpiry) temporalRule()    {}
func (CalendarMonth) temporalRule()   {}
func (DayOfWeek) temporalRule()       {}

// Check is a cross-field constraint; it returns nil when satisfied.
type Check func(Record) *shared.FieldError

// Association projects a related row into each record under Name.
type Association struct {
	Name       string
	ForeignKey string
	Table      string
	Fields     []string
}

// PublishLifecycle enables the Draft/Published state machine.
type PublishLifecycle struct {
	Flag      string
	StampedAt string
}

// ReportSpec configures the printable report of an entity.
type ReportSpec struct {
	Title   string
	Fields  []string
	GroupBy string
	// Labels maps raw group keys to display labels; unmapped keys are title-cased.
	Labels map[string]string
}

// View is a public, pre-seeded visibility sub-route.
type View string

const (
	ViewActive    View = "active"
	ViewToday     View = "today"
	ViewThisMonth View = "this-month"
	ViewNextMonth View = "next-month"
)

// Descriptor declares search, filter, sort and visibility rules for one record type.
type Descriptor struct {
	Name       string
	Table      string
	Permission string
	Fields     []Field

	Searchable   []string
	Filterable   []string
	DefaultOrder []OrderKey
	Temporal     TemporalRule

	// ActiveField is the boolean visibility flag (is_active or is_published).
	ActiveField string
	// OrderField holds the sibling-relative position used by reorder.
	OrderField string
	// CreatorField is stamped from the principal on create when set.
	CreatorField string
	Unique       []string
	// Checks run after per-field rules, on the merged record.
	Checks []Check

	Associations []Association
	Lifecycle    *PublishLifecycle
	Report       *ReportSpec
	Views        []View

	index map[string]int
}

// Field returns the declaration of name.
func (d *Descriptor) Field(name string) (Field, bool) {
	if d.index == nil {
		for _, f := range d.Fields {
			if f.Name == name {
				return f, true
			}
		}
		return Field{}, false
	}
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// HasView reports whether the entity exposes v.
func (d *Descriptor) HasView(v View) bool {
	for _, candidate := range d.Views {
		if candidate == v {
			return true
		}
	}
	return false
}

func (d *Descriptor) validate() error {
	if d.Name == "" || d.Table == "" {
		return fmt.Errorf("resource: descriptor requires name and table")
	}
	d.Fields = withSystemFields(d.Fields)
	d.index = make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		if _, dup := d.index[f.Name]; dup {
			return fmt.Errorf("resource: %s: duplicate field %s", d.Name, f.Name)
		}
		d.index[f.Name] = i
	}
	check := func(kind, name string) error {
		if name == "" {
			return nil
		}
		if _, ok := d.index[name]; !ok {
			return fmt.Errorf("resource: %s: %s field %q not declared", d.Name, kind, name)
		}
		return nil
	}
	for _, name := range d.Searchable {
		if err := check("searchable", name); err != nil {
			return err
		}
	}
	for _, name := range d.Filterable {
		if err := check("filterable", name); err != nil {
			return err
		}
	}
	for _, key := range d.DefaultOrder {
		if err := check("order", key.Field); err != nil {
			return err
		}
	}
	for _, name := range []string{d.ActiveField, d.OrderField, d.CreatorField} {
		if err := check("marker", name); err != nil {
			return err
		}
	}
	for _, a := range d.Associations {
		if err := check("association", a.ForeignKey); err != nil {
			return err
		}
	}
	switch rule := d.Temporal.(type) {
	case nil:
	case DateRangeWindow:
		if err := check("window", rule.Start); err != nil {
			return err
		}
		if err := check("window", rule.End); err != nil {
			return err
		}
	case SingleExpiry:
		if err := check("expiry", rule.Published); err != nil {
			return err
		}
		if err := check("expiry", rule.Expires); err != nil {
			return err
		}
	case CalendarMonth:
		if err := check("month", rule.DateField); err != nil {
			return err
		}
	case DayOfWeek:
		if err := check("weekday", rule.DayField); err != nil {
			return err
		}
	}
	if d.Lifecycle != nil {
		if err := check("lifecycle", d.Lifecycle.Flag); err != nil {
			return err
		}
		if err := check("lifecycle", d.Lifecycle.StampedAt); err != nil {
			return err
		}
	}
	if d.Report != nil {
		for _, name := range d.Report.Fields {
			if err := check("report", name); err != nil {
				return err
			}
		}
		if err := check("report group", d.Report.GroupBy); err != nil {
			return err
		}
	}
	return nil
}

// withSystemFields prepends id and appends created_at/updated_at unless declared.
func withSystemFields(fields []Field) []Field {
	has := func(name string) bool {
		for _, f := range fields {
			if f.Name == name {
				return true
			}
		}
		return false
	}
	out := make([]Field, 0, len(fields)+3)
	if !has("id") {
		out = append(out, Field{Name: "id", Type: TypeInt, ReadOnly: true})
	}
	out = append(out, fields...)
	for _, name := range []string{"created_at", "updated_at"} {
		if !has(name) {
			out = append(out, Field{Name: name, Type: TypeTimestamp, ReadOnly: true})
		}
	}
	return out
}

// Columns returns every declared column name in declaration order.
func (d *Descriptor) Columns() []string {
	cols := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Registry holds exactly one descriptor per entity name.
type Registry struct {
	byName map[string]*Descriptor
}

// NewRegistry validates and indexes descriptors.
func NewRegistry(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("resource: duplicate descriptor %s", d.Name)
		}
		r.byName[d.Name] = d
	}
	return r, nil
}

// Get looks up a descriptor by entity name.
func (r *Registry) Get(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, &shared.ConfigurationError{Name: name}
	}
	return d, nil
}

// MustGet is Get for startup wiring, where an unknown name is fatal.
func (r *Registry) MustGet(name string) *Descriptor {
	d, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Names returns registered entity names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
