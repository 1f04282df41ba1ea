package resource

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// ============================================================================
// TEST DESCRIPTORS
// ============================================================================

func peopleDescriptor() *Descriptor {
	return &Descriptor{
		Name:  "people",
		Table: "users",
		Fields: []Field{
			{Name: "name", Type: TypeText, Rules: "required,min=2"},
			{Name: "secret", Type: TypeText, Hidden: true, Nullable: true},
		},
	}
}

func noticesDescriptor() *Descriptor {
	return &Descriptor{
		Name:  "notices",
		Table: "notices",
		Fields: []Field{
			{Name: "title", Type: TypeText, Rules: "required,min=3,max=200"},
			{Name: "content", Type: TypeText, Rules: "omitempty,max=500", Nullable: true},
			{Name: "week_start", Type: TypeDate, Rules: "required"},
			{Name: "week_end", Type: TypeDate, Rules: "required"},
			{Name: "is_active", Type: TypeBool},
			{Name: "order_index", Type: TypeInt, Rules: "gte=0"},
			{Name: "created_by", Type: TypeInt, ReadOnly: true, Nullable: true},
		},
		Searchable:   []string{"title", "content"},
		Filterable:   []string{"is_active", "week_start", "order_index"},
		DefaultOrder: []OrderKey{{Field: "order_index", Dir: Asc}, {Field: "week_start", Dir: Desc}},
		Temporal:     DateRangeWindow{Start: "week_start", End: "week_end"},
		ActiveField:  "is_active",
		OrderField:   "order_index",
		CreatorField: "created_by",
		Checks: []Check{func(rec Record) *shared.FieldError {
			end, okEnd := rec["week_end"].(time.Time)
			start, okStart := rec["week_start"].(time.Time)
			if okEnd && okStart && end.Before(start) {
				return &shared.FieldError{Field: "week_end", Message: "week_end must be on or after week_start"}
			}
			return nil
		}},
		Associations: []Association{{Name: "creator", ForeignKey: "created_by", Table: "users", Fields: []string{"name"}}},
		Report:       &ReportSpec{Title: "Avisos", Fields: []string{"title", "week_start"}},
		Views:        []View{ViewActive, ViewToday},
	}
}

func postsDescriptor() *Descriptor {
	return &Descriptor{
		Name:  "posts",
		Table: "posts",
		Fields: []Field{
			{Name: "title", Type: TypeText, Rules: "required,min=3"},
			{Name: "slug", Type: TypeText, Rules: "required"},
			{Name: "author_id", Type: TypeInt, ReadOnly: true, Nullable: true},
			{Name: "is_published", Type: TypeBool},
			{Name: "published_at", Type: TypeTimestamp, ReadOnly: true, Nullable: true},
			{Name: "expires_at", Type: TypeTimestamp, Nullable: true},
		},
		Searchable:   []string{"title"},
		Filterable:   []string{"is_published", "slug"},
		DefaultOrder: []OrderKey{{Field: "published_at", Dir: Desc}},
		Temporal:     SingleExpiry{Published: "is_published", Expires: "expires_at"},
		ActiveField:  "is_published",
		CreatorField: "author_id",
		Unique:       []string{"slug"},
		Lifecycle:    &PublishLifecycle{Flag: "is_published", StampedAt: "published_at"},
		Views:        []View{ViewActive},
	}
}

func birthdaysDescriptor() *Descriptor {
	return &Descriptor{
		Name:  "bdays",
		Table: "bdays",
		Fields: []Field{
			{Name: "name", Type: TypeText, Rules: "required"},
			{Name: "birth_date", Type: TypeDate, Rules: "required"},
			{Name: "community", Type: TypeText, Nullable: true, Rules: "omitempty,max=200"},
			{Name: "is_active", Type: TypeBool},
			{Name: "order_index", Type: TypeInt, Rules: "gte=0"},
		},
		Searchable: []string{"name", "community"},
		Filterable: []string{"community", "is_active"},
		DefaultOrder: []OrderKey{
			{Field: "order_index", Dir: Asc},
			{Field: "birth_date", Dir: Asc, Part: DayOfMonth},
			{Field: "name", Dir: Asc},
		},
		Temporal:    CalendarMonth{DateField: "birth_date"},
		ActiveField: "is_active",
		OrderField:  "order_index",
		Report:      &ReportSpec{Title: "Aniversariantes", Fields: []string{"name", "birth_date"}, GroupBy: "community"},
		Views:       []View{ViewActive, ViewThisMonth, ViewNextMonth},
	}
}

func massesDescriptor() *Descriptor {
	return &Descriptor{
		Name:  "masses",
		Table: "masses",
		Fields: []Field{
			{Name: "day_of_week", Type: TypeInt, Rules: "gte=0,lte=6"},
			{Name: "time", Type: TypeText, Rules: "required,clock"},
			{Name: "location", Type: TypeText, Rules: "required"},
			{Name: "is_active", Type: TypeBool},
		},
		Filterable:   []string{"day_of_week", "is_active"},
		DefaultOrder: []OrderKey{{Field: "day_of_week", Dir: Asc}, {Field: "time", Dir: Asc}},
		Temporal:     DayOfWeek{DayField: "day_of_week"},
		ActiveField:  "is_active",
		Views:        []View{ViewActive, ViewToday},
	}
}

func pagesDescriptor() *Descriptor {
	return &Descriptor{
		Name:  "pages",
		Table: "pages",
		Fields: []Field{
			{Name: "title", Type: TypeText, Rules: "required"},
			{Name: "category", Type: TypeText, Rules: "required,oneof=history contact general"},
			{Name: "is_active", Type: TypeBool},
			{Name: "order_index", Type: TypeInt, Rules: "gte=0"},
		},
		Searchable:   []string{"title"},
		Filterable:   []string{"category", "is_active"},
		DefaultOrder: []OrderKey{{Field: "order_index", Dir: Asc}},
		ActiveField:  "is_active",
		OrderField:   "order_index",
		Views:        []View{ViewActive},
	}
}

// ============================================================================
// HELPERS
// ============================================================================

type fixture struct {
	store    *MemoryStore
	engine   *Engine
	now      time.Time
	people   *Descriptor
	notices  *Descriptor
	posts    *Descriptor
	bdays    *Descriptor
	masses   *Descriptor
	pages    *Descriptor
	registry *Registry
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		now:     now,
		people:  peopleDescriptor(),
		notices: noticesDescriptor(),
		posts:   postsDescriptor(),
		bdays:   birthdaysDescriptor(),
		masses:  massesDescriptor(),
		pages:   pagesDescriptor(),
	}
	reg, err := NewRegistry(f.people, f.notices, f.posts, f.bdays, f.masses, f.pages)
	require.NoError(t, err)
	f.registry = reg
	clock := func() time.Time { return f.now }
	f.store = NewMemoryStore(clock)
	f.engine = NewEngine(f.store, WithClock(clock), WithLocation(now.Location()))
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rawJSON(t *testing.T, fields map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = b
	}
	return out
}

func ids(recs []Record) []int64 {
	out := make([]int64, len(recs))
	for i, rec := range recs {
		out[i] = rec.ID()
	}
	return out
}
