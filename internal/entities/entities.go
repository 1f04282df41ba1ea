// Package entities declares the descriptor of every content type served by
// the API.
package entities

import (
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Entity and permission names.
const (
	News           = "news"
	Announcements  = "announcements"
	MassSchedule   = "mass-schedule"
	Birthdays      = "birthdays"
	Dizimistas     = "dizimistas"
	ParishInfo     = "parish-info"
	MassIntentions = "mass-intentions"
	Users          = "users"
)

// Content lists the content entities in mount order.
var Content = []string{News, Announcements, MassSchedule, Birthdays, Dizimistas, ParishInfo, MassIntentions}

// NewRegistry builds the registry of all descriptors.
func NewRegistry() (*resource.Registry, error) {
	return resource.NewRegistry(
		NewsDescriptor(),
		AnnouncementsDescriptor(),
		MassScheduleDescriptor(),
		BirthdaysDescriptor(),
		DizimistasDescriptor(),
		ParishInfoDescriptor(),
		MassIntentionsDescriptor(),
		UsersDescriptor(),
	)
}

var (
	orderIndex = resource.Field{Name: "order_index", Type: resource.TypeInt, Rules: "gte=0"}
	isActive   = resource.Field{Name: "is_active", Type: resource.TypeBool}
	createdBy  = resource.Field{Name: "created_by", Type: resource.TypeInt, ReadOnly: true, Nullable: true}
)

func creator(fk string) resource.Association {
	return resource.Association{Name: "creator", ForeignKey: fk, Table: "users", Fields: []string{"name"}}
}

// NewsDescriptor describes news items. Visibility follows the publish flag
// and an optional expiry.
func NewsDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       News,
		Table:      "news",
		Permission: News,
		Fields: []resource.Field{
			{Name: "title", Type: resource.TypeText, Rules: "required,min=3,max=200"},
			{Name: "slug", Type: resource.TypeText, Rules: "required,min=3,max=200"},
			{Name: "summary", Type: resource.TypeText, Rules: "omitempty,max=500", Nullable: true},
			{Name: "content", Type: resource.TypeText, Rules: "required,min=10"},
			{Name: "image_url", Type: resource.TypeText, Rules: "omitempty,url,max=500", Nullable: true},
			{Name: "author_id", Type: resource.TypeInt, ReadOnly: true, Nullable: true},
			{Name: "is_published", Type: resource.TypeBool},
			{Name: "published_at", Type: resource.TypeTimestamp, ReadOnly: true, Nullable: true},
			{Name: "expires_at", Type: resource.TypeTimestamp, Nullable: true},
			orderIndex,
		},
		Searchable: []string{"title", "summary", "content"},
		Filterable: []string{"is_published", "author_id", "slug"},
		DefaultOrder: []resource.OrderKey{
			{Field: "order_index", Dir: resource.Asc},
			{Field: "published_at", Dir: resource.Desc},
		},
		Temporal:     resource.SingleExpiry{Published: "is_published", Expires: "expires_at"},
		ActiveField:  "is_published",
		OrderField:   "order_index",
		CreatorField: "author_id",
		Unique:       []string{"slug"},
		Associations: []resource.Association{
			{Name: "author", ForeignKey: "author_id", Table: "users", Fields: []string{"name"}},
		},
		Lifecycle: &resource.PublishLifecycle{Flag: "is_published", StampedAt: "published_at"},
		Views:     []resource.View{resource.ViewActive},
	}
}

// AnnouncementsDescriptor describes weekly announcements.
func AnnouncementsDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       Announcements,
		Table:      "announcements",
		Permission: Announcements,
		Fields: []resource.Field{
			{Name: "title", Type: resource.TypeText, Rules: "required,min=3,max=200"},
			{Name: "content", Type: resource.TypeText, Rules: "required,min=3,max=5000"},
			{Name: "week_start", Type: resource.TypeDate, Rules: "required"},
			{Name: "week_end", Type: resource.TypeDate, Rules: "required"},
			isActive,
			orderIndex,
			createdBy,
		},
		Searchable: []string{"title", "content"},
		Filterable: []string{"is_active", "week_start", "week_end"},
		DefaultOrder: []resource.OrderKey{
			{Field: "order_index", Dir: resource.Asc},
			{Field: "week_start", Dir: resource.Desc},
		},
		Temporal:     resource.DateRangeWindow{Start: "week_start", End: "week_end"},
		ActiveField:  "is_active",
		OrderField:   "order_index",
		CreatorField: "created_by",
		Checks:       []resource.Check{dateNotBefore("week_end", "week_start")},
		Associations: []resource.Association{creator("created_by")},
		Report: &resource.ReportSpec{
			Title:  "Avisos Paroquiais",
			Fields: []string{"title", "content", "week_start", "week_end"},
		},
		Views: []resource.View{resource.ViewActive, resource.ViewToday},
	}
}

// MassScheduleDescriptor describes the recurring weekly mass times.
func MassScheduleDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       MassSchedule,
		Table:      "mass_schedules",
		Permission: MassSchedule,
		Fields: []resource.Field{
			{Name: "day_of_week", Type: resource.TypeInt, Rules: "gte=0,lte=6"},
			{Name: "time", Type: resource.TypeText, Rules: "required,clock"},
			{Name: "location", Type: resource.TypeText, Rules: "required,min=2,max=200"},
			{Name: "description", Type: resource.TypeText, Rules: "omitempty,max=500", Nullable: true},
			isActive,
			orderIndex,
		},
		Searchable: []string{"location", "description"},
		Filterable: []string{"day_of_week", "is_active", "location"},
		DefaultOrder: []resource.OrderKey{
			{Field: "day_of_week", Dir: resource.Asc},
			{Field: "time", Dir: resource.Asc},
			{Field: "order_index", Dir: resource.Asc},
		},
		Temporal:    resource.DayOfWeek{DayField: "day_of_week"},
		ActiveField: "is_active",
		OrderField:  "order_index",
		Views:       []resource.View{resource.ViewActive, resource.ViewToday},
	}
}

// BirthdaysDescriptor describes community members' birthdays.
func BirthdaysDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       Birthdays,
		Table:      "birthdays",
		Permission: Birthdays,
		Fields: []resource.Field{
			{Name: "name", Type: resource.TypeText, Rules: "required,min=2,max=200"},
			{Name: "birth_date", Type: resource.TypeDate, Rules: "required"},
			{Name: "community", Type: resource.TypeText, Rules: "omitempty,max=200", Nullable: true},
			{Name: "phone", Type: resource.TypeText, Rules: "omitempty,max=30", Nullable: true},
			isActive,
			orderIndex,
			createdBy,
		},
		Searchable: []string{"name", "community"},
		Filterable: []string{"is_active", "community"},
		DefaultOrder: []resource.OrderKey{
			{Field: "order_index", Dir: resource.Asc},
			{Field: "birth_date", Dir: resource.Asc, Part: resource.DayOfMonth},
			{Field: "name", Dir: resource.Asc},
		},
		Temporal:     resource.CalendarMonth{DateField: "birth_date"},
		ActiveField:  "is_active",
		OrderField:   "order_index",
		CreatorField: "created_by",
		Associations: []resource.Association{creator("created_by")},
		Report: &resource.ReportSpec{
			Title:   "Aniversariantes",
			Fields:  []string{"name", "birth_date", "community", "phone"},
			GroupBy: "community",
		},
		Views: []resource.View{resource.ViewActive, resource.ViewThisMonth, resource.ViewNextMonth},
	}
}

// DizimistasDescriptor describes registered tithers.
func DizimistasDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       Dizimistas,
		Table:      "dizimistas",
		Permission: Dizimistas,
		Fields: []resource.Field{
			{Name: "name", Type: resource.TypeText, Rules: "required,min=2,max=200"},
			{Name: "email", Type: resource.TypeText, Rules: "omitempty,email,max=200", Nullable: true},
			{Name: "phone", Type: resource.TypeText, Rules: "omitempty,max=30", Nullable: true},
			{Name: "address", Type: resource.TypeText, Rules: "omitempty,max=300", Nullable: true},
			{Name: "community", Type: resource.TypeText, Rules: "omitempty,max=200", Nullable: true},
			isActive,
			orderIndex,
		},
		Searchable: []string{"name", "email", "phone"},
		Filterable: []string{"is_active", "community"},
		DefaultOrder: []resource.OrderKey{
			{Field: "order_index", Dir: resource.Asc},
			{Field: "name", Dir: resource.Asc},
		},
		ActiveField: "is_active",
		OrderField:  "order_index",
		Unique:      []string{"email"},
	}
}

// ParishInfoDescriptor describes the institutional pages of the parish.
func ParishInfoDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       ParishInfo,
		Table:      "parish_info",
		Permission: ParishInfo,
		Fields: []resource.Field{
			{Name: "title", Type: resource.TypeText, Rules: "required,min=3,max=200"},
			{Name: "slug", Type: resource.TypeText, Rules: "required,min=3,max=200"},
			{Name: "content", Type: resource.TypeText, Rules: "required,min=3"},
			{Name: "category", Type: resource.TypeText, Rules: "required,oneof=history sacraments pastorals contact general"},
			isActive,
			orderIndex,
		},
		Searchable: []string{"title", "content"},
		Filterable: []string{"category", "is_active"},
		DefaultOrder: []resource.OrderKey{
			{Field: "order_index", Dir: resource.Asc},
			{Field: "title", Dir: resource.Asc},
		},
		ActiveField: "is_active",
		OrderField:  "order_index",
		Unique:      []string{"slug"},
		Views:       []resource.View{resource.ViewActive},
	}
}

// MassIntentionsDescriptor describes intentions offered at a given mass.
func MassIntentionsDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       MassIntentions,
		Table:      "mass_intentions",
		Permission: MassIntentions,
		Fields: []resource.Field{
			{Name: "requester_name", Type: resource.TypeText, Rules: "required,min=2,max=200"},
			{Name: "beneficiary", Type: resource.TypeText, Rules: "required,min=2,max=200"},
			{Name: "intention_type", Type: resource.TypeText, Rules: "required,oneof=acao_de_gracas falecimento saude aniversario outros"},
			{Name: "mass_date", Type: resource.TypeDate, Rules: "required"},
			{Name: "mass_time", Type: resource.TypeText, Rules: "omitempty,clock", Nullable: true},
			{Name: "description", Type: resource.TypeText, Rules: "omitempty,max=1000", Nullable: true},
			isActive,
			orderIndex,
			createdBy,
		},
		Searchable: []string{"requester_name", "beneficiary", "description"},
		Filterable: []string{"intention_type", "mass_date", "is_active"},
		DefaultOrder: []resource.OrderKey{
			{Field: "mass_date", Dir: resource.Asc},
			{Field: "order_index", Dir: resource.Asc},
		},
		Temporal:     resource.DateRangeWindow{Start: "mass_date", End: "mass_date"},
		ActiveField:  "is_active",
		OrderField:   "order_index",
		CreatorField: "created_by",
		Associations: []resource.Association{creator("created_by")},
		Report: &resource.ReportSpec{
			Title:   "Intenções de Missa",
			Fields:  []string{"mass_date", "mass_time", "beneficiary", "requester_name", "description"},
			GroupBy: "intention_type",
			Labels: map[string]string{
				"acao_de_gracas": "Ação de Graças",
				"falecimento":    "Falecimento",
				"saude":          "Saúde",
				"aniversario":    "Aniversário",
				"outros":         "Outros",
			},
		},
		Views: []resource.View{resource.ViewActive, resource.ViewToday},
	}
}

// UsersDescriptor describes principals. The password hash is never accepted
// from clients nor rendered.
func UsersDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name:       Users,
		Table:      "users",
		Permission: Users,
		Fields: []resource.Field{
			{Name: "name", Type: resource.TypeText, Rules: "required,min=2,max=200"},
			{Name: "email", Type: resource.TypeText, Rules: "required,email,max=200"},
			{Name: "password_hash", Type: resource.TypeText, Rules: "required", Hidden: true},
			{Name: "role", Type: resource.TypeText, Rules: "required,oneof=admin editor common"},
			isActive,
		},
		Searchable: []string{"name", "email"},
		Filterable: []string{"role", "is_active"},
		DefaultOrder: []resource.OrderKey{
			{Field: "name", Dir: resource.Asc},
		},
		ActiveField: "is_active",
		Unique:      []string{"email"},
	}
}

// dateNotBefore requires later >= earlier when both are set.
func dateNotBefore(later, earlier string) resource.Check {
	return func(rec resource.Record) *shared.FieldError {
		l, okL := rec[later].(time.Time)
		e, okE := rec[earlier].(time.Time)
		if !okL || !okE {
			return nil
		}
		if resource.DateOnly(l).Before(resource.DateOnly(e)) {
			return &shared.FieldError{Field: later, Message: later + " must be on or after " + earlier}
		}
		return nil
	}
}
