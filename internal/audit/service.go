package audit

import (
	"context"
	"fmt"

	"github.com/paroquia-cms/paroquia-cms/internal/resource"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository reads audit rows newest first. A limit of zero means no limit.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error)
}

// ActorLookup resolves principal projections by id. resource.Store
// satisfies it.
type ActorLookup interface {
	Lookup(ctx context.Context, a resource.Association, ids []int64) (map[int64]resource.Record, error)
}

var actorAssociation = resource.Association{Name: "actor", Table: "users", Fields: []string{"name"}}

// Service coordinates timeline reads.
type Service struct {
	repo   Repository
	actors ActorLookup
}

// NewService builds the timeline service. actors may be nil, leaving actor
// names empty.
func NewService(repo Repository, actors ActorLookup) *Service {
	return &Service{repo: repo, actors: actors}
}

// Timeline loads one page of the audit trail.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, filters, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if err := s.resolveActors(ctx, rows); err != nil {
		return Result{}, err
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export loads every matching row without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	rows, err := s.repo.Window(ctx, filters, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := s.resolveActors(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) resolveActors(ctx context.Context, rows []TimelineRow) error {
	if s.actors == nil || len(rows) == 0 {
		return nil
	}
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.ActorID > 0 && !seen[row.ActorID] {
			seen[row.ActorID] = true
			ids = append(ids, row.ActorID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	found, err := s.actors.Lookup(ctx, actorAssociation, ids)
	if err != nil {
		return fmt.Errorf("audit: resolve actors: %w", err)
	}
	for i := range rows {
		if rec, ok := found[rows[i].ActorID]; ok {
			rows[i].Actor, _ = rec["name"].(string)
		}
	}
	return nil
}
