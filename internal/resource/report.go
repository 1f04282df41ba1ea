package resource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Report is the printable projection of the currently visible records.
type Report struct {
	ID          string        `json:"report_id"`
	Title       string        `json:"title"`
	GeneratedAt time.Time     `json:"generated_at"`
	Total       int           `json:"total"`
	Columns     []string      `json:"columns"`
	Groups      []ReportGroup `json:"groups"`
}

// ReportGroup holds the records sharing one value of the grouping field.
type ReportGroup struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Items []Record `json:"items"`
}

const ungroupedKey = "all"

// Report lists every visible record matching f without a page ceiling and
// groups the printable fields by the descriptor's categorical key.
func (e *Engine) Report(ctx context.Context, d *Descriptor, f Filters) (*Report, error) {
	spec := d.Report
	if spec == nil {
		return nil, shared.ErrNotFound
	}
	now := e.Now()
	recs, err := e.store.Find(ctx, d, Query{
		Where: BuildPredicate(d, f.WithActive(), now),
		Order: OrderBy(d),
	})
	if err != nil {
		return nil, err
	}
	projected, err := e.project(ctx, d, recs)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		Title:       spec.Title,
		GeneratedAt: now,
		Total:       len(projected),
		Columns:     spec.Fields,
		Groups:      []ReportGroup{},
	}
	index := map[string]int{}
	for _, rec := range projected {
		key := ungroupedKey
		if spec.GroupBy != "" {
			key = groupKey(rec[spec.GroupBy])
		}
		i, ok := index[key]
		if !ok {
			i = len(report.Groups)
			index[key] = i
			report.Groups = append(report.Groups, ReportGroup{Key: key, Label: spec.label(key), Items: []Record{}})
		}
		item := Record{"id": rec["id"]}
		for _, name := range spec.Fields {
			item[name] = rec[name]
		}
		report.Groups[i].Items = append(report.Groups[i].Items, item)
	}
	return report, nil
}

func (s *ReportSpec) label(key string) string {
	if key == ungroupedKey && s.GroupBy == "" {
		return s.Title
	}
	if label, ok := s.Labels[key]; ok {
		return label
	}
	if key == "" {
		return "Sem categoria"
	}
	return cases.Title(language.BrazilianPortuguese).String(strings.ReplaceAll(key, "_", " "))
}

func groupKey(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
