package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRepository reads audit_logs.
type PGRepository struct {
	db querier
}

// NewPGRepository builds a repository over a pool or transaction.
func NewPGRepository(db querier) *PGRepository {
	return &PGRepository{db: db}
}

const timelineSQL = `SELECT occurred_at, COALESCE(actor_id, 0), action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC
LIMIT $6 OFFSET $7`

// Window implements Repository. A NULL limit reads every row.
func (r *PGRepository) Window(ctx context.Context, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	var lim pgtype.Int8
	if limit > 0 {
		lim = pgtype.Int8{Int64: int64(limit), Valid: true}
	}
	var actor pgtype.Int8
	if f.ActorID > 0 {
		actor = pgtype.Int8{Int64: f.ActorID, Valid: true}
	}
	rows, err := r.db.Query(ctx, timelineSQL,
		toPgTime(f.From), toPgTime(f.To), actor, optionalText(f.Entity), optionalText(f.Action), lim, offset)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()

	out := []TimelineRow{}
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, fmt.Errorf("audit: scan timeline: %w", err)
		}
		if len(meta) > 0 && string(meta) != "null" {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
