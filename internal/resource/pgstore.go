package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/db"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, q: pool}
}

// Count returns the number of rows matching where.
func (s *PGStore) Count(ctx context.Context, d *Descriptor, where Predicate) (int, error) {
	var b sqlBuilder
	sql := "SELECT COUNT(*) FROM " + ident(d.Table) + " WHERE " + b.where(where)
	rows, err := s.q.Query(ctx, sql, b.args...)
	if err != nil {
		return 0, fmt.Errorf("resource: count %s: %w", d.Name, err)
	}
	total, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("resource: count %s: %w", d.Name, err)
	}
	return int(total), nil
}

// Find runs a bounded, ordered read.
func (s *PGStore) Find(ctx context.Context, d *Descriptor, q Query) ([]Record, error) {
	var b sqlBuilder
	sql := "SELECT " + columnList(d.Columns()) + " FROM " + ident(d.Table) +
		" WHERE " + b.where(q.Where) + orderClause(q.Order)
	if q.Limit > 0 {
		sql += " LIMIT " + b.arg(q.Limit)
	}
	if q.Offset > 0 {
		sql += " OFFSET " + b.arg(q.Offset)
	}
	rows, err := s.q.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("resource: find %s: %w", d.Name, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("resource: find %s: %w", d.Name, err)
	}
	out := make([]Record, 0, len(maps))
	for _, m := range maps {
		out = append(out, normalize(d, Record(m)))
	}
	return out, nil
}

// Get loads one row by id.
func (s *PGStore) Get(ctx context.Context, d *Descriptor, id int64) (Record, error) {
	sql := "SELECT " + columnList(d.Columns()) + " FROM " + ident(d.Table) + " WHERE id = $1"
	return s.one(ctx, d, sql, id)
}

// Insert writes a new row and returns it as stored.
func (s *PGStore) Insert(ctx context.Context, d *Descriptor, values Record) (Record, error) {
	cols, args := splitValues(values)
	var sql string
	if len(cols) == 0 {
		sql = "INSERT INTO " + ident(d.Table) + " DEFAULT VALUES"
	} else {
		placeholders := make([]string, len(cols))
		for i := range cols {
			placeholders[i] = "$" + strconv.Itoa(i+1)
		}
		sql = "INSERT INTO " + ident(d.Table) + " (" + columnList(cols) + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	}
	sql += " RETURNING " + columnList(d.Columns())
	rec, err := s.one(ctx, d, sql, args...)
	if err != nil {
		return nil, mapWriteError(d, err)
	}
	return rec, nil
}

// Update applies values to the row and bumps updated_at.
func (s *PGStore) Update(ctx context.Context, d *Descriptor, id int64, values Record) (Record, error) {
	cols, args := splitValues(values)
	sets := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, ident(c)+" = $"+strconv.Itoa(i+1))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	sql := "UPDATE " + ident(d.Table) + " SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING " + columnList(d.Columns())
	rec, err := s.one(ctx, d, sql, args...)
	if err != nil {
		return nil, mapWriteError(d, err)
	}
	return rec, nil
}

// Delete hard-deletes the row.
func (s *PGStore) Delete(ctx context.Context, d *Descriptor, id int64) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM "+ident(d.Table)+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("resource: delete %s: %w", d.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Lookup loads projected association fields for ids in one query.
func (s *PGStore) Lookup(ctx context.Context, a Association, ids []int64) (map[int64]Record, error) {
	out := make(map[int64]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cols := append([]string{"id"}, a.Fields...)
	sql := "SELECT " + columnList(cols) + " FROM " + ident(a.Table) + " WHERE id = ANY($1)"
	rows, err := s.q.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("resource: lookup %s: %w", a.Name, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("resource: lookup %s: %w", a.Name, err)
	}
	for _, m := range maps {
		rec := Record(m)
		if id, ok := toInt64(rec["id"]); ok {
			rec["id"] = id
			out[id] = rec
		}
	}
	return out, nil
}

// WithTx runs fn inside a RepeatableRead transaction. Nested calls reuse the
// outer transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGStore{pool: s.pool, q: tx, inTx: true})
	})
}

func (s *PGStore) one(ctx context.Context, d *Descriptor, sql string, args ...any) (Record, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return normalize(d, Record(m)), nil
}

func splitValues(values Record) ([]string, []any) {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return cols, args
}

func mapWriteError(d *Descriptor, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		field := "id"
		for _, name := range d.Unique {
			if strings.Contains(pgErr.ConstraintName, name) {
				field = name
				break
			}
		}
		if field == "id" && len(d.Unique) > 0 {
			field = d.Unique[0]
		}
		return &shared.ConflictError{Field: field}
	}
	if errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return fmt.Errorf("resource: write %s: %w", d.Name, err)
}

var _ Store = (*PGStore)(nil)
