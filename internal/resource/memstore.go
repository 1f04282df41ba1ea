package resource

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

type memTable struct {
	nextID int64
	rows   map[int64]Record
}

// MemoryStore is an in-process Store used by tests and the memory driver.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	now    func() time.Time
}

// NewMemoryStore returns an empty store. now stamps created_at/updated_at;
// nil uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{tables: map[string]*memTable{}, now: now}
}

func (s *MemoryStore) table(name string) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{nextID: 1, rows: map[int64]Record{}}
		s.tables[name] = t
	}
	return t
}

// Count returns the number of rows matching where.
func (s *MemoryStore) Count(_ context.Context, d *Descriptor, where Predicate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.table(d.Table).rows {
		if Match(where, rec) {
			n++
		}
	}
	return n, nil
}

// Find filters, sorts and slices rows.
func (s *MemoryStore) Find(_ context.Context, d *Descriptor, q Query) ([]Record, error) {
	s.mu.RLock()
	matched := make([]Record, 0)
	for _, rec := range s.table(d.Table).rows {
		if Match(q.Where, rec) {
			matched = append(matched, copyRecord(rec))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return lessByKeys(q.Order, matched[i], matched[j])
	})
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return matched[start:end], nil
}

// Get loads one row by id.
func (s *MemoryStore) Get(_ context.Context, d *Descriptor, id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.table(d.Table).rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Insert assigns an id, stamps timestamps and stores the row.
func (s *MemoryStore) Insert(_ context.Context, d *Descriptor, values Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(d.Table)
	rec := Record{}
	for _, f := range d.Fields {
		rec[f.Name] = nil
	}
	for k, v := range values {
		rec[k] = v
	}
	if err := s.checkUnique(d, t, 0, rec); err != nil {
		return nil, err
	}
	id := t.nextID
	t.nextID++
	now := s.now()
	rec["id"] = id
	rec["created_at"] = now
	rec["updated_at"] = now
	t.rows[id] = normalize(d, rec)
	return copyRecord(rec), nil
}

// Update merges values into the row and bumps updated_at.
func (s *MemoryStore) Update(_ context.Context, d *Descriptor, id int64, values Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(d.Table)
	current, ok := t.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	next := copyRecord(current)
	for k, v := range values {
		next[k] = v
	}
	if err := s.checkUnique(d, t, id, next); err != nil {
		return nil, err
	}
	next["updated_at"] = s.now()
	t.rows[id] = normalize(d, next)
	return copyRecord(next), nil
}

// Delete removes the row.
func (s *MemoryStore) Delete(_ context.Context, d *Descriptor, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(d.Table)
	if _, ok := t.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// Lookup projects association fields for ids.
func (s *MemoryStore) Lookup(_ context.Context, a Association, ids []int64) (map[int64]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]Record, len(ids))
	t := s.table(a.Table)
	for _, id := range ids {
		rec, ok := t.rows[id]
		if !ok {
			continue
		}
		projected := Record{"id": id}
		for _, name := range a.Fields {
			projected[name] = rec[name]
		}
		out[id] = projected
	}
	return out, nil
}

// WithTx runs fn against a snapshot and publishes it only when fn succeeds.
// Concurrent writers outside the transaction are blocked until it finishes.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := &MemoryStore{tables: cloneTables(s.tables), now: s.now}
	if err := fn(ctx, snapshot); err != nil {
		return err
	}
	s.tables = snapshot.tables
	return nil
}

// Seed stores rec verbatim, keeping its id when set. It is meant for fixtures.
func (s *MemoryStore) Seed(d *Descriptor, rec Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(d.Table)
	row := Record{}
	for _, f := range d.Fields {
		row[f.Name] = nil
	}
	for k, v := range rec {
		row[k] = v
	}
	id := row.ID()
	if id == 0 {
		id = t.nextID
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	row["id"] = id
	now := s.now()
	if row["created_at"] == nil {
		row["created_at"] = now
	}
	if row["updated_at"] == nil {
		row["updated_at"] = now
	}
	t.rows[id] = normalize(d, row)
	return copyRecord(row)
}

func (s *MemoryStore) checkUnique(d *Descriptor, t *memTable, self int64, rec Record) error {
	for _, name := range d.Unique {
		v := rec[name]
		if v == nil {
			continue
		}
		for id, other := range t.rows {
			if id == self {
				continue
			}
			if valuesEqual(uniqueKey(v), uniqueKey(other[name])) {
				return &shared.ConflictError{Field: name}
			}
		}
	}
	return nil
}

func uniqueKey(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

func lessByKeys(keys []OrderKey, a, b Record) bool {
	for _, k := range keys {
		c := compareValues(orderValue(k, a), orderValue(k, b))
		if c == 0 {
			continue
		}
		if k.Dir == Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func orderValue(k OrderKey, rec Record) any {
	v := rec[k.Field]
	if k.Part == DayOfMonth {
		if t, ok := v.(time.Time); ok {
			return int64(t.Day())
		}
	}
	return v
}

// compareValues orders nulls last, as PostgreSQL does for ascending keys.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
	}
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return 0
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func cloneTables(src map[string]*memTable) map[string]*memTable {
	out := make(map[string]*memTable, len(src))
	for name, t := range src {
		rows := make(map[int64]Record, len(t.rows))
		for id, rec := range t.rows {
			rows[id] = copyRecord(rec)
		}
		out[name] = &memTable{nextID: t.nextID, rows: rows}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
