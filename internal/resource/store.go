package resource

import (
	"context"
)

// Query is a bounded read. Limit 0 means no limit.
type Query struct {
	Where  Predicate
	Order  []OrderKey
	Limit  int
	Offset int
}

// Store is the persistence port of the engine. Implementations return
// shared.ErrNotFound for missing ids and *shared.ConflictError for
// uniqueness violations.
type Store interface {
	Count(ctx context.Context, d *Descriptor, where Predicate) (int, error)
	Find(ctx context.Context, d *Descriptor, q Query) ([]Record, error)
	Get(ctx context.Context, d *Descriptor, id int64) (Record, error)
	Insert(ctx context.Context, d *Descriptor, values Record) (Record, error)
	Update(ctx context.Context, d *Descriptor, id int64, values Record) (Record, error)
	Delete(ctx context.Context, d *Descriptor, id int64) error
	// Lookup loads the association's projected fields keyed by id.
	Lookup(ctx context.Context, a Association, ids []int64) (map[int64]Record, error)
	// WithTx runs fn in one unit of work: all of fn's writes commit or none do.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// normalize converts driver values into the engine's canonical Go types.
func normalize(d *Descriptor, rec Record) Record {
	for _, f := range d.Fields {
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		if f.Type == TypeInt {
			if n, ok := toInt64(v); ok {
				rec[f.Name] = n
			}
		}
	}
	return rec
}
