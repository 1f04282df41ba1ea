package resource

import (
	"strings"
	"time"
)

// Record is the generic shape of a stored row, keyed by column name.
type Record map[string]any

// ID returns the record id, or 0 when absent.
func (r Record) ID() int64 {
	id, _ := toInt64(r["id"])
	return id
}

// Predicate is a boolean condition tree evaluated against records.
type Predicate interface {
	predicate()
}

// And is satisfied when every term is. An empty And matches everything.
type And []Predicate

// Or is satisfied when any term is. An empty Or matches nothing.
type Or []Predicate

// Eq is an exact match on a field.
type Eq struct {
	Field string
	Value any
}

// Contains is a case-insensitive substring match.
type Contains struct {
	Field string
	Term  string
}

// MonthEq matches the calendar month (1-12) of a date field.
type MonthEq struct {
	Field string
	Month int
}

// DateOnOrBefore holds when the field's calendar date is <= Date.
type DateOnOrBefore struct {
	Field string
	Date  time.Time
}

// DateOnOrAfter holds when the field's calendar date is >= Date.
type DateOnOrAfter struct {
	Field string
	Date  time.Time
}

// NullOrAtLeast holds when the field is null or the instant is >= At.
type NullOrAtLeast struct {
	Field string
	At    time.Time
}

func (And) predicate()            {}
func (Or) predicate()             {}
func (Eq) predicate()             {}
func (Contains) predicate()       {}
func (MonthEq) predicate()        {}
func (DateOnOrBefore) predicate() {}
func (DateOnOrAfter) predicate()  {}
func (NullOrAtLeast) predicate()  {}

// Match evaluates p against rec in memory.
func Match(p Predicate, rec Record) bool {
	switch node := p.(type) {
	case nil:
		return true
	case And:
		for _, term := range node {
			if !Match(term, rec) {
				return false
			}
		}
		return true
	case Or:
		for _, term := range node {
			if Match(term, rec) {
				return true
			}
		}
		return false
	case Eq:
		return valuesEqual(rec[node.Field], node.Value)
	case Contains:
		s, ok := rec[node.Field].(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(node.Term))
	case MonthEq:
		t, ok := rec[node.Field].(time.Time)
		return ok && int(t.Month()) == node.Month
	case DateOnOrBefore:
		t, ok := rec[node.Field].(time.Time)
		return ok && !DateOnly(t).After(DateOnly(node.Date))
	case DateOnOrAfter:
		t, ok := rec[node.Field].(time.Time)
		return ok && !DateOnly(t).Before(DateOnly(node.Date))
	case NullOrAtLeast:
		v := rec[node.Field]
		if v == nil {
			return true
		}
		t, ok := v.(time.Time)
		return ok && !t.Before(node.At)
	}
	return false
}

// DateOnly truncates t to its calendar date, as encoded in t's own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := toInt64(a); ok {
		bi, ok := toInt64(b)
		return ok && ai == bi
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && sameInstantOrDate(at, bt)
	}
	return a == b
}

// sameInstantOrDate treats two dates as equal by calendar day and two
// timestamps with a time component as equal only at the same instant.
func sameInstantOrDate(a, b time.Time) bool {
	if a.Equal(DateOnly(a)) || b.Equal(DateOnly(b)) {
		return DateOnly(a).Equal(DateOnly(b))
	}
	return a.Equal(b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
