package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// sqlBuilder compiles predicates into PostgreSQL with positional arguments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (b *sqlBuilder) where(p Predicate) string {
	switch node := p.(type) {
	case nil:
		return "TRUE"
	case And:
		if len(node) == 0 {
			return "TRUE"
		}
		parts := make([]string, 0, len(node))
		for _, term := range node {
			parts = append(parts, b.where(term))
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	case Or:
		if len(node) == 0 {
			return "FALSE"
		}
		parts := make([]string, 0, len(node))
		for _, term := range node {
			parts = append(parts, b.where(term))
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	case Eq:
		if node.Value == nil {
			return ident(node.Field) + " IS NULL"
		}
		return ident(node.Field) + " = " + b.arg(node.Value)
	case Contains:
		return ident(node.Field) + " ILIKE " + b.arg("%"+escapeLike(node.Term)+"%")
	case MonthEq:
		return "EXTRACT(MONTH FROM " + ident(node.Field) + ") = " + b.arg(node.Month)
	case DateOnOrBefore:
		return ident(node.Field) + "::date <= " + b.arg(DateOnly(node.Date)) + "::date"
	case DateOnOrAfter:
		return ident(node.Field) + "::date >= " + b.arg(DateOnly(node.Date)) + "::date"
	case NullOrAtLeast:
		col := ident(node.Field)
		return "(" + col + " IS NULL OR " + col + " >= " + b.arg(node.At) + ")"
	}
	panic(fmt.Sprintf("resource: unsupported predicate %T", p))
}

func orderClause(keys []OrderKey) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		dir := Asc
		if k.Dir == Desc {
			dir = Desc
		}
		expr := ident(k.Field)
		if k.Part != "" {
			expr = "EXTRACT(" + string(k.Part) + " FROM " + expr + ")"
		}
		parts = append(parts, expr+" "+string(dir))
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}
	return strings.Join(quoted, ", ")
}
