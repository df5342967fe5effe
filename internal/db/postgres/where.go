package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

// Columns maps predicate fields to SQL expressions. An expression may contain
// "%s", which is replaced by the named parameter placeholder; this lets a
// field compile into a subquery such as an EXISTS over a join table.
type Columns map[filter.Field]string

// Where renders a predicate as a SQL WHERE clause with named arguments.
// An always-false predicate renders as "WHERE FALSE".
func Where(p filter.Predicate, cols Columns) (string, pgx.NamedArgs, error) {
	args := pgx.NamedArgs{}
	if p.AlwaysFalse() {
		return "WHERE FALSE", args, nil
	}
	clauses := p.Clauses()
	if len(clauses) == 0 {
		return "", args, nil
	}

	params := p.Params()
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		col, ok := cols[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("no column for field %q", c.Field)
		}
		placeholder := "@" + c.Param

		var part string
		switch {
		case strings.Contains(col, "%s"):
			part = fmt.Sprintf(col, placeholder)
		case c.Op == filter.OpEq:
			part = col + " = " + placeholder
		case c.Op == filter.OpIn:
			part = col + " = ANY(" + placeholder + ")"
		case c.Op == filter.OpGte:
			part = col + " >= " + placeholder
		case c.Op == filter.OpLte:
			part = col + " <= " + placeholder
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
		parts = append(parts, part)
		args[c.Param] = params[c.Param]
	}
	return "WHERE " + strings.Join(parts, " AND "), args, nil
}

// VectorLiteral formats v in the pgvector text representation "[x,y,...]".
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}
