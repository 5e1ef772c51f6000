// Package database assembles parameterized SELECT statements for
// repository list endpoints with optional filters. Table, column, and
// sort identifiers are quoted through pgx.Identifier, and every value
// is bound as a positional parameter rather than spliced into the SQL
// text.
package database

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ConditionType is a comparison operator accepted by WhereCond.
type ConditionType string

const (
	Equal              ConditionType = "="
	NotEqual           ConditionType = "!="
	GreaterThan        ConditionType = ">"
	GreaterThanOrEqual ConditionType = ">="
	LessThan           ConditionType = "<"
	LessThanOrEqual    ConditionType = "<="
	Like               ConditionType = "LIKE"
	ILike              ConditionType = "ILIKE"
)

// condRaw marks conditions built by WhereRawCond. It never appears in
// the rendered SQL.
const condRaw ConditionType = "RAW"

// unset is the sentinel for limit and offset, letting callers pass a
// literal 0 for either.
const unset = -1

// Condition is one WHERE clause entry. Build them with WhereCond or
// WhereRawCond; conditions are ANDed in the order they were added.
type Condition struct {
	field     string
	op        ConditionType
	value     any
	raw       string
	rawParams []any
}

// WhereCond compares a single column against a value. The column name
// is quoted and the value bound when the query is rendered. Conditions
// with an empty field or an operator outside the ConditionType
// constants are dropped from the query.
func WhereCond(field string, op ConditionType, value any) Condition {
	return Condition{field: field, op: op, value: value}
}

// WhereRawCond carries a SQL fragment verbatim, with its own $1..$n
// placeholders numbered against params. Rendering renumbers them past
// any parameters bound earlier in the query, so raw fragments compose
// with WhereCond filters. The fragment itself is not sanitized; never
// build it from request input.
func WhereRawCond(sql string, params ...any) Condition {
	return Condition{op: condRaw, raw: sql, rawParams: params}
}

// ListQueryOptions collects the pieces of a list query. Construct it
// with NewListQueryOptions.
type ListQueryOptions struct {
	table    string
	columns  []string
	conds    []Condition
	orderBy  string
	orderDir string
	limit    int
	offset   int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	o := &ListQueryOptions{table: table, limit: unset, offset: unset}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithColumns selects the named columns instead of *. Qualified names
// like "events.title" quote each part.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.columns = cols
	}
}

// WithCondition appends one WHERE condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.conds = append(o.conds, cond)
	}
}

// WithOrderBy sets the sort column and direction. Directions other
// than ASC or DESC (any case) are omitted, leaving the database
// default.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.orderBy = column
		o.orderDir = direction
	}
}

// WithLimit adds a LIMIT clause. Zero is a valid limit; negative
// values leave the clause out.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.limit = limit
		}
	}
}

// WithOffset adds an OFFSET clause. Zero is valid; negative values
// leave the clause out.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset >= 0 {
			o.offset = offset
		}
	}
}

// BuildListQuery renders options into a SELECT statement and its
// positional arguments. A nil options value yields an empty query.
func BuildListQuery(o *ListQueryOptions) (string, []any) {
	if o == nil {
		return "", nil
	}

	w := &queryWriter{}
	w.sb.WriteString("SELECT ")
	if len(o.columns) == 0 {
		w.sb.WriteString("*")
	} else {
		for i, col := range o.columns {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.sb.WriteString(quoteIdent(col))
		}
	}
	w.sb.WriteString(" FROM ")
	w.sb.WriteString(quoteIdent(o.table))

	inWhere := false
	for _, cond := range o.conds {
		frag := w.conditionSQL(cond)
		if frag == "" {
			continue
		}
		if inWhere {
			w.sb.WriteString(" AND ")
		} else {
			w.sb.WriteString(" WHERE ")
			inWhere = true
		}
		w.sb.WriteString(frag)
	}

	if o.orderBy != "" {
		w.sb.WriteString(" ORDER BY ")
		w.sb.WriteString(quoteIdent(o.orderBy))
		if dir := strings.ToUpper(o.orderDir); dir == "ASC" || dir == "DESC" {
			w.sb.WriteString(" ")
			w.sb.WriteString(dir)
		}
	}
	if o.limit != unset {
		w.sb.WriteString(" LIMIT ")
		w.sb.WriteString(w.bind(o.limit))
	}
	if o.offset != unset {
		w.sb.WriteString(" OFFSET ")
		w.sb.WriteString(w.bind(o.offset))
	}

	return w.sb.String(), w.args
}

// queryWriter accumulates the SQL text and its bound arguments.
// Placeholders are numbered by the append order of their arguments.
type queryWriter struct {
	sb   strings.Builder
	args []any
}

// bind appends v to the argument list and returns its placeholder.
func (w *queryWriter) bind(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// conditionSQL renders one condition, binding its values. Malformed
// conditions render as the empty string and bind nothing.
func (w *queryWriter) conditionSQL(c Condition) string {
	if c.op == condRaw {
		return w.rawSQL(c)
	}
	if c.field == "" || !validOp(c.op) {
		return ""
	}
	return quoteIdent(c.field) + " " + string(c.op) + " " + w.bind(c.value)
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rawSQL renumbers the fragment's placeholders to continue from the
// arguments already bound. A placeholder may repeat; it binds once, at
// its first appearance. Placeholders past len(rawParams) are left
// untouched for the database to reject.
func (w *queryWriter) rawSQL(c Condition) string {
	if c.raw == "" {
		return ""
	}
	if len(c.rawParams) == 0 {
		return c.raw
	}

	seen := make(map[int]string, len(c.rawParams))
	return placeholderRe.ReplaceAllStringFunc(c.raw, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(c.rawParams) {
			return m
		}
		bound, ok := seen[n]
		if !ok {
			bound = w.bind(c.rawParams[n-1])
			seen[n] = bound
		}
		return bound
	})
}

func validOp(op ConditionType) bool {
	switch op {
	case Equal, NotEqual, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual, Like, ILike:
		return true
	}
	return false
}

// quoteIdent quotes an identifier, treating dots as qualification so
// "events.title" becomes "events"."title". pgx doubles any embedded
// quote, which keeps hostile input inert as a nonexistent identifier.
func quoteIdent(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}
