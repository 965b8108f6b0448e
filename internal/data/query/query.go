// Package query builds parameterized SQL statements over the schema registry.
//
// Identifiers are never taken from callers verbatim: every table and column
// must be declared in the registry, and every value is bound as a positional
// parameter.
package query

import (
	"errors"
	"fmt"
	"strings"

	"chatcache/internal/data/schema"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrEmptyRow      = errors.New("no columns to write")
)

// Statement is statement text plus its positional parameters.
type Statement struct {
	Query string
	Args  []any
}

func (s Statement) String() string { return s.Query }

// Predicate maps column names to a scalar (equality), a slice (IN) or a
// Cond (comparison). A nil value matches NULL.
type Predicate map[string]any

// Cond compares a column with a value.
type Cond struct {
	Op    string
	Value any
}

func Lt(v any) Cond  { return Cond{Op: "<", Value: v} }
func Lte(v any) Cond { return Cond{Op: "<=", Value: v} }
func Gt(v any) Cond  { return Cond{Op: ">", Value: v} }
func Gte(v any) Cond { return Cond{Op: ">=", Value: v} }
func Ne(v any) Cond  { return Cond{Op: "!=", Value: v} }

var allowedOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "!=": true, "=": true}

// OrderBy orders select results by one column.
type OrderBy struct {
	Column string
	Desc   bool
}

func lookup(table string) (schema.Table, error) {
	t, ok := schema.Lookup(table)
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return t, nil
}

func checkColumn(t schema.Table, col string) error {
	if _, ok := t.Column(col); !ok {
		return fmt.Errorf("%w: %s.%q", ErrUnknownColumn, t.Name, col)
	}
	return nil
}

// orderedKeys returns the keys of m that are declared columns of t, in
// declaration order. Undeclared keys are an error.
func orderedKeys[V any](t schema.Table, m map[string]V) ([]string, error) {
	for k := range m {
		if err := checkColumn(t, k); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(m))
	for _, c := range t.Columns {
		if _, ok := m[c.Name]; ok {
			keys = append(keys, c.Name)
		}
	}
	return keys, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// where renders the WHERE clause (with its leading keyword) for p.
func where(t schema.Table, p Predicate) (string, []any, error) {
	if len(p) == 0 {
		return "", nil, nil
	}
	cols, err := orderedKeys(t, p)
	if err != nil {
		return "", nil, err
	}
	var (
		parts []string
		args  []any
	)
	for _, col := range cols {
		switch v := p[col].(type) {
		case nil:
			parts = append(parts, col+" IS NULL")
		case Cond:
			if !allowedOps[v.Op] {
				return "", nil, fmt.Errorf("unsupported operator %q", v.Op)
			}
			parts = append(parts, col+" "+v.Op+" ?")
			args = append(args, v.Value)
		default:
			list, isList := asList(v)
			if !isList {
				parts = append(parts, col+" = ?")
				args = append(args, v)
				continue
			}
			if len(list) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, col+" IN ("+placeholders(len(list))+")")
			args = append(args, list...)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

// Select builds a SELECT. No columns selects every declared column.
func Select(table string, columns []string, p Predicate, orderBy ...OrderBy) (Statement, error) {
	t, err := lookup(table)
	if err != nil {
		return Statement{}, err
	}
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	for _, c := range columns {
		if err := checkColumn(t, c); err != nil {
			return Statement{}, err
		}
	}
	clause, args, err := where(t, p)
	if err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(t.Name)
	b.WriteString(clause)
	if len(orderBy) > 0 {
		order := make([]string, len(orderBy))
		for i, o := range orderBy {
			if err := checkColumn(t, o.Column); err != nil {
				return Statement{}, err
			}
			order[i] = o.Column + " ASC"
			if o.Desc {
				order[i] = o.Column + " DESC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	return Statement{Query: b.String(), Args: args}, nil
}

// Count builds a SELECT COUNT(*) with the result in column "count".
func Count(table string, p Predicate) (Statement, error) {
	t, err := lookup(table)
	if err != nil {
		return Statement{}, err
	}
	clause, args, err := where(t, p)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: "SELECT COUNT(*) AS count FROM " + t.Name + clause, Args: args}, nil
}

// Upsert builds an insert that, on conflict with conflictKeys (the primary
// key when empty), overwrites the provided non-key columns. Columns absent
// from row are left untouched on conflict.
func Upsert(table string, row schema.Row, conflictKeys ...string) (Statement, error) {
	t, err := lookup(table)
	if err != nil {
		return Statement{}, err
	}
	if len(row) == 0 {
		return Statement{}, fmt.Errorf("%w: %s", ErrEmptyRow, t.Name)
	}
	cols, err := orderedKeys(t, row)
	if err != nil {
		return Statement{}, err
	}
	if len(conflictKeys) == 0 {
		conflictKeys = t.PrimaryKey
	}
	isConflictKey := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		if err := checkColumn(t, k); err != nil {
			return Statement{}, err
		}
		isConflictKey[k] = true
	}

	args := make([]any, len(cols))
	var sets []string
	for i, c := range cols {
		args[i] = row[c]
		if !isConflictKey[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO ",
		t.Name, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(conflictKeys, ", "))
	if len(sets) == 0 {
		b.WriteString("NOTHING")
	} else {
		b.WriteString("UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	return Statement{Query: b.String(), Args: args}, nil
}

// Insert builds a plain INSERT, optionally returning the named columns of the
// new row.
func Insert(table string, row schema.Row, returning ...string) (Statement, error) {
	t, err := lookup(table)
	if err != nil {
		return Statement{}, err
	}
	if len(row) == 0 {
		return Statement{}, fmt.Errorf("%w: %s", ErrEmptyRow, t.Name)
	}
	cols, err := orderedKeys(t, row)
	if err != nil {
		return Statement{}, err
	}
	for _, c := range returning {
		if err := checkColumn(t, c); err != nil {
			return Statement{}, err
		}
	}
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), placeholders(len(cols)))
	if len(returning) > 0 {
		q += " RETURNING " + strings.Join(returning, ", ")
	}
	return Statement{Query: q, Args: args}, nil
}

// Update builds an UPDATE OR IGNORE; a predicate matching no rows is a no-op.
func Update(table string, set schema.Row, p Predicate) (Statement, error) {
	t, err := lookup(table)
	if err != nil {
		return Statement{}, err
	}
	if len(set) == 0 {
		return Statement{}, fmt.Errorf("%w: %s", ErrEmptyRow, t.Name)
	}
	cols, err := orderedKeys(t, set)
	if err != nil {
		return Statement{}, err
	}
	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(p))
	for i, c := range cols {
		assignments[i] = c + " = ?"
		args = append(args, set[c])
	}
	clause, whereArgs, err := where(t, p)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Query: "UPDATE OR IGNORE " + t.Name + " SET " + strings.Join(assignments, ", ") + clause,
		Args:  append(args, whereArgs...),
	}, nil
}

// Delete builds a DELETE. An empty predicate deletes every row.
func Delete(table string, p Predicate) (Statement, error) {
	t, err := lookup(table)
	if err != nil {
		return Statement{}, err
	}
	clause, args, err := where(t, p)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Query: "DELETE FROM " + t.Name + clause, Args: args}, nil
}
