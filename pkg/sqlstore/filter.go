package sqlstore

import (
	"encoding/json"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// compiler renders filter trees as WHERE fragments over the JSON data column.
// A fragment may select more rows than the filter matches but never fewer:
// conjunctions drop the children they cannot express.
type compiler struct {
	dialect dialect.Name
}

// compile returns the fragment and its arguments. ok is false when nothing
// could be pushed down.
func (c compiler) compile(f core.Filter) (string, []any, bool) {
	switch node := f.(type) {
	case core.Clause:
		return c.clause(node)
	case core.And:
		var (
			parts []string
			args  []any
		)
		for _, child := range node.Filters {
			frag, childArgs, ok := c.compile(child)
			if !ok {
				continue
			}
			parts = append(parts, "("+frag+")")
			args = append(args, childArgs...)
		}
		if len(parts) == 0 {
			return "", nil, false
		}
		return strings.Join(parts, " AND "), args, true
	case core.Or:
		if len(node.Filters) == 0 {
			return "", nil, false
		}
		parts := make([]string, 0, len(node.Filters))
		var args []any
		for _, child := range node.Filters {
			frag, childArgs, ok := c.compile(child)
			if !ok {
				return "", nil, false
			}
			parts = append(parts, "("+frag+")")
			args = append(args, childArgs...)
		}
		return strings.Join(parts, " OR "), args, true
	default:
		return "", nil, false
	}
}

func (c compiler) clause(cl core.Clause) (string, []any, bool) {
	if validation.ValidateSQLFieldPath(cl.Field) != nil {
		return "", nil, false
	}

	switch cl.Op {
	case core.OpEqual, core.OpNotEqual, core.OpGreater, core.OpGreaterEqual, core.OpLess, core.OpLessEqual:
		return c.compare(cl.Field, cl.Op, cl.Value)

	case core.OpIn:
		items := core.ToSlice(cl.Value)
		if len(items) == 0 {
			return "", nil, false
		}
		parts := make([]string, 0, len(items))
		var args []any
		for _, item := range items {
			frag, itemArgs, ok := c.compare(cl.Field, core.OpEqual, item)
			if !ok {
				return "", nil, false
			}
			parts = append(parts, "("+frag+")")
			args = append(args, itemArgs...)
		}
		return strings.Join(parts, " OR "), args, true

	case core.OpArrayContainsAny:
		items := core.ToSlice(cl.Value)
		if len(items) == 0 {
			return "", nil, false
		}
		for _, item := range items {
			if !isScalar(item) {
				return "", nil, false
			}
		}
		return c.containsAny(cl.Field, items)

	default:
		return "", nil, false
	}
}

func (c compiler) compare(field string, op core.Operator, value any) (string, []any, bool) {
	kind := scalarKind(value)
	if kind == "" {
		return "", nil, false
	}
	sqlOp := comparator(op)

	switch c.dialect {
	case dialect.SQLite:
		path := jsonPath(field)
		if op == core.OpNotEqual {
			return "json_extract(d.data, ?) != ? OR json_type(d.data, ?) = 'null'", []any{path, value, path}, true
		}
		return "json_extract(d.data, ?) " + sqlOp + " ?", []any{path, value}, true

	case dialect.PG:
		path := pgPath(field)
		if kind == "string" && op != core.OpEqual && op != core.OpNotEqual {
			return `((CAST(d.data AS jsonb) #>> ?) COLLATE "C") ` + sqlOp + " ?", []any{path, value}, true
		}
		literal, err := json.Marshal(value)
		if err != nil {
			return "", nil, false
		}
		return "(CAST(d.data AS jsonb) #> ?) " + sqlOp + " CAST(? AS jsonb)", []any{path, string(literal)}, true

	case dialect.MySQL:
		literal, err := json.Marshal(value)
		if err != nil {
			return "", nil, false
		}
		return "JSON_EXTRACT(d.data, ?) " + sqlOp + " CAST(? AS JSON)", []any{jsonPath(field), string(literal)}, true

	default:
		return "", nil, false
	}
}

func (c compiler) containsAny(field string, items []any) (string, []any, bool) {
	switch c.dialect {
	case dialect.SQLite:
		return "EXISTS (SELECT 1 FROM json_each(d.data, ?) AS je WHERE je.value IN (?))",
			[]any{jsonPath(field), bun.In(items)}, true

	case dialect.PG:
		path := pgPath(field)
		parts := make([]string, 0, len(items))
		args := make([]any, 0, 2*len(items))
		for _, item := range items {
			literal, err := json.Marshal([]any{item})
			if err != nil {
				return "", nil, false
			}
			parts = append(parts, "(CAST(d.data AS jsonb) #> ?) @> CAST(? AS jsonb)")
			args = append(args, path, string(literal))
		}
		return strings.Join(parts, " OR "), args, true

	case dialect.MySQL:
		literal, err := json.Marshal(items)
		if err != nil {
			return "", nil, false
		}
		return "JSON_OVERLAPS(JSON_EXTRACT(d.data, ?), CAST(? AS JSON))", []any{jsonPath(field), string(literal)}, true

	default:
		return "", nil, false
	}
}

func comparator(op core.Operator) string {
	switch op {
	case core.OpEqual:
		return "="
	case core.OpNotEqual:
		return "!="
	default:
		return string(op)
	}
}

// jsonPath renders a dotted field as a SQLite/MySQL JSON path
func jsonPath(field string) string {
	return "$." + field
}

// pgPath renders a dotted field as a Postgres text[] path literal
func pgPath(field string) string {
	return "{" + strings.ReplaceAll(field, ".", ",") + "}"
}

func isScalar(v any) bool {
	return scalarKind(v) != ""
}

// scalarKind classifies comparands every dialect compares like core.Match does
func scalarKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	default:
		return ""
	}
}
