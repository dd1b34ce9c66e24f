package core

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Match evaluates a filter tree against a materialized document.
// A nil filter matches everything. Clauses on missing fields never match.
func Match(f Filter, doc Document) bool {
	switch node := f.(type) {
	case nil:
		return true
	case Clause:
		return matchClause(node, doc)
	case And:
		for _, child := range node.Filters {
			if !Match(child, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range node.Filters {
			if Match(child, doc) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchClause(c Clause, doc Document) bool {
	actual, ok := doc.Lookup(c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEqual:
		return Equal(actual, c.Value)
	case OpNotEqual:
		return !Equal(actual, c.Value)
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		cmp, comparable := Compare(actual, c.Value)
		if !comparable {
			return false
		}
		switch c.Op {
		case OpGreater:
			return cmp > 0
		case OpGreaterEqual:
			return cmp >= 0
		case OpLess:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn:
		for _, candidate := range ToSlice(c.Value) {
			if Equal(actual, candidate) {
				return true
			}
		}
		return false
	case OpArrayContainsAny:
		for _, element := range ToSlice(actual) {
			for _, candidate := range ToSlice(c.Value) {
				if Equal(element, candidate) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// Equal compares two document values, treating all numeric kinds as numbers
func Equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values of the same family (numbers, strings, times, booleans).
// The second result is false when the values cannot be ordered.
func Compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ToSlice widens any slice or array to []any. Other values yield nil.
func ToSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// SortDocuments orders documents in place by a multi-key sort.
// Documents missing a sort field order before those that have it.
func SortDocuments(docs []Document, orderings []Ordering) {
	if len(orderings) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orderings {
			cmp := compareField(docs[i], docs[j], o.Field)
			if cmp == 0 {
				continue
			}
			if o.Direction == Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareField(a, b Document, field string) int {
	av, aok := a.Lookup(field)
	bv, bok := b.Lookup(field)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	cmp, _ := Compare(av, bv)
	return cmp
}
