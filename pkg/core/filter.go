package core

import (
	"fmt"
	"strings"
)

// Operator is a comparison operator understood by the builder
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpGreater          Operator = ">"
	OpGreaterEqual     Operator = ">="
	OpLess             Operator = "<"
	OpLessEqual        Operator = "<="
	OpArrayContainsAny Operator = "array-contains-any"
	OpIn               Operator = "in"
	// OpLike is compiled by the builder and never reaches a gateway
	OpLike Operator = "like"
)

var operatorAliases = map[string]Operator{
	"==":                 OpEqual,
	"=":                  OpEqual,
	"eq":                 OpEqual,
	"!=":                 OpNotEqual,
	"<>":                 OpNotEqual,
	"ne":                 OpNotEqual,
	">":                  OpGreater,
	"gt":                 OpGreater,
	">=":                 OpGreaterEqual,
	"ge":                 OpGreaterEqual,
	"<":                  OpLess,
	"lt":                 OpLess,
	"<=":                 OpLessEqual,
	"le":                 OpLessEqual,
	"array-contains-any": OpArrayContainsAny,
	"in":                 OpIn,
	"like":               OpLike,
}

// ParseOperator normalizes a user supplied operator. Matching is case-insensitive.
func ParseOperator(op string) (Operator, bool) {
	parsed, ok := operatorAliases[strings.ToLower(strings.TrimSpace(op))]
	return parsed, ok
}

// Filter is a node of a filter tree: Clause, And or Or
type Filter interface {
	fmt.Stringer
	filter()
}

// Clause is one atomic condition evaluated by the remote store
type Clause struct {
	Value any
	Field string
	Op    Operator
}

// And requires every child filter to match
type And struct {
	Filters []Filter
}

// Or requires at least one child filter to match
type Or struct {
	Filters []Filter
}

func (Clause) filter() {}
func (And) filter()    {}
func (Or) filter()     {}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

func (a And) String() string {
	return joinFilters("and", a.Filters)
}

func (o Or) String() string {
	return joinFilters("or", o.Filters)
}

func joinFilters(name string, filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// AllOf folds filters into a single conjunction. It returns nil for no filters
// and the filter itself for exactly one.
func AllOf(filters ...Filter) Filter {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	default:
		return And{Filters: append([]Filter(nil), filters...)}
	}
}

// AnyOf folds filters into a single disjunction, with the same shortcuts as AllOf
func AnyOf(filters ...Filter) Filter {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	default:
		return Or{Filters: append([]Filter(nil), filters...)}
	}
}

// Walk visits every clause of a filter tree in order
func Walk(f Filter, fn func(Clause)) {
	switch node := f.(type) {
	case Clause:
		fn(node)
	case And:
		for _, child := range node.Filters {
			Walk(child, fn)
		}
	case Or:
		for _, child := range node.Filters {
			Walk(child, fn)
		}
	}
}
