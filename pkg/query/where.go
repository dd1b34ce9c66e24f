package query

import (
	"fmt"
	"strings"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// prefixSentinel is the highest code point stores compare with, closing a prefix range
const prefixSentinel = "\uf8ff"

// Where adds a condition to the AND group.
//
//	b.Where("role", "admin")          // role == admin
//	b.Where("age", ">=", 18)          // age >= 18
//	b.Where("name", "like", "%ann%")  // local case-insensitive contains
func (b *Builder) Where(field string, args ...any) *Builder {
	return b.addCondition(false, field, args)
}

// OrWhere adds a condition to the OR group
func (b *Builder) OrWhere(field string, args ...any) *Builder {
	return b.addCondition(true, field, args)
}

// WhereGroup folds the conditions built by fn into one composite AND condition.
// Local predicates built by fn must all pass.
func (b *Builder) WhereGroup(fn func(*Builder)) *Builder {
	return b.addGroup(false, fn)
}

// OrWhereGroup folds the conditions built by fn into one composite OR condition.
// At least one local predicate built by fn must pass.
func (b *Builder) OrWhereGroup(fn func(*Builder)) *Builder {
	return b.addGroup(true, fn)
}

func (b *Builder) addCondition(or bool, field string, args []any) *Builder {
	op, value, err := normalizeArgs(args)
	if err != nil {
		b.recordBuilderError(errors.NewQueryError(opName(or), b.collection, err))
		return b
	}
	if err := validation.ValidateFieldPath(field); err != nil {
		b.recordBuilderError(errors.NewQueryError(opName(or), b.collection, fmt.Errorf("%w: %w", errors.ErrInvalidFieldPath, err)))
		return b
	}

	if op == core.OpLike {
		if err := b.addLike(or, field, value); err != nil {
			b.recordBuilderError(errors.NewQueryError(opName(or), b.collection, err))
		}
		return b
	}

	if err := validation.ValidateValue(value); err != nil {
		b.recordBuilderError(errors.NewQueryError(opName(or), b.collection, err))
		return b
	}
	b.appendFilter(or, core.Clause{Field: field, Op: op, Value: value})
	return b
}

func opName(or bool) string {
	if or {
		return "orWhere"
	}
	return "where"
}

// normalizeArgs resolves (value) and (operator, value) argument forms
func normalizeArgs(args []any) (core.Operator, any, error) {
	switch len(args) {
	case 1:
		return core.OpEqual, args[0], nil
	case 2:
		var raw string
		switch op := args[0].(type) {
		case string:
			raw = op
		case core.Operator:
			raw = string(op)
		default:
			return "", nil, fmt.Errorf("%w: operator must be a string, got %T", errors.ErrInvalidArguments, args[0])
		}
		op, ok := core.ParseOperator(raw)
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", errors.ErrInvalidOperator, raw)
		}
		return op, args[1], nil
	default:
		return "", nil, fmt.Errorf("%w: expected value or operator and value, got %d arguments", errors.ErrInvalidArguments, len(args))
	}
}

func (b *Builder) appendFilter(or bool, f core.Filter) {
	if or {
		b.orGroup = append(b.orGroup, f)
		return
	}
	b.andGroup = append(b.andGroup, f)
}

// addLike compiles a like pattern. A trailing wildcard becomes a range the store
// can evaluate, a leading wildcard always becomes a local predicate.
func (b *Builder) addLike(or bool, field string, value any) error {
	pattern, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: got %T", errors.ErrInvalidLikePattern, value)
	}

	leading := strings.HasPrefix(pattern, "%")
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "%")
	lower := strings.ToLower(pattern)

	switch {
	case leading && trailing:
		b.predicates = append(b.predicates, containsPredicate(field, lower[1:len(lower)-1]))
	case leading:
		b.predicates = append(b.predicates, suffixPredicate(field, lower[1:]))
	case trailing:
		prefix := pattern[:len(pattern)-1]
		lo := core.Clause{Field: field, Op: core.OpGreaterEqual, Value: prefix}
		hi := core.Clause{Field: field, Op: core.OpLessEqual, Value: prefix + prefixSentinel}
		if or {
			b.orGroup = append(b.orGroup, core.AllOf(lo, hi))
		} else {
			b.andGroup = append(b.andGroup, lo, hi)
		}
	default:
		b.appendFilter(or, core.Clause{Field: field, Op: core.OpEqual, Value: pattern})
	}
	return nil
}

func containsPredicate(field, needle string) Predicate {
	return func(doc core.Document) bool {
		s, ok := lookupString(doc, field)
		return ok && strings.Contains(strings.ToLower(s), needle)
	}
}

func suffixPredicate(field, suffix string) Predicate {
	return func(doc core.Document) bool {
		s, ok := lookupString(doc, field)
		return ok && strings.HasSuffix(strings.ToLower(s), suffix)
	}
}

func lookupString(doc core.Document, field string) (string, bool) {
	v, ok := doc.Lookup(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (b *Builder) addGroup(or bool, fn func(*Builder)) *Builder {
	if fn == nil {
		return b
	}

	sub := b.subBuilder()
	fn(sub)
	if err := sub.checkBuilderError(); err != nil {
		b.recordBuilderError(err)
	}

	var parts []core.Filter
	if f := core.AllOf(sub.andGroup...); f != nil {
		parts = append(parts, f)
	}
	if f := core.AnyOf(sub.orGroup...); f != nil {
		parts = append(parts, f)
	}
	if composite := core.AllOf(parts...); composite != nil {
		b.appendFilter(or, composite)
	}

	if len(sub.predicates) > 0 {
		if or {
			b.predicates = append(b.predicates, anyPredicate(sub.predicates))
		} else {
			b.predicates = append(b.predicates, allPredicates(sub.predicates))
		}
	}
	return b
}

func allPredicates(preds []Predicate) Predicate {
	return func(doc core.Document) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}
}

func anyPredicate(preds []Predicate) Predicate {
	return func(doc core.Document) bool {
		for _, p := range preds {
			if p(doc) {
				return true
			}
		}
		return false
	}
}
