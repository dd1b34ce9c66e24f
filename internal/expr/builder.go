// Package expr compiles filter trees and updates into parameterized DynamoDB expressions
package expr

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// ValueConverter converts comparands to AttributeValues
type ValueConverter interface {
	ToAttributeValue(value any) (types.AttributeValue, error)
}

// ExpressionComponents holds the compiled expression strings and their placeholders
type ExpressionComponents struct {
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
	FilterExpression          string
	UpdateExpression          string
	ConditionExpression       string
}

// Builder compiles expressions for DynamoDB operations.
// Every attribute name goes through a #nN placeholder and every value through :vN.
type Builder struct {
	converter    ValueConverter
	names        map[string]string
	nameRefs     map[string]string
	values       map[string]types.AttributeValue
	filter       string
	updateSets   []string
	conditions   []string
	nameCounter  int
	valueCounter int
}

// NewBuilder creates a new expression builder
func NewBuilder(converter ValueConverter) *Builder {
	return &Builder{
		converter: converter,
		names:     make(map[string]string),
		nameRefs:  make(map[string]string),
		values:    make(map[string]types.AttributeValue),
	}
}

// SetFilter compiles a filter tree into the filter expression. A nil filter is a no-op.
func (b *Builder) SetFilter(f core.Filter) error {
	if f == nil {
		return nil
	}
	compiled, err := b.compile(f, false)
	if err != nil {
		return err
	}
	b.filter = compiled
	return nil
}

// AddUpdateSet adds a SET clause for one field
func (b *Builder) AddUpdateSet(field string, value any) error {
	if err := validation.ValidateFieldPath(field); err != nil {
		return fmt.Errorf("invalid field name: %w", err)
	}
	valueRef, err := b.addValue(value)
	if err != nil {
		return err
	}
	b.updateSets = append(b.updateSets, fmt.Sprintf("%s = %s", b.addName(field), valueRef))
	return nil
}

// AddAttributeExists conditions the write on the attribute being present
func (b *Builder) AddAttributeExists(field string) {
	b.conditions = append(b.conditions, fmt.Sprintf("attribute_exists(%s)", b.addName(field)))
}

// AddAttributeNotExists conditions the write on the attribute being absent
func (b *Builder) AddAttributeNotExists(field string) {
	b.conditions = append(b.conditions, fmt.Sprintf("attribute_not_exists(%s)", b.addName(field)))
}

// Build returns the compiled components
func (b *Builder) Build() ExpressionComponents {
	components := ExpressionComponents{
		ExpressionAttributeNames:  b.names,
		ExpressionAttributeValues: b.values,
		FilterExpression:          b.filter,
		ConditionExpression:       strings.Join(b.conditions, " AND "),
	}
	if len(b.updateSets) > 0 {
		components.UpdateExpression = "SET " + strings.Join(b.updateSets, ", ")
	}
	if len(components.ExpressionAttributeValues) == 0 {
		components.ExpressionAttributeValues = nil
	}
	if len(components.ExpressionAttributeNames) == 0 {
		components.ExpressionAttributeNames = nil
	}
	return components
}

// compile renders one node. Nested composites are parenthesized.
func (b *Builder) compile(f core.Filter, nested bool) (string, error) {
	switch node := f.(type) {
	case core.Clause:
		return b.buildCondition(node)
	case core.And:
		return b.compileGroup(node.Filters, " AND ", nested)
	case core.Or:
		return b.compileGroup(node.Filters, " OR ", nested)
	default:
		return "", fmt.Errorf("%w: filter node %T", errors.ErrUnsupportedType, f)
	}
}

func (b *Builder) compileGroup(children []core.Filter, joiner string, nested bool) (string, error) {
	if len(children) == 0 {
		return "", fmt.Errorf("%w: empty filter group", errors.ErrInvalidArguments)
	}
	parts := make([]string, len(children))
	for i, child := range children {
		part, err := b.compile(child, true)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	joined := strings.Join(parts, joiner)
	if nested && len(parts) > 1 {
		return "(" + joined + ")", nil
	}
	return joined, nil
}

// buildCondition builds a single condition expression with security validation
func (b *Builder) buildCondition(c core.Clause) (string, error) {
	// SECURITY: Validate all inputs before processing
	if err := validation.ValidateFieldPath(c.Field); err != nil {
		return "", fmt.Errorf("invalid field name: %w", err)
	}
	if err := validation.ValidateValue(c.Value); err != nil {
		return "", fmt.Errorf("invalid value: %w", err)
	}

	nameRef := b.addName(c.Field)

	switch c.Op {
	case core.OpEqual, core.OpNotEqual, core.OpLess, core.OpLessEqual, core.OpGreater, core.OpGreaterEqual:
		valueRef, err := b.addValue(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", nameRef, comparator(c.Op), valueRef), nil

	case core.OpIn:
		items, err := toList(c.Value)
		if err != nil {
			return "", err
		}
		refs := make([]string, len(items))
		for i, item := range items {
			if refs[i], err = b.addValue(item); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%s IN (%s)", nameRef, strings.Join(refs, ", ")), nil

	case core.OpArrayContainsAny:
		items, err := toList(c.Value)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(items))
		for i, item := range items {
			valueRef, err := b.addValue(item)
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("contains(%s, %s)", nameRef, valueRef)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil

	default:
		return "", fmt.Errorf("%w: %s", errors.ErrInvalidOperator, c.Op)
	}
}

func comparator(op core.Operator) string {
	switch op {
	case core.OpEqual:
		return "="
	case core.OpNotEqual:
		return "<>"
	default:
		return string(op)
	}
}

// addName returns the placeholder path for a dotted attribute name, one #nN per part
func (b *Builder) addName(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		placeholder, ok := b.nameRefs[part]
		if !ok {
			b.nameCounter++
			placeholder = fmt.Sprintf("#n%d", b.nameCounter)
			b.nameRefs[part] = placeholder
			b.names[placeholder] = part
		}
		parts[i] = placeholder
	}
	return strings.Join(parts, ".")
}

// addValue converts value and returns its :vN placeholder
func (b *Builder) addValue(value any) (string, error) {
	av, err := b.converter.ToAttributeValue(value)
	if err != nil {
		return "", fmt.Errorf("failed to convert value type %T: %w", value, err)
	}
	b.valueCounter++
	placeholder := fmt.Sprintf(":v%d", b.valueCounter)
	b.values[placeholder] = av
	return placeholder, nil
}

func toList(value any) ([]any, error) {
	items := core.ToSlice(value)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: operator needs a non-empty list", errors.ErrInvalidArguments)
	}
	return items, nil
}
