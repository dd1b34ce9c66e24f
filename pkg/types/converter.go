// Package types provides type conversion between document values and DynamoDB AttributeValues
package types

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
)

// Converter handles conversion between document values and DynamoDB AttributeValues.
// References are stored as a map {"__ref": {"collection": ..., "id": ...}}.
type Converter struct {
	// customConverters allows registration of custom type converters
	customConverters map[reflect.Type]CustomConverter
	mu               sync.RWMutex
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	referenceType = reflect.TypeOf(core.Reference{})
)

// CustomConverter defines the interface for custom type converters
type CustomConverter interface {
	// ToAttributeValue converts a Go value to DynamoDB AttributeValue
	ToAttributeValue(value any) (types.AttributeValue, error)
}

// NewConverter creates a new type converter
func NewConverter() *Converter {
	return &Converter{
		customConverters: make(map[reflect.Type]CustomConverter),
	}
}

// RegisterConverter registers a custom converter for a specific type
func (c *Converter) RegisterConverter(typ reflect.Type, converter CustomConverter) {
	if typ == nil || converter == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customConverters[typ] = converter
}

// HasCustomConverter returns true if a custom converter exists for the given type.
func (c *Converter) HasCustomConverter(typ reflect.Type) bool {
	_, ok := c.lookupConverter(typ)
	return ok
}

// lookupConverter returns a registered converter for the provided type, walking pointer
// indirections until a match is found or no further pointer element exists.
func (c *Converter) lookupConverter(typ reflect.Type) (CustomConverter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if typ == nil {
		return nil, false
	}

	for {
		if converter, ok := c.customConverters[typ]; ok {
			return converter, true
		}

		if typ.Kind() != reflect.Ptr {
			break
		}
		typ = typ.Elem()
	}

	return nil, false
}

// ToAttributeValue converts a Go value to DynamoDB AttributeValue
func (c *Converter) ToAttributeValue(value any) (types.AttributeValue, error) {
	if value == nil {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}

	return c.toAttributeValue(reflect.ValueOf(value))
}

// toAttributeValue handles the actual conversion based on reflection
func (c *Converter) toAttributeValue(v reflect.Value) (types.AttributeValue, error) {
	// Unwrap interfaces held in []any and map[string]any
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return &types.AttributeValueMemberNULL{Value: true}, nil
		}
		v = v.Elem()
	}

	// Handle pointer types
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return &types.AttributeValueMemberNULL{Value: true}, nil
		}
		v = v.Elem()
	}

	// Check for custom converter
	if converter, exists := c.lookupConverter(v.Type()); exists {
		return converter.ToAttributeValue(v.Interface())
	}

	switch v.Type() {
	case timeType:
		t, ok := v.Interface().(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time.Time, got %T", v.Interface())
		}
		return &types.AttributeValueMemberS{Value: t.Format(time.RFC3339Nano)}, nil
	case referenceType:
		ref, ok := v.Interface().(core.Reference)
		if !ok {
			return nil, fmt.Errorf("expected core.Reference, got %T", v.Interface())
		}
		return referenceToAttributeValue(ref), nil
	}

	// Handle basic types
	switch v.Kind() {
	case reflect.String:
		return &types.AttributeValueMemberS{Value: v.String()}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v.Int(), 10)}, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &types.AttributeValueMemberN{Value: strconv.FormatUint(v.Uint(), 10)}, nil

	case reflect.Float32, reflect.Float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v.Float(), 'f', -1, 64)}, nil

	case reflect.Bool:
		return &types.AttributeValueMemberBOOL{Value: v.Bool()}, nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			// []byte -> Binary
			return &types.AttributeValueMemberB{Value: v.Bytes()}, nil
		}
		return c.sliceToList(v)

	case reflect.Array:
		return c.sliceToList(v)

	case reflect.Map:
		return c.mapToAttributeValueMap(v)

	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedType, v.Type())
	}
}

func referenceToAttributeValue(ref core.Reference) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		core.ReferenceKey: &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"collection": &types.AttributeValueMemberS{Value: ref.Collection},
			"id":         &types.AttributeValueMemberS{Value: ref.ID},
		}},
	}}
}

// sliceToList converts a slice to DynamoDB List
func (c *Converter) sliceToList(v reflect.Value) (types.AttributeValue, error) {
	list := make([]types.AttributeValue, v.Len())

	for i := 0; i < v.Len(); i++ {
		av, err := c.toAttributeValue(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		list[i] = av
	}

	return &types.AttributeValueMemberL{Value: list}, nil
}

// mapToAttributeValueMap converts a map to DynamoDB Map
func (c *Converter) mapToAttributeValueMap(v reflect.Value) (types.AttributeValue, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map keys must be strings", errors.ErrUnsupportedType)
	}

	m := make(map[string]types.AttributeValue, v.Len())

	for _, key := range v.MapKeys() {
		keyStr := key.String()
		av, err := c.toAttributeValue(v.MapIndex(key))
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", keyStr, err)
		}
		m[keyStr] = av
	}

	return &types.AttributeValueMemberM{Value: m}, nil
}

// ToItem converts document fields to a DynamoDB item. The identity field is
// written by the caller and is skipped here.
func (c *Converter) ToItem(data map[string]any) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(data)+1)
	for k, v := range data {
		if k == core.IdentityField {
			continue
		}
		av, err := c.ToAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// FromItem converts a DynamoDB item to a document, decoding stored references
func (c *Converter) FromItem(item map[string]types.AttributeValue) (core.Document, error) {
	doc := make(core.Document, len(item))
	for k, av := range item {
		v, err := c.FromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		doc[k] = v
	}
	return doc, nil
}

// FromAttributeValue converts a DynamoDB AttributeValue to a native document value.
// Numbers become int64 when integral and float64 otherwise.
func (c *Converter) FromAttributeValue(av types.AttributeValue) (any, error) {
	switch av := av.(type) {
	case *types.AttributeValueMemberS:
		return av.Value, nil

	case *types.AttributeValueMemberN:
		return parseNumberString(av.Value)

	case *types.AttributeValueMemberB:
		return av.Value, nil

	case *types.AttributeValueMemberBOOL:
		return av.Value, nil

	case *types.AttributeValueMemberNULL:
		return nil, nil

	case *types.AttributeValueMemberL:
		result := make([]any, len(av.Value))
		for i, item := range av.Value {
			val, err := c.FromAttributeValue(item)
			if err != nil {
				return nil, fmt.Errorf("failed to convert list item %d: %w", i, err)
			}
			result[i] = val
		}
		return result, nil

	case *types.AttributeValueMemberM:
		result := make(map[string]any, len(av.Value))
		for k, v := range av.Value {
			val, err := c.FromAttributeValue(v)
			if err != nil {
				return nil, fmt.Errorf("failed to convert map value for key %s: %w", k, err)
			}
			result[k] = val
		}
		return core.DecodeValue(result), nil

	case *types.AttributeValueMemberSS:
		out := make([]any, len(av.Value))
		for i, s := range av.Value {
			out[i] = s
		}
		return out, nil

	case *types.AttributeValueMemberNS:
		nums := make([]any, len(av.Value))
		for i, value := range av.Value {
			num, err := parseNumberString(value)
			if err != nil {
				return nil, fmt.Errorf("cannot parse number in set: %s", value)
			}
			nums[i] = num
		}
		return nums, nil

	case *types.AttributeValueMemberBS:
		return av.Value, nil

	default:
		return nil, fmt.Errorf("%w: unknown AttributeValue type %T", errors.ErrUnsupportedType, av)
	}
}

func parseNumberString(value string) (any, error) {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("cannot parse number: %s", value)
}
