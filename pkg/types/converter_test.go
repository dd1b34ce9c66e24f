package types_test

import (
	"reflect"
	"testing"
	"time"

	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/types"
)

type upperConverter struct{}

type shout string

func (upperConverter) ToAttributeValue(value any) (dynamotypes.AttributeValue, error) {
	return &dynamotypes.AttributeValueMemberS{Value: string(value.(shout)) + "!"}, nil
}

func TestToAttributeValue(t *testing.T) {
	c := types.NewConverter()
	when := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input    any
		expected dynamotypes.AttributeValue
		name     string
	}{
		{name: "nil", input: nil, expected: &dynamotypes.AttributeValueMemberNULL{Value: true}},
		{name: "string", input: "a", expected: &dynamotypes.AttributeValueMemberS{Value: "a"}},
		{name: "int", input: 42, expected: &dynamotypes.AttributeValueMemberN{Value: "42"}},
		{name: "uint", input: uint8(7), expected: &dynamotypes.AttributeValueMemberN{Value: "7"}},
		{name: "float", input: 1.5, expected: &dynamotypes.AttributeValueMemberN{Value: "1.5"}},
		{name: "bool", input: true, expected: &dynamotypes.AttributeValueMemberBOOL{Value: true}},
		{name: "bytes", input: []byte("hi"), expected: &dynamotypes.AttributeValueMemberB{Value: []byte("hi")}},
		{name: "time", input: when, expected: &dynamotypes.AttributeValueMemberS{Value: "2025-05-01T12:00:00Z"}},
		{name: "nil pointer", input: (*string)(nil), expected: &dynamotypes.AttributeValueMemberNULL{Value: true}},
		{
			name:  "list of any",
			input: []any{"x", 1, nil},
			expected: &dynamotypes.AttributeValueMemberL{Value: []dynamotypes.AttributeValue{
				&dynamotypes.AttributeValueMemberS{Value: "x"},
				&dynamotypes.AttributeValueMemberN{Value: "1"},
				&dynamotypes.AttributeValueMemberNULL{Value: true},
			}},
		},
		{
			name:  "reference",
			input: core.Reference{Collection: "profiles", ID: "p1"},
			expected: &dynamotypes.AttributeValueMemberM{Value: map[string]dynamotypes.AttributeValue{
				"__ref": &dynamotypes.AttributeValueMemberM{Value: map[string]dynamotypes.AttributeValue{
					"collection": &dynamotypes.AttributeValueMemberS{Value: "profiles"},
					"id":         &dynamotypes.AttributeValueMemberS{Value: "p1"},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av, err := c.ToAttributeValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, av)
		})
	}
}

func TestToAttributeValueUnsupported(t *testing.T) {
	c := types.NewConverter()

	_, err := c.ToAttributeValue(make(chan int))
	assert.ErrorIs(t, err, errors.ErrUnsupportedType)

	_, err = c.ToAttributeValue(map[int]string{1: "a"})
	assert.ErrorIs(t, err, errors.ErrUnsupportedType)

	_, err = c.ToAttributeValue(struct{ A int }{A: 1})
	assert.ErrorIs(t, err, errors.ErrUnsupportedType)
}

func TestCustomConverter(t *testing.T) {
	c := types.NewConverter()
	c.RegisterConverter(reflect.TypeOf(shout("")), upperConverter{})

	assert.True(t, c.HasCustomConverter(reflect.TypeOf(shout(""))))
	assert.True(t, c.HasCustomConverter(reflect.TypeOf(new(shout))))
	assert.False(t, c.HasCustomConverter(reflect.TypeOf("")))

	av, err := c.ToAttributeValue(shout("hey"))
	require.NoError(t, err)
	assert.Equal(t, &dynamotypes.AttributeValueMemberS{Value: "hey!"}, av)
}

func TestItemRoundTrip(t *testing.T) {
	c := types.NewConverter()
	data := map[string]any{
		"id":         "ignored",
		"name":       "Alice",
		"age":        30,
		"score":      4.5,
		"tags":       []string{"a", "b"},
		"profileRef": core.Reference{Collection: "profiles", ID: "p1"},
		"address":    map[string]any{"city": "NYC", "countryRef": &core.Reference{Collection: "countries", ID: "us"}},
	}

	item, err := c.ToItem(data)
	require.NoError(t, err)
	assert.NotContains(t, item, "id")

	doc, err := c.FromItem(item)
	require.NoError(t, err)
	assert.Equal(t, core.Document{
		"name":       "Alice",
		"age":        int64(30),
		"score":      4.5,
		"tags":       []any{"a", "b"},
		"profileRef": core.Reference{Collection: "profiles", ID: "p1"},
		"address":    map[string]any{"city": "NYC", "countryRef": core.Reference{Collection: "countries", ID: "us"}},
	}, doc)
}

func TestFromAttributeValueSets(t *testing.T) {
	c := types.NewConverter()

	v, err := c.FromAttributeValue(&dynamotypes.AttributeValueMemberSS{Value: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, v)

	v, err = c.FromAttributeValue(&dynamotypes.AttributeValueMemberNS{Value: []string{"1", "2.5"}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.5}, v)

	_, err = c.FromAttributeValue(&dynamotypes.AttributeValueMemberN{Value: "x"})
	assert.Error(t, err)
}
