package expr

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	dqtypes "github.com/theory-cloud/docquery/pkg/types"
)

func newTestBuilder() *Builder {
	return NewBuilder(dqtypes.NewConverter())
}

func TestSetFilterClause(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.SetFilter(core.Clause{Field: "status", Op: core.OpEqual, Value: "active"}))

	components := b.Build()
	assert.Equal(t, "#n1 = :v1", components.FilterExpression)
	assert.Equal(t, map[string]string{"#n1": "status"}, components.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "active"}, components.ExpressionAttributeValues[":v1"])
}

func TestSetFilterOperators(t *testing.T) {
	tests := []struct {
		value    any
		op       core.Operator
		expected string
	}{
		{op: core.OpEqual, value: 1, expected: "#n1 = :v1"},
		{op: core.OpNotEqual, value: 1, expected: "#n1 <> :v1"},
		{op: core.OpGreater, value: 1, expected: "#n1 > :v1"},
		{op: core.OpGreaterEqual, value: 1, expected: "#n1 >= :v1"},
		{op: core.OpLess, value: 1, expected: "#n1 < :v1"},
		{op: core.OpLessEqual, value: 1, expected: "#n1 <= :v1"},
		{op: core.OpIn, value: []string{"a", "b"}, expected: "#n1 IN (:v1, :v2)"},
		{op: core.OpArrayContainsAny, value: []any{"a"}, expected: "contains(#n1, :v1)"},
		{op: core.OpArrayContainsAny, value: []any{"a", "b"}, expected: "(contains(#n1, :v1) OR contains(#n1, :v2))"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			b := newTestBuilder()
			require.NoError(t, b.SetFilter(core.Clause{Field: "f", Op: tt.op, Value: tt.value}))
			assert.Equal(t, tt.expected, b.Build().FilterExpression)
		})
	}
}

func TestSetFilterTree(t *testing.T) {
	b := newTestBuilder()
	f := core.Or{Filters: []core.Filter{
		core.And{Filters: []core.Filter{
			core.Clause{Field: "active", Op: core.OpEqual, Value: true},
			core.Clause{Field: "age", Op: core.OpGreater, Value: 30},
		}},
		core.Clause{Field: "role", Op: core.OpEqual, Value: "admin"},
		core.Clause{Field: "profile.country", Op: core.OpEqual, Value: "NL"},
	}}
	require.NoError(t, b.SetFilter(f))

	components := b.Build()
	assert.Equal(t, "(#n1 = :v1 AND #n2 > :v2) OR #n3 = :v3 OR #n4.#n5 = :v4", components.FilterExpression)
	assert.Equal(t, map[string]string{
		"#n1": "active",
		"#n2": "age",
		"#n3": "role",
		"#n4": "profile",
		"#n5": "country",
	}, components.ExpressionAttributeNames)
	assert.Len(t, components.ExpressionAttributeValues, 4)
}

func TestNamesAreReused(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.SetFilter(core.And{Filters: []core.Filter{
		core.Clause{Field: "name", Op: core.OpGreaterEqual, Value: "ab"},
		core.Clause{Field: "name", Op: core.OpLessEqual, Value: "ab"},
	}}))

	components := b.Build()
	assert.Equal(t, "#n1 >= :v1 AND #n1 <= :v2", components.FilterExpression)
	assert.Len(t, components.ExpressionAttributeNames, 1)
}

func TestSetFilterErrors(t *testing.T) {
	tests := []struct {
		filter core.Filter
		target error
		name   string
	}{
		{name: "like never compiles", filter: core.Clause{Field: "a", Op: core.OpLike, Value: "%x"}, target: errors.ErrInvalidOperator},
		{name: "empty in list", filter: core.Clause{Field: "a", Op: core.OpIn, Value: []any{}}, target: errors.ErrInvalidArguments},
		{name: "in needs a list", filter: core.Clause{Field: "a", Op: core.OpIn, Value: "x"}, target: errors.ErrInvalidArguments},
		{name: "empty group", filter: core.And{}, target: errors.ErrInvalidArguments},
		{name: "unsupported value", filter: core.Clause{Field: "a", Op: core.OpEqual, Value: struct{ X int }{1}}, target: errors.ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestBuilder().SetFilter(tt.filter)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	err := newTestBuilder().SetFilter(core.Clause{Field: "a;drop", Op: core.OpEqual, Value: 1})
	assert.ErrorContains(t, err, "invalid field name")
}

func TestUpdateAndConditions(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.AddUpdateSet("name", "Alice"))
	require.NoError(t, b.AddUpdateSet("profileRef", core.Reference{Collection: "profiles", ID: "p1"}))
	b.AddAttributeExists("id")

	components := b.Build()
	assert.Equal(t, "SET #n1 = :v1, #n2 = :v2", components.UpdateExpression)
	assert.Equal(t, "attribute_exists(#n3)", components.ConditionExpression)
	assert.Equal(t, "id", components.ExpressionAttributeNames["#n3"])
	assert.IsType(t, &types.AttributeValueMemberM{}, components.ExpressionAttributeValues[":v2"])

	assert.Error(t, newTestBuilder().AddUpdateSet("", 1))
}

func TestEmptyBuild(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.SetFilter(nil))
	b.AddAttributeNotExists("id")

	components := b.Build()
	assert.Empty(t, components.FilterExpression)
	assert.Empty(t, components.UpdateExpression)
	assert.Nil(t, components.ExpressionAttributeValues)
	assert.Equal(t, "attribute_not_exists(#n1)", components.ConditionExpression)
}
