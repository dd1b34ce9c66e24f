package request_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/memstore"
	"github.com/theory-cloud/docquery/pkg/mocks"
	"github.com/theory-cloud/docquery/pkg/request"
)

func TestParseJSON(t *testing.T) {
	spec, err := request.Parse([]byte(`{
		"collection": "users",
		"where": [{"field": "age", "op": ">=", "value": 18}, {"field": "country", "value": "NL"}],
		"orWhere": [{"field": "vip", "value": true}],
		"groups": [{"or": true, "where": [{"field": "owner", "value": {"__ref": {"collection": "teams", "id": "t1"}}}]}],
		"orderBy": [{"field": "age", "direction": "desc"}],
		"page": 2,
		"perPage": 10,
		"populate": ["profileRef"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "users", spec.Collection)
	assert.Equal(t, []request.Condition{
		{Field: "age", Op: ">=", Value: int64(18)},
		{Field: "country", Value: "NL"},
	}, spec.Where)
	assert.Equal(t, core.Reference{Collection: "teams", ID: "t1"}, spec.Groups[0].Where[0].Value)
	assert.True(t, spec.Groups[0].Or)
	assert.Equal(t, []request.Order{{Field: "age", Direction: "desc"}}, spec.OrderBy)
	assert.Equal(t, 10, spec.PerPage)
}

func TestParseYAML(t *testing.T) {
	spec, err := request.Parse([]byte(`
collection: users
document: u1
where:
  - field: name
    op: like
    value: "%ali%"
limit: 5
`))
	require.NoError(t, err)
	assert.Equal(t, "u1", spec.Document)
	assert.Equal(t, "%ali%", spec.Where[0].Value)
	assert.Equal(t, 5, spec.Limit)
}

func TestParseRejectsInvalidSpecs(t *testing.T) {
	for _, input := range []string{
		`{"where": []}`,
		`{"collection": "bad name"}`,
		`{"collection": "users", "limit": -1}`,
		`{"collection": `,
	} {
		_, err := request.Parse([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestApplyCompilesLikeTheFluentForm(t *testing.T) {
	spec := &request.QuerySpec{
		Collection: "users",
		Where:      []request.Condition{{Field: "age", Op: ">", Value: 18}},
		OrWhere:    []request.Condition{{Field: "vip", Value: true}},
		Groups: []request.Group{{
			Where:   []request.Condition{{Field: "a", Value: 1}},
			OrWhere: []request.Condition{{Field: "b", Value: 2}},
		}},
		OrderBy: []request.Order{{Field: "age", Direction: "desc"}},
		PerPage: 10,
		Page:    3,
	}

	compiled, err := spec.Builder(memstore.New()).Compile()
	require.NoError(t, err)

	age := core.Clause{Field: "age", Op: core.OpGreater, Value: 18}
	group := core.AllOf(core.Clause{Field: "a", Op: core.OpEqual, Value: 1}, core.Clause{Field: "b", Op: core.OpEqual, Value: 2})
	vip := core.Clause{Field: "vip", Op: core.OpEqual, Value: true}

	assert.Equal(t, core.AnyOf(core.AllOf(age, group), vip), compiled.Filter)
	assert.Equal(t, []core.Ordering{{Field: "age", Direction: core.Descending}}, compiled.OrderBy)
	assert.Equal(t, 30, compiled.Limit)
}

func TestDocumentSpecReadsOneDocument(t *testing.T) {
	ctx := context.Background()
	gw := new(mocks.MockGateway)
	gw.On("ReadDocument", mock.Anything, "users", "u1").
		Return(core.Document{"id": "u1", "age": 30}, true, nil).Once()

	spec := &request.QuerySpec{Collection: "users", Document: "u1"}
	docs, err := spec.Builder(gw).Get(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	gw.AssertExpectations(t)
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expected request.Condition
		input    string
		wantErr  bool
	}{
		{input: "name:alice", expected: request.Condition{Field: "name", Value: "alice"}},
		{input: "age:>=:18", expected: request.Condition{Field: "age", Op: ">=", Value: 18}},
		{input: "active:true", expected: request.Condition{Field: "active", Value: true}},
		{input: "name:like:%ali%", expected: request.Condition{Field: "name", Op: "like", Value: "%ali%"}},
		{input: "tags:array-contains-any:[go, db]", expected: request.Condition{Field: "tags", Op: "array-contains-any", Value: []any{"go", "db"}}},
		{input: "at:12:30", expected: request.Condition{Field: "at", Value: "12:30"}},
		{input: "name", wantErr: true},
		{input: ":x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cond, err := request.ParseCondition(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cond)
		})
	}
}

func TestParseOrder(t *testing.T) {
	order, err := request.ParseOrder("age:desc")
	require.NoError(t, err)
	assert.Equal(t, request.Order{Field: "age", Direction: "desc"}, order)

	order, err = request.ParseOrder("name")
	require.NoError(t, err)
	assert.Equal(t, request.Order{Field: "name"}, order)

	_, err = request.ParseOrder("name:sideways")
	assert.Error(t, err)
}
