package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	"github.com/theory-cloud/docquery/pkg/core"
)

func TestCompileClausePerDialect(t *testing.T) {
	age := core.Clause{Field: "profile.age", Op: core.OpGreater, Value: 18}
	name := core.Clause{Field: "name", Op: core.OpLess, Value: "m"}

	tests := []struct {
		name     string
		expected string
		args     []any
		clause   core.Clause
		dialect  dialect.Name
	}{
		{
			name:     "sqlite number",
			dialect:  dialect.SQLite,
			clause:   age,
			expected: "json_extract(d.data, ?) > ?",
			args:     []any{"$.profile.age", 18},
		},
		{
			name:     "sqlite not equal keeps nulls",
			dialect:  dialect.SQLite,
			clause:   core.Clause{Field: "name", Op: core.OpNotEqual, Value: "bob"},
			expected: "json_extract(d.data, ?) != ? OR json_type(d.data, ?) = 'null'",
			args:     []any{"$.name", "bob", "$.name"},
		},
		{
			name:     "postgres number",
			dialect:  dialect.PG,
			clause:   age,
			expected: "(CAST(d.data AS jsonb) #> ?) > CAST(? AS jsonb)",
			args:     []any{"{profile,age}", "18"},
		},
		{
			name:     "postgres string ordering uses byte collation",
			dialect:  dialect.PG,
			clause:   name,
			expected: `((CAST(d.data AS jsonb) #>> ?) COLLATE "C") < ?`,
			args:     []any{"{name}", "m"},
		},
		{
			name:     "postgres string equality",
			dialect:  dialect.PG,
			clause:   core.Clause{Field: "name", Op: core.OpEqual, Value: "al"},
			expected: "(CAST(d.data AS jsonb) #> ?) = CAST(? AS jsonb)",
			args:     []any{"{name}", `"al"`},
		},
		{
			name:     "mysql",
			dialect:  dialect.MySQL,
			clause:   age,
			expected: "JSON_EXTRACT(d.data, ?) > CAST(? AS JSON)",
			args:     []any{"$.profile.age", "18"},
		},
		{
			name:     "mysql contains any",
			dialect:  dialect.MySQL,
			clause:   core.Clause{Field: "tags", Op: core.OpArrayContainsAny, Value: []string{"go", "db"}},
			expected: "JSON_OVERLAPS(JSON_EXTRACT(d.data, ?), CAST(? AS JSON))",
			args:     []any{"$.tags", `["go","db"]`},
		},
		{
			name:     "postgres contains any",
			dialect:  dialect.PG,
			clause:   core.Clause{Field: "tags", Op: core.OpArrayContainsAny, Value: []any{"go"}},
			expected: "(CAST(d.data AS jsonb) #> ?) @> CAST(? AS jsonb)",
			args:     []any{"{tags}", `["go"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, args, ok := compiler{dialect: tt.dialect}.compile(tt.clause)
			require.True(t, ok)
			assert.Equal(t, tt.expected, frag)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileIn(t *testing.T) {
	frag, args, ok := compiler{dialect: dialect.SQLite}.compile(
		core.Clause{Field: "status", Op: core.OpIn, Value: []string{"a", "b"}},
	)
	require.True(t, ok)
	assert.Equal(t, "(json_extract(d.data, ?) = ?) OR (json_extract(d.data, ?) = ?)", frag)
	assert.Equal(t, []any{"$.status", "a", "$.status", "b"}, args)
}

func TestCompileTrees(t *testing.T) {
	c := compiler{dialect: dialect.SQLite}
	pushable := core.Clause{Field: "a", Op: core.OpEqual, Value: 1}
	local := core.Clause{Field: "b", Op: core.OpEqual, Value: true}

	t.Run("and drops what it cannot express", func(t *testing.T) {
		frag, args, ok := c.compile(core.AllOf(pushable, local))
		require.True(t, ok)
		assert.Equal(t, "(json_extract(d.data, ?) = ?)", frag)
		assert.Equal(t, []any{"$.a", 1}, args)
	})

	t.Run("or needs every branch", func(t *testing.T) {
		_, _, ok := c.compile(core.AnyOf(pushable, local))
		assert.False(t, ok)
	})

	t.Run("or of pushable branches", func(t *testing.T) {
		frag, _, ok := c.compile(core.AnyOf(pushable, core.Clause{Field: "c", Op: core.OpLess, Value: 2}))
		require.True(t, ok)
		assert.Equal(t, "(json_extract(d.data, ?) = ?) OR (json_extract(d.data, ?) < ?)", frag)
	})

	t.Run("unsupported leaves", func(t *testing.T) {
		for _, f := range []core.Filter{
			local,
			core.Clause{Field: "a", Op: core.OpLike, Value: "x%"},
			core.Clause{Field: "a", Op: core.OpIn, Value: []any{}},
			core.Clause{Field: "bad field", Op: core.OpEqual, Value: 1},
			core.AllOf(local, local),
		} {
			_, _, ok := c.compile(f)
			assert.False(t, ok, "%v", f)
		}
	})
}
