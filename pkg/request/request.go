// Package request describes queries as data so they can travel as JSON or YAML
// (command line, Lambda events, config files) and be replayed on a builder.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/query"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// Condition is one where clause. An empty Op means equality.
type Condition struct {
	Value any    `json:"value" yaml:"value"`
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty"`
}

// Group is a parenthesized set of conditions, joined to its parent with AND,
// or with OR when Or is set
type Group struct {
	Where   []Condition `json:"where,omitempty" yaml:"where,omitempty"`
	OrWhere []Condition `json:"orWhere,omitempty" yaml:"orWhere,omitempty"`
	Groups  []Group     `json:"groups,omitempty" yaml:"groups,omitempty"`
	Or      bool        `json:"or,omitempty" yaml:"or,omitempty"`
}

// Order is one sort key
type Order struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// QuerySpec is a complete read request
type QuerySpec struct {
	Collection string      `json:"collection" yaml:"collection"`
	Document   string      `json:"document,omitempty" yaml:"document,omitempty"`
	Where      []Condition `json:"where,omitempty" yaml:"where,omitempty"`
	OrWhere    []Condition `json:"orWhere,omitempty" yaml:"orWhere,omitempty"`
	Groups     []Group     `json:"groups,omitempty" yaml:"groups,omitempty"`
	OrderBy    []Order     `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	Populate   []string    `json:"populate,omitempty" yaml:"populate,omitempty"`
	Limit      int         `json:"limit,omitempty" yaml:"limit,omitempty"`
	Page       int         `json:"page,omitempty" yaml:"page,omitempty"`
	PerPage    int         `json:"perPage,omitempty" yaml:"perPage,omitempty"`
}

// Parse decodes a QuerySpec from JSON (when the input starts with '{') or YAML.
// JSON numbers in values decode as int64 when integral.
func Parse(data []byte) (*QuerySpec, error) {
	var spec QuerySpec
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to parse query: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}
	spec.decodeValues()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the parts that do not depend on a builder
func (s *QuerySpec) Validate() error {
	if err := validation.ValidateCollectionName(s.Collection); err != nil {
		return fmt.Errorf("invalid collection: %w", err)
	}
	if s.PerPage < 0 || s.Limit < 0 {
		return fmt.Errorf("limit and perPage must not be negative")
	}
	return nil
}

// Builder creates a builder for the spec's collection or document and replays the spec on it
func (s *QuerySpec) Builder(gateway core.Gateway, opts ...query.Option) *query.Builder {
	var b *query.Builder
	if s.Document != "" {
		b = query.NewDocument(gateway, s.Collection, s.Document, opts...)
	} else {
		b = query.New(gateway, s.Collection, opts...)
	}
	return s.Apply(b)
}

// Apply replays the spec on b. Errors surface from the builder's terminal call.
func (s *QuerySpec) Apply(b *query.Builder) *query.Builder {
	applyConditions(b, s.Where, s.OrWhere, s.Groups)

	for _, o := range s.OrderBy {
		b.OrderBy(o.Field, o.Direction)
	}
	if s.Limit > 0 {
		b.Limit(s.Limit)
	}
	if s.PerPage > 0 {
		b.Paginate(s.Page, s.PerPage)
	}
	if len(s.Populate) > 0 {
		b.Populate(s.Populate...)
	}
	return b
}

func applyConditions(b *query.Builder, where, orWhere []Condition, groups []Group) {
	for _, c := range where {
		b.Where(c.Field, c.args()...)
	}
	for _, c := range orWhere {
		b.OrWhere(c.Field, c.args()...)
	}
	for _, g := range groups {
		fn := func(sub *query.Builder) {
			applyConditions(sub, g.Where, g.OrWhere, g.Groups)
		}
		if g.Or {
			b.OrWhereGroup(fn)
		} else {
			b.WhereGroup(fn)
		}
	}
}

func (c Condition) args() []any {
	if c.Op == "" {
		return []any{c.Value}
	}
	return []any{c.Op, c.Value}
}

func (s *QuerySpec) decodeValues() {
	decodeConditions(s.Where)
	decodeConditions(s.OrWhere)
	decodeGroups(s.Groups)
}

func decodeGroups(groups []Group) {
	for i := range groups {
		decodeConditions(groups[i].Where)
		decodeConditions(groups[i].OrWhere)
		decodeGroups(groups[i].Groups)
	}
}

// decodeConditions turns {"__ref": ...} comparands into references
func decodeConditions(conds []Condition) {
	for i := range conds {
		conds[i].Value = core.DecodeValue(core.NormalizeNumbers(conds[i].Value))
	}
}

// ParseCondition parses the command line form field:op:value or field:value.
// The value is read as YAML, so 30 is a number, true a boolean and [a, b] a list.
func ParseCondition(s string) (Condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return Condition{}, fmt.Errorf("condition %q must look like field:op:value or field:value", s)
	}

	cond := Condition{Field: parts[0]}
	raw := strings.Join(parts[1:], ":")
	if len(parts) == 3 {
		if _, ok := core.ParseOperator(parts[1]); ok {
			cond.Op = parts[1]
			raw = parts[2]
		}
	}

	cond.Value = parseScalar(raw)
	return cond, nil
}

// ParseOrder parses field or field:direction
func ParseOrder(s string) (Order, error) {
	field, dir, _ := strings.Cut(s, ":")
	if field == "" {
		return Order{}, fmt.Errorf("order %q must look like field:asc or field:desc", s)
	}
	switch strings.ToLower(dir) {
	case "", "asc", "desc":
	default:
		return Order{}, fmt.Errorf("order %q: unknown direction %q", s, dir)
	}
	return Order{Field: field, Direction: dir}, nil
}

// parseScalar falls back to the raw text when it is not valid YAML (e.g. %ali%)
func parseScalar(raw string) any {
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	if value == nil && raw != "null" && raw != "~" {
		return raw
	}
	return core.DecodeValue(value)
}
