package core

import (
	"strings"
)

// Document is one materialized record keyed by field name
type Document map[string]any

// ID returns the identity field as a string
func (d Document) ID() string {
	id, _ := d[IdentityField].(string)
	return id
}

// Clone copies the top level of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Lookup resolves a dotted field path through nested maps
func (d Document) Lookup(path string) (any, bool) {
	return LookupPath(map[string]any(d), path)
}

// LookupPath resolves a dotted field path through nested maps
func LookupPath(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = root
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			current = v
		case Document:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// Reference points at another document and is resolvable by one more read
type Reference struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Path renders the reference as collection/id
func (r Reference) Path() string {
	return r.Collection + "/" + r.ID
}

// Valid reports whether both parts of the reference are set
func (r Reference) Valid() bool {
	return r.Collection != "" && r.ID != ""
}

// ReferenceKey is the marker key used when a store has no native reference type
const ReferenceKey = "__ref"

// EncodeValue replaces references with their {"__ref": {...}} map form, recursively
func EncodeValue(v any) any {
	switch val := v.(type) {
	case Reference:
		return map[string]any{ReferenceKey: map[string]any{"collection": val.Collection, "id": val.ID}}
	case *Reference:
		if val == nil {
			return nil
		}
		return EncodeValue(*val)
	case Document:
		return EncodeValue(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = EncodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = EncodeValue(item)
		}
		return out
	default:
		return v
	}
}

// DecodeValue reverses EncodeValue
func DecodeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if ref, ok := decodeReference(val); ok {
			return ref
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = DecodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DecodeValue(item)
		}
		return out
	default:
		return v
	}
}

func decodeReference(m map[string]any) (Reference, bool) {
	if len(m) != 1 {
		return Reference{}, false
	}
	inner, ok := m[ReferenceKey].(map[string]any)
	if !ok {
		return Reference{}, false
	}
	collection, _ := inner["collection"].(string)
	id, _ := inner["id"].(string)
	ref := Reference{Collection: collection, ID: id}
	return ref, ref.Valid()
}

// EncodeDocument applies EncodeValue to every field of data
func EncodeDocument(data map[string]any) map[string]any {
	encoded, _ := EncodeValue(data).(map[string]any)
	return encoded
}

// DecodeDocument applies DecodeValue to a stored body and stamps the identity field
func DecodeDocument(id string, body map[string]any) Document {
	doc := make(Document, len(body)+1)
	for k, v := range body {
		doc[k] = DecodeValue(v)
	}
	doc[IdentityField] = id
	return doc
}
