package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalObject decodes a JSON object, keeping integral numbers as int64
// and decoding {"__ref": ...} markers into References.
func UnmarshalObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("failed to decode document: not an object")
	}
	for k, v := range body {
		body[k] = DecodeValue(NormalizeNumbers(v))
	}
	return body, nil
}

// NormalizeNumbers replaces json.Number values with int64 or float64, recursively
func NormalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(val), 64); err == nil {
			return f
		}
		return string(val)
	case map[string]any:
		for k, item := range val {
			val[k] = NormalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = NormalizeNumbers(item)
		}
		return val
	default:
		return v
	}
}
