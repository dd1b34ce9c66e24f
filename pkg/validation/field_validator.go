// Package validation checks user supplied field paths, collection names and values
// before they are embedded into store expressions.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"
)

// SecurityError represents a security validation error
type SecurityError struct {
	Type   string
	Field  string
	Detail string
}

func (e *SecurityError) Error() string {
	// SECURITY: Don't expose user-generated field names or content in error messages
	return fmt.Sprintf("security validation failed: %s", e.Type)
}

// Validation limits
const (
	MaxFieldNameLength      = 255
	MaxNestedDepth          = 32
	MaxCollectionNameLength = 255
	MaxValueStringLength    = 400000
	MaxListValueLength      = 100
)

// Dangerous patterns - exact matches or patterns that are clearly malicious
var dangerousPatterns = []string{
	"'", "\"", ";", "--", "/*", "*/", "`",
	"<script", "</script", "eval(", "expression(", "import(", "require(",
}

// SQL keywords rejected as whole path segments when a path is rendered into SQL
var sqlKeywords = []string{
	"union", "select", "insert", "update", "delete", "drop", "alter", "exec", "execute",
}

var (
	fieldPartPattern    = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
	sqlFieldPartPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	collectionPattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateFieldPath validates a dotted document field path such as "profile.country.code".
// Segments may contain letters, digits, underscores and hyphens, and may be any word,
// including "delete" or "select"
func ValidateFieldPath(field string) error {
	if field == "" {
		return &SecurityError{Type: "InvalidField", Detail: "field name cannot be empty"}
	}
	if len(field) > MaxFieldNameLength {
		return &SecurityError{Type: "InvalidField", Detail: "field name exceeds maximum length"}
	}

	fieldLower := strings.ToLower(field)
	if containsAnySubstring(fieldLower, dangerousPatterns) {
		return &SecurityError{Type: "InjectionAttempt", Detail: "field name contains dangerous pattern"}
	}
	for _, r := range field {
		if unicode.IsControl(r) {
			return &SecurityError{Type: "InvalidField", Detail: "field name contains control characters"}
		}
	}

	parts := strings.Split(field, ".")
	if len(parts) > MaxNestedDepth {
		return &SecurityError{Type: "InvalidField", Detail: "nested field depth exceeds maximum"}
	}
	for _, part := range parts {
		if part == "" {
			return &SecurityError{Type: "InvalidField", Detail: "field part cannot be empty"}
		}
		if !fieldPartPattern.MatchString(part) {
			return &SecurityError{Type: "InvalidField", Detail: "invalid field part"}
		}
	}
	return nil
}

// ValidateSQLFieldPath is the stricter check for paths rendered into SQL JSON paths.
// Hyphenated segments and bare SQL keywords are rejected.
func ValidateSQLFieldPath(field string) error {
	if err := ValidateFieldPath(field); err != nil {
		return err
	}
	for _, part := range strings.Split(field, ".") {
		if !sqlFieldPartPattern.MatchString(part) {
			return &SecurityError{Type: "InvalidField", Detail: "invalid field part for sql"}
		}
		if isStandaloneKeyword(strings.ToLower(part)) {
			return &SecurityError{Type: "InjectionAttempt", Detail: "field name contains suspicious content"}
		}
	}
	return nil
}

// isStandaloneKeyword rejects a path segment that is exactly a SQL keyword.
// Compound names such as "updatedAt" or "deleteFlag" are fine.
func isStandaloneKeyword(part string) bool {
	for _, keyword := range sqlKeywords {
		if part == keyword {
			return true
		}
	}
	return false
}

// ValidateCollectionName validates a collection name used as a table name or SQL literal
func ValidateCollectionName(name string) error {
	if name == "" || len(name) > MaxCollectionNameLength {
		return &SecurityError{Type: "InvalidCollection", Detail: "collection name length invalid"}
	}
	if !collectionPattern.MatchString(name) {
		return &SecurityError{Type: "InvalidCollection", Detail: "collection name contains invalid characters"}
	}
	if strings.Contains(name, "--") {
		return &SecurityError{Type: "InjectionAttempt", Detail: "collection name contains dangerous pattern"}
	}
	return nil
}

// ValidateValue validates a comparand before it is bound into a store expression
func ValidateValue(value any) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case string:
		if len(v) > MaxValueStringLength {
			return &SecurityError{Type: "InvalidValue", Detail: "string value exceeds maximum length"}
		}
		return nil
	case []any:
		if len(v) > MaxListValueLength {
			return &SecurityError{Type: "InvalidValue", Detail: "list value exceeds maximum length"}
		}
		for _, item := range v {
			if err := ValidateValue(item); err != nil {
				return &SecurityError{Type: "InvalidValue", Detail: "invalid item in list"}
			}
		}
		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr,
		reflect.Invalid, reflect.Complex64, reflect.Complex128:
		return &SecurityError{Type: "InvalidValue", Detail: "unsupported value type"}
	case reflect.Slice, reflect.Array:
		if rv.Len() > MaxListValueLength {
			return &SecurityError{Type: "InvalidValue", Detail: "list value exceeds maximum length"}
		}
	}
	return nil
}

func containsAnySubstring(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
