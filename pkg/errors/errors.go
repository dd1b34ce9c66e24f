// Package errors defines error types and utilities for docquery
package errors

import (
	"errors"
	"fmt"
)

// Common errors that can occur in docquery operations
var (
	// ErrItemNotFound is returned when a document is not found in the store
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidOperator is returned when an unknown comparison operator is used
	ErrInvalidOperator = errors.New("invalid query operator")

	// ErrInvalidLikePattern is returned when a like filter is given a non-string comparand
	ErrInvalidLikePattern = errors.New("the like operator expects a string with % wildcard")

	// ErrInvalidLimit is returned when a non-positive row limit is requested
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidPagination is returned when a page size is not positive
	ErrInvalidPagination = errors.New("page size must be positive")

	// ErrRefWithoutWrite is returned when Ref is called before Insert or Update
	ErrRefWithoutWrite = errors.New("call insert or update before ref")

	// ErrMissingDocumentID is returned when a document operation runs on a collection-scoped builder
	ErrMissingDocumentID = errors.New("missing document id")

	// ErrInvalidArguments is returned when a where call has the wrong number of arguments
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrInvalidFieldPath is returned when a field path is empty or malformed
	ErrInvalidFieldPath = errors.New("invalid field path")

	// ErrUnsupportedType is returned when a value cannot be stored by a gateway
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnsupportedBackend is returned when the configured backend is unknown
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrInvalidCredentials is returned when an email/password pair does not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned when signing up with an email that already exists
	ErrEmailTaken = errors.New("email already registered")

	// ErrTokenRevoked is returned when a session token has been logged out
	ErrTokenRevoked = errors.New("token revoked")
)

// preconditions are failures raised before any gateway I/O
var preconditions = []error{
	ErrInvalidOperator,
	ErrInvalidLikePattern,
	ErrInvalidLimit,
	ErrInvalidPagination,
	ErrRefWithoutWrite,
	ErrMissingDocumentID,
	ErrInvalidArguments,
	ErrInvalidFieldPath,
}

// QueryError represents a builder failure with the operation and collection it happened in
type QueryError struct {
	Err        error
	Op         string
	Collection string
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e == nil {
		return "docquery: query error"
	}
	if e.Collection == "" {
		return fmt.Sprintf("docquery: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("docquery: %s on %s failed: %v", e.Op, e.Collection, e.Err)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is checks if the error matches the target error
func (e *QueryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewQueryError creates a new QueryError
func NewQueryError(op, collection string, err error) *QueryError {
	return &QueryError{
		Op:         op,
		Collection: collection,
		Err:        err,
	}
}

// IsNotFound checks if an error indicates a document was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// IsPrecondition reports whether err was raised by the builder before any I/O
func IsPrecondition(err error) bool {
	for _, target := range preconditions {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
