package document

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier classifies identifier values that cannot be coerced into an ObjectID.
	ErrInvalidIdentifier = errors.New("document invalid identifier")
	// ErrStoreQueryFailed classifies any fault raised by the underlying store.
	ErrStoreQueryFailed = errors.New("document store query failed")
	// ErrMalformedParameter classifies query parameters that cannot be coerced (skip, limit, order).
	ErrMalformedParameter = errors.New("document malformed parameter")
	// ErrCursorConsumed is returned when a cursor is read twice or modified after being read.
	ErrCursorConsumed = errors.New("document cursor already consumed")
)

func documentError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}

// QueryError wraps a store fault with the operation and collection it came from.
type QueryError struct {
	Op         string
	Collection string
	Err        error
}

// Error implements error.
func (e *QueryError) Error() string {
	return fmt.Sprintf("%s on collection %s failed: %v", e.Op, e.Collection, e.Err)
}

// Unwrap exposes the store error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is reports ErrStoreQueryFailed for every QueryError.
func (e *QueryError) Is(target error) bool {
	return target == ErrStoreQueryFailed
}

// storeError wraps err as a QueryError unless it already carries a
// classification that callers need to see unchanged.
func storeError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) || errors.Is(err, ErrCursorConsumed) {
		return err
	}
	return &QueryError{Op: op, Collection: collection, Err: err}
}
