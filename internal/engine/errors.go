package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreQuery matches every failed read against the event or alert store.
	ErrStoreQuery = errors.New("store query failure")

	// ErrStoreWrite matches every failed alert insert.
	ErrStoreWrite = errors.New("store write failure")
)

// QueryError is a failed store read for one category. It never aborts
// evaluation of other categories.
type QueryError struct {
	Category string
	Op       string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s for %q: %v", ErrStoreQuery, e.Op, e.Category, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrStoreQuery, e.Err} }

// WriteError is a failed alert insert for one category. The next cycle
// retries naturally because the dedup check still finds no alert.
type WriteError struct {
	Category string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: insert alert for %q: %v", ErrStoreWrite, e.Category, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrStoreWrite, e.Err} }
