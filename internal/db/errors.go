package db

import "fmt"

// StoreError represents a failure in a profile store operation. Op names the
// operation that failed; Err is the underlying cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("profile store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr wraps err in a StoreError for the named operation.
func storeErr(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
