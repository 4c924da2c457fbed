package models

import (
	"errors"
	"fmt"
)

// Error categories; use errors.Is against these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrBusy            = errors.New("resource busy")
)

// ValidationError reports bad input or a rule violation; the operation is aborted
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError is a ValidationError for an illegal status change
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an id missing from its collection
type NotFoundError struct {
	Collection string
	ID         int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Collection, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IntegrationWarning reports a partially failed side effect. The primary
// operation has been kept; Err holds every individual failure. Failed counts
// the failed steps of Operation. Bookkeeping is a failure to record their
// outcome afterwards and is not part of Failed.
type IntegrationWarning struct {
	Operation   string
	Failed      int
	Bookkeeping error
	Err         error
}

func (w *IntegrationWarning) Error() string {
	if w.Failed == 0 && w.Bookkeeping != nil {
		return fmt.Sprintf("%s: bookkeeping failed: %v", w.Operation, w.Bookkeeping)
	}
	return fmt.Sprintf("%s: %d step(s) failed: %v", w.Operation, w.Failed, w.Err)
}

func (w *IntegrationWarning) Unwrap() error {
	return w.Err
}

// StorageError wraps serialization or backend failures that have no domain meaning
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
