package domain

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned by session operations addressing an id the
// session does not hold.
var ErrItemNotFound = errors.New("item not found")

// ValidationError rejects input before any upstream call is made
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

func invalidEnum(field, value string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid %s", value, field)}
}

// ClassificationReason says which stage of classification failed
type ClassificationReason string

const (
	ReasonUpstream          ClassificationReason = "upstream"
	ReasonUnexpectedContent ClassificationReason = "unexpected-content"
	ReasonNoPayload         ClassificationReason = "no-payload"
	ReasonMalformedJSON     ClassificationReason = "malformed-json"
	ReasonMissingField      ClassificationReason = "missing-field"
	ReasonInvalidEnum       ClassificationReason = "invalid-enum"
	ReasonInvalidDate       ClassificationReason = "invalid-date"
)

// ClassificationError covers upstream model failures and responses that
// fail structural validation.
type ClassificationError struct {
	Reason ClassificationReason
	Field  string
	Err    error
}

func (e *ClassificationError) Error() string {
	msg := "classification failed: " + string(e.Reason)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// NewClassificationError builds a ClassificationError
func NewClassificationError(reason ClassificationReason, field string, err error) *ClassificationError {
	return &ClassificationError{Reason: reason, Field: field, Err: err}
}

// StoreError wraps a persistence failure
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStoreError returns nil when err is nil
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
