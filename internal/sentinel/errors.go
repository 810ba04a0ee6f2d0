package sentinel

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the Gateway needs to map it onto an HTTP
// status and envelope, without every lower layer importing net/http.
// See spec.md §7.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindDuplicate
	KindUpstream
	KindRateLimited
	KindPersistence
	KindPlausibility
)

// Error is the engine-wide error shape. Wrap with fmt.Errorf("...: %w", err)
// and unwrap with errors.As to recover the Kind and Fields.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string // field-level validation errors, when Kind == KindValidation
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error               { return newErr(KindNotFound, msg, nil) }
func Duplicate(msg string) *Error              { return newErr(KindDuplicate, msg, nil) }
func Upstream(msg string, err error) *Error    { return newErr(KindUpstream, msg, err) }
func RateLimited(msg string) *Error            { return newErr(KindRateLimited, msg, nil) }
func Persistence(msg string, err error) *Error { return newErr(KindPersistence, msg, err) }
func Plausibility(msg string) *Error           { return newErr(KindPlausibility, msg, nil) }

// As recovers an *Error from err, following the standard errors.As contract.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
