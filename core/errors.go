package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed input: an exclusivity violation, an out-of-range score, etc.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err *ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return strings.Join(msgs, "; ")
}

func (err *ValidationError) Unwrap() error { return err.Err }

// ConflictError reports a uniqueness violation, including concurrent duplicate creation.
type ConflictError struct {
	Msg string
	Err error
}

func NewConflictError(msg string, cause ...error) error {
	e := &ConflictError{Msg: msg}
	if len(cause) > 0 {
		e.Err = cause[0]
	}
	return e
}

func (err *ConflictError) Error() string { return err.Msg }
func (err *ConflictError) Unwrap() error { return err.Err }

// NotFoundError reports a reference to a nonexistent entity.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err *NotFoundError) Error() string { return err.Entity + " not found" }

// NotAMemberError reports an operation targeting a user that is not currently
// enrolled in (or teaching) the classroom.
type NotAMemberError struct {
	ClassroomID string
	UserID      string
}

func NewNotAMemberError(classroomID, userID string) error {
	return &NotAMemberError{ClassroomID: classroomID, UserID: userID}
}

func (err *NotAMemberError) Error() string {
	return "user is not an active member of this classroom"
}

// ReferentialIntegrityError reports a delete blocked by a restrict rule.
type ReferentialIntegrityError struct {
	Msg string
	Err error
}

func NewReferentialIntegrityError(msg string, cause ...error) error {
	e := &ReferentialIntegrityError{Msg: msg}
	if len(cause) > 0 {
		e.Err = cause[0]
	}
	return e
}

func (err *ReferentialIntegrityError) Error() string { return err.Msg }
func (err *ReferentialIntegrityError) Unwrap() error { return err.Err }

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsNotAMember(err error) bool {
	var e *NotAMemberError
	return errors.As(err, &e)
}

func IsReferentialIntegrity(err error) bool {
	var e *ReferentialIntegrityError
	return errors.As(err, &e)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// ErrorKind names the taxonomy kind of err, for logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation"
	case IsConflict(err):
		return "conflict"
	case IsNotAMember(err):
		return "not_a_member"
	case IsNotFound(err):
		return "not_found"
	case IsReferentialIntegrity(err):
		return "referential_integrity"
	default:
		return fmt.Sprintf("%T", errors.Cause(err))
	}
}
