// Package errdefs defines the error kinds shared by the value, model and
// query layers. Every concrete error matches exactly one sentinel through
// errors.Is.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrConstraintViolation   = errors.New("constraint violation")
	ErrMissingRequiredField  = errors.New("missing required field")
	ErrIntegrity             = errors.New("integrity error")
	ErrNotImplemented        = errors.New("not implemented")
	ErrDatabaseAddress       = errors.New("invalid database address")
	ErrUnknownDatabase       = errors.New("unknown database")
	ErrExecutorNotConfigured = fmt.Errorf("%w: no executor configured", ErrNotImplemented)
)

// TypeMismatchError reports a value whose Go type is not accepted.
type TypeMismatchError struct {
	Got      string
	Kind     string
	Property string
	Model    string
	Accepted []string
}

func (e *TypeMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trying to assign a value of type `%s` to ", e.Got)
	switch {
	case e.Property != "" && e.Model != "":
		fmt.Fprintf(&b, "the `%s` property of `%s`", e.Property, e.Model)
	case e.Property != "":
		fmt.Fprintf(&b, "the `%s` property", e.Property)
	default:
		fmt.Fprintf(&b, "a `%s` property", e.Kind)
	}
	b.WriteString(".")
	if len(e.Accepted) > 0 {
		fmt.Fprintf(&b, " Valid types are: %s.", strings.Join(e.Accepted, ", "))
	}
	return b.String()
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// ConstraintError reports a value of an accepted type that breaks a domain rule.
type ConstraintError struct {
	Value    any
	Property string
	Reason   string
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("Value `%v` does not meet the constraints.", e.Value)
	if e.Property != "" {
		msg = fmt.Sprintf("Value `%v` of `%s` does not meet the constraints.", e.Value, e.Property)
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	return msg
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// MissingFieldError is returned when a required property has neither a value
// nor a default.
type MissingFieldError struct {
	Model string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Cannot initialize a `%s` without `%s`", e.Model, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingRequiredField }

// IntegrityError signals misuse of the builder API or a broken internal
// invariant. It is never caused by user data.
type IntegrityError struct {
	Op  string
	Msg string
}

func (e *IntegrityError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// Integrity builds an IntegrityError with a formatted message.
func Integrity(op, format string, args ...any) error {
	return &IntegrityError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotImplemented reports an operation this layer leaves to another component.
func NotImplemented(op string) error {
	return fmt.Errorf("%w: %s is not supported by the query builder", ErrNotImplemented, op)
}

// TypeMismatch is a shorthand for a TypeMismatchError about a value of kind.
func TypeMismatch(v any, kind string, accepted ...string) error {
	return &TypeMismatchError{Got: TypeName(v), Kind: kind, Accepted: accepted}
}

// TypeName returns a short, stable name for the dynamic type of v.
func TypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// WithProperty annotates type and constraint errors with the property and
// model they were raised for. Other errors are returned untouched.
func WithProperty(err error, model, property string) error {
	var tm *TypeMismatchError
	if errors.As(err, &tm) {
		cp := *tm
		cp.Property, cp.Model = property, model
		return &cp
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		cp := *ce
		cp.Property = property
		return &cp
	}
	return err
}
