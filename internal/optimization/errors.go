package optimization

import (
	"errors"
	"fmt"
)

// Sentinel errors for problems detected before the first iteration. Numerical
// trouble during a run is reported through TerminationReason, never as an error.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrEmptyStart     = errors.New("initial point is empty")
	ErrNonFiniteStart = errors.New("initial point is not finite")
)

// Error is an optimization error annotated with the component and operation
// that produced it.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the optimizer or module where the error occurred.
	Component string
	// Err is the underlying error, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = e.Component + ": " + e.Op
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if prefix != "" {
		return prefix + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewErrorf creates an error with a formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps err with additional context. If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps err with a formatted message. If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError reports whether err is, or wraps, an *Error.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CheckStart validates an initial point and returns its objective value.
func CheckStart(f Function, x0 []float64) (float64, error) {
	if len(x0) == 0 {
		return 0, ErrEmptyStart
	}
	if !AllFinite(x0) {
		return 0, WrapErrorf(ErrNonFiniteStart, "coordinates %v", x0)
	}
	fx := f.Value(x0)
	if !IsFinite(fx) {
		return 0, WrapErrorf(ErrNonFiniteStart, "objective value %v", fx)
	}
	return fx, nil
}
