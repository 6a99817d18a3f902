package errors

import (
	"fmt"

	pkgErrors "github.com/pkg/errors"
)

// New returns an error formatted according to `format` and `a`. The returned
// error records the stack at the point it was created, which is printed when
// the error is formatted with `%+v`.
func New(format string, a ...interface{}) error {
	return pkgErrors.Errorf(format, a...)
}

// WithContext wraps `err` with a short description of what was being done
// when it happened. The resulting message has the form "context: err".
// A nil error stays nil so that callers can wrap unconditionally.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context: context, cause: err}
}

type withContext struct {
	context string
	cause   error
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.cause)
}

// Cause implements the interface used by github.com/pkg/errors.Cause.
func (err withContext) Cause() error {
	return err.cause
}

// Unwrap lets the standard library's errors.Is and errors.As see through the
// context.
func (err withContext) Unwrap() error {
	return err.cause
}

// Format prints the stack of the root cause when formatted with `%+v`.
func (err withContext) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s: %+v", err.context, err.cause)
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

// RootCause returns the innermost error, stripping any context that was added
// with WithContext.
func RootCause(err error) error {
	return pkgErrors.Cause(err)
}

// FriendlyError is an error whose message is meant to be shown to users as is.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError from a format string.
func NewFriendlyError(format string, a ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, a...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message that should be shown to users.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

type friendlyError interface {
	FriendlyMessage() string
}

// GetPrintableMessage returns the message that should be presented to the
// user for `err`. If the root cause has a friendly message, that message is
// used. Otherwise, the full error chain is returned.
func GetPrintableMessage(err error) string {
	if friendly, ok := RootCause(err).(friendlyError); ok {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
