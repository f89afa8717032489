package errdefs

import "errors"

type ErrorType int

const (
	// ErrTypeLaunch means the OS could not create the child process.
	ErrTypeLaunch ErrorType = iota
	ErrTypeCancelled
	// ErrTypeBusy means another operation already owns the slot.
	ErrTypeBusy
	ErrTypeGeneric
)

type CustomError struct {
	Type    ErrorType
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

func NewCustomError(errType ErrorType, message string) error {
	return &CustomError{
		Type:    errType,
		Message: message,
	}
}

// IsType reports whether err (or anything it wraps) is a CustomError of type t.
func IsType(err error, t ErrorType) bool {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

var (
	ErrCancelled = NewCustomError(ErrTypeCancelled, "cancelled by user")
	ErrBusy      = NewCustomError(ErrTypeBusy, "another operation is already running")
)
