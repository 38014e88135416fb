// Package errs defines the error taxonomy shared by the accel packages.
//
// Three kinds of failure exist:
//   - Shape: inputs violate an operation's algebraic constraints. Detected
//     before any backend is touched; the caller fixes the inputs.
//   - Device: a device is unregistered, lost or refused the work. The
//     dispatcher recovers from these by falling back to the CPU once.
//   - Compute: every backend that was tried failed. Fatal for the call.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind int

// Error kinds.
const (
	KindShape Kind = iota
	KindDevice
	KindCompute
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindShape:
		return "ShapeError"
	case KindDevice:
		return "DeviceError"
	case KindCompute:
		return "ComputeError"
	default:
		return "UnknownError"
	}
}

// Error is a classified failure with the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string // Operation that failed, e.g. "gemm" or "allocate".
	Message string // Human-readable details, including sizes.
	Err     error  // Underlying cause, if any.
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrShape   = &Error{Kind: KindShape}
	ErrDevice  = &Error{Kind: KindDevice}
	ErrCompute = &Error{Kind: KindCompute}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += " (caused by: " + e.Err.Error() + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Message != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// Shape creates a ShapeError.
func Shape(op, format string, args ...any) error {
	return &Error{Kind: KindShape, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Device creates a DeviceError wrapping cause (which may be nil).
func Device(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindDevice, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Compute creates a ComputeError wrapping cause.
func Compute(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindCompute, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsShape reports whether err is (or wraps) a ShapeError.
func IsShape(err error) bool { return errors.Is(err, ErrShape) }

// IsDevice reports whether err is (or wraps) a DeviceError.
func IsDevice(err error) bool { return errors.Is(err, ErrDevice) }

// IsCompute reports whether err is (or wraps) a ComputeError.
func IsCompute(err error) bool { return errors.Is(err, ErrCompute) }
