// Package forensicerr defines the stable error-kind identifiers shared by
// every component of the recovery engine, in the style of
// dargueta-disko/errors/errors.go's kind-tagged error values.
package forensicerr

import "errors"

// Kind is a stable identifier for an error category. Components compare
// against these with errors.Is; they are never meant to be pattern-matched
// by message text.
type Kind string

const (
	PermissionDenied   Kind = "permission_denied"
	DeviceNotFound     Kind = "device_not_found"
	UnsupportedDevice  Kind = "unsupported_device"
	IoError            Kind = "io_error"
	FilesystemUnknown  Kind = "filesystem_unrecognized"
	InvalidCandidate   Kind = "invalid_candidate"
	ValidationFailed   Kind = "validation_failed"
	LowScore           Kind = "low_score"
	DuplicateContent   Kind = "duplicate_content"
	OversizedCandidate Kind = "oversized_candidate"
	HashMismatch       Kind = "hash_mismatch"
	WriteError         Kind = "write_error"
	Cancelled          Kind = "cancelled"
)

// Error wraps an underlying cause with a stable Kind so callers can test
// error categories with errors.Is/errors.As without parsing messages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, forensicerr.Cancelled) work by comparing Kind
// against a bare Kind value wrapped as an error via New(kind, "", nil).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error for the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel returns a zero-cause error usable as an errors.Is target, e.g.
// errors.Is(err, forensicerr.Sentinel(forensicerr.Cancelled)).
func Sentinel(kind Kind) error {
	return &Error{Kind: kind, Message: string(kind)}
}
