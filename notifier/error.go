package notifier

import "github.com/cockroachdb/errors"

// ErrorKind classifies application errors by how they propagate.  Only
// KindConfigIncomplete and KindTransport reach the badge and the notification
// transport; the remaining kinds are absorbed locally with a safe default.
type ErrorKind int

const (
	// KindConfigIncomplete means no usable credentials are configured.
	// Polling short-circuits and the badge shows a persistent error.
	KindConfigIncomplete ErrorKind = iota
	// KindTransport covers connection, auth and protocol failures.
	// Non-fatal; retried naturally on the next scheduled poll.
	KindTransport
	// KindMalformedResponse means the source answered with something
	// unusable.  Treated as a no-op poll, not an error badge.
	KindMalformedResponse
	// KindDecodeFailure means a header could not be decoded.  The decode
	// chain substitutes a placeholder instead of propagating, so this kind
	// only appears in log classification.
	KindDecodeFailure
	// KindStateCorrupt means the settings file was unreadable.  Callers
	// fall back to defaults, log, and continue.
	KindStateCorrupt
)

// AppError wraps an application error with its propagation kind.
type AppError struct {
	Kind     ErrorKind
	Message  string // custom message
	Internal error  // original error, if any
}

// AppErr returns a new AppError of the given kind.
func AppErr(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Internal: nil}
}

// WrapErr returns a new AppError wrapping the given error.
func WrapErr(kind ErrorKind, err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: err.Error(), Internal: err}
}

// Error returns the error message.
func (e *AppError) Error() string {
	return e.Message
}

// appendError combines two errors into a single error using errors.Join.
func appendError(err1, err2 error) error {
	if err1 == nil && err2 == nil {
		return nil
	}

	if err1 == nil {
		return err2
	}

	if err2 == nil {
		return err1
	}

	return errors.Join(err1, err2)
}
