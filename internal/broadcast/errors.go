package broadcast

import (
	"errors"
)

var (
	// ErrMalformedMessage means an inbound frame could not be decoded. It is
	// reported to the sender; the connection stays open.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrPersistenceFailure means an activity event was not stored. Delivery
	// has still been attempted when this is returned.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Error codes carried by outbound error frames.
const (
	CodeMalformedMessage   = "malformed_message"
	CodePersistenceFailure = "persistence_failure"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// ErrorCode maps a handling error to the code reported to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return CodeMalformedMessage
	case errors.Is(err, ErrPersistenceFailure):
		return CodePersistenceFailure
	default:
		return CodeInternal
	}
}
