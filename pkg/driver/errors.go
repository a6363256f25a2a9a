package driver

import "errors"

// Error code constants for standardized error handling across vendor
// drivers. Drivers map their native failures to one of these codes.
const (
	// ErrCodeInvalidInput marks malformed or incomplete caller-supplied
	// data (missing mandatory trap fields, bad SNMP parameters). Never
	// retried; surfaced to the caller verbatim.
	ErrCodeInvalidInput = "invalid_input"

	// ErrCodeInvalidCredentials marks a rejected login against the array's
	// management interface. Never retried automatically.
	ErrCodeInvalidCredentials = "invalid_credentials"

	// ErrCodeProtocolNegotiation marks an SSH handshake or authentication
	// failure. Never retried automatically.
	ErrCodeProtocolNegotiation = "protocol_negotiation"

	// ErrCodeBackendUnavailable marks a transport-level failure after a
	// successful login (dropped channel, timeout, malformed response).
	// The caller may retry on its next cycle.
	ErrCodeBackendUnavailable = "backend_unavailable"

	// ErrCodeNotFound marks a referenced record or array object that does
	// not exist.
	ErrCodeNotFound = "not_found"
)

// Error is a typed driver error. Use the IsXxx helpers below to classify
// errors without inspecting fields.
type Error struct {
	Code    string // One of the ErrCode* constants.
	Message string // Human-readable description; never contains credentials.
	Err     error  // Underlying error (may be nil).
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed driver error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// InvalidInput creates an invalid-input error with the given message.
func InvalidInput(message string) *Error {
	return &Error{Code: ErrCodeInvalidInput, Message: message}
}

// IsInvalidInput reports whether err is a malformed-input failure.
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsInvalidCredentials reports whether err is a rejected login.
func IsInvalidCredentials(err error) bool {
	return hasCode(err, ErrCodeInvalidCredentials)
}

// IsProtocolNegotiation reports whether err is an SSH handshake/auth failure.
func IsProtocolNegotiation(err error) bool {
	return hasCode(err, ErrCodeProtocolNegotiation)
}

// IsBackendUnavailable reports whether err is a transport failure the
// caller may retry on a later cycle.
func IsBackendUnavailable(err error) bool {
	return hasCode(err, ErrCodeBackendUnavailable)
}

// IsNotFound reports whether err refers to a missing record.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func hasCode(err error, code string) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}
