package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "LS-CONN-1002")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Connection Errors (CONN)
// ============================================================================

var (
	// ErrConnTransient indicates a recoverable connection failure.
	// The reconnection policy retries these automatically.
	ErrConnTransient = NewDomainError("LS-CONN-1001", "transient connection error")

	// ErrConnExhausted indicates reconnection attempts ran out.
	// The client is in its terminal Failed state until Connect is called again.
	ErrConnExhausted = NewDomainError("LS-CONN-1002", "reconnection attempts exhausted")

	// ErrConnInvalidState indicates an operation is not legal in the
	// current connection state.
	ErrConnInvalidState = NewDomainError("LS-CONN-1003", "operation invalid in current connection state")

	// ErrConnNoTransport indicates no acceptable transport could be selected.
	ErrConnNoTransport = NewDomainError("LS-CONN-1004", "no acceptable transport available")
)

// ============================================================================
// Command Errors (CMD)
// ============================================================================

var (
	// ErrSendRejected indicates a send was attempted while not connected.
	// Commands are never queued for later delivery.
	ErrSendRejected = NewDomainError("LS-CMD-2001", "send rejected: not connected")

	// ErrSendEncoding indicates the outbound frame could not be encoded.
	ErrSendEncoding = NewDomainError("LS-CMD-2002", "send rejected: frame encoding failed")
)

// ============================================================================
// Feed Errors (FEED)
// ============================================================================

var (
	// ErrFeedShortPacket indicates a datagram shorter than the wire format.
	ErrFeedShortPacket = NewDomainError("LS-FEED-3001", "datagram shorter than packet format")

	// ErrFeedBadMagic indicates the decrypted packet magic did not match.
	ErrFeedBadMagic = NewDomainError("LS-FEED-3002", "packet magic mismatch")

	// ErrFeedClosed indicates the intake feed has been closed.
	ErrFeedClosed = NewDomainError("LS-FEED-3003", "feed closed")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("LS-SESS-4001", "session not found")

	// ErrSessionActive indicates a session is already being recorded.
	ErrSessionActive = NewDomainError("LS-SESS-4002", "a session is already active")

	// ErrSessionNotActive indicates no session is currently being recorded.
	ErrSessionNotActive = NewDomainError("LS-SESS-4003", "no active session")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrStorageClosed indicates the store has been closed.
	ErrStorageClosed = NewDomainError("LS-STOR-5001", "storage closed")

	// ErrStorageCorrupt indicates a stored record could not be decoded.
	ErrStorageCorrupt = NewDomainError("LS-STOR-5002", "stored record corrupt")
)
