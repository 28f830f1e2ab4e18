package core

import "errors"

// ErrorCode represents a stable, machine-readable error identifier.
type ErrorCode string

// Error code constants refine an ErrorType.
const (
	// Configuration errors
	ErrCodeNoCredentials     ErrorCode = "NO_CREDENTIALS"
	ErrCodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	ErrCodeInvalidConfig     ErrorCode = "INVALID_CONFIG"

	// Signing errors
	ErrCodeEmptySecret ErrorCode = "EMPTY_SECRET"
	ErrCodeDigest      ErrorCode = "DIGEST_FAILURE"

	// Transport errors
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"

	// Reply errors
	ErrCodeUnexpectedShape ErrorCode = "UNEXPECTED_SHAPE"
	ErrCodeInvalidJSON     ErrorCode = "INVALID_JSON"

	// Client state errors
	ErrCodeClientClosed ErrorCode = "CLIENT_CLOSED"

	// Unsupported operation
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_METHOD"

	// Request argument errors
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"
)

// IsErrorCode checks if the error matches the specified error code.
// It extracts the exchange error and compares its code field against the provided ErrorCode.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
