package core

import (
	"errors"
	"fmt"
	"time"
)

// ExchangeName identifies the exchange in errors and logs.
const ExchangeName = "bitfinex"

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize failures so callers can branch on them.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConfig indicates a required setting or credential is missing.
	ErrorTypeConfig
	// ErrorTypeSigning indicates the request signature could not be computed.
	ErrorTypeSigning
	// ErrorTypeTransport indicates no HTTP response was received.
	ErrorTypeTransport
	// ErrorTypeHTTPStatus indicates the exchange answered with a non-200 status.
	ErrorTypeHTTPStatus
	// ErrorTypeBusinessRejection indicates a 200 reply whose status message is not SUCCESS.
	ErrorTypeBusinessRejection
	// ErrorTypeMalformedResponse indicates a reply that does not match the expected shape.
	ErrorTypeMalformedResponse
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"CONFIG",
		"SIGNING",
		"TRANSPORT",
		"HTTP_STATUS",
		"BUSINESS_REJECTION",
		"MALFORMED_RESPONSE",
		"BAD_REQUEST",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrNoCredentials is returned when no API credentials are configured.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
)

// ExchangeError represents a structured error raised while talking to an exchange.
// It provides detailed context for debugging and error handling.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response, 0 when none was received.
	StatusCode int `json:"status_code"`
	// Code is a finer-grained error code.
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Exchange identifies which exchange this error relates to.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
	// Cause is the underlying error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface for ExchangeError.
// It returns a formatted string with exchange name, error type, status code, and message.
func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// WithCode sets the error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// WithCause sets the underlying cause and returns the error for chaining.
func (e *ExchangeError) WithCause(err error) *ExchangeError {
	e.Cause = err
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
// The timestamp is automatically set to the current time.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewExchangeErrorWithCode creates a new ExchangeError including an error code.
// The timestamp is automatically set to the current time.
func NewExchangeErrorWithCode(exchange string, errorType ErrorType, statusCode int, code, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

func isErrorType(err error, t ErrorType) bool {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsConfigError returns true if the error is a missing or invalid setting.
func IsConfigError(err error) bool {
	return isErrorType(err, ErrorTypeConfig)
}

// IsSigningError returns true if the request could not be signed.
// Signing errors are fatal for the call.
func IsSigningError(err error) bool {
	return isErrorType(err, ErrorTypeSigning)
}

// IsTransportError returns true if no HTTP response was received.
func IsTransportError(err error) bool {
	return isErrorType(err, ErrorTypeTransport)
}

// IsHTTPStatusError returns true if the exchange answered with a non-200 status.
func IsHTTPStatusError(err error) bool {
	return isErrorType(err, ErrorTypeHTTPStatus)
}

// IsBusinessRejection returns true if the exchange accepted the call but rejected the operation.
func IsBusinessRejection(err error) bool {
	return isErrorType(err, ErrorTypeBusinessRejection)
}

// IsMalformedResponseError returns true if a reply did not match its expected shape.
func IsMalformedResponseError(err error) bool {
	return isErrorType(err, ErrorTypeMalformedResponse)
}

// IsBadRequestError returns true if the request parameters were rejected before sending.
func IsBadRequestError(err error) bool {
	return isErrorType(err, ErrorTypeBadRequest)
}
