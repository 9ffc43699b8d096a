package wallet

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrMissingPayment is returned when the sheet authorizes without a payment payload.
	ErrMissingPayment = errors.New("wallet: no payment received from the sheet")
	// ErrPaymentDeclined is returned when the backend does not approve a payment.
	ErrPaymentDeclined = errors.New("wallet: payment was not approved")
	// ErrSessionOpen is returned by a restart attempted before the previous session closed.
	ErrSessionOpen = errors.New("wallet: a payment session is still open")
	// ErrMalformedMerchantSession is returned when the merchant session cannot be decoded.
	ErrMalformedMerchantSession = errors.New("wallet: malformed merchant session")
	// ErrSessionTimeout is returned when a session outlives its configured timeout.
	ErrSessionTimeout = errors.New("wallet: payment session timed out")
	// ErrInvalidShippingContact is reported when a contact fails local checks.
	ErrInvalidShippingContact = errors.New("wallet: shipping contact failed validation")
	// ErrShippingRejected is returned when the backend refuses a shipping change.
	ErrShippingRejected = errors.New("wallet: shipping change rejected")
)

// ErrorCategory classifies a session failure.
type ErrorCategory string

const (
	CategoryDeclinedTrigger    ErrorCategory = "declined_trigger"    // Click/eligibility hook said no.
	CategorySetup              ErrorCategory = "setup"               // Order creation, snapshot fetch or sheet open failed.
	CategoryValidation         ErrorCategory = "validation"          // Contact or method rejected; reflected into the sheet.
	CategoryShippingContact    ErrorCategory = "shipping_contact"    // Backend refused or failed a shipping contact change.
	CategoryMerchantValidation ErrorCategory = "merchant_validation" // Merchant session exchange or decode failed.
	CategoryAuthorization      ErrorCategory = "authorization"       // Payment submission failed or was declined.
	CategoryMissingPayment     ErrorCategory = "missing_payment"     // Sheet authorized without a payload.
)

// Fatal reports whether errors of this category close the session.
func (c ErrorCategory) Fatal() bool {
	switch c {
	case CategorySetup, CategoryShippingContact, CategoryMerchantValidation, CategoryAuthorization, CategoryMissingPayment:
		return true
	default:
		return false
	}
}

// SessionError is the error handed to the error hook and returned by Start.
type SessionError struct {
	Category ErrorCategory
	Op       string
	OrderID  string
	Err      error
}

// Error makes *SessionError satisfy the stdlib error interface.
func (e *SessionError) Error() string {
	if e == nil {
		return ""
	}
	if e.OrderID != "" {
		return fmt.Sprintf("wallet: %s (order %s): %v", e.Op, e.OrderID, e.Err)
	}
	return fmt.Sprintf("wallet: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fatal reports whether the error closed the session.
func (e *SessionError) Fatal() bool {
	return e != nil && e.Category.Fatal()
}

func newSessionError(category ErrorCategory, op, orderID string, err error) *SessionError {
	return &SessionError{Category: category, Op: op, OrderID: orderID, Err: err}
}

// ErrorType mirrors the backend error.type field.
type ErrorType string

const (
	InvalidRequest     ErrorType = "invalid_request"     // Missing or malformed field.
	ProcessingError    ErrorType = "processing_error"    // Downstream gateway or network failure.
	RateLimitExceeded  ErrorType = "rate_limit_exceeded" // Too many requests.
	ServiceUnavailable ErrorType = "service_unavailable" // Temporary outage or maintenance.
)

// ErrorCode is a machine-readable identifier for the specific failure.
type ErrorCode string

const (
	NotFound             ErrorCode = "not_found"             // Order does not exist.
	OrderClosed          ErrorCode = "order_closed"          // Order already approved or voided.
	ShippingUnavailable  ErrorCode = "shipping_unavailable"  // Address or option cannot be served.
	PaymentRefused       ErrorCode = "payment_refused"       // Gateway refused the payment token.
	InvalidSignature     ErrorCode = "invalid_signature"     // Signature is missing or does not match the payload.
	SignatureRequired    ErrorCode = "signature_required"    // Signed requests are required but headers were missing.
	StaleTimestamp       ErrorCode = "stale_timestamp"       // Timestamp skew exceeded the allowed window.
	MissingAuthorization ErrorCode = "missing_authorization" // Authorization header missing.
	InvalidAuthorization ErrorCode = "invalid_authorization" // Authorization header malformed or API key invalid.
)

// Error represents a structured backend error payload.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   *string   `json:"param,omitempty"`

	status     int           `json:"-"`
	retryAfter time.Duration `json:"-"`
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// StatusCode returns the HTTP status the error is or was carried with.
func (e *Error) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.status
}

// RetryAfter returns the duration clients should wait before retrying.
func (e *Error) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

type errorOption func(*Error)

// WithOffendingParam sets the JSON path for the field that triggered the error.
func WithOffendingParam(jsonPath string) errorOption {
	return func(er *Error) {
		er.Param = &jsonPath
	}
}

// WithStatusCode overrides the HTTP status code returned to the client.
func WithStatusCode(status int) errorOption {
	return func(er *Error) {
		er.status = status
	}
}

// WithRetryAfter specifies how long clients should wait before retrying.
func WithRetryAfter(d time.Duration) errorOption {
	return func(er *Error) {
		er.retryAfter = d
	}
}

// NewRateLimitExceededError builds a Too Many Requests error payload.
func NewRateLimitExceededError(message string, opts ...errorOption) *Error {
	return newError(RateLimitExceeded, ErrorCode(RateLimitExceeded), message, append([]errorOption{WithStatusCode(http.StatusTooManyRequests)}, opts...)...)
}

// NewServiceUnavailableError builds a Service Unavailable error payload.
func NewServiceUnavailableError(message string, opts ...errorOption) *Error {
	return newError(ServiceUnavailable, ErrorCode(ServiceUnavailable), message, append([]errorOption{WithStatusCode(http.StatusServiceUnavailable)}, opts...)...)
}

// NewInvalidRequestError builds a Bad Request error payload.
func NewInvalidRequestError(message string, opts ...errorOption) *Error {
	return newError(InvalidRequest, ErrorCode(InvalidRequest), message, append([]errorOption{WithStatusCode(http.StatusBadRequest)}, opts...)...)
}

// NewProcessingError builds an Internal Server Error payload.
func NewProcessingError(message string, opts ...errorOption) *Error {
	return newError(ProcessingError, ErrorCode(ProcessingError), message, append([]errorOption{WithStatusCode(http.StatusInternalServerError)}, opts...)...)
}

// NewNotFoundError builds a Not Found error payload for an unknown order.
func NewNotFoundError(message string, opts ...errorOption) *Error {
	return newError(InvalidRequest, NotFound, message, append([]errorOption{WithStatusCode(http.StatusNotFound)}, opts...)...)
}

// NewHTTPError allows callers to control the status code explicitly.
func NewHTTPError(status int, typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(typ, code, message, append(opts, WithStatusCode(status))...)
}

// newError builds a typed error payload.
func newError(typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	errPayload := &Error{
		Type:    typ,
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(errPayload)
	}
	return errPayload
}
