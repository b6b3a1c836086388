package domain

import "errors"

// ErrorCategory is the stable machine-checkable class of a failure.
type ErrorCategory string

const (
	// CategoryConfig: credentials or account identifiers missing. Fatal
	// for any order operation, never retried.
	CategoryConfig ErrorCategory = "config"
	// CategoryTransport: network/timeout talking to the broker. Safe to
	// retry at the caller's discretion.
	CategoryTransport ErrorCategory = "transport"
	// CategoryBusiness: well-formed request that broker logic refused.
	// Carries the broker's message verbatim.
	CategoryBusiness ErrorCategory = "business"
	// CategoryNotFound: missing record or failed precondition.
	CategoryNotFound ErrorCategory = "not_found"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// BrokerError is the structured error returned by every broker-facing
// operation. Msg is human-readable; Category is for dispatch.
type BrokerError struct {
	Category ErrorCategory
	Op       string // operation that failed, e.g. "place_order"
	Msg      string
	Err      error // underlying error, may be nil
}

func (e *BrokerError) Error() string {
	if e.Msg != "" {
		return e.Op + ": " + e.Msg
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + string(e.Category)
}

func (e *BrokerError) IsRetriable() bool {
	return e.Category == CategoryTransport
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewConfigError reports missing credentials or account configuration.
func NewConfigError(op, msg string) *BrokerError {
	return &BrokerError{Category: CategoryConfig, Op: op, Msg: msg}
}

// NewTransportError wraps a network-level failure (retriable).
func NewTransportError(op string, err error) *BrokerError {
	return &BrokerError{Category: CategoryTransport, Op: op, Err: err}
}

// NewBusinessError carries the broker's rejection message verbatim.
func NewBusinessError(op, msg string) *BrokerError {
	return &BrokerError{Category: CategoryBusiness, Op: op, Msg: msg}
}

// NewNotFoundError reports a missing record or failed precondition.
func NewNotFoundError(op, msg string) *BrokerError {
	return &BrokerError{Category: CategoryNotFound, Op: op, Msg: msg}
}

// CategoryOf extracts the category from an error chain. Uncategorized
// errors return the empty string.
func CategoryOf(err error) ErrorCategory {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

var (
	// ErrCredentialsMissing is returned when the broker credentials or
	// account identifiers are not configured.
	ErrCredentialsMissing = errors.New("broker credentials not configured")

	// ErrQuoteUnavailable is returned when a current price cannot be
	// fetched this tick.
	ErrQuoteUnavailable = errors.New("quote unavailable")
)
