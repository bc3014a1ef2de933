package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeBlocked represents an HTTP 403 from the target site
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeHTTP represents any other non-2xx response
	ErrorTypeHTTP ErrorType = "http_error"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeBotChallenge represents a CAPTCHA page served instead of the product
	ErrorTypeBotChallenge ErrorType = "bot_challenge"
	// ErrorTypeNameNotFound represents a page without a recognizable product name
	ErrorTypeNameNotFound ErrorType = "name_not_found"
	// ErrorTypePriceNotFound represents a page without a recognizable price
	ErrorTypePriceNotFound ErrorType = "price_not_found"
	// ErrorTypeInvalidNumber represents price text that does not parse as a decimal
	ErrorTypeInvalidNumber ErrorType = "invalid_number"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents product store errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Stage names the pipeline step a failure came from
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageChallenge Stage = "challenge"
	StageName      Stage = "name"
	StagePrice     Stage = "price"
	StageNormalize Stage = "normalize"
)

// CrawlerError represents a failure anywhere in the extraction pipeline
type CrawlerError struct {
	Type    ErrorType
	URL     string
	Stage   Stage
	Status  int
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s/%s]", e.Type, e.Stage)
	}
	if e.URL != "" {
		prefix += " " + e.URL
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable.
// Only a block is treated as a rate-limit signal worth backing off for.
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeBlocked:
		return true
	default:
		return false
	}
}

// New creates a new CrawlerError
func New(errType ErrorType, url, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewBlocked creates an error for a 403 response
func NewBlocked(url string) *CrawlerError {
	e := New(ErrorTypeBlocked, url, "access forbidden", nil)
	e.Stage = StageFetch
	e.Status = 403
	return e
}

// NewHTTP creates an error for an unexpected status code
func NewHTTP(url string, status int) *CrawlerError {
	e := New(ErrorTypeHTTP, url, fmt.Sprintf("unexpected status code: %d", status), nil)
	e.Stage = StageFetch
	e.Status = status
	return e
}

// NewNetwork creates a new network error
func NewNetwork(url, message string, err error) *CrawlerError {
	e := New(ErrorTypeNetwork, url, message, err)
	e.Stage = StageFetch
	return e
}

// NewBotChallenge creates an error for a CAPTCHA page
func NewBotChallenge(url string) *CrawlerError {
	e := New(ErrorTypeBotChallenge, url, "captcha detected", nil)
	e.Stage = StageChallenge
	return e
}

// NewParsing creates a new parse failure for the given stage
func NewParsing(errType ErrorType, stage Stage, url, message string, err error) *CrawlerError {
	e := New(errType, url, message, err)
	e.Stage = stage
	return e
}

// NewCache creates a new cache error
func NewCache(url, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, url, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, "", message, err)
}

// NewStorage creates a new storage error
func NewStorage(message string, err error) *CrawlerError {
	return New(ErrorTypeStorage, "", message, err)
}

// NewValidation creates a new validation error
func NewValidation(url, message string) *CrawlerError {
	return New(ErrorTypeValidation, url, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// Kind returns the ErrorType of the first CrawlerError in err's chain, or "" if none
func Kind(err error) ErrorType {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// Is reports whether err carries a CrawlerError of the given type
func Is(err error, errType ErrorType) bool {
	return Kind(err) == errType
}

// Retryable reports whether err carries a CrawlerError worth retrying
func Retryable(err error) bool {
	var ce *CrawlerError
	return stderrors.As(err, &ce) && ce.IsRetryable()
}
