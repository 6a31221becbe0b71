package external

import (
	"context"
	"errors"
	"fmt"
)

// ErrIndustryExcluded is returned by FetchFinancials when the symbol's
// industry is not in the client's allow list. It is not a failure.
var ErrIndustryExcluded = errors.New("industry not in allow list")

// Error kinds used in logs, metrics and run summaries.
const (
	KindTransient = "transient"
	KindClient    = "client"
	KindParse     = "parse"
	KindCanceled  = "canceled"
	KindUnknown   = "unknown"
)

// TransientAPIError covers 5xx, 429, timeouts and transport failures. The
// request may succeed if repeated later.
type TransientAPIError struct {
	Endpoint   string
	Symbol     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fiindo %s: transient error (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fiindo %s: transient error: %v", e.Endpoint, e.Err)
}

func (e *TransientAPIError) Unwrap() error { return e.Err }

// ClientAPIError is a 4xx answer other than 429. Repeating the request will
// not help.
type ClientAPIError struct {
	Endpoint   string
	Symbol     string
	StatusCode int
	Body       string
}

func (e *ClientAPIError) Error() string {
	return fmt.Sprintf("fiindo %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ParseError means the response could not be mapped onto the expected
// schema or failed validation.
type ParseError struct {
	Endpoint string
	Symbol   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fiindo %s: invalid response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind classifies err into one of the Kind* labels.
func Kind(err error) string {
	var (
		transient *TransientAPIError
		client    *ClientAPIError
		parse     *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &transient):
		return KindTransient
	case errors.As(err, &client):
		return KindClient
	case errors.As(err, &parse):
		return KindParse
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether repeating the failed call could succeed.
func IsRetryable(err error) bool {
	var transient *TransientAPIError
	return errors.As(err, &transient)
}
