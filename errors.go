package vivialconnect

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds returned by the Vivial Connect client.
// Every *RequestorError matches ErrRequestor with errors.Is, plus its own kind
// and, for 4xx responses, ErrClient.
var (
	// Transport and protocol errors
	ErrRequestor   = errors.New("vivialconnect: requestor error")
	ErrConnection  = errors.New("vivialconnect: connection error")
	ErrRedirection = errors.New("vivialconnect: redirection")
	ErrNoAPISecret = errors.New("vivialconnect: no API secret provided")

	// HTTP 4xx
	ErrClient           = errors.New("vivialconnect: client error")
	ErrBadRequest       = errors.New("vivialconnect: bad request")
	ErrUnauthorized     = errors.New("vivialconnect: unauthorized access")
	ErrForbidden        = errors.New("vivialconnect: forbidden access")
	ErrNotFound         = errors.New("vivialconnect: resource not found")
	ErrMethodNotAllowed = errors.New("vivialconnect: method not allowed")
	ErrConflict         = errors.New("vivialconnect: resource conflict")
	ErrInvalid          = errors.New("vivialconnect: resource invalid")
	ErrRateLimited      = errors.New("vivialconnect: rate limited (too many requests)")

	// HTTP 5xx
	ErrServer = errors.New("vivialconnect: server error")

	// Mapper errors
	ErrResource       = errors.New("vivialconnect: resource error")
	ErrOwnership      = errors.New("vivialconnect: subordinate resource belongs to a different parent")
	ErrWrongKind      = errors.New("vivialconnect: value has the wrong resource kind")
	ErrNotImplemented = errors.New("vivialconnect: not implemented")
	ErrUnknownKind    = errors.New("vivialconnect: no registered kind")
	ErrIndex          = errors.New("vivialconnect: list index out of range")

	// Validation errors
	ErrEmptyID         = errors.New("vivialconnect: resource ID cannot be empty")
	ErrEmptyAccountID  = errors.New("vivialconnect: account ID cannot be empty")
	ErrEmptyBulkID     = errors.New("vivialconnect: bulk ID cannot be empty")
	ErrEmptyPhone      = errors.New("vivialconnect: phone number cannot be empty")
	ErrMissingToNumber = errors.New("vivialconnect: property 'to_numbers' is required")
	ErrTagNotFound     = errors.New("vivialconnect: tag does not exist")
)

// RequestorError describes a failed API call. Kind is one of the Err* kinds
// above; it is what errors.Is matches against.
type RequestorError struct {
	Kind       error
	Message    string
	StatusCode int
	Body       string
	JSONBody   any
	Code       string
	Param      string

	// URL and Header are set for redirections.
	URL    string
	Header http.Header

	// RetryAfter is parsed from the Retry-After header of 429 responses.
	RetryAfter time.Duration

	// Err is the underlying cause for connection failures.
	Err error
}

// Error implements the error interface.
func (e *RequestorError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("vivialconnect: API error %d: %s", e.StatusCode, msg)
	}
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("vivialconnect: %s: %v", e.Message, e.Err)
	}
	return msg
}

// Is reports whether target is the base kind, this error's kind, or a parent
// kind of it.
func (e *RequestorError) Is(target error) bool {
	if target == ErrRequestor || target == e.Kind {
		return true
	}
	if target == ErrClient {
		return isClientKind(e.Kind)
	}
	return false
}

// Unwrap returns the underlying cause, if any.
func (e *RequestorError) Unwrap() error {
	return e.Err
}

func isClientKind(kind error) bool {
	switch kind {
	case ErrClient, ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrNotFound,
		ErrMethodNotAllowed, ErrConflict, ErrInvalid, ErrRateLimited:
		return true
	}
	return false
}

// kindForStatus maps an HTTP status to an error kind. Statuses outside the
// documented ones are classified by range.
func kindForStatus(status int) error {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound:
		return ErrRedirection
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusMethodNotAllowed:
		return ErrMethodNotAllowed
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrInvalid
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	switch {
	case status >= 300 && status < 400:
		return ErrRedirection
	case status >= 400 && status < 500:
		return ErrClient
	case status >= 500 && status < 600:
		return ErrServer
	}
	return ErrRequestor
}

// IsNotFound returns true if the error indicates the resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized returns true if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden returns true if the credentials lack permission for the resource.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsInvalid returns true if the server rejected the resource as invalid (422).
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsClientError returns true for any 4xx response.
func IsClientError(err error) bool {
	return errors.Is(err, ErrClient)
}

// IsServerError returns true for any 5xx response.
func IsServerError(err error) bool {
	return errors.Is(err, ErrServer)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestorError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
