package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable matches any RequestError caused by the backend being
	// unreachable (network failure or timeout).
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized matches RequestErrors of kind KindUnauthorized.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidUpload is wrapped by the RequestError returned when an
	// Upload fails local validation.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrMalformedResponse is wrapped when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// Kind classifies a failed request.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindRateLimited  Kind = "rate_limited"
	KindServerError  Kind = "server_error"
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network_error"
	KindBadRequest   Kind = "bad_request"
	KindUnexpected   Kind = "unexpected"
	KindCanceled     Kind = "canceled"
)

// Kinds lists every Kind the gateway can produce.
var Kinds = []Kind{
	KindUnauthorized, KindForbidden, KindNotFound, KindValidation,
	KindRateLimited, KindServerError, KindTimeout, KindNetwork,
	KindBadRequest, KindUnexpected, KindCanceled,
}

// KindForStatus maps a non-2xx HTTP status to its Kind. Every status has
// one: 4xx codes without a dedicated kind are KindBadRequest, anything
// outside 4xx/5xx is KindUnexpected.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServerError
	case status >= 400 && status <= 499:
		return KindBadRequest
	default:
		return KindUnexpected
	}
}

// defaultMessage is used when the response carries no readable message.
func defaultMessage(k Kind) string {
	switch k {
	case KindUnauthorized:
		return "Unauthenticated"
	case KindForbidden:
		return "Access denied"
	case KindNotFound:
		return "Not found"
	case KindValidation:
		return "The given data was invalid"
	case KindRateLimited:
		return "Too many requests, try again later"
	case KindServerError:
		return "Server error"
	case KindTimeout:
		return "Request timeout"
	case KindNetwork:
		return "Network error - please check your connection"
	case KindCanceled:
		return "Request canceled"
	case KindUnexpected:
		return "Unexpected response from server"
	default:
		return "An error occurred"
	}
}

// RequestError is the single failure type returned by the gateway.
type RequestError struct {
	Kind Kind
	// HTTPStatus is zero when no response was received.
	HTTPStatus  int
	Message     string
	FieldErrors map[string][]string
	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *RequestError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrUnavailable:
		return e.Kind == KindNetwork || e.Kind == KindTimeout
	}
	return false
}

// FieldError returns the first validation message for field, or "".
func (e *RequestError) FieldError(field string) string {
	if msgs := e.FieldErrors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// KindOf returns the Kind of the RequestError wrapped in err, or "" when err
// is nil or did not come from the gateway.
func KindOf(err error) Kind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

func newRequestError(kind Kind, status int, msg string, cause error) *RequestError {
	if msg == "" {
		msg = defaultMessage(kind)
	}
	return &RequestError{Kind: kind, HTTPStatus: status, Message: msg, Err: cause}
}
