package shared

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure kinds that may cross the task
// executor boundary. Every error produced anywhere below the routers
// resolves to exactly one Kind via Classify.
type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindInvalidInput        Kind = "invalid_input"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindInternal            Kind = "internal_error"
)

// RequestError is used when we want a specific error message and StatusCode.
// Sane defaults are listed below. For routes that need custom error messages,
// a request error can be generated and a handler expects the router to return
// the exact message inside the request error msg.
type RequestError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

// Message is what gets surfaced to the caller.
func (r *RequestError) Message() string {
	if r.Err == nil {
		return "internal server error"
	}
	return r.Err.Error()
}

var (
	ErrMissingAuth   = &RequestError{Kind: KindUnauthenticated, StatusCode: 401, Err: errors.New("missing authorization header")}
	ErrInvalidFormat = &RequestError{Kind: KindUnauthenticated, StatusCode: 401, Err: errors.New("invalid authentication format")}
	ErrInvalidToken  = &RequestError{Kind: KindUnauthenticated, StatusCode: 401, Err: errors.New("invalid or expired token")}
	ErrUnauthorized  = &RequestError{Kind: KindUnauthorized, StatusCode: 403, Err: errors.New("unauthorized")}

	ErrInvalidRequest      = &RequestError{Kind: KindInvalidInput, StatusCode: 400, Err: errors.New("invalid request body")}
	ErrInsufficientCredits = &RequestError{Kind: KindInsufficientCredits, StatusCode: 402, Err: errors.New("no credit balance")}
	ErrNotFound            = &RequestError{Kind: KindNotFound, StatusCode: 404, Err: errors.New("not found")}

	ErrServiceUnavailable  = &RequestError{Kind: KindServiceUnavailable, StatusCode: 503, Err: errors.New("service temporarily unavailable")}
	ErrGatewayTimeout      = &RequestError{Kind: KindUpstreamTimeout, StatusCode: 504, Err: errors.New("upstream service timed out")}
	ErrInternalServerError = &RequestError{Kind: KindInternal, StatusCode: 500, Err: errors.New("internal server error")}
)

// InvalidInput builds a 400 with a caller-visible message.
func InvalidInput(msg string) *RequestError {
	return &RequestError{Kind: KindInvalidInput, StatusCode: 400, Err: errors.New(msg)}
}

// UpstreamError is the provider-side failure shape. Adapters never leak raw
// provider error bodies upward; they wrap everything into one of the codes
// below. Classify folds these into the closed Kind set before the error
// crosses the executor boundary.
type UpstreamError struct {
	Code string
	Msg  string
	Err  error
}

func (u *UpstreamError) Error() string {
	if u.Err != nil {
		return fmt.Sprintf("%s: %v", u.Msg, u.Err)
	}
	return u.Msg
}

func (u *UpstreamError) Unwrap() error {
	return u.Err
}

const (
	UpstreamTimeout         = "upstream_timeout"
	UpstreamRateLimited     = "upstream_rate_limited"
	UpstreamAuthError       = "upstream_auth_error"
	UpstreamInvalidResponse = "upstream_invalid_response"
	UpstreamGenericError    = "upstream_generic_error"
)

// NewUpstreamError wraps a raw provider failure under a stable code.
func NewUpstreamError(code, msg string, err error) *UpstreamError {
	return &UpstreamError{Code: code, Msg: msg, Err: err}
}

// IsUpstreamTimeout reports whether err is a timeout-class upstream failure,
// the only class the retry executor is allowed to retry.
func IsUpstreamTimeout(err error) bool {
	var uerr *UpstreamError
	if errors.As(err, &uerr) {
		return uerr.Code == UpstreamTimeout
	}
	return false
}

// Classify resolves any error into a RequestError. The mapping is total:
// unknown errors become internal server errors rather than leaking raw
// shapes to the caller.
func Classify(err error) *RequestError {
	if err == nil {
		return nil
	}

	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr
	}

	var uerr *UpstreamError
	if errors.As(err, &uerr) {
		switch uerr.Code {
		case UpstreamTimeout:
			return ErrGatewayTimeout
		case UpstreamRateLimited, UpstreamAuthError:
			return ErrServiceUnavailable
		case UpstreamInvalidResponse, UpstreamGenericError:
			return ErrInternalServerError
		}
	}

	return ErrInternalServerError
}
