package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Response header names
const (
	HeaderRequestID          = "X-Request-Id"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderContentType        = "Content-Type"
)

// ErrorCode is the closed set of error codes returned by the API
type ErrorCode string

const (
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeKeyExpired         ErrorCode = "KEY_EXPIRED"
	CodeScopeRequired      ErrorCode = "SCOPE_REQUIRED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeValidationError    ErrorCode = "VALIDATION_ERROR"
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

var statusByCode = map[ErrorCode]int{
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeKeyExpired:         http.StatusUnauthorized,
	CodeScopeRequired:      http.StatusForbidden,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeRateLimitExceeded:  http.StatusTooManyRequests,
	CodeValidationError:    http.StatusBadRequest,
	CodeInternalError:      http.StatusInternalServerError,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// Status returns the HTTP status for the code. Unknown codes map to 500.
func (c ErrorCode) Status() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APIError is the error object in an error response body
type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorBody is the standardized error response body
type ErrorBody struct {
	Error APIError `json:"error"`
}

// Response is a fully built HTTP response, ready to be written.
// Handlers and gateway stages return it instead of writing directly so that
// any stage can short-circuit the chain.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// RequestID returns the X-Request-Id of the response
func (r *Response) RequestID() string {
	return r.Header.Get(HeaderRequestID)
}

// Write writes the response to w
func (r *Response) Write(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}

// NewRequestID mints a fresh request ID
func NewRequestID() string {
	return uuid.NewString()
}

type options struct {
	status    int
	requestID string
	headers   map[string]string
	details   interface{}
}

// Option customizes a Response built by Success or Error
type Option func(*options)

// WithStatus overrides the status of a success response
func WithStatus(status int) Option {
	return func(o *options) { o.status = status }
}

// WithRequestID stamps an existing request ID instead of minting one
func WithRequestID(requestID string) Option {
	return func(o *options) { o.requestID = requestID }
}

// WithHeaders adds extra response headers
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithDetails attaches details to an error response
func WithDetails(details interface{}) Option {
	return func(o *options) { o.details = details }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.requestID == "" {
		o.requestID = NewRequestID()
	}
	return o
}

func newResponse(status int, body []byte, o *options) *Response {
	header := make(http.Header, len(o.headers)+2)
	header.Set(HeaderContentType, "application/json")
	for k, v := range o.headers {
		header.Set(k, v)
	}
	header.Set(HeaderRequestID, o.requestID)
	return &Response{Status: status, Header: header, Body: body}
}

// Success builds a success response whose body is data encoded verbatim.
// Status defaults to 200.
func Success(data interface{}, opts ...Option) *Response {
	o := buildOptions(opts)
	body, err := json.Marshal(data)
	if err != nil {
		return Error(CodeInternalError, "Internal server error", WithRequestID(o.requestID))
	}
	status := o.status
	if status == 0 {
		status = http.StatusOK
	}
	return newResponse(status, body, o)
}

// Error builds an error response. The status comes from the code table;
// details are omitted from the body when not supplied.
func Error(code ErrorCode, message string, opts ...Option) *Response {
	o := buildOptions(opts)
	body, err := json.Marshal(ErrorBody{Error: APIError{Code: code, Message: message, Details: o.details}})
	if err != nil {
		// Details could not be encoded; drop them rather than fail the response
		body, _ = json.Marshal(ErrorBody{Error: APIError{Code: code, Message: message}})
	}
	return newResponse(code.Status(), body, o)
}
