package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// DefaultMaxBodyBytes limits JSON request bodies
const DefaultMaxBodyBytes = 1 << 20

// ParseJSON decodes a single JSON value from the request body into dest
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, DefaultMaxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: unexpected data after top-level value")
	}
	return nil
}

// ParseJSONOrError decodes the body into dest, returning a VALIDATION_ERROR
// response on failure and nil on success.
func ParseJSONOrError(r *http.Request, dest interface{}, requestID string, headers map[string]string) *Response {
	if err := ParseJSON(r, dest); err != nil {
		return Error(CodeValidationError, "Invalid JSON body",
			WithDetails(err.Error()),
			WithRequestID(requestID),
			WithHeaders(headers),
		)
	}
	return nil
}

// ParsePathString extracts a non-empty string path parameter as sent
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}
