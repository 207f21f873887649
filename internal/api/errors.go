package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AuthError is a non-2xx response from the login or registration endpoints.
// It carries the server's message so the view can show it; it never crashes
// the caller.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authentication failed (%d)", e.StatusCode)
}

// NetworkError is a transport failure or a non-2xx response from the
// transaction CRUD surface. A load that hits one aborts as a whole and is
// retryable.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// decodeErrorMessage extracts a human-readable message from an error
// response body. Structured JSON ({"message": ...}) is preferred, with the
// plain-text body as fallback; one strategy for every endpoint.
func decodeErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
