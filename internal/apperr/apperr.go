// Package apperr defines the error kinds surfaced by the showfinder pipeline.
//
// Three kinds exist:
//
//   - [ConfigError]: a required credential or setting is missing. Raised
//     eagerly, before any network call is attempted.
//   - [UpstreamError]: an embedding, search, or completion service answered
//     with a non-success status (or could not be reached at all).
//   - [StreamParseError]: a server-sent-event frame from a streaming
//     completion could not be decoded.
//
// All kinds are detected with [errors.As], so wrapping with %w at any depth
// preserves them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigError reports a missing or invalid required setting.
type ConfigError struct {
	// Key is the environment variable or setting name, e.g. "OPENAI_API_KEY".
	Key string
	// Reason is a short human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: %s is required", e.Key)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// UpstreamError reports a failed call to an external service.
type UpstreamError struct {
	// Service names the collaborator, e.g. "openai embeddings" or "qdrant".
	Service string
	// StatusCode is the HTTP status returned by the service, or 0 when the
	// failure happened before a response was received.
	StatusCode int
	// Message is the upstream error message, if one was decoded.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s returned an error %d: %s", e.Service, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s failed: %s", e.Service, msg)
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error { return e.Err }

// StreamParseError reports a malformed frame in a streaming completion.
type StreamParseError struct {
	// Frame is the raw payload that failed to decode (may be truncated).
	Frame string
	// Err is the decode error.
	Err error
}

// Error implements the error interface.
func (e *StreamParseError) Error() string {
	if e.Frame == "" {
		return fmt.Sprintf("error in parsing stream response: %v", e.Err)
	}
	return fmt.Sprintf("error in parsing stream response %q: %v", e.Frame, e.Err)
}

// Unwrap returns the decode error.
func (e *StreamParseError) Unwrap() error { return e.Err }

// Missing returns a ConfigError for a required key that is unset.
func Missing(key string) error {
	return &ConfigError{Key: key}
}

// Upstream returns an UpstreamError for service with the given status and message.
func Upstream(service string, status int, message string) error {
	return &UpstreamError{Service: service, StatusCode: status, Message: message}
}

// IsConfig reports whether err (or anything it wraps) is a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsUpstream reports whether err (or anything it wraps) is an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsStreamParse reports whether err (or anything it wraps) is a StreamParseError.
func IsStreamParse(err error) bool {
	var target *StreamParseError
	return errors.As(err, &target)
}

// HTTPStatus maps an error to the status code the HTTP surface responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsUpstream(err), IsStreamParse(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
