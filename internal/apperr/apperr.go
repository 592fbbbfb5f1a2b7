// Package apperr defines the console's error taxonomy and the mapping from
// HTTP transport outcomes onto it.
package apperr

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Code classifies a failed operation.
type Code string

const (
	CodeNetwork      Code = "NETWORK"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION"
	CodeUnknown      Code = "UNKNOWN"
)

// Error is the application-level error surfaced by the transport layer.
type Error struct {
	Code      Code
	Message   string
	Status    int
	Details   any
	RequestID string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Unknown wraps an arbitrary failure.
func Unknown(details any) *Error {
	return &Error{Code: CodeUnknown, Message: "Unexpected error", Details: details}
}

// FromStatus maps an HTTP status code to an Error.
func FromStatus(status int, details any) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return &Error{Code: CodeUnauthorized, Message: "Unauthorized", Status: status}
	case status == http.StatusForbidden:
		return &Error{Code: CodeForbidden, Message: "Forbidden", Status: status}
	case status == http.StatusNotFound:
		return &Error{Code: CodeNotFound, Message: "Not found", Status: status}
	case status == http.StatusBadRequest:
		return &Error{Code: CodeValidation, Message: "Invalid request", Status: status, Details: details}
	default:
		return &Error{Code: CodeUnknown, Message: "Unexpected error", Status: status, Details: details}
	}
}

// FromResponse maps a completed round trip to an Error. A transport error
// (no response at all) is a NETWORK failure; a non-2xx response maps by
// status. Returns nil for successful responses.
func FromResponse(resp *http.Response, err error) *Error {
	if err != nil {
		return &Error{Code: CodeNetwork, Message: "Network error", Details: err.Error()}
	}
	if resp == nil {
		return &Error{Code: CodeNetwork, Message: "Network error"}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var details any
	if resp.Body != nil {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr == nil && len(body) > 0 {
			var decoded map[string]any
			if json.Unmarshal(body, &decoded) == nil {
				details = decoded
			} else {
				details = string(body)
			}
		}
	}

	appErr := FromStatus(resp.StatusCode, details)
	appErr.RequestID = resp.Header.Get("X-Request-Id")
	return appErr
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*Error); ok {
		return appErr.Code
	}
	return CodeUnknown
}
