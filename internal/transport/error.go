package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoToken is returned before any I/O when an authenticated call is
// attempted without a persisted token.
var ErrNoToken = errors.New("not authenticated: no token")

// Error is the single normalized shape for every transport failure:
// connectivity problems, server error payloads and request construction
// errors all collapse into it.
type Error struct {
	Status  int // 0 when no response was received
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transport: %s (status %d)", e.Message, e.Status)
	}
	return "transport: " + e.Message
}

// errorResponse mirrors the server's error payload.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

// connectivityError wraps a failure to reach the server at all.
func connectivityError() *Error {
	return &Error{Message: "no response from server, check your connection"}
}

// serverError extracts a message from an error status response body.
func serverError(status int, body []byte) *Error {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Errors) > 0 {
			msgs := make([]string, 0, len(payload.Errors))
			for _, e := range payload.Errors {
				if e.Msg != "" {
					msgs = append(msgs, e.Msg)
				}
			}
			if len(msgs) > 0 {
				return &Error{Status: status, Message: strings.Join(msgs, ", ")}
			}
		}
		if payload.Message != "" {
			return &Error{Status: status, Message: payload.Message}
		}
	}
	return &Error{Status: status, Message: http.StatusText(status)}
}
