// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import (
	"fmt"
	"net/http"
)

// Error codes carried on *Error (and in its Error() text for logs), one per
// failure class in the taxonomy; the JSON error body carries only the
// message. Config errors never reach here (they are fatal at startup),
// everything else funnels through one of the constructors below.
const (
	EC_PARAM_INVALID     = "EC_PARAM_INVALID"
	EC_RESOURCE_NOTFOUND = "EC_RESOURCE_NOTFOUND"
	EC_ACCESS_DENIED     = "EC_ACCESS_DENIED"
	EC_DATABASE          = "EC_DATABASE"
	EC_SERVER            = "EC_SERVER"
)

// Error is the handler-facing error type: handlers panic with one of the
// constructors below and the top-level recover middleware renders it.
// Routes never write an HTTP response directly on the error path.
type Error struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func EBadRequest(code, message string, cause error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: message, Cause: cause}
}

func EAuth(code, message string, cause error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Message: message, Cause: cause}
}

func ENotFound(code, message string, cause error) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Message: message, Cause: cause}
}

func EInternal(code, message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: code, Message: message, Cause: cause}
}

// errorBody is what EInternal renders as: an opaque message, never the
// wrapped cause, so internal detail never leaks to a client.
type errorBody struct {
	Message string `json:"message"`
}
