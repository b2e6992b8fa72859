package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents the provider rejecting the request
	// parameters: 400, 404 and 422 responses and in-band errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401/403 responses: the provider session
	// (cookie and crumb) was not accepted.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassThrottle represents 429 responses.
	ErrorClassThrottle ErrorClass = "throttle"

	// ErrorClassServer represents 5xx and any other unexpected status.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents response bodies that are not the expected JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// UpstreamError represents a Yahoo Finance failure with additional context.
type UpstreamError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("yahoo %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("yahoo %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is the provider rejecting the request
// parameters, as opposed to the provider being unreachable, throttling or
// refusing the session. Rejections carry a message meant for the caller.
func IsRejection(err error) (*UpstreamError, bool) {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.Class == ErrorClassClient {
		return upstreamErr, true
	}
	return nil, false
}

// classifyStatus maps an HTTP error status to its ErrorClass.
func classifyStatus(status int) ErrorClass {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ErrorClassClient
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorClassAuth
	case http.StatusTooManyRequests:
		return ErrorClassThrottle
	}
	if status >= 400 {
		return ErrorClassServer
	}
	return ""
}
