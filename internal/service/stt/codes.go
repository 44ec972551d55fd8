package stt

import "errors"

// ErrorStartFailed is used for start failures that carry no platform code.
const ErrorStartFailed = "start-failed"

// CodeOf extracts the platform error code from err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return ErrorStartFailed
}
