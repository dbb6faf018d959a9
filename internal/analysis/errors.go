package analysis

import (
	"errors"
	"fmt"
)

// Machine-readable error codes carried by Error. Orchestrators and HTTP
// handlers preserve these codes end to end so callers can branch on them.
const (
	CodeMissingConfig       = "MISSING_CONFIG"
	CodeMaxRetriesExceeded  = "MAX_RETRIES_EXCEEDED"
	CodeServiceRequestError = "SERVICE_REQUEST_ERROR"
	CodeAnalysisFailed      = "ANALYSIS_FAILED"
	CodeEmptyResult         = "EMPTY_RESULT"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeDownloadError       = "DOWNLOAD_ERROR"
	CodeUnsupportedType     = "UNSUPPORTED_TYPE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the code used for a non-transient remote rejection
// with the given HTTP status, e.g. AZURE_HTTP_400.
func HTTPStatusCode(status int) string {
	return fmt.Sprintf("AZURE_HTTP_%d", status)
}

// Error is a classified analysis failure. Errors are values: every failure
// path in this package yields an *Error with a stable code and a human
// message, never a bare string.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError builds a classified error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError unwraps err into an *Error if it carries one.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
