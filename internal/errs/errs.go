// Package errs defines the error shapes returned to API clients.
//
// Every failure that reaches the HTTP layer ends up as an *HTTPError so
// clients always receive the same JSON structure: a stable machine code,
// a human message, optional field errors and an optional action hint.
package errs

import (
	"errors"
	"strings"
)

// MakeUpperCaseWithUnderscores converts "Bad Request" into "BAD_REQUEST".
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}

// Code returns a pointer to code, for the optional code arguments of the constructors.
func Code(code string) *string {
	return &code
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an HTTPError.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// CodeOf returns the machine code carried by err, or "" when err is not an HTTPError.
func CodeOf(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return ""
}
