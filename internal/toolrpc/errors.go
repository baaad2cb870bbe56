// Package toolrpc implements the uniform tool-call contract between the
// runner and its tool backends: call a named method with JSON parameters,
// receive a JSON result or a structured error. The wire transport is local
// HTTP+JSON (GET /health, GET /tools, POST /tools/<method>); an in-process
// client implements the same contract for tests.
package toolrpc

import "fmt"

// ErrorKind classifies a tool-call failure.
type ErrorKind string

// Error kinds.
const (
	// KindUnavailable: the tool backend was never connected or cannot be
	// reached at all.
	KindUnavailable ErrorKind = "tool_unavailable"
	// KindNotFound: the backend does not expose the requested method.
	KindNotFound ErrorKind = "tool_not_found"
	// KindCallFailed: the backend executed the method and returned an
	// error (including malformed parameters).
	KindCallFailed ErrorKind = "tool_call_failed"
	// KindBadParams: the method rejected its parameters before doing any
	// work. Reported to clients as a call failure with validation detail.
	KindBadParams ErrorKind = "invalid_params"
)

// Error is a structured tool-call error.
type Error struct {
	Kind    ErrorKind
	Tool    string
	Method  string
	Message string
}

func (e *Error) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s/%s: %s", e.Kind, e.Tool, e.Method, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Tool, e.Message)
}

// Unavailable creates a tool-unavailable error.
func Unavailable(tool, message string) *Error {
	return &Error{Kind: KindUnavailable, Tool: tool, Message: message}
}

// NotFound creates an unknown-method error.
func NotFound(tool, method string) *Error {
	return &Error{Kind: KindNotFound, Tool: tool, Method: method, Message: "no such method"}
}

// CallFailed creates a backend-failure error.
func CallFailed(tool, method, message string) *Error {
	return &Error{Kind: KindCallFailed, Tool: tool, Method: method, Message: message}
}

// BadParams creates a parameter-validation error. Handlers return this to
// get a 400 instead of a 500 on the wire.
func BadParams(format string, args ...any) *Error {
	return &Error{Kind: KindBadParams, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, defaulting to KindCallFailed for plain
// errors that crossed the boundary unwrapped.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindCallFailed
}
