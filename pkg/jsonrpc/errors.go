package jsonrpc

import "fmt"

// Standard JSON-RPC 2.0 error codes, plus the two custom codes used for
// admission-control rejections.
const (
	CodeParseError         = -32700
	CodeInvalidRequest     = -32600
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeInternal           = -32603
	CodeRateLimited        = -32001
	CodeTooManyConnections = -32002
)

// Error is a JSON-RPC 2.0 error payload. Message is fixed per code;
// Data carries the variable detail.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError builds an error with an arbitrary code, message and data payload.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// ParseError reports a JSON syntax failure in the request body.
func ParseError(details string) *Error {
	return NewError(CodeParseError, "Parse error", details)
}

// InvalidRequest reports a structurally invalid request object.
func InvalidRequest(details string) *Error {
	return NewError(CodeInvalidRequest, "Invalid request", details)
}

// MethodNotFound reports an unregistered method; the method name is
// carried as the data payload.
func MethodNotFound(method string) *Error {
	return NewError(CodeMethodNotFound, "Method not found", method)
}

// InvalidParams reports parameters a handler could not use.
func InvalidParams(details string) *Error {
	return NewError(CodeInvalidParams, "Invalid params", details)
}

// Internal reports a server-side failure.
func Internal(details string) *Error {
	return NewError(CodeInternal, "Internal error", details)
}

// RateLimited reports a per-client rate limit rejection.
func RateLimited() *Error {
	return NewError(CodeRateLimited, "Too many requests", nil)
}

// TooManyConnections reports a concurrency cap rejection.
func TooManyConnections() *Error {
	return NewError(CodeTooManyConnections, "Too many concurrent connections", nil)
}
