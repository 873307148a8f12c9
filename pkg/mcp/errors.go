package mcp

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	// ErrCodeParseError indicates invalid JSON was received.
	ErrCodeParseError = -32700

	// ErrCodeInvalidRequest indicates the JSON is not a valid JSON-RPC request.
	ErrCodeInvalidRequest = -32600

	// ErrCodeMethodNotFound indicates the method does not exist or is unavailable.
	ErrCodeMethodNotFound = -32601

	// ErrCodeInvalidParams indicates invalid method parameters.
	ErrCodeInvalidParams = -32602

	// ErrCodeInternalError indicates an internal JSON-RPC error.
	ErrCodeInternalError = -32603
)

// Server-defined error codes (-32000 to -32099).
const (
	// ErrCodeBadRequest is returned when a request carries no usable session.
	ErrCodeBadRequest = -32000

	// ErrCodeServerBusy indicates the session limit was reached.
	ErrCodeServerBusy = -32001
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrInvalidSession is returned for unknown, aborted, or closed sessions.
	ErrInvalidSession = errors.New("invalid session")

	// ErrTooManySessions is returned by SessionManager.Begin at capacity.
	ErrTooManySessions = errors.New("maximum session limit reached")

	// ErrUnknownTool is wrapped into the error text for unregistered tool names.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments wraps tool argument schema violations.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Standard error messages.
var errorMessages = map[int]string{
	ErrCodeParseError:     "Parse error",
	ErrCodeInvalidRequest: "Invalid request",
	ErrCodeMethodNotFound: "Method not found",
	ErrCodeInvalidParams:  "Invalid params",
	ErrCodeInternalError:  "Internal error",
	ErrCodeBadRequest:     "Bad Request: No valid session ID provided",
	ErrCodeServerBusy:     "Server busy",
}

// NewJSONRPCError creates a new JSON-RPC error with the given code.
func NewJSONRPCError(code int, data interface{}) *JSONRPCError {
	msg, ok := errorMessages[code]
	if !ok {
		msg = "Unknown error"
	}
	return &JSONRPCError{
		Code:    code,
		Message: msg,
		Data:    data,
	}
}

// NewJSONRPCErrorWithMessage creates a JSON-RPC error with a custom message.
func NewJSONRPCErrorWithMessage(code int, message string, data interface{}) *JSONRPCError {
	return &JSONRPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// ParseError creates a parse error response.
func ParseError(detail string) *JSONRPCError {
	return NewJSONRPCErrorWithMessage(ErrCodeParseError, "Parse error: "+detail, nil)
}

// InvalidRequestError creates an invalid request error.
func InvalidRequestError(detail string) *JSONRPCError {
	if detail == "" {
		return NewJSONRPCError(ErrCodeInvalidRequest, nil)
	}
	return NewJSONRPCErrorWithMessage(ErrCodeInvalidRequest, "Invalid request: "+detail, nil)
}

// MethodNotFoundError creates a method not found error.
func MethodNotFoundError(method string) *JSONRPCError {
	return NewJSONRPCError(ErrCodeMethodNotFound, map[string]string{
		"method": method,
	})
}

// InvalidParamsError creates an invalid params error.
func InvalidParamsError(detail string) *JSONRPCError {
	return NewJSONRPCErrorWithMessage(ErrCodeInvalidParams, "Invalid params: "+detail, nil)
}

// InternalError creates an internal error.
func InternalError(err error) *JSONRPCError {
	var data map[string]string
	if err != nil {
		data = map[string]string{"detail": err.Error()}
	}
	return NewJSONRPCError(ErrCodeInternalError, data)
}

// BadRequestError is the error sent when a POST names no valid session.
func BadRequestError() *JSONRPCError {
	return NewJSONRPCError(ErrCodeBadRequest, nil)
}

// ServerBusyError is sent when no new session can be created.
func ServerBusyError() *JSONRPCError {
	return NewJSONRPCErrorWithMessage(ErrCodeServerBusy, "Server busy: "+ErrTooManySessions.Error(), nil)
}

// AlreadyInitializedError rejects a second initialize on an existing session.
func AlreadyInitializedError() *JSONRPCError {
	return InvalidRequestError("session already initialized")
}

// Error implements the error interface for JSONRPCError.
func (e *JSONRPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (%d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// ErrorResponse creates a JSON-RPC error response.
func ErrorResponse(id interface{}, err *JSONRPCError) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   err,
	}
}

// SuccessResponse creates a JSON-RPC success response.
func SuccessResponse(id interface{}, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}
