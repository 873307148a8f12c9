package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MethodInitialize and friends are the JSON-RPC methods this server handles.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// ParseRequest parses a JSON-RPC request from an io.Reader.
func ParseRequest(r io.Reader) (*JSONRPCRequest, *JSONRPCError) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ParseError(err.Error())
	}
	return ParseRequestBytes(data)
}

// ParseRequestBytes parses a JSON-RPC request from bytes. Batches are not
// supported and fail as invalid requests.
func ParseRequestBytes(data []byte) (*JSONRPCRequest, *JSONRPCError) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ParseError("empty body")
	}
	if trimmed[0] == '[' {
		return nil, InvalidRequestError("batch requests are not supported")
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, ParseError(err.Error())
	}

	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}

	return &req, nil
}

// ValidateRequest validates a JSON-RPC request.
func ValidateRequest(req *JSONRPCRequest) *JSONRPCError {
	if req.JSONRPC != "2.0" {
		return InvalidRequestError("jsonrpc must be \"2.0\"")
	}

	if req.Method == "" {
		return InvalidRequestError("method is required")
	}

	return nil
}

// IsInitializeRequest reports whether req opens a new session.
func IsInitializeRequest(req *JSONRPCRequest) bool {
	return req != nil && req.Method == MethodInitialize && !req.IsNotification()
}

// NewNotification creates a new JSON-RPC notification, typically passed to
// Session.Notify for delivery on the session's GET stream.
func NewNotification(method string, params interface{}) *JSONRPCNotification {
	return &JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
}

// UnmarshalParams unmarshals request params into a typed struct.
func UnmarshalParams[T any](params json.RawMessage) (*T, *JSONRPCError) {
	var result T
	if len(params) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(params, &result); err != nil {
		return nil, InvalidParamsError(err.Error())
	}
	return &result, nil
}

// UnmarshalParamsRequired unmarshals required request params.
func UnmarshalParamsRequired[T any](params json.RawMessage) (*T, *JSONRPCError) {
	if len(params) == 0 || string(params) == "null" {
		return nil, InvalidParamsError("params required")
	}
	return UnmarshalParams[T](params)
}

// ToolResultText creates a text content tool result.
func ToolResultText(text string) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

// ToolResultJSON renders data as two-space indented JSON text.
func ToolResultJSON(data interface{}) (*ToolResult, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return ToolResultText(string(out)), nil
}

// ToolResultError creates an error tool result.
func ToolResultError(message string) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: message}},
		IsError: true,
	}
}
