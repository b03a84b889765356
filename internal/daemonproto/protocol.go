// Package daemonproto is the framed request/response envelope of spec.md
// §4.D: one JSON object per connection, method set fixed, error codes
// fixed, shared between the real unix-socket host and unit tests.
package daemonproto

import "encoding/json"

// Method names the daemon host dispatches on.
const (
	MethodStatus        = "status"
	MethodCallTool       = "callTool"
	MethodListTools      = "listTools"
	MethodListResources  = "listResources"
	MethodCloseServer    = "closeServer"
	MethodStop           = "stop"
)

// Error codes the host can return in a Response.Error.Code. runtime_error
// wraps any lower-level error message verbatim; a protocol-level code from
// the underlying MCP exchange is also surfaced verbatim in Code when one
// exists.
const (
	ErrCodeEmptyRequest  = "empty_request"
	ErrCodeInvalidJSON   = "invalid_json"
	ErrCodeUnknownMethod = "unknown_method"
	ErrCodeRuntimeError  = "runtime_error"
)

// Request is the single JSON object a client writes to a fresh connection.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Error is the failure shape of a Response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the single JSON object the host writes back, exactly once
// per connection.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// OKResponse builds a successful response, marshaling result into the
// envelope's Result field.
func OKResponse(id string, result any) (Response, error) {
	if result == nil {
		return Response{ID: id, OK: true}, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{ID: id, OK: true, Result: b}, nil
}

// ErrResponse builds a failure response.
func ErrResponse(id, code, message string) Response {
	return Response{ID: id, OK: false, Error: &Error{Code: code, Message: message}}
}

// DecodeResult unmarshals Result into out. Callers should only call this
// when OK is true.
func (r Response) DecodeResult(out any) error {
	if len(r.Result) == 0 {
		return nil
	}
	return json.Unmarshal(r.Result, out)
}

// StatusParams/StatusResult: no input, reports the daemon is alive and
// which servers it currently manages.
type StatusParams struct{}

type StatusResult struct {
	PID       int      `json:"pid"`
	Servers   []string `json:"servers"`
	StartedAt string   `json:"startedAt"`
}

// ServerParams is the shape shared by every method that names a single
// managed server.
type ServerParams struct {
	Server string `json:"server"`
}

// CallToolParams is the callTool request body.
type CallToolParams struct {
	Server    string         `json:"server"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	TimeoutMs int64          `json:"timeoutMs,omitempty"`
}

// CallToolResult is the callTool response body — a flattened projection of
// pkg/mcporter.CallResult suitable for JSON transport across the socket.
type CallToolResult struct {
	IsError    bool   `json:"isError"`
	Text       string `json:"text,omitempty"`
	HasText    bool   `json:"hasText"`
	Structured any    `json:"structured,omitempty"`
}

// ListToolsParams is the listTools request body.
type ListToolsParams struct {
	Server        string `json:"server"`
	IncludeSchema bool   `json:"includeSchema"`
}

// ListResourcesParams is the listResources request body.
type ListResourcesParams struct {
	Server string `json:"server"`
}
