package mcpclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is matched by every connection failure
	ErrNotConnected = errors.New("mcp: not connected")
	// ErrTimeout is returned when a response does not arrive in time
	ErrTimeout = errors.New("mcp: request timed out")
	// ErrInvocation marks a failed tool call
	ErrInvocation = errors.New("mcp: tool invocation failed")
	// ErrDiscovery marks a discovery attempt that produced no catalog
	ErrDiscovery = errors.New("mcp: tool discovery failed")
	// ErrWorkerStopped is returned for work submitted to, or queued on, a stopped worker
	ErrWorkerStopped = errors.New("mcp: worker stopped")
)

// ConnectionError reports an unreachable endpoint or a rejected handshake
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

// Unwrap exposes both ErrNotConnected and the cause to errors.Is
func (e *ConnectionError) Unwrap() []error {
	return []error{ErrNotConnected, e.Err}
}

// RPCError is the error payload of a JSON-RPC response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("MCP error (%d): %s", e.Code, e.Message)
}

// parseRPCError decodes an error payload, keeping payloads that are not
// shaped like a JSON-RPC error as the message text.
func parseRPCError(raw json.RawMessage) *RPCError {
	var rpcErr RPCError
	if err := json.Unmarshal(raw, &rpcErr); err == nil && (rpcErr.Message != "" || rpcErr.Code != 0) {
		return &rpcErr
	}
	return &RPCError{Message: string(raw)}
}
