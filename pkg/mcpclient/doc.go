// Package mcpclient discovers and invokes remote tools over three transports:
// JSON-RPC over a websocket, a managed SSE session and a REST-style HTTP shim.
//
// Invariants:
// - Every transport returns results through Normalize, so Content is never nil.
// - Tool names are unique within a cached catalog; the last entry seen wins.
// - Socket request ids strictly increase within a session and responses are
//   matched by id, never by arrival order.
// - HTTP probes run in a fixed order and the first success short-circuits.
// - Close is idempotent and leaves Connected() false.
//
// Usage:
//
//	c, err := mcpclient.New(mcpclient.KindSocket, "ws://localhost:8000/ws")
//	if err != nil { ... }
//	defer c.Close()
//	tools, _ := c.DiscoverTools(ctx)
//	res, err := c.CallTool(ctx, "read_file_mcp", map[string]any{"path": "sample.txt"})
package mcpclient
