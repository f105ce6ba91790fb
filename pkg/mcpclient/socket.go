package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/harun/toolwire/internal/observability"
)

// State is the connection state of a SocketClient
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// JSON-RPC request frame
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// SocketClient speaks JSON-RPC 2.0 over a websocket. Requests are
// serialized; each one reads frames until the response with its id arrives.
type SocketClient struct {
	endpoint string
	opts     Options
	dialer   *websocket.Dialer

	reqMu sync.Mutex // one outstanding request per session

	connMu sync.Mutex
	conn   *websocket.Conn

	state  atomic.Int32
	nextID atomic.Int64

	infoMu       sync.RWMutex
	serverInfo   map[string]any
	capabilities map[string]any

	catalog catalog
}

// NewSocketClient creates a client for a ws:// or wss:// endpoint
func NewSocketClient(endpoint string, opts ...Option) (*SocketClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("server URL must be provided")
	}
	if !hasScheme(endpoint, "ws", "wss") {
		return nil, fmt.Errorf("server URL must start with ws:// or wss://, got %s", endpoint)
	}

	return &SocketClient{
		endpoint: endpoint,
		opts:     buildOptions(opts),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

func (c *SocketClient) Kind() Kind       { return KindSocket }
func (c *SocketClient) Endpoint() string { return c.endpoint }

// State returns the current connection state
func (c *SocketClient) State() State {
	return State(c.state.Load())
}

func (c *SocketClient) Connected() bool {
	return c.State() == StateConnected
}

// ServerInfo returns the serverInfo from the initialize handshake
func (c *SocketClient) ServerInfo() map[string]any {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.serverInfo
}

// Capabilities returns the capabilities from the initialize handshake
func (c *SocketClient) Capabilities() map[string]any {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.capabilities
}

func (c *SocketClient) Tools() map[string]ToolDescriptor {
	return c.catalog.snapshot()
}

// Connect dials the endpoint and performs the initialize handshake.
// The client only becomes connected once the handshake response arrives.
func (c *SocketClient) Connect(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.Connected() {
		return nil
	}

	c.state.Store(int32(StateConnecting))

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	params := map[string]any{
		"protocolVersion": "1.0",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    c.opts.ClientName,
			"version": c.opts.ClientVersion,
		},
	}

	result, err := c.roundTrip(ctx, "initialize", params)
	if err != nil {
		c.dropConn()
		return &ConnectionError{Endpoint: c.endpoint, Err: fmt.Errorf("initialize: %w", err)}
	}

	var init struct {
		ServerInfo   map[string]any `json:"serverInfo"`
		Capabilities map[string]any `json:"capabilities"`
	}
	if err := json.Unmarshal(result, &init); err != nil {
		log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("Unreadable initialize result")
	}
	if init.ServerInfo == nil {
		init.ServerInfo = map[string]any{}
	}
	if init.Capabilities == nil {
		init.Capabilities = map[string]any{}
	}

	c.infoMu.Lock()
	c.serverInfo = init.ServerInfo
	c.capabilities = init.Capabilities
	c.infoMu.Unlock()

	c.state.Store(int32(StateConnected))

	log.Info().
		Str("endpoint", c.endpoint).
		Interface("server_info", init.ServerInfo).
		Msg("MCP websocket session initialized")

	return nil
}

// Close closes the socket. It is safe to call repeatedly and while a
// request is in flight; the pending read fails with a connection error.
func (c *SocketClient) Close() error {
	conn := c.dropConn()
	c.catalog.clear()

	if conn != nil {
		log.Debug().Str("endpoint", c.endpoint).Msg("MCP websocket session closed")
	}
	return nil
}

// dropConn detaches and closes the current connection
func (c *SocketClient) dropConn() *websocket.Conn {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	c.state.Store(int32(StateDisconnected))

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	return conn
}

func (c *SocketClient) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// DiscoverTools lists tools, following nextCursor until the server stops
// returning one.
func (c *SocketClient) DiscoverTools(ctx context.Context) ([]ToolDescriptor, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	var entries []any
	cursor := ""
	for {
		params := map[string]any{}
		if cursor != "" {
			params["cursor"] = cursor
		}

		result, err := c.roundTrip(ctx, "tools/list", params)
		if err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}

		var page struct {
			Tools      []any `json:"tools"`
			NextCursor any   `json:"nextCursor"`
		}
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("tools/list: decode result: %w", err)
		}
		entries = append(entries, page.Tools...)

		next, _ := page.NextCursor.(string)
		if next == "" {
			break
		}
		cursor = next
	}

	tools := c.catalog.replace(ParseToolList(entries))
	observability.SetDiscoveredTools(string(KindSocket), len(tools))

	return tools, nil
}

// CallTool issues tools/call and normalizes the result
func (c *SocketClient) CallTool(ctx context.Context, name string, arguments map[string]any) (InvocationResult, error) {
	if err := c.Connect(ctx); err != nil {
		return failedResult(name, err), err
	}

	if arguments == nil {
		arguments = map[string]any{}
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	result, err := c.roundTrip(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		err = fmt.Errorf("call tool '%s': %w", name, err)
		return failedResult(name, err), err
	}

	var raw any
	if err := json.Unmarshal(result, &raw); err != nil {
		err = fmt.Errorf("call tool '%s': decode result: %w", name, err)
		return failedResult(name, err), err
	}

	return resultFor(name, raw)
}

// roundTrip sends one request and reads until the matching response.
// Callers must hold reqMu.
func (c *SocketClient) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, ErrNotConnected
	}

	id := c.nextID.Add(1)
	start := time.Now()

	result, err := c.exchange(ctx, conn, id, method, params)
	observability.RecordTransportRequest(string(KindSocket), method, time.Since(start), err == nil)

	return result, err
}

func (c *SocketClient) exchange(ctx context.Context, conn *websocket.Conn, id int64, method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}

	deadline := time.Now().Add(c.opts.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// Unblock the read when the caller gives up. Registered after the
	// deadlines so they cannot overwrite it.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.dropConn()
		return nil, &ConnectionError{Endpoint: c.endpoint, Err: fmt.Errorf("send %s: %w", method, err)}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// A failed read leaves the gorilla connection unusable.
			c.dropConn()

			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%s (id %d): %w", method, id, ErrTimeout)
			}
			return nil, &ConnectionError{Endpoint: c.endpoint, Err: fmt.Errorf("read %s response: %w", method, err)}
		}

		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("Skipping malformed MCP message")
			continue
		}

		rawID, hasID := msg["id"]
		if !hasID {
			log.Debug().
				Str("endpoint", c.endpoint).
				RawJSON("message", data).
				Msg("MCP notification")
			continue
		}

		var gotID float64
		if err := json.Unmarshal(rawID, &gotID); err != nil || gotID != float64(id) {
			log.Warn().
				Str("endpoint", c.endpoint).
				Int64("expected_id", id).
				RawJSON("message", data).
				Msg("Out-of-order MCP message")
			continue
		}

		if rawErr, ok := msg["error"]; ok {
			return nil, parseRPCError(rawErr)
		}

		result, ok := msg["result"]
		if !ok || string(result) == "null" {
			return json.RawMessage("{}"), nil
		}
		return result, nil
	}
}
