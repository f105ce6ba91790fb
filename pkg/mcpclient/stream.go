package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/harun/toolwire/internal/observability"
)

// StreamClient drives an MCP session over SSE. The session is only ever
// touched from its Worker goroutine; public methods submit work and wait.
type StreamClient struct {
	endpoint string
	opts     Options

	mu     sync.Mutex // guards worker lifecycle
	worker *Worker

	// owned by the worker goroutine
	session *client.Client

	connected  atomic.Bool
	infoMu     sync.RWMutex
	serverInfo map[string]any

	catalog catalog
}

// NewStreamClient creates a client for an http(s) SSE endpoint, usually ending in /sse
func NewStreamClient(endpoint string, opts ...Option) (*StreamClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("server URL must be provided")
	}
	if !hasScheme(endpoint, "http", "https") {
		return nil, fmt.Errorf("SSE endpoint must start with http:// or https://, got %s", endpoint)
	}

	return &StreamClient{
		endpoint: endpoint,
		opts:     buildOptions(opts),
	}, nil
}

func (c *StreamClient) Kind() Kind       { return KindStream }
func (c *StreamClient) Endpoint() string { return c.endpoint }
func (c *StreamClient) Connected() bool  { return c.connected.Load() }

func (c *StreamClient) Tools() map[string]ToolDescriptor {
	return c.catalog.snapshot()
}

// ServerInfo returns the serverInfo from the initialize handshake
func (c *StreamClient) ServerInfo() map[string]any {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.serverInfo
}

// Connect starts the worker, opens the SSE stream and initializes the
// session. On a client that is already connected it pings the session and
// reopens it when the server no longer answers.
func (c *StreamClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		err := c.pingLocked(ctx)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("MCP SSE session dropped, reopening")
		c.teardownLocked()
	}
	return c.openLocked(ctx)
}

// ensureConnected opens the session when it is not open, without pinging
func (c *StreamClient) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}
	return c.openLocked(ctx)
}

func (c *StreamClient) openLocked(ctx context.Context) error {
	w := NewWorker("sse:" + c.endpoint)
	if _, err := w.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, c.open(ctx, w.Context())
	}); err != nil {
		w.Stop()
		return &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	c.worker = w
	c.connected.Store(true)
	return nil
}

func (c *StreamClient) pingLocked(ctx context.Context) error {
	if c.worker == nil {
		return ErrNotConnected
	}
	_, err := c.worker.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, c.ping(ctx)
	})
	return err
}

// ping runs on the worker
func (c *StreamClient) ping(ctx context.Context) error {
	if c.session == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	return c.session.Ping(ctx)
}

// open runs on the worker. The stream is bound to the worker context so
// it outlives the Connect call that created it.
func (c *StreamClient) open(ctx, streamCtx context.Context) error {
	session, err := client.NewSSEMCPClient(c.endpoint)
	if err != nil {
		return fmt.Errorf("create SSE client: %w", err)
	}

	if err := session.Start(streamCtx); err != nil {
		_ = session.Close()
		return fmt.Errorf("start SSE stream: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    c.opts.ClientName,
		Version: c.opts.ClientVersion,
	}

	result, err := session.Initialize(ctx, initReq)
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("initialize: %w", timeoutErr(ctx, err))
	}

	info, _ := toJSONValue(result.ServerInfo).(map[string]any)
	c.infoMu.Lock()
	c.serverInfo = info
	c.infoMu.Unlock()

	c.session = session

	log.Info().
		Str("endpoint", c.endpoint).
		Str("server", result.ServerInfo.Name).
		Str("protocol", result.ProtocolVersion).
		Msg("MCP SSE session initialized")

	return nil
}

// Close closes the session on the worker, then stops the worker. Work
// still queued fails with ErrWorkerStopped. It is idempotent.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	return nil
}

// teardownLocked closes the session and stops its worker
func (c *StreamClient) teardownLocked() {
	c.connected.Store(false)
	c.catalog.clear()

	w := c.worker
	c.worker = nil
	if w == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := w.Submit(ctx, func(context.Context) (any, error) {
		if c.session == nil {
			return nil, nil
		}
		err := c.session.Close()
		c.session = nil
		return nil, err
	})
	w.Stop()

	if err != nil {
		log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("Error closing MCP SSE session")
	}
}

// drop tears the session down after a failed request, unless it was
// already replaced by another one
func (c *StreamClient) drop(w *Worker, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker != w {
		return
	}
	log.Warn().Err(cause).Str("endpoint", c.endpoint).Msg("MCP SSE session lost")
	c.teardownLocked()
}

func (c *StreamClient) currentWorker() *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worker
}

// submit runs fn on the worker with the request timeout applied. A failed
// request is followed by a ping; when that fails too the session is
// dropped so the next call reopens it.
func (c *StreamClient) submit(ctx context.Context, method string, fn func(ctx context.Context, session *client.Client) (any, error)) (any, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	w := c.currentWorker()
	if w == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	value, err := w.Submit(ctx, func(ctx context.Context) (any, error) {
		if c.session == nil {
			return nil, ErrNotConnected
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()

		value, err := fn(reqCtx, c.session)
		if err == nil {
			return value, nil
		}
		err = timeoutErr(reqCtx, err)
		if !errors.Is(err, ErrTimeout) && ctx.Err() == nil {
			if perr := c.ping(ctx); perr != nil {
				return nil, &ConnectionError{Endpoint: c.endpoint, Err: err}
			}
		}
		return nil, err
	})
	observability.RecordTransportRequest(string(KindStream), method, time.Since(start), err == nil)

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		c.drop(w, connErr.Err)
	}
	return value, err
}

// DiscoverTools lists tools in a single round trip
func (c *StreamClient) DiscoverTools(ctx context.Context) ([]ToolDescriptor, error) {
	value, err := c.submit(ctx, "tools/list", func(ctx context.Context, session *client.Client) (any, error) {
		return session.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	result, ok := value.(*mcp.ListToolsResult)
	if !ok || result == nil {
		return nil, fmt.Errorf("tools/list: empty result: %w", ErrDiscovery)
	}

	entries := make([]any, 0, len(result.Tools))
	for _, tool := range result.Tools {
		entries = append(entries, toJSONValue(tool))
	}

	tools := c.catalog.replace(ParseToolList(entries))
	observability.SetDiscoveredTools(string(KindStream), len(tools))

	return tools, nil
}

// CallTool invokes a tool in a single round trip
func (c *StreamClient) CallTool(ctx context.Context, name string, arguments map[string]any) (InvocationResult, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}

	value, err := c.submit(ctx, "tools/call", func(ctx context.Context, session *client.Client) (any, error) {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = arguments
		return session.CallTool(ctx, req)
	})
	if err != nil {
		err = fmt.Errorf("call tool '%s': %w", name, err)
		return failedResult(name, err), err
	}

	return resultFor(name, toJSONValue(value))
}

// toJSONValue converts SDK types into decoded JSON so they follow the
// same parsing and normalization rules as raw wire payloads.
func toJSONValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, ErrTimeout)
	}
	return err
}
