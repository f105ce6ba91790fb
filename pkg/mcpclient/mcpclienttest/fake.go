// Package mcpclienttest provides an in-memory mcpclient.Client for tests.
package mcpclienttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/harun/toolwire/pkg/mcpclient"
)

// Call records one CallTool invocation
type Call struct {
	Name      string
	Arguments map[string]any
}

// Handler answers a tool call with a raw payload that is normalized
// like a transport response would be.
type Handler func(arguments map[string]any) (any, error)

// Client is a scripted mcpclient.Client
type Client struct {
	KindValue     mcpclient.Kind
	EndpointValue string

	// ConnectErr fails every Connect when set
	ConnectErr error
	// DiscoverErr fails every DiscoverTools when set
	DiscoverErr error

	mu       sync.Mutex
	catalog  []mcpclient.ToolDescriptor
	handlers map[string]Handler
	tools    map[string]mcpclient.ToolDescriptor

	connected bool
	connects  int
	closes    int
	calls     []Call
}

// New creates a fake socket client for endpoint
func New(endpoint string) *Client {
	return &Client{
		KindValue:     mcpclient.KindSocket,
		EndpointValue: endpoint,
		handlers:      map[string]Handler{},
	}
}

// AddTool registers a tool and its handler
func (c *Client) AddTool(tool mcpclient.ToolDescriptor, handler Handler) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tool.InputSchema.Type == "" {
		tool.InputSchema = mcpclient.DefaultInputSchema()
	}
	c.catalog = append(c.catalog, tool)
	c.handlers[tool.Name] = handler
	return c
}

func (c *Client) Kind() mcpclient.Kind { return c.KindValue }
func (c *Client) Endpoint() string     { return c.EndpointValue }

func (c *Client) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connects++
	if c.ConnectErr != nil {
		return &mcpclient.ConnectionError{Endpoint: c.EndpointValue, Err: c.ConnectErr}
	}
	c.connected = true
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closes++
	c.connected = false
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) DiscoverTools(ctx context.Context) ([]mcpclient.ToolDescriptor, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DiscoverErr != nil {
		return nil, c.DiscoverErr
	}

	c.tools = make(map[string]mcpclient.ToolDescriptor, len(c.catalog))
	for _, tool := range c.catalog {
		c.tools[tool.Name] = tool
	}
	return append([]mcpclient.ToolDescriptor(nil), c.catalog...), nil
}

func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (mcpclient.InvocationResult, error) {
	if err := c.Connect(ctx); err != nil {
		return mcpclient.InvocationResult{Tool: name, Error: err.Error()}, err
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{Name: name, Arguments: arguments})
	handler, ok := c.handlers[name]
	c.mu.Unlock()

	if !ok {
		err := &mcpclient.RPCError{Code: -32602, Message: fmt.Sprintf("unknown tool %s", name)}
		return mcpclient.InvocationResult{Tool: name, Error: err.Error()}, err
	}

	raw, err := handler(arguments)
	if err != nil {
		return mcpclient.InvocationResult{Tool: name, Error: err.Error()}, err
	}

	res := mcpclient.Normalize(raw)
	res.Tool = name
	return res, nil
}

func (c *Client) Tools() map[string]mcpclient.ToolDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]mcpclient.ToolDescriptor, len(c.tools))
	for name, tool := range c.tools {
		out[name] = tool
	}
	return out
}

// Calls returns the recorded tool calls
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Connects returns how many times Connect was called
func (c *Client) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Closes returns how many times Close was called
func (c *Client) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Text is a handler that always answers with a single text fragment
func Text(text string) Handler {
	return func(map[string]any) (any, error) {
		return map[string]any{"content": []any{map[string]any{"type": "text", "text": text}}}, nil
	}
}
