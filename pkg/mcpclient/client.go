package mcpclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Client is the capability contract shared by every transport
type Client interface {
	// Connect opens the transport. It is idempotent.
	Connect(ctx context.Context) error
	// Close releases the transport. It is idempotent.
	Close() error
	Connected() bool
	// DiscoverTools refreshes and returns the tool catalog.
	DiscoverTools(ctx context.Context) ([]ToolDescriptor, error)
	// CallTool invokes a tool and normalizes its response.
	CallTool(ctx context.Context, name string, arguments map[string]any) (InvocationResult, error)
	// Tools returns a copy of the cached catalog.
	Tools() map[string]ToolDescriptor
	Kind() Kind
	Endpoint() string
}

// Options configures a transport client
type Options struct {
	ClientName     string
	ClientVersion  string
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration
	HTTPClient     *http.Client
}

// Option mutates Options
type Option func(*Options)

// WithClientInfo sets the identity sent in the initialize handshake
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientName = name
		o.ClientVersion = version
	}
}

// WithRequestTimeout bounds how long a socket or SSE request may wait for its response
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.RequestTimeout = d
		}
	}
}

// WithHTTPTimeout bounds each HTTP shim probe
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HTTPTimeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used by the shim
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

func defaultOptions() Options {
	return Options{
		ClientName:     "toolwire",
		ClientVersion:  "0.1.0",
		RequestTimeout: 30 * time.Second,
		HTTPTimeout:    10 * time.Second,
	}
}

func buildOptions(opts []Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a client for the given transport kind
func New(kind Kind, endpoint string, opts ...Option) (Client, error) {
	switch kind {
	case KindSocket:
		return NewSocketClient(endpoint, opts...)
	case KindStream:
		return NewStreamClient(endpoint, opts...)
	case KindHTTP:
		return NewHTTPClient(endpoint, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport %q", kind)
	}
}

var readFileCandidates = []string{"read_file", "readfile", "read_file_mcp"}

// ReadFile calls the first cached file-reading tool with {"path": path}.
// Failures come back as text, never as an error.
func ReadFile(ctx context.Context, c Client, path string) string {
	tools := c.Tools()
	for _, name := range readFileCandidates {
		if _, ok := tools[name]; !ok {
			continue
		}
		res, err := c.CallTool(ctx, name, map[string]any{"path": path})
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return res.Content
	}
	return fmt.Sprintf("Error: no read_file tool registered on %s", c.Endpoint())
}

// catalog caches the descriptors of one session
type catalog struct {
	mu    sync.RWMutex
	tools map[string]ToolDescriptor
}

// replace swaps in a freshly discovered list and returns it deduplicated:
// first-seen order, last-seen value.
func (c *catalog) replace(list []ToolDescriptor) []ToolDescriptor {
	index := make(map[string]int, len(list))
	out := make([]ToolDescriptor, 0, len(list))
	for _, tool := range list {
		if i, ok := index[tool.Name]; ok {
			out[i] = tool
			continue
		}
		index[tool.Name] = len(out)
		out = append(out, tool)
	}

	tools := make(map[string]ToolDescriptor, len(out))
	for _, tool := range out {
		tools[tool.Name] = tool
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()

	return out
}

func (c *catalog) snapshot() map[string]ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ToolDescriptor, len(c.tools))
	for name, tool := range c.tools {
		out[name] = tool
	}
	return out
}

func (c *catalog) clear() {
	c.mu.Lock()
	c.tools = nil
	c.mu.Unlock()
}
