package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/harun/toolwire/internal/observability"
)

// probe is one candidate endpoint shape of the HTTP shim
type probe struct {
	method string
	path   func(tool string) string
	body   func(tool string, arguments map[string]any) any
}

func (p probe) label(tool string) string {
	return p.method + " " + p.path(tool)
}

func staticPath(path string) func(string) string {
	return func(string) string { return path }
}

func toolPath(prefix string) func(string) string {
	return func(tool string) string { return prefix + url.PathEscape(tool) }
}

// Discovery probes, in the order servers are tried.
var discoveryProbes = []probe{
	{method: http.MethodPost, path: staticPath("mcp/tools/list"), body: func(string, map[string]any) any { return map[string]any{} }},
	{method: http.MethodPost, path: staticPath("tools/list"), body: func(string, map[string]any) any { return map[string]any{"method": "tools/list"} }},
	{method: http.MethodGet, path: staticPath("mcp/tools/list")},
	{method: http.MethodGet, path: staticPath("tools/list")},
}

// Invocation probes, in the order servers are tried. Some servers only
// accept one of these shapes, so the order is part of the contract.
var invocationProbes = []probe{
	{method: http.MethodPost, path: staticPath("call_tool"), body: func(tool string, args map[string]any) any {
		return map[string]any{"tool_name": tool, "arguments": args}
	}},
	{method: http.MethodPost, path: staticPath("tools/call"), body: func(tool string, args map[string]any) any {
		return map[string]any{"name": tool, "arguments": args}
	}},
	{method: http.MethodPost, path: staticPath("mcp/tools/call"), body: func(tool string, args map[string]any) any {
		return map[string]any{"name": tool, "arguments": args}
	}},
	{method: http.MethodPost, path: toolPath("tools/"), body: bareArguments},
	{method: http.MethodPost, path: toolPath("invoke/"), body: bareArguments},
	{method: http.MethodPost, path: toolPath("mcp/"), body: bareArguments},
}

func bareArguments(_ string, args map[string]any) any {
	return args
}

// Locations of the tool list in discovery responses, first non-empty wins.
var toolListPaths = []string{"tools", "result.tools", "data", "items"}

// HTTPClient talks to REST-style shims. It holds no connection; Connect
// only marks the client ready.
type HTTPClient struct {
	endpoint string
	base     string
	opts     Options
	http     *http.Client
	ready    atomic.Bool
	catalog  catalog
}

// NewHTTPClient creates a shim client. ws:// endpoints are mapped onto http://.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	base := NormalizeHTTPBase(endpoint)
	if base == "" {
		return nil, fmt.Errorf("base URL must be provided")
	}

	o := buildOptions(opts)
	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &HTTPClient{
		endpoint: endpoint,
		base:     base,
		opts:     o,
		http:     httpClient,
	}, nil
}

func (c *HTTPClient) Kind() Kind       { return KindHTTP }
func (c *HTTPClient) Endpoint() string { return c.endpoint }
func (c *HTTPClient) Connected() bool  { return c.ready.Load() }

// BaseURL returns the normalized base all probe paths are joined to
func (c *HTTPClient) BaseURL() string { return c.base }

func (c *HTTPClient) Tools() map[string]ToolDescriptor {
	return c.catalog.snapshot()
}

func (c *HTTPClient) Connect(context.Context) error {
	c.ready.Store(true)
	return nil
}

func (c *HTTPClient) Close() error {
	c.ready.Store(false)
	c.catalog.clear()
	c.http.CloseIdleConnections()
	return nil
}

// DiscoverTools tries each discovery probe until one yields named tools.
// A server that answers every probe with an empty list gives an empty
// catalog; ErrDiscovery is returned only when probes failed outright.
func (c *HTTPClient) DiscoverTools(ctx context.Context) ([]ToolDescriptor, error) {
	_ = c.Connect(ctx)

	var lastErr error
	for _, p := range discoveryProbes {
		label := p.label("")

		body, contentType, err := c.send(ctx, p.method, p.path(""), p.bodyFor("", nil))
		if err != nil {
			observability.RecordHTTPProbe(label, false)
			log.Debug().Err(err).Str("probe", label).Msg("Discovery probe failed")
			lastErr = err
			continue
		}

		tools := ParseToolList(extractToolList(body, contentType))
		if len(tools) == 0 {
			observability.RecordHTTPProbe(label, false)
			continue
		}

		observability.RecordHTTPProbe(label, true)
		tools = c.catalog.replace(tools)
		observability.SetDiscoveredTools(string(KindHTTP), len(tools))

		log.Debug().Str("probe", label).Int("tools", len(tools)).Msg("Discovered tools via HTTP")
		return tools, nil
	}

	c.catalog.replace(nil)
	observability.SetDiscoveredTools(string(KindHTTP), 0)

	if lastErr != nil {
		return []ToolDescriptor{}, fmt.Errorf("tools/list via HTTP on %s: %v: %w", c.base, lastErr, ErrDiscovery)
	}
	return []ToolDescriptor{}, nil
}

// CallTool tries each invocation probe in order; the first 2xx response
// with a readable body wins.
func (c *HTTPClient) CallTool(ctx context.Context, name string, arguments map[string]any) (InvocationResult, error) {
	_ = c.Connect(ctx)

	if arguments == nil {
		arguments = map[string]any{}
	}

	var lastErr error
	for _, p := range invocationProbes {
		label := p.label(name)

		body, contentType, err := c.send(ctx, p.method, p.path(name), p.bodyFor(name, arguments))
		if err == nil {
			var payload any
			payload, err = decodeBody(body, contentType)
			if err == nil {
				observability.RecordHTTPProbe(label, true)
				return resultFor(name, payload)
			}
		}

		observability.RecordHTTPProbe(label, false)
		log.Debug().Err(err).Str("probe", label).Msg("Invocation probe failed")
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("Could not call tool '%s' via HTTP. Last error: %v: %w", name, lastErr, ErrInvocation)
	return failedResult(name, err), err
}

func (p probe) bodyFor(tool string, args map[string]any) any {
	if p.body == nil {
		return nil
	}
	return p.body(tool, args)
}

// send performs one probe request under the per-request timeout and
// returns the body of a 2xx response.
func (c *HTTPClient) send(ctx context.Context, method, path string, payload any) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HTTPTimeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.base + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordTransportRequest(string(KindHTTP), path, time.Since(start), false)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, "", fmt.Errorf("%s %s: %w", method, target, ErrTimeout)
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	ok := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	observability.RecordTransportRequest(string(KindHTTP), path, time.Since(start), ok)

	if err != nil {
		return nil, "", fmt.Errorf("%s %s: read body: %w", method, target, err)
	}
	if !ok {
		return nil, "", fmt.Errorf("%s %s: %s", method, target, resp.Status)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// decodeBody parses JSON bodies and wraps anything else as {content: text}
func decodeBody(body []byte, contentType string) (any, error) {
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return map[string]any{"content": string(body)}, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode JSON response: %w", err)
	}
	return payload, nil
}

// extractToolList finds the tool entries in a JSON discovery response
func extractToolList(body []byte, contentType string) []any {
	if !strings.Contains(strings.ToLower(contentType), "application/json") || !gjson.ValidBytes(body) {
		return nil
	}

	root := gjson.ParseBytes(body)
	var list gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.IsObject():
		for _, path := range toolListPaths {
			r := root.Get(path)
			if r.IsArray() && len(r.Array()) > 0 {
				list = r
				break
			}
		}
	}

	if !list.IsArray() {
		return nil
	}

	entries, _ := list.Value().([]any)
	return entries
}
