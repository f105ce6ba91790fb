package mcpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSSEMCPServer() *server.MCPServer {
	s := server.NewMCPServer("stream-test", "1.0.0", server.WithToolCapabilities(true))

	s.AddTool(
		mcp.NewTool("read_file_mcp", mcp.WithDescription("Returns a fixed greeting")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("hello world"), nil
		},
	)
	s.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echoes text"),
			mcp.WithString("text", mcp.Required(), mcp.Description("text to echo")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			text, _ := args["text"].(string)
			if text == "" {
				return mcp.NewToolResultError("text is required"), nil
			}
			return mcp.NewToolResultText(text), nil
		},
	)

	return s
}

func newSSETestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := server.NewTestServer(newSSEMCPServer())
	t.Cleanup(ts.Close)
	return ts
}

// serveSSE serves a fresh MCP server on addr. Closing it drops every
// open stream at once.
func serveSSE(t *testing.T, addr string) *http.Server {
	t.Helper()

	var ln net.Listener
	require.Eventually(t, func() bool {
		var err error
		ln, err = net.Listen("tcp", addr)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	srv := &http.Server{Handler: server.NewSSEServer(newSSEMCPServer()), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newTestStreamClient(t *testing.T, ts *httptest.Server) *StreamClient {
	t.Helper()
	c, err := NewStreamClient(ts.URL+"/sse", WithClientInfo("stream-tester", "0.0.1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewStreamClientRejectsWebsocketURL(t *testing.T) {
	_, err := NewStreamClient("ws://localhost:8000/sse")
	assert.Error(t, err)
}

func TestStreamClientDiscoverAndCall(t *testing.T) {
	ts := newSSETestServer(t)
	c := newTestStreamClient(t, ts)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
	assert.Equal(t, "stream-test", c.ServerInfo()["name"])

	tools, err := c.DiscoverTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	byName := c.Tools()
	require.Contains(t, byName, "echo")
	assert.Equal(t, []string{"text"}, byName["echo"].InputSchema.Required)
	assert.Equal(t, "string", byName["echo"].InputSchema.Properties["text"].Type)

	res, err := c.CallTool(context.Background(), "read_file_mcp", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hello world", res.Content)

	res, err = c.CallTool(context.Background(), "echo", map[string]any{"text": "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", res.Content)
}

func TestStreamClientToolError(t *testing.T) {
	ts := newSSETestServer(t)
	c := newTestStreamClient(t, ts)

	res, err := c.CallTool(context.Background(), "echo", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvocation)
	assert.False(t, res.Success)
	assert.Equal(t, "text is required", res.Content)
}

func TestStreamClientConnectFailure(t *testing.T) {
	ts := newSSETestServer(t)
	url := ts.URL + "/sse"
	ts.Close()

	c, err := NewStreamClient(url)
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.Connected())
	assert.Nil(t, c.currentWorker())
}

func TestStreamClientCloseIsIdempotent(t *testing.T) {
	ts := newSSETestServer(t)
	c := newTestStreamClient(t, ts)

	require.NoError(t, c.Connect(context.Background()))
	w := c.currentWorker()
	require.NotNil(t, w)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.False(t, c.Connected())

	_, err := w.Submit(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
	assert.True(t, errors.Is(err, ErrWorkerStopped))
}

func TestStreamClientReconnectsAfterServerRestart(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := serveSSE(t, addr)

	c, err := NewStreamClient("http://"+addr+"/sse", WithRequestTimeout(3*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	tools, err := c.DiscoverTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	require.NoError(t, srv.Close())
	serveSSE(t, addr)

	// Connect on a connected client checks the session and reopens it
	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.Connected())
	tools, err = c.DiscoverTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestStreamClientDropsSessionOnFailedRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := serveSSE(t, addr)

	c, err := NewStreamClient("http://"+addr+"/sse", WithRequestTimeout(3*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, err = c.DiscoverTools(ctx)
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	serveSSE(t, addr)

	_, err = c.DiscoverTools(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.Connected())

	res, err := c.CallTool(ctx, "read_file_mcp", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Content)
	assert.True(t, c.Connected())
}
