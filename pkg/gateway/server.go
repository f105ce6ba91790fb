package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/toolwire/internal/observability"
)

// ProtocolVersion is answered when the client sends none
const ProtocolVersion = "2024-11-05"

// Server is the demo tool server. It serves one toolbox over a websocket
// JSON-RPC endpoint, REST-style shim routes and an SSE session.
type Server struct {
	cfg         Config
	toolbox     *Toolbox
	router      *RPCRouter
	clients     *ClientRegistry
	broadcaster *NotificationBroadcaster
	upgrader    websocket.Upgrader
	mcp         *server.MCPServer
	sse         *server.SSEServer
	logger      zerolog.Logger

	httpServer *http.Server
	listener   net.Listener
	cancelBase context.CancelFunc

	// drainMu orders inFlight.Add against the Wait in drain.
	drainMu      sync.RWMutex
	shuttingDown atomic.Bool
	inFlight     sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Root        string // directory served by read_file
	DefaultPath string
	PageSize    int // tools/list page size on the socket endpoint

	RequestsPerMinute int
	MaxConcurrent     int

	Name    string
	Version string
	Logger  *zerolog.Logger
}

// NewServer creates a server for tools, or for DefaultTools when none are given
func NewServer(cfg Config, tools ...Tool) (*Server, error) {
	observability.EnsureRegistered()

	if cfg.Port < 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Name == "" {
		cfg.Name = "toolwire-demo"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 600
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 10
	}
	if len(tools) == 0 {
		tools = DefaultTools(cfg.Root, cfg.DefaultPath)
	}

	toolbox, err := NewToolbox(tools...)
	if err != nil {
		return nil, err
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "gateway").Logger()

	clients := NewClientRegistry()
	s := &Server{
		cfg:         cfg,
		toolbox:     toolbox,
		router:      NewRPCRouter(),
		clients:     clients,
		broadcaster: NewNotificationBroadcaster(clients, logger),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.mcp = newMCPServer(cfg.Name, cfg.Version, toolbox)
	s.sse = server.NewSSEServer(s.mcp)
	s.registerMethods()

	return s, nil
}

// Handler returns the routes of every transport
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/sse", s.sse)
	mux.Handle("/message", s.sse)
	s.registerShimRoutes(mux)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	// SSE streams end when the base context is cancelled on Stop.
	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancelBase = cancel
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("tools", len(s.toolbox.List())).
		Msg("Starting tool server")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Tool server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// drain refuses new socket requests and waits for the running ones
// until ctx ends.
func (s *Server) drain(ctx context.Context) {
	s.drainMu.Lock()
	s.shuttingDown.Store(true)
	s.drainMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached, forcing close")
	}
}

// Stop drains in-flight socket requests and shuts the listener down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down tool server")
	s.drain(ctx)

	for _, client := range s.clients.Snapshot() {
		_ = client.Conn.Close()
	}

	if s.httpServer == nil {
		return nil
	}
	s.cancelBase()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Tool server stopped")
	return nil
}

// RegisterTool adds a tool at runtime and tells socket clients the list changed
func (s *Server) RegisterTool(t Tool) error {
	if err := s.toolbox.Register(t); err != nil {
		return err
	}
	s.mcp.AddTool(mcpTool(t), mcpHandler(s.toolbox, t.Name))
	s.broadcaster.Notify("notifications/tools/list_changed", nil)
	return nil
}

// Tools returns the served tools
func (s *Server) Tools() []Tool {
	return s.toolbox.List()
}

// GetConnectedClients returns the connected socket clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Infos()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"tools":   len(s.toolbox.List()),
		"clients": s.clients.Count(),
	})
}

func (s *Server) registerMethods() {
	_ = s.router.RegisterMethod("initialize", s.handleInitialize)
	_ = s.router.RegisterMethod("notifications/initialized", func(context.Context, map[string]any) (any, error) {
		return nil, nil
	})
	_ = s.router.RegisterMethod("ping", func(context.Context, map[string]any) (any, error) {
		return map[string]any{}, nil
	})
	_ = s.router.RegisterMethod("tools/list", s.handleToolsList)
	_ = s.router.RegisterMethod("tools/call", s.handleToolsCall)
}

func (s *Server) handleInitialize(ctx context.Context, params map[string]any) (any, error) {
	version, _ := params["protocolVersion"].(string)
	if version == "" {
		version = ProtocolVersion
	}

	if info, ok := params["clientInfo"].(map[string]any); ok {
		s.logger.Info().
			Str("clientId", clientIDFromContext(ctx)).
			Interface("clientInfo", info).
			Msg("Client initialized")
	}

	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": true},
		},
		"serverInfo": map[string]any{
			"name":    s.cfg.Name,
			"version": s.cfg.Version,
		},
	}, nil
}

// handleToolsList pages through the toolbox. The cursor is the decimal
// offset of the next page.
func (s *Server) handleToolsList(_ context.Context, params map[string]any) (any, error) {
	tools := s.toolbox.List()

	offset := 0
	if cursor, ok := params["cursor"].(string); ok && cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(tools) {
			return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid cursor %q", cursor)}
		}
		offset = n
	}

	end := offset + s.cfg.PageSize
	if end > len(tools) {
		end = len(tools)
	}

	page := make([]any, 0, end-offset)
	for _, t := range tools[offset:end] {
		page = append(page, t.Descriptor())
	}

	result := map[string]any{"tools": page}
	if end < len(tools) {
		result["nextCursor"] = strconv.Itoa(end)
	}
	return result, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params map[string]any) (any, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, &RPCError{Code: InvalidParams, Message: "missing tool name"}
	}
	args, _ := params["arguments"].(map[string]any)

	text, err := s.toolbox.Call(ctx, name, args)
	if errors.Is(err, ErrUnknownTool) {
		return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("Unknown tool: %s", name)}
	}
	return callResult(text, err), nil
}

// handleWebSocket handles websocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:          clientID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		IPAddress:   r.RemoteAddr,
		RateLimiter: NewClientRateLimiter(s.cfg.RequestsPerMinute, s.cfg.MaxConcurrent),
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	go s.handleClient(client)
}

// handleClient reads frames from a client until it disconnects
func (s *Server) handleClient(client *Client) {
	defer func() {
		_ = client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	ctx := withClient(context.Background(), "websocket", client.ID)

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.handleMessage(ctx, client, message)
	}
}

// handleMessage handles a single frame from a client
func (s *Server) handleMessage(ctx context.Context, client *Client, message []byte) {
	req, err := s.router.ParseRequest(message)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: ParseError, Message: err.Error()}
		}
		s.send(client, &RPCResponse{JSONRPC: "2.0", ID: []byte("null"), Error: rpcErr})
		return
	}

	s.clients.Touch(client.ID, req.Method)

	if rpcErr := client.RateLimiter.Begin(); rpcErr != nil {
		if !req.IsNotification() {
			s.send(client, &RPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		}
		return
	}

	s.drainMu.RLock()
	if s.shuttingDown.Load() {
		s.drainMu.RUnlock()
		client.RateLimiter.End()
		if !req.IsNotification() {
			s.send(client, errorResponse(req.ID, ServerShuttingDown, "server is shutting down"))
		}
		return
	}
	s.inFlight.Add(1)
	s.drainMu.RUnlock()

	go func() {
		defer s.inFlight.Done()
		defer client.RateLimiter.End()

		if resp := s.router.RouteRequest(ctx, req); resp != nil {
			s.send(client, resp)
		}
	}()
}

func (s *Server) send(client *Client, resp *RPCResponse) {
	if err := client.WriteJSON(resp); err != nil {
		s.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			RawJSON("requestId", resp.ID).
			Msg("Failed to send response")
	}
}
