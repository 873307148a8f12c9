package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CAcquaviva/mcp-konnect/pkg/httputil"
	"github.com/CAcquaviva/mcp-konnect/pkg/konnect"
	"github.com/CAcquaviva/mcp-konnect/pkg/logging"
)

// healthPath serves liveness checks next to the MCP endpoint.
const healthPath = "/health"

// maxRequestBody caps a single JSON-RPC message.
const maxRequestBody = 4 << 20

// invalidSessionText is the plain-text body for GET/DELETE without a usable session.
const invalidSessionText = "Invalid or missing session ID"

// Server is the MCP Streamable HTTP server.
type Server struct {
	config     *Config
	registry   *ToolRegistry
	dispatcher *Dispatcher
	sessions   *SessionManager
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
	stopCh     chan struct{}
	errCh      chan error
	mu         sync.RWMutex
	running    bool
	logMu      sync.RWMutex
	log        *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	observer Observer
	log      *slog.Logger
}

// WithToolObserver reports tool invocations to o.
func WithToolObserver(o Observer) ServerOption {
	return func(so *serverOptions) {
		so.observer = o
	}
}

// WithLogger sets the logger used by the server and its components.
func WithLogger(log *slog.Logger) ServerOption {
	return func(so *serverOptions) {
		so.log = log
	}
}

// NewServer builds the tool registry and dispatcher for api and wires the
// HTTP routes. Registry or routing problems are returned as errors.
func NewServer(cfg *Config, api konnect.API, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid MCP config: %w", err)
	}

	so := &serverOptions{log: logging.Nop()}
	for _, opt := range opts {
		opt(so)
	}
	if so.log == nil {
		so.log = logging.Nop()
	}

	registry, err := DefaultToolRegistry()
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	dispatcher, err := NewDispatcher(registry, api,
		WithObserver(so.observer),
		WithDispatcherLogger(logging.Component(so.log, "dispatcher")),
	)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	s := &Server{
		config:     cfg,
		registry:   registry,
		dispatcher: dispatcher,
		sessions:   NewSessionManager(cfg),
		stopCh:     make(chan struct{}),
		errCh:      make(chan error, 1),
		log:        so.log,
	}
	s.sessions.SetLogger(logging.Component(so.log, "sessions"))
	s.handler = s.routes()
	return s, nil
}

// routes builds the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.accessControl)

	r.Get(healthPath, s.handleHealth)
	r.Post(s.config.Path, s.handlePost)
	r.Get(s.config.Path, s.handleStream)
	r.Delete(s.config.Path, s.handleDelete)
	return r
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly; later serve errors arrive on Errors.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("MCP server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	s.sessions.StartCleanupRoutine(s.config.CleanupInterval, s.stopCh)

	srv := s.httpServer
	log := s.logger()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("MCP server error", "error", err)
			s.errCh <- err
		}
	}()

	s.running = true
	log.Info("MCP server listening", "addr", ln.Addr().String(), "path", s.config.Path)
	return nil
}

// Stop ends SSE streams, drains in-flight requests and closes all sessions.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	close(s.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.sessions.CloseAll()
	s.running = false
	if err != nil {
		return fmt.Errorf("MCP server shutdown: %w", err)
	}
	return nil
}

// Errors delivers a serve error that occurred after Start.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the HTTP handler for the MCP server.
// This is useful for testing without starting the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Tools returns the tool registry.
func (s *Server) Tools() *ToolRegistry {
	return s.registry
}

// SetLogger sets the operational logger for the server.
func (s *Server) SetLogger(log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	s.logMu.Lock()
	s.log = log
	s.logMu.Unlock()
	s.sessions.SetLogger(logging.Component(log, "sessions"))
}

func (s *Server) logger() *slog.Logger {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	return s.log
}

// =============================================================================
// Middleware
// =============================================================================

// logRequests logs one line per request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
			"session", r.Header.Get(HeaderSessionID),
		)
	})
}

// accessControl enforces localhost-only mode and the origin allow-list, and
// answers CORS preflights.
func (s *Server) accessControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.AllowRemote && !isLocalhost(r.RemoteAddr) {
			httputil.WriteForbidden(w, "Remote access not allowed")
			return
		}

		origin := r.Header.Get(HeaderOrigin)
		if origin != "" && !s.isOriginAllowed(origin) {
			httputil.WriteForbidden(w, "Origin not allowed")
			return
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id, MCP-Protocol-Version, Last-Event-ID")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isLocalhost checks if the remote address is localhost.
func isLocalhost(remoteAddr string) bool {
	// Empty address is allowed (test environment or internal calls)
	if remoteAddr == "" {
		return true
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = strings.Trim(remoteAddr, "[]")
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// isOriginAllowed checks if the origin is in the allowed list.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || matchOrigin(origin, allowed) {
			return true
		}
	}
	return false
}

// matchOrigin matches an origin against a pattern (supports * wildcard for port).
func matchOrigin(origin, pattern string) bool {
	if origin == pattern {
		return true
	}

	// Handle wildcard patterns like "http://localhost:*"
	if strings.HasSuffix(pattern, ":*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if !strings.HasPrefix(origin, prefix) {
			return false
		}
		rest := origin[len(prefix):]
		for _, c := range rest {
			if c < '0' || c > '9' {
				return false
			}
		}
		return len(rest) > 0
	}

	return false
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"tools":    len(s.registry.Names()),
	})
}

// handlePost routes a JSON-RPC message to a new or existing session.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(nil, ParseError(err.Error())))
		return
	}
	req, parseErr := ParseRequestBytes(body)
	sessionID := r.Header.Get(HeaderSessionID)

	if sessionID == "" {
		if parseErr != nil || !IsInitializeRequest(req) {
			s.writeBadSession(w)
			return
		}
		s.handleInitialize(w, r, req)
		return
	}

	session, err := s.sessions.Resolve(r.Context(), sessionID)
	if err != nil {
		s.writeBadSession(w)
		return
	}
	if parseErr != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse(nil, parseErr))
		return
	}
	if req.Method == MethodInitialize {
		httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse(req.ID, AlreadyInitializedError()))
		return
	}

	if err := session.Acquire(); err != nil {
		s.writeBadSession(w)
		return
	}
	defer session.Release()
	session.Touch()

	if req.IsNotification() {
		s.handleNotification(session, req)
		httputil.WriteAccepted(w)
		return
	}

	result, rpcErr := s.dispatch(r.Context(), req)
	if rpcErr != nil {
		s.writeResponse(w, r, ErrorResponse(req.ID, rpcErr))
		return
	}
	s.writeResponse(w, r, SuccessResponse(req.ID, result))
}

// handleInitialize runs the two-phase handshake: the session is registered
// as pending, then activated once the params are accepted.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest) {
	session, err := s.sessions.Begin()
	if err != nil {
		s.logger().Warn("rejecting new session", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse(req.ID, ServerBusyError()))
		return
	}
	if err := session.Acquire(); err != nil {
		s.writeBadSession(w)
		return
	}

	params, rpcErr := UnmarshalParamsRequired[InitializeParams](req.Params)
	if rpcErr != nil {
		session.Release()
		s.sessions.Abort(session.ID)
		httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse(req.ID, rpcErr))
		return
	}

	version := NegotiateProtocolVersion(params.ProtocolVersion)
	err = s.sessions.Activate(session.ID, version, params.ClientInfo)
	session.Release()
	if err != nil {
		s.sessions.Abort(session.ID)
		s.writeBadSession(w)
		return
	}

	w.Header().Set(HeaderSessionID, session.ID)
	s.writeResponse(w, r, SuccessResponse(req.ID, &InitializeResult{
		ProtocolVersion: version,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Instructions: "Tools for managing and analyzing Kong Konnect API Gateway configurations and traffic",
	}))
}

// handleNotification consumes client notifications; none produce a response.
func (s *Server) handleNotification(session *Session, req *JSONRPCRequest) {
	switch req.Method {
	case MethodInitialized:
		s.logger().Debug("client ready", "session", session.ID)
	default:
		s.logger().Debug("ignoring notification", "session", session.ID, "method", req.Method)
	}
}

// dispatch routes a request to its method handler.
func (s *Server) dispatch(ctx context.Context, req *JSONRPCRequest) (interface{}, *JSONRPCError) {
	switch req.Method {
	case MethodPing:
		return map[string]interface{}{}, nil

	case MethodToolsList:
		return &ToolsListResult{Tools: s.registry.List()}, nil

	case MethodToolsCall:
		params, err := UnmarshalParamsRequired[ToolCallParams](req.Params)
		if err != nil {
			return nil, err
		}
		if params.Name == "" {
			return nil, InvalidParamsError("tool name is required")
		}
		// Tool failures are reported in the result, not as JSON-RPC errors.
		return s.dispatcher.Dispatch(ctx, params.Name, params.Arguments), nil

	default:
		return nil, MethodNotFoundError(req.Method)
	}
}

// handleStream serves the server-to-client SSE stream of a session.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	info := ExtractRequestInfo(r)
	session, err := s.sessions.Resolve(r.Context(), info.SessionID)
	if err != nil {
		httputil.WriteBadRequest(w, invalidSessionText)
		return
	}
	if !info.WantsSSE() {
		httputil.WriteText(w, http.StatusNotAcceptable, "Not Acceptable: Client must accept text/event-stream")
		return
	}
	if !session.claimStream() {
		httputil.WriteConflict(w, "Conflict: Only one SSE stream is allowed per session")
		return
	}
	defer session.releaseStream()

	sse, err := NewSSEWriter(w)
	if err != nil {
		httputil.WriteText(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	defer sse.Close()
	sse.WriteHeaders()

	keepalive := time.NewTicker(s.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.stopCh:
			return
		case notif, ok := <-session.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(notif)
			if err != nil {
				s.logger().Warn("dropping unencodable notification", "session", session.ID, "error", err)
				continue
			}
			if err := sse.WriteMessage(data); err != nil {
				return
			}
		case <-keepalive.C:
			if err := sse.WriteKeepalive(); err != nil {
				return
			}
			session.Touch()
		}
	}
}

// handleDelete terminates a session.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(HeaderSessionID)
	if _, err := s.sessions.Resolve(r.Context(), id); err != nil {
		httputil.WriteBadRequest(w, invalidSessionText)
		return
	}
	s.sessions.Close(id)
	httputil.WriteNoContent(w)
}

// writeBadSession answers a POST that names no usable session.
func (s *Server) writeBadSession(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse(nil, BadRequestError()))
}

// writeResponse writes a JSON-RPC response as JSON, or as a single SSE
// message event when the client only accepts event streams.
func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, resp *JSONRPCResponse) {
	info := ExtractRequestInfo(r)
	if info.WantsJSON() || !info.WantsSSE() {
		httputil.WriteOK(w, resp)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		httputil.WriteOK(w, resp)
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, ErrorResponse(resp.ID, InternalError(err)))
		return
	}
	sse.WriteHeaders()
	if err := sse.WriteMessage(data); err != nil {
		s.logger().Debug("failed to write SSE response", "error", err)
	}
	sse.Close()
}
