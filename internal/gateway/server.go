package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/z8n24/codexmonitor-go/internal/config"
	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
)

const (
	Version = "0.1.0"

	tickInterval = 30 * time.Second
	maxFrameSize = 8 << 20
)

// Server is the daemon: a WebSocket endpoint plus a small HTTP API, both
// backed by one Dispatcher.
type Server struct {
	addr  string
	token string

	dispatcher *Dispatcher
	router     *gin.Engine
	upgrader   websocket.Upgrader

	clients  map[string]*Client
	clientMu sync.RWMutex

	httpServer *http.Server
	startedAt  time.Time

	statusMu sync.RWMutex
	status   map[string]func() any

	ctx    context.Context
	cancel context.CancelFunc
}

// Client is one authenticated WebSocket connection.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Info        protocol.ClientInfo
	ConnectedAt time.Time

	sendMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a daemon server.
func NewServer(cfg config.DaemonConfig, dispatcher *Dispatcher) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:       cfg.Addr(),
		token:      cfg.Token,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024 * 64,
			WriteBufferSize: 1024 * 64,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[string]*Client),
		status:    make(map[string]func() any),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", s.handleWebSocket)

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.POST("/rpc", s.requireToken, s.handleRPC)
	}
	return router
}

// AddStatus adds a section to /api/status, computed on each request.
func (s *Server) AddStatus(name string, fn func() any) {
	s.statusMu.Lock()
	s.status[name] = fn
	s.statusMu.Unlock()
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.httpServer = &http.Server{Handler: s.router}

	log.Info().Str("addr", ln.Addr().String()).Bool("auth", s.token != "").Msg("Starting daemon")
	go s.tickLoop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop announces shutdown, closes clients and stops the HTTP server.
func (s *Server) Stop() error {
	s.BroadcastEvent("shutdown", &protocol.ShutdownEvent{Reason: "daemon stopping"})
	s.cancel()

	s.clientMu.Lock()
	for _, client := range s.clients {
		client.cancel()
		client.Conn.Close()
	}
	s.clientMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) tokenOK(got string) bool {
	if s.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket")
		return
	}
	conn.SetReadLimit(maxFrameSize)

	connID := uuid.New().String()

	// The first message must be the connect params.
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read connect message")
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	var params protocol.ConnectParams
	if err := json.Unmarshal(msg, &params); err != nil {
		s.rejectConn(conn, protocol.ErrorCodes.InvalidRequest, "invalid connect params")
		return
	}
	token := ""
	if params.Auth != nil {
		token = params.Auth.Token
	}
	if !s.tokenOK(token) {
		s.rejectConn(conn, protocol.ErrorCodes.Unauthorized, "invalid token")
		return
	}
	if params.MinProtocol > protocol.ProtocolVersion || (params.MaxProtocol != 0 && params.MaxProtocol < protocol.ProtocolVersion) {
		s.rejectConn(conn, protocol.ErrorCodes.InvalidRequest,
			fmt.Sprintf("protocol %d-%d not supported, daemon speaks %d", params.MinProtocol, params.MaxProtocol, protocol.ProtocolVersion))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		ID:          connID,
		Conn:        conn,
		Info:        params.Client,
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if err := client.send(s.buildHelloOK(connID)); err != nil {
		log.Error().Err(err).Msg("Failed to send hello-ok")
		cancel()
		conn.Close()
		return
	}

	s.clientMu.Lock()
	s.clients[connID] = client
	s.clientMu.Unlock()

	log.Info().
		Str("connId", connID).
		Str("clientId", client.Info.ID).
		Str("platform", client.Info.Platform).
		Msg("Client connected")

	go s.handleClient(client)
}

func (s *Server) rejectConn(conn *websocket.Conn, code, message string) {
	conn.WriteJSON(&protocol.ResponseFrame{
		Type:     protocol.FrameTypeResponse,
		Envelope: *protocol.EncodeFailure(errors.New(message)),
		Code:     code,
	})
	conn.Close()
}

func (s *Server) handleClient(client *Client) {
	defer func() {
		client.cancel()
		s.clientMu.Lock()
		delete(s.clients, client.ID)
		s.clientMu.Unlock()
		client.Conn.Close()
		log.Info().Str("connId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, msg, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connId", client.ID).Msg("WebSocket read error")
			}
			return
		}

		frame, err := protocol.ParseFrame(msg)
		if err != nil {
			log.Warn().Err(err).Str("connId", client.ID).Msg("Failed to parse frame")
			continue
		}

		switch f := frame.(type) {
		case *protocol.RequestFrame:
			go s.handleRequest(client, f)
		case *protocol.EventFrame:
			log.Debug().Str("event", f.Event).Msg("Received event from client")
		}
	}
}

func (s *Server) handleRequest(client *Client, req *protocol.RequestFrame) {
	start := time.Now()
	env, code := s.call(client.ctx, req.Method, req.Params)

	// A call whose connection went away gets no response.
	if client.ctx.Err() != nil {
		log.Debug().Str("method", req.Method).Str("id", req.ID).Msg("Dropping response for closed connection")
		return
	}
	log.Debug().
		Str("method", req.Method).
		Str("id", req.ID).
		Bool("ok", env.OK).
		Dur("took", time.Since(start)).
		Msg("Handled request")

	if err := client.send(&protocol.ResponseFrame{
		Type:     protocol.FrameTypeResponse,
		ID:       req.ID,
		Envelope: *env,
		Code:     code,
	}); err != nil {
		log.Warn().Err(err).Str("connId", client.ID).Msg("Failed to send response")
	}
}

// call dispatches one request. Unknown methods become a coded failure.
func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (*protocol.Envelope, string) {
	env, ok := s.dispatcher.Dispatch(ctx, method, params)
	if !ok {
		return protocol.EncodeFailure(fmt.Errorf("unsupported method: %s", method)), protocol.ErrorCodes.MethodNotFound
	}
	return env, ""
}

func (c *Client) send(v any) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.Conn.WriteJSON(v)
}

// BroadcastEvent pushes an event to every connected client.
func (s *Server) BroadcastEvent(event string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal event payload")
			return
		}
	}
	frame := &protocol.EventFrame{
		Type:    protocol.FrameTypeEvent,
		Event:   event,
		Payload: raw,
	}

	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, client := range s.clients {
		if err := client.send(frame); err != nil {
			log.Debug().Err(err).Str("connId", client.ID).Msg("Failed to send event")
		}
	}
}

func (s *Server) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastEvent("tick", &protocol.TickEvent{Ts: time.Now().UnixMilli()})
		}
	}
}

func (s *Server) buildHelloOK(connID string) *protocol.HelloOK {
	host, _ := os.Hostname()
	return &protocol.HelloOK{
		Type:     "hello-ok",
		Protocol: protocol.ProtocolVersion,
		Server: protocol.ServerInfo{
			Version: Version,
			Host:    host,
			ConnID:  connID,
		},
		Features: protocol.Features{
			Methods: protocol.SupportedMethods(),
			Events:  protocol.SupportedEvents,
		},
	}
}

// HTTP handlers

// rpcRequest is the bare {"method", "params"} wire request.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) requireToken(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !s.tokenOK(token) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, protocol.NewError(protocol.ErrorCodes.Unauthorized, "invalid token"))
		return
	}
	c.Next()
}

func (s *Server) handleRPC(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Method == "" {
		c.JSON(http.StatusBadRequest, protocol.NewError(protocol.ErrorCodes.InvalidRequest, "expected {\"method\", \"params\"}"))
		return
	}

	env, code := s.call(c.Request.Context(), req.Method, req.Params)
	if c.Request.Context().Err() != nil {
		return
	}
	if code == protocol.ErrorCodes.MethodNotFound {
		c.JSON(http.StatusNotFound, env)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (s *Server) handleStatus(c *gin.Context) {
	s.clientMu.RLock()
	clientCount := len(s.clients)
	s.clientMu.RUnlock()

	body := gin.H{
		"version":  Version,
		"protocol": protocol.ProtocolVersion,
		"clients":  clientCount,
		"methods":  len(protocol.AllMethods),
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
	}
	s.statusMu.RLock()
	for name, fn := range s.status {
		body[name] = fn()
	}
	s.statusMu.RUnlock()
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
