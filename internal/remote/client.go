// Package remote forwards catalog calls to a codexmonitor daemon over a
// WebSocket.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
)

// ErrNotConnected is returned by Send after Close.
var ErrNotConnected = errors.New("remote backend is not connected")

// TransportError reports a call that never produced an envelope: the
// connection failed, was rejected, or dropped mid-call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote backend %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	URL         string
	Token       string
	DialTimeout time.Duration
	ClientID    string
	Version     string
}

// Client is a multiplexed request/response connection to the daemon.
// The connection is opened lazily and reopened after a drop; individual
// calls are never retried.
type Client struct {
	opts   Options
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	hello   *protocol.HelloOK
	pending map[string]chan *protocol.ResponseFrame
	closed  bool

	writeMu sync.Mutex
}

// New creates a Client. No connection is made until the first call.
func New(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.ClientID == "" {
		opts.ClientID = "codexmonitor-cli"
	}
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		pending: make(map[string]chan *protocol.ResponseFrame),
	}
}

// Hello returns the daemon's handshake answer from the current connection.
func (c *Client) Hello() *protocol.HelloOK {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// Connect opens the connection now instead of on the first call.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

// Send issues one call and waits for its envelope. If ctx ends first the
// call is abandoned and ctx.Err() is returned.
func (c *Client) Send(ctx context.Context, method protocol.Method, params json.RawMessage) (*protocol.Envelope, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	ch := make(chan *protocol.ResponseFrame, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	req := &protocol.RequestFrame{
		Type:   protocol.FrameTypeRequest,
		ID:     id,
		Method: string(method),
		Params: params,
	}
	if err := c.write(conn, req); err != nil {
		c.drop(conn, err)
		return nil, &TransportError{Op: "send", Err: err}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, &TransportError{Op: "receive", Err: errors.New("connection closed before response")}
		}
		if resp.Code != "" {
			return nil, &TransportError{Op: "call " + string(method), Err: protocol.NewError(resp.Code, resp.Error)}
		}
		env := resp.Envelope
		return &env, nil
	}
}

// Close shuts the connection and fails pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.drop(conn, ErrNotConnected)
	return nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.DialTimeout))
	return conn.WriteJSON(v)
}

// connect returns the live connection, dialing with backoff if needed.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 0

	var (
		conn  *websocket.Conn
		hello *protocol.HelloOK
	)
	err := backoff.Retry(func() error {
		var err error
		conn, hello, err = c.dial(dialCtx)
		var shape *protocol.ErrorShape
		if errors.As(err, &shape) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Debug().Err(err).Str("url", c.opts.URL).Msg("Dial failed, retrying")
		}
		return err
	}, backoff.WithContext(policy, dialCtx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, ErrNotConnected
	}
	if c.conn != nil {
		// Lost a race with another caller.
		existing := c.conn
		c.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	c.conn = conn
	c.hello = hello
	c.mu.Unlock()

	log.Debug().Str("url", c.opts.URL).Str("connId", hello.Server.ConnID).Msg("Connected to daemon")
	go c.readLoop(conn)
	return conn, nil
}

// dial opens the socket and performs the connect/hello-ok exchange.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, *protocol.HelloOK, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return nil, nil, err
	}

	params := protocol.ConnectParams{
		MinProtocol: protocol.ProtocolVersion,
		MaxProtocol: protocol.ProtocolVersion,
		Client: protocol.ClientInfo{
			ID:       c.opts.ClientID,
			Version:  c.opts.Version,
			Platform: runtime.GOOS,
		},
	}
	if c.opts.Token != "" {
		params.Auth = &protocol.AuthInfo{Token: c.opts.Token}
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteJSON(params); err != nil {
		conn.Close()
		return nil, nil, err
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	var hello protocol.HelloOK
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != "hello-ok" {
		conn.Close()
		var rejected protocol.ResponseFrame
		if json.Unmarshal(msg, &rejected) == nil && rejected.Code != "" {
			return nil, nil, protocol.NewError(rejected.Code, rejected.Error)
		}
		return nil, nil, fmt.Errorf("unexpected handshake reply: %s", truncate(msg, 120))
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	return conn, &hello, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}
		frame, err := protocol.ParseFrame(msg)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed frame from daemon")
			continue
		}
		switch f := frame.(type) {
		case *protocol.ResponseFrame:
			c.mu.Lock()
			if ch, ok := c.pending[f.ID]; ok {
				ch <- f
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
		case *protocol.EventFrame:
			if f.Event == "shutdown" {
				log.Info().RawJSON("payload", f.Payload).Msg("Daemon is shutting down")
			}
		}
	}
}

// drop tears down conn if it is still current and fails its pending calls.
func (c *Client) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.hello = nil
	pending := c.pending
	c.pending = make(map[string]chan *protocol.ResponseFrame)
	closed := c.closed
	c.mu.Unlock()

	conn.Close()
	for _, ch := range pending {
		close(ch)
	}
	if !closed && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		log.Warn().Err(cause).Int("pending", len(pending)).Msg("Daemon connection lost")
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
