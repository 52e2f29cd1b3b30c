package electrum

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Version flag for the library
const Version = "1.0.0"

// ClientOptions define the available configuration for a single Client.
type ClientOptions struct {
	// Application identifies this client to the peer during the
	// server.version handshake.
	Application string `validate:"required"`

	// Version is the protocol version to negotiate with the peer. Must
	// satisfy ValidProtocolVersion (^\d+(\.\d+)+$).
	Version string `validate:"required"`

	Host string `validate:"required"`
	Port uint16

	// KeepAlive is the idle interval after which an automatic
	// server.ping keeps the session alive. Zero selects
	// DefaultKeepAlive; a negative value disables it.
	KeepAlive time.Duration

	// Retry is accepted for surface compatibility with the teacher
	// lineage but never consulted: reconnecting a dropped connection is
	// out of scope.
	Retry time.Duration

	// Timeout bounds the initial TLS dial.
	Timeout time.Duration

	TLS *tls.Config

	// Log receives structured diagnostics across the action/events/
	// errors/server/status channels. Nil disables logging.
	Log logrus.FieldLogger
}

func (o *ClientOptions) applyDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.Retry == 0 {
		o.Retry = DefaultRetry
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
}

// completion carries the outcome of one pending request back to the
// goroutine blocked on it: either a decoded statement or a terminal error
// (transport closed, manual disconnection).
type completion struct {
	st  *statement
	err error
}

// Client negotiates protocol version with a single peer, correlates
// requests to responses by id, and demultiplexes unsolicited notifications
// to subscribers by method name.
type Client struct {
	// Application identifies this client to the peer.
	Application string

	// Version is the negotiated protocol version.
	Version string

	conn  *Connection
	hooks *Hooks

	mu        sync.Mutex
	connected bool
	counter   int64
	pending   map[string]chan completion
	subs      map[string][]func(json.RawMessage)
}

// New constructs a Client and its underlying Connection. It validates
// options synchronously but does not dial; call Connect to do that.
func New(options ClientOptions) (*Client, error) {
	options.applyDefaults()
	if err := validate.Struct(&options); err != nil {
		return nil, fmt.Errorf("electrum: client options: %w", err)
	}

	hooks := NewHooks(options.Log)
	conn, err := NewConnection(ConnectionOptions{
		Application: options.Application,
		Version:     options.Version,
		Host:        options.Host,
		Port:        options.Port,
		KeepAlive:   options.KeepAlive,
		Retry:       options.Retry,
		Timeout:     options.Timeout,
		TLSConfig:   options.TLS,
		Hooks:       hooks,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		Application: options.Application,
		Version:     options.Version,
		conn:        conn,
		hooks:       hooks,
		pending:     make(map[string]chan completion),
		subs:        make(map[string][]func(json.RawMessage)),
	}, nil
}

// Connect dials the peer and performs the server.version handshake: it
// installs a one-shot handshake sink, sends server.version with
// [Application, Version], and accepts iff the server's negotiated version
// is byte-identical to the one requested. On any failure the underlying
// Connection is torn down and Connect returns an error.
func (c *Client) Connect(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return true, nil
	}
	c.mu.Unlock()

	handshakeCh := make(chan *statement, 1)
	var once sync.Once
	handshakeSink := func(raw string) {
		once.Do(func() {
			st, err := parseStatement([]byte(raw))
			if err != nil {
				c.hooks.Errors("client: malformed handshake statement: %v", err)
				return
			}
			handshakeCh <- st
		})
	}

	if err := c.conn.Connect(handshakeSink); err != nil {
		return false, err
	}

	frame, err := BuildRequest("server.version", []any{c.Application, c.Version}, versionNegotiationID)
	if err != nil {
		c.conn.Disconnect(true)
		return false, err
	}
	if err := c.conn.Send(frame); err != nil {
		c.conn.Disconnect(true)
		return false, fmt.Errorf("electrum: handshake: %w", err)
	}

	select {
	case st := <-handshakeCh:
		if st.Error != nil {
			c.conn.Disconnect(true)
			return false, &ServerError{Code: st.Error.Code, Message: st.Error.Message, Data: st.Error.Data}
		}
		var negotiated []string
		if err := json.Unmarshal(st.Result, &negotiated); err != nil || len(negotiated) < 2 {
			c.conn.Disconnect(true)
			return false, fmt.Errorf("electrum: malformed server.version result")
		}
		if negotiated[1] != c.Version {
			c.conn.Disconnect(true)
			return false, fmt.Errorf("%w: server offered %q, want %q", ErrIncompatibleVersion, negotiated[1], c.Version)
		}
		c.conn.SetSink(c.routeStatement)
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		go c.watchClosed()
		c.hooks.Status("client: handshake complete, server %q negotiated %q", negotiated[0], negotiated[1])
		return true, nil
	case <-c.conn.Closed():
		return false, ErrTransportClosed
	case <-ctx.Done():
		c.conn.Disconnect(true)
		return false, ctx.Err()
	}
}

// watchClosed fails every pending request with a transport error if the
// connection tears down without Disconnect having been called explicitly.
// Explicit Disconnect already drains c.pending and clears connected first,
// making this a no-op in that case.
func (c *Client) watchClosed() {
	<-c.conn.Closed()
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	pending := c.pending
	c.pending = make(map[string]chan completion)
	c.mu.Unlock()

	for _, ch := range pending {
		select {
		case ch <- completion{err: ErrTransportClosed}:
		default:
		}
	}
	c.hooks.Status("client: connection closed")
}

// Disconnect fails every pending request with a manual-disconnection
// error, clears subscriptions, and tears the Connection down.
func (c *Client) Disconnect(force bool) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan completion)
	c.subs = make(map[string][]func(json.RawMessage))
	c.connected = false
	c.mu.Unlock()

	for _, ch := range pending {
		select {
		case ch <- completion{err: ErrManualDisconnection}:
		default:
		}
	}

	c.conn.Disconnect(force)
	c.hooks.Events("client: disconnected")
}

// Connected reports whether the handshake has completed and no teardown
// has happened since.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Request issues method with params and blocks until the matching response
// arrives, the connection dies, or ctx is cancelled. A server-side
// {"error": ...} is delivered as a successful Result whose IsError is
// true, not as a returned error.
func (c *Client) Request(ctx context.Context, method string, params ...any) (Result, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return Result{}, ErrNotConnected
	}
	c.counter++
	id := c.counter
	key := strconv.FormatInt(id, 10)
	ch := make(chan completion, 1)
	c.pending[key] = ch
	c.mu.Unlock()

	if params == nil {
		params = []any{}
	}
	frame, err := BuildRequest(method, params, id)
	if err != nil {
		c.removePending(key)
		return Result{}, err
	}
	if err := c.conn.Send(frame); err != nil {
		c.removePending(key)
		return Result{}, fmt.Errorf("electrum: sending %s: %w", method, err)
	}

	select {
	case comp := <-ch:
		if comp.err != nil {
			return Result{}, comp.err
		}
		return resultFromStatement(comp.st), nil
	case <-ctx.Done():
		c.removePending(key)
		return Result{}, ctx.Err()
	}
}

// Subscribe registers callback against method's notifications, issues the
// subscribing request, and delivers its initial result to callback exactly
// once: Electrum subscriptions return their initial state via the
// response, not a follow-up notification.
func (c *Client) Subscribe(ctx context.Context, method string, callback func(json.RawMessage), params ...any) (bool, error) {
	c.mu.Lock()
	c.subs[method] = append(c.subs[method], callback)
	c.mu.Unlock()

	res, err := c.Request(ctx, method, params...)
	if err != nil {
		return false, err
	}
	if res.IsError() {
		return false, res.Error()
	}
	callback(res.Raw())
	return true, nil
}

func (c *Client) removePending(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func (c *Client) takePending(key string) (chan completion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	return ch, ok
}

func (c *Client) dispatchNotification(method string, params json.RawMessage) {
	c.mu.Lock()
	subs := append([]func(json.RawMessage){}, c.subs[method]...)
	c.mu.Unlock()
	for _, cb := range subs {
		cb(params)
	}
}

// routeStatement is the steady-state statement router installed after a
// successful handshake: it demultiplexes one inbound frame to either a
// pending request's completer or a notification subscriber. A response
// whose id has no pending completer is an internal consistency fault; it
// is recovered here so a stray or duplicate late response from a
// misbehaving peer logs and disconnects instead of crashing the process
// embedding this library.
func (c *Client) routeStatement(raw string) {
	defer func() {
		if r := recover(); r != nil {
			c.hooks.Errors("client: internal consistency fault: %v", r)
			c.Disconnect(true)
		}
	}()
	c.route([]byte(raw))
}

func (c *Client) route(raw []byte) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return
	}

	// Batch responses are routed element by element directly rather than
	// re-serialized back to individual strings, since each element is
	// already independently addressable JSON.
	if trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			c.hooks.Errors("client: malformed batch statement: %v", err)
			return
		}
		for _, el := range batch {
			c.route(el)
		}
		return
	}

	st, err := parseStatement(trimmed)
	if err != nil {
		c.hooks.Errors("client: malformed statement: %v", err)
		return
	}

	key := idKey(st.ID)
	if key == keepAliveID {
		return
	}

	if st.ID != nil {
		ch, ok := c.takePending(key)
		if !ok {
			panic(fmt.Sprintf("response for request id %q with no pending completer", key))
		}
		select {
		case ch <- completion{st: st}:
		default:
		}
		return
	}

	c.dispatchNotification(st.Method, st.Params)
}
