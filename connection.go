package electrum

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// connState is the Connection tristate: disconnected, connected, or
// tearing-down. The third state exists purely to suppress a redundant
// second teardown when Disconnect races with a read-loop transport error.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnected
	stateTearingDown
)

// StatementSink receives each completed statement string, in arrival order,
// as the Connection's framing peels them off the inbound byte stream. The
// Client installs a handshake sink first, then swaps to its steady-state
// router once the handshake settles (spec.md §4.3).
type StatementSink func(statement string)

// ConnectionOptions configures a single peer socket.
type ConnectionOptions struct {
	// Application identity string, sent during handshake by the owning
	// Client. Stored here because spec.md's data model places it on the
	// Connection, even though only the Client actually sends it.
	Application string `validate:"required"`

	// Version is the protocol version this Connection advertises. Must
	// satisfy ValidProtocolVersion (^\d+(\.\d+)+$).
	Version string `validate:"required"`

	Host string `validate:"required"`
	Port uint16

	// KeepAlive is the idle interval after which an automatic
	// server.ping is sent. Zero selects DefaultKeepAlive; a negative
	// value disables keep-alive entirely.
	KeepAlive time.Duration

	// Retry is accepted for surface compatibility with the teacher
	// lineage but never read: reconnection after a peer-closed
	// connection is out of scope (spec.md §1 Non-goals).
	Retry time.Duration

	// Timeout bounds the initial TLS dial. It has no effect once the
	// connection is established.
	Timeout time.Duration

	TLSConfig *tls.Config
	Hooks     *Hooks
}

func (o *ConnectionOptions) applyDefaults() {
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
	if o.Hooks == nil {
		o.Hooks = NewHooks(nil)
	}
}

// Connection owns one TLS socket to one Electrum peer: framing inbound
// bytes into statements, emitting lifecycle events, and keeping the link
// alive with periodic pings. It has no notion of JSON-RPC correlation or
// subscriptions — that demultiplexing belongs to Client.
type Connection struct {
	application string
	version     string
	host        string
	port        uint16
	keepAlive   time.Duration
	retry       time.Duration
	timeout     time.Duration
	tlsConfig   *tls.Config
	hooks       *Hooks

	mu             sync.Mutex
	state          connState
	conn           net.Conn
	buffer         string
	sink           StatementSink
	keepAliveTimer *time.Timer
	closed         chan struct{}
	closeOnce      sync.Once
}

// NewConnection validates opts (failing synchronously on a malformed
// protocol version, per spec.md §4.2) and returns an unconnected
// Connection.
func NewConnection(opts ConnectionOptions) (*Connection, error) {
	opts.applyDefaults()
	if err := validate.Struct(&opts); err != nil {
		return nil, fmt.Errorf("electrum: connection options: %w", err)
	}
	if !ValidProtocolVersion(opts.Version) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, opts.Version)
	}
	return &Connection{
		application: opts.Application,
		version:     opts.Version,
		host:        opts.Host,
		port:        opts.Port,
		keepAlive:   opts.KeepAlive,
		retry:       opts.Retry,
		timeout:     opts.Timeout,
		tlsConfig:   opts.TLSConfig,
		hooks:       opts.Hooks,
	}, nil
}

// Closed returns a channel that closes exactly once the connection has
// permanently torn down, for any reason. It is nil until a call to Connect
// first succeeds; selecting on a nil channel blocks forever, which is the
// desired behavior before any connection exists.
func (c *Connection) Closed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Connected reports whether the socket is currently up.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// Connect dials the peer over TLS and installs sink as the current
// statement receiver. It is idempotent: calling it while already connected
// returns immediately. The dial itself carries the initial-connect timeout;
// once Connect returns successfully no further timeout applies to the
// socket (spec.md §4.2's "applied only until connect, then cleared").
func (c *Connection) Connect(sink StatementSink) error {
	c.mu.Lock()
	if c.state == stateConnected {
		c.mu.Unlock()
		return nil
	}
	c.sink = sink
	c.buffer = ""
	c.mu.Unlock()

	addr := net.JoinHostPort(c.host, strconv.Itoa(int(c.port)))
	dialer := &net.Dialer{Timeout: c.timeout}

	raw, err := dialer.Dial("tcp", addr)
	if err != nil {
		c.hooks.Errors("connection: dial %s: %v", addr, err)
		return fmt.Errorf("electrum: dial %s: %w", addr, err)
	}
	if tcpConn, ok := raw.(*net.TCPConn); ok {
		// TCP keep-alive enabled with minimal idle delay, Nagle disabled:
		// matches spec.md §4.2's socket configuration list.
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(0)
	}

	tlsConf := c.tlsConfig
	if tlsConf == nil {
		tlsConf = &tls.Config{}
	}
	tlsConn := tls.Client(raw, tlsConf)
	if err := tlsConn.Handshake(); err != nil {
		_ = raw.Close()
		c.hooks.Errors("connection: tls handshake with %s: %v", addr, err)
		return fmt.Errorf("electrum: tls handshake with %s: %w", addr, err)
	}

	c.mu.Lock()
	c.conn = tlsConn
	c.state = stateConnected
	c.closed = make(chan struct{})
	c.closeOnce = sync.Once{}
	c.armKeepAliveLocked()
	c.mu.Unlock()

	c.hooks.Status("connection: connected to %s", addr)
	go c.readLoop()
	return nil
}

// Disconnect tears the connection down. If the connection is up, or force
// is set, it cancels the keep-alive timer, half-closes then destroys the
// socket, and reports true. Otherwise it is a no-op reporting false.
func (c *Connection) Disconnect(force bool) bool {
	c.mu.Lock()
	connected := c.state == stateConnected
	c.mu.Unlock()
	if !connected && !force {
		return false
	}
	c.hooks.Events("connection: disconnect (force=%v)", force)
	return c.teardown() || force
}

func (c *Connection) teardown() bool {
	c.mu.Lock()
	if c.state == stateTearingDown || c.state == stateDisconnected {
		c.mu.Unlock()
		return false
	}
	c.state = stateTearingDown
	if c.keepAliveTimer != nil {
		c.keepAliveTimer.Stop()
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		_ = conn.Close()
	}

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateDisconnected
		if c.closed != nil {
			close(c.closed)
		}
		c.mu.Unlock()
	})
	return true
}

// Send writes frame plus the statement delimiter to the socket and rearms
// the keep-alive timer, exactly as every send does per spec.md §4.2.
func (c *Connection) Send(frame string) error {
	c.mu.Lock()
	if c.state != stateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.armKeepAliveLocked()
	c.mu.Unlock()

	c.hooks.Action("connection: -> %s", frame)
	if _, err := conn.Write([]byte(frame + StatementDelimiter)); err != nil {
		c.hooks.Errors("connection: write: %v", err)
		return fmt.Errorf("electrum: write: %w", err)
	}
	return nil
}

// Ping sends a server.ping request carrying the keep-alive sentinel id.
func (c *Connection) Ping() error {
	frame, err := BuildRequest("server.ping", []any{}, keepAliveID)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// SetSink swaps the active statement receiver. The Client calls this once,
// at the end of a successful handshake, to move from its handshake sink to
// its steady-state router (spec.md §4.3).
func (c *Connection) SetSink(sink StatementSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// armKeepAliveLocked (re)arms the keep-alive timer. Callers must hold c.mu.
func (c *Connection) armKeepAliveLocked() {
	if c.keepAlive <= 0 {
		return
	}
	if c.keepAliveTimer == nil {
		c.keepAliveTimer = time.AfterFunc(c.keepAlive, c.fireKeepAlive)
		return
	}
	c.keepAliveTimer.Reset(c.keepAlive)
}

func (c *Connection) fireKeepAlive() {
	if err := c.Ping(); err != nil {
		c.hooks.Errors("connection: keep-alive ping: %v", err)
	}
}

// readLoop is the sole reader of the socket; it runs for the lifetime of
// one connection attempt and exits on the first read error, tearing the
// connection down (a peer-closed connection is terminal — spec.md §1
// Non-goals exclude reconnection).
func (c *Connection) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.feed(buf[:n])
		}
		if err != nil {
			c.hooks.Errors("connection: read: %v", err)
			c.teardown()
			return
		}
	}
}

func (c *Connection) feed(chunk []byte) {
	c.mu.Lock()
	statements, rest := SplitStatements(c.buffer, chunk)
	c.buffer = rest
	sink := c.sink
	c.mu.Unlock()

	for _, s := range statements {
		c.hooks.Server("connection: <- %s", s)
		if sink != nil {
			sink(s)
		}
	}
}
