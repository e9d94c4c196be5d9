// Package transport implements the HTTP request engine of the transport contract:
// address resolution, persistent-connection management, adaptive
// receive-buffer growth bounded by MaxResponseSize, and the one-shot
// Digest authentication retry driven by internal/digest.
//
// The original C implementation polls a non-blocking socket with a short
// select() so a signal-raised cancellation flag is observed promptly
// (the concurrency model). Go's net.Conn deadlines plus context.Context cancellation are
// the idiomatic substitute: every blocking Read/Write carries a deadline
// derived from ctx, so cancellation unblocks it immediately instead of
// being polled — see the concurrency model.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/tr64go/tr64c/internal/digest"
	"github.com/tr64go/tr64c/internal/urlparse"
)

// MaxResponseSize bounds the receive buffer; exceeding it is fatal per
// the transport contract.
const MaxResponseSize = 16 * 1024 * 1024

// TimeoutResolution is the smallest request timeout the CLI accepts.
const TimeoutResolution = 100 * time.Millisecond

// DefaultPort is the default TR-064 control port.
const DefaultPort = 49000

// DefaultDescriptionPath is used when a gateway URL carries no path.
const DefaultDescriptionPath = "/tr64desc.xml"

// NetworkError reports a transport-level failure (resolve, connect, send,
// receive) on the persistent TCP connection, naming the operation that
// failed and wrapping the underlying error.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports an HTTP-level failure: a non-200 status, or Status 0
// for a response larger than MaxResponseSize. Reason is an optional
// description set by this package, not the status line's reason phrase.
type HTTPError struct {
	Status int
	Reason string
}

func (e *HTTPError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transport: HTTP %d %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("transport: HTTP %d", e.Status)
}

// Context is the mutable HTTP session of the data model: protocol/host/port/auth
// state, a reusable send/receive buffer, and the resolved-address list
// iterated on connect failure.
type Context struct {
	Protocol string
	User     string
	Pass     string
	Host     string
	Port     string
	// Path is the device description path taken from the gateway URL
	// passed to NewContext, defaulting to DefaultDescriptionPath when the
	// URL carries none.
	Path string

	Timeout time.Duration
	Logger  hclog.Logger

	addrs      []net.IPAddr
	addrCursor int

	conn net.Conn

	buffer []byte

	// digestState caches the last challenge seen so a future request can
	// skip straight to sending an Authorization header instead of eating
	// a guaranteed 401 round trip; Do still falls back to a fresh
	// challenge if the cached one is stale.
	digestState *digest.Challenge
}

// NewContext builds a session from a gateway URL of the form
// "http://[user[:pass]@]host[:port][/path]". Only the http scheme is
// supported per the stated scope (Non-goals: no TLS).
func NewContext(rawURL string, timeout time.Duration, logger hclog.Logger) (*Context, error) {
	p, err := urlparse.ParseString(rawURL)
	if err != nil {
		return nil, &NetworkError{Operation: "parse url", Err: err}
	}
	if p.Protocol != "" && p.Protocol != "http" {
		return nil, &NetworkError{Operation: "parse url", Err: fmt.Errorf("unsupported scheme %q (TLS is a non-goal)", p.Protocol)}
	}
	port := p.Port
	if port == "" {
		port = strconv.Itoa(DefaultPort)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	path := p.Path
	if path == "" {
		path = DefaultDescriptionPath
	}
	return &Context{
		Protocol: "http",
		User:     p.User,
		Pass:     p.Pass,
		Host:     p.Host,
		Port:     port,
		Path:     path,
		Timeout:  timeout,
		Logger:   logger,
		buffer:   make([]byte, 0, 4096),
	}, nil
}

// Resolve builds the context's address list from (Host, Port). The list
// is owned by the context for its lifetime per the data model.
func (c *Context) Resolve(ctx context.Context) error {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, c.Host)
	if err != nil {
		return &NetworkError{Operation: "resolve", Err: err}
	}
	if len(ips) == 0 {
		return &NetworkError{Operation: "resolve", Err: fmt.Errorf("no addresses for host %q", c.Host)}
	}
	c.addrs = ips
	c.addrCursor = 0
	return nil
}

// Reset closes any open socket and rewinds the address cursor, per spec
// §4.E's reset(ctx).
func (c *Context) Reset() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.addrCursor = 0
}

// connect dials the current cursor address, advancing on failure until the
// list is exhausted (the transport contract "Address iteration": switch socket only
// when the family changes; here every dial is a fresh net.Conn, so the
// teacher's family-aware reuse collapses to "reuse while the same conn is
// open", handled by the conn != nil short-circuit below).
func (c *Context) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if len(c.addrs) == 0 {
		if err := c.Resolve(ctx); err != nil {
			return err
		}
	}
	var lastErr error
	for ; c.addrCursor < len(c.addrs); c.addrCursor++ {
		addr := c.addrs[c.addrCursor]
		dialer := net.Dialer{Timeout: c.Timeout}
		target := net.JoinHostPort(addr.String(), c.Port)
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			lastErr = err
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetNoDelay(true)
			tuneSocket(tcp, c.Logger)
		}
		c.conn = conn
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses remain")
	}
	return &NetworkError{Operation: "connect", Err: lastErr}
}
