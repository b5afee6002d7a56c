// Package transport adapts quic-go to the thin connection-oriented,
// multiplexed, stream-based contract the WSM core is written against
// (spec.md §6): connect/accept, open/accept bidirectional streams, close
// with a code and reason, read the remote address.
package transport

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/quic-go/quic-go"
)

// quicConfig mirrors the QUIC tuning the teacher repo uses for its transport
// (keep-alives, idle timeout, flow-control windows); it has proven
// reasonable for a control-stream-plus-many-worker-streams connection
// shape and is reused unchanged here.
var quicConfig = &quic.Config{
	KeepAlivePeriod:                 10 * time.Second,
	MaxIdleTimeout:                  60 * time.Second,
	InitialStreamReceiveWindow:      8 << 20,
	InitialConnectionReceiveWindow:  128 << 20,
	MaxIncomingStreams:              256,
	MaxIncomingUniStreams:           16,
}

// Connection wraps a *quic.Conn with the stream-open/accept/close surface
// the dispatcher and upload subsystems need.
type Connection struct {
	conn *quic.Conn
}

// Stream is a bidirectional byte stream within a Connection. It is
// satisfied directly by *quic.Stream; declaring it as an interface (rather
// than aliasing the concrete type) lets callers and tests substitute any
// stream with read deadlines, such as a net.Conn, without knowing the
// concrete transport.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

func newConnection(c *quic.Conn) *Connection { return &Connection{conn: c} }

// OpenStream opens a new bidirectional stream, blocking until one is
// available or ctx is done.
func (c *Connection) OpenStream(ctx context.Context) (Stream, error) {
	return c.conn.OpenStreamSync(ctx)
}

// AcceptStream blocks until the peer opens a new bidirectional stream.
func (c *Connection) AcceptStream(ctx context.Context) (Stream, error) {
	return c.conn.AcceptStream(ctx)
}

// Close closes the underlying connection with an application error code
// and a human-readable reason, per spec.md §6's close-code contract.
func (c *Connection) Close(code uint32, reason string) error {
	return c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

// RemoteAddr reports the peer's network address.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Dial establishes a client connection to addr.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Connection, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig)
	if err != nil {
		return nil, err
	}
	return newConnection(conn), nil
}

// Listener accepts incoming QUIC connections.
type Listener struct {
	ln *quic.Listener
}

// Listen starts a QUIC listener on addr.
func Listen(addr string, tlsConf *tls.Config) (*Listener, error) {
	ln, err := quic.ListenAddr(addr, tlsConf, quicConfig)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a new connection arrives or ctx is done.
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return newConnection(conn), nil
}

// Addr reports the listener's bound address.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Close shuts down the listener.
func (l *Listener) Close() error {
	return l.ln.Close()
}
