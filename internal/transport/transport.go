// Package transport opens controller connections and exposes them as
// wiimote receivers.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/Alia5/wiistream/device/wiimote"
	"github.com/Alia5/wiistream/internal/server/auth"
)

// Source is an open controller connection.
type Source interface {
	wiimote.Receiver
	io.Closer
}

// Options are shared by all transports.
type Options struct {
	// ReadTimeout bounds a single frame read; 0 blocks forever.
	ReadTimeout time.Duration
	// DialTimeout bounds connection setup for network transports.
	DialTimeout time.Duration
	// Password enables the encrypted bridge handshake for network transports.
	Password string
}

type connSource struct {
	conn    net.Conn
	rx      wiimote.Receiver
	timeout time.Duration
}

// NewConnSource reads frames from an established stream connection.
func NewConnSource(conn net.Conn, readTimeout time.Duration) Source {
	return &connSource{conn: conn, rx: wiimote.StreamReceiver(conn), timeout: readTimeout}
}

func (c *connSource) Receive(buf []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.rx.Receive(buf)
}

func (c *connSource) Close() error { return c.conn.Close() }

// DialTCP connects to a frame bridge. With a password the auth handshake
// runs before any frame is read.
func DialTCP(ctx context.Context, addr string, opts Options) (Source, error) {
	d := &net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if opts.Password != "" {
		key, err := auth.DeriveKey(opts.Password)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if opts.DialTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(opts.DialTimeout))
		}
		secured, err := auth.Connect(conn, key)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("handshake: %w", err)
		}
		_ = conn.SetDeadline(time.Time{})
		conn = secured
	}
	return NewConnSource(conn, opts.ReadTimeout), nil
}
