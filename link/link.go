package link

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/arloliu/go-scpi/logger"
)

// Link is a duplex text channel to an instrument.
//
// Send transmits one command line; Receive blocks until one reply is
// available. Implementations never retry and never reorder.
type Link interface {
	Send(cmd string) error
	Receive() (string, error)
	Close() error
}

// DeadlineSetter is implemented by links whose reads can be bounded.
type DeadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// TCPLink is a Link over a single TCP connection to the ethernet bridge.
//
// A TCPLink is meant to be owned by one session; Send and Receive must not
// be called concurrently. Close may be called from any goroutine and
// unblocks a pending Receive.
type TCPLink struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	connMutex sync.RWMutex
	conn      net.Conn
	closed    atomic.Bool

	metrics *LinkMetrics
}

var (
	_ Link           = (*TCPLink)(nil)
	_ DeadlineSetter = (*TCPLink)(nil)
)

// Dial connects to the bridge described by cfg.
func Dial(ctx context.Context, cfg *ConnectionConfig) (*TCPLink, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	dialer := &net.Dialer{KeepAlive: cfg.keepAlive}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", cfg.Addr())
	if err != nil {
		cfg.logger.Debug("link: dial failed", "address", cfg.Addr(), "error", err)

		return nil, err
	}

	l := NewTCPLink(conn, cfg)
	l.logger.Info("link: connected",
		"localAddr", conn.LocalAddr().String(),
		"remoteAddr", conn.RemoteAddr().String())

	return l, nil
}

// NewTCPLink wraps an established connection. A nil cfg uses the defaults.
func NewTCPLink(conn net.Conn, cfg *ConnectionConfig) *TCPLink {
	if cfg == nil {
		cfg = &ConnectionConfig{
			host:           DefaultHost,
			port:           DefaultPort,
			connectTimeout: DefaultConnectTimeout,
			keepAlive:      DefaultKeepAlive,
			readBufferSize: DefaultReadBufferSize,
			logger:         logger.GetLogger(),
		}
	}

	return &TCPLink{
		cfg:     cfg,
		logger:  cfg.logger.With("remoteAddr", conn.RemoteAddr().String()),
		conn:    conn,
		metrics: newLinkMetrics(),
	}
}

// Send writes cmd followed by the line terminator.
func (l *TCPLink) Send(cmd string) error {
	if strings.ContainsAny(cmd, "\r\n") {
		l.metrics.incErrCount()
		return writeError(cmd, ErrEmbeddedTerminator)
	}

	conn := l.getConn()
	if conn == nil {
		l.metrics.incErrCount()
		return writeError(cmd, ErrLinkClosed)
	}

	if l.cfg.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.writeTimeout)); err != nil {
			l.metrics.incErrCount()
			return writeError(cmd, err)
		}
	}

	data := []byte(cmd + DefaultTerminator)
	for written := 0; written < len(data); {
		n, err := conn.Write(data[written:])
		written += n

		if err != nil {
			l.metrics.incErrCount()
			l.logger.Error("link: failed to send command", "command", cmd, "error", err)

			return writeError(cmd, l.mapClosed(err))
		}
	}

	l.metrics.incSendCount(cmd, len(data))
	l.logger.Debug("link: sent", "command", cmd)

	return nil
}

// Receive blocks until a full reply line has arrived and returns it as text,
// terminator included. A reply that exceeds the read buffer size is returned
// truncated.
func (l *TCPLink) Receive() (string, error) {
	conn := l.getConn()
	if conn == nil {
		l.metrics.incErrCount()
		return "", readError(ErrLinkClosed)
	}

	buf := make([]byte, l.cfg.readBufferSize)
	n := 0

	for {
		m, err := conn.Read(buf[n:])
		scanFrom := n
		n += m

		if bytes.IndexByte(buf[scanFrom:n], '\n') >= 0 {
			break
		}

		if err != nil {
			l.metrics.incErrCount()
			l.logger.Debug("link: failed to receive reply", "received", n, "error", err)

			return "", readError(l.mapClosed(err))
		}

		if n == len(buf) {
			l.metrics.incTruncatedCount()
			l.logger.Warn("link: reply exceeds read buffer, truncated", "size", n)

			break
		}
	}

	if !utf8.Valid(buf[:n]) {
		l.metrics.incErrCount()
		return "", readError(ErrInvalidEncoding)
	}

	reply := string(buf[:n])
	l.metrics.incRecvCount(n)
	l.logger.Debug("link: received", "reply", strings.TrimSpace(reply))

	return reply, nil
}

// SetReadDeadline sets the deadline for pending and future Receive calls.
// A zero value removes the deadline.
func (l *TCPLink) SetReadDeadline(t time.Time) error {
	conn := l.getConn()
	if conn == nil {
		return ErrLinkClosed
	}

	return conn.SetReadDeadline(t)
}

// Close closes the connection. Calling Close more than once is a no-op.
func (l *TCPLink) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	l.connMutex.Lock()
	conn := l.conn
	l.conn = nil
	l.connMutex.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.logger.Error("link: failed to close connection", "error", err)

		return err
	}

	l.logger.Debug("link: closed")

	return nil
}

// Config returns the link configuration.
func (l *TCPLink) Config() *ConnectionConfig {
	return l.cfg
}

// GetMetrics returns the metrics of the link.
func (l *TCPLink) GetMetrics() *LinkMetrics {
	return l.metrics
}

func (l *TCPLink) getConn() net.Conn {
	l.connMutex.RLock()
	defer l.connMutex.RUnlock()

	return l.conn
}

// mapClosed reports operations interrupted by Close as ErrLinkClosed.
func (l *TCPLink) mapClosed(err error) error {
	if l.closed.Load() || errors.Is(err, net.ErrClosed) {
		return errors.Join(ErrLinkClosed, err)
	}

	return err
}
