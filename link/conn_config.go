package link

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-scpi/logger"
)

// Defaults for the pulse sensor ethernet bridge.
const (
	DefaultHost = "192.168.1.151"
	DefaultPort = 5025

	DefaultConnectTimeout = 3 * time.Second
	DefaultKeepAlive      = 30 * time.Second
	DefaultReadBufferSize = 1024

	// DefaultTerminator ends every outbound command.
	DefaultTerminator = "\n"
)

const (
	MinReadBufferSize = 64
	MaxReadBufferSize = 64 * 1024
)

// ConnectionConfig holds the configuration of a TCP link.
type ConnectionConfig struct {
	host string
	port int

	connectTimeout time.Duration
	// writeTimeout bounds each Send; zero means no write deadline.
	writeTimeout time.Duration
	keepAlive    time.Duration

	readBufferSize int

	logger logger.Logger
}

// NewConnectionConfig creates a link configuration for host:port.
//
// An empty host selects DefaultHost and a zero port selects DefaultPort.
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		connectTimeout: DefaultConnectTimeout,
		keepAlive:      DefaultKeepAlive,
		readBufferSize: DefaultReadBufferSize,
		logger:         logger.GetLogger(),
	}

	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) setHost(host string) error {
	host = strings.TrimSpace(host)
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("link: invalid host %q", host)
}

func (cfg *ConnectionConfig) setPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("link: port %d out of range [1, 65535]", port)
	}
	cfg.port = port

	return nil
}

// Host returns the configured host address.
func (cfg *ConnectionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ConnectionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ConnectionConfig) Addr() string { return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)) }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *ConnectionConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// WriteTimeout returns the per-send write deadline, zero if disabled.
func (cfg *ConnectionConfig) WriteTimeout() time.Duration { return cfg.writeTimeout }

// ReadBufferSize returns the maximum number of bytes a single Receive returns.
func (cfg *ConnectionConfig) ReadBufferSize() int { return cfg.readBufferSize }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("link: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithWriteTimeout bounds every Send with a write deadline.
// Zero disables the deadline, which is the default.
func WithWriteTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("link: write timeout must not be negative")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithKeepAlive sets the TCP keep-alive period. A negative value disables keep-alives.
func WithKeepAlive(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.keepAlive = d

		return nil
	})
}

// WithReadBufferSize sets the upper bound of a single reply.
func WithReadBufferSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size < MinReadBufferSize || size > MaxReadBufferSize {
			return fmt.Errorf("link: read buffer size %d out of range [%d, %d]",
				size, MinReadBufferSize, MaxReadBufferSize)
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithLogger sets the logger for the link.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
