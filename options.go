package ftp

import (
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/corvidae/goftp/listing"
)

// Option configures a Client at Dial time.
type Option func(*Client) error

// WithTimeout sets the per-operation read/write deadline on both the
// control and data sockets. Zero disables the timer (spec §4.2).
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

// WithIdleTimeout sets the maximum idle time on the control channel before
// a keep-alive NOOP is sent. Zero disables the keep-alive goroutine.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.idleTimeout = timeout
		return nil
	}
}

// WithExplicitTLS pre-arms the client to upgrade to TLS immediately after
// connecting, equivalent to calling UseTLS right after Dial. Only explicit
// FTPS (AUTH TLS on the plain port) is supported; there is no implicit-TLS
// option.
func WithExplicitTLS(config *tls.Config) Option {
	return func(c *Client) error {
		if config == nil {
			config = &tls.Config{}
		}
		if config.ClientSessionCache == nil {
			config.ClientSessionCache = tls.NewLRUClientSessionCache(0)
		}
		c.tlsConfig = config
		c.upgradeOnConnect = true
		return nil
	}
}

// WithLogger enables debug tracing of every command and reply.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing both the control
// connection and data connections.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}

// WithCustomListParser adds a listing.Parser tried before the built-in
// EPLF/DOS/Unix parsers, for servers with a nonstandard LIST format.
func WithCustomListParser(parser listing.Parser) Option {
	return func(c *Client) error {
		c.listParsers = append([]listing.Parser{parser}, c.listParsers...)
		return nil
	}
}
