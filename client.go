package ftp

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/corvidae/goftp/listing"
)

// Client is a single FTP/FTPS session: one control socket, at most one data
// socket at a time, and the session state that accumulates as the facade
// methods are called (cached features, the working list command, the
// winning passive-mode strategy).
type Client struct {
	mu sync.Mutex

	conn   net.Conn
	reader *bufio.Reader
	closed bool

	host string
	port string

	timeout     time.Duration
	idleTimeout time.Duration
	dialer      *net.Dialer
	logger      *slog.Logger

	tlsConfig        *tls.Config
	upgradeOnConnect bool

	lastCommand time.Time
	quitChan    chan struct{}

	currentType string
	features    map[string]string

	passiveStrategy *passiveStrategy
	dataConn        net.Conn

	listParsers  []listing.Parser
	listCommands []string // remaining candidates; len 1 once one has succeeded
}

// Dial opens the control connection to addr ("host:port") and waits for the
// 220 welcome reply. TLS upgrade, login, and default settings are separate
// steps — see UseTLS, Login, UseDefaultSettings, or Access for all four at
// once.
func Dial(addr string, opts ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ftp: invalid address %q: %w", addr, err)
	}

	c := &Client{
		host:         host,
		port:         port,
		timeout:      30 * time.Second,
		dialer:       &net.Dialer{},
		logger:       slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1})),
		listCommands: []string{"MLSD", "LIST -a", "LIST"},
	}
	c.listParsers = listing.DefaultParsers()

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ftp: option: %w", err)
		}
	}
	c.dialer.Timeout = c.timeout

	if err := c.connect(); err != nil {
		return nil, err
	}

	if c.upgradeOnConnect {
		if _, err := c.UseTLS(c.tlsConfig); err != nil {
			_ = c.conn.Close()
			return nil, err
		}
	}

	c.lastCommand = time.Now()
	c.startKeepAlive()
	return c, nil
}

// connect establishes (or re-establishes, on a second call) the control
// socket and reads the greeting. This is spec §4.2's reset(): a fresh
// socket, cleared task-related state, closed=false.
func (c *Client) connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.closed = false
	c.features = nil
	c.currentType = ""
	c.passiveStrategy = nil
	c.listCommands = []string{"MLSD", "LIST -a", "LIST"}
	c.mu.Unlock()

	if c.timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			conn.Close()
			return &TransportError{Op: "set read deadline", Err: err}
		}
	}

	reply, err := readReply(c.reader)
	if err != nil {
		conn.Close()
		return &TransportError{Op: "read greeting", Err: err}
	}
	c.log(fmt.Sprintf("< %d %s", reply.Code, firstLine(reply.Message)))
	if !reply.IsPositiveCompletion() {
		conn.Close()
		return &ProtocolError{Command: "CONNECT", Response: reply.Message, Code: reply.Code}
	}
	return nil
}

// UseTLS upgrades the control connection to TLS via AUTH TLS (or cmd, if
// given), then sets PBSZ 0 / PROT P so the data channel is protected too.
// The TLS options are captured on the session; the data-channel coordinator
// mirrors them onto every subsequent passive data socket (spec §4.3 step 4).
func (c *Client) UseTLS(config *tls.Config, cmd ...string) (*Reply, error) {
	command := "AUTH TLS"
	if len(cmd) > 0 && cmd[0] != "" {
		command = cmd[0]
	}
	if config == nil {
		config = &tls.Config{}
	}
	if config.ClientSessionCache == nil {
		config.ClientSessionCache = tls.NewLRUClientSessionCache(0)
	}

	reply, err := c.request(command)
	if err != nil {
		return reply, err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	tlsConn := tls.Client(conn, config)
	if c.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return reply, &TransportError{Op: "set handshake deadline", Err: err}
		}
	}
	if err := tlsConn.Handshake(); err != nil {
		return reply, &TransportError{Op: "TLS handshake", Err: err}
	}

	c.mu.Lock()
	c.conn = tlsConn
	c.reader = bufio.NewReader(tlsConn)
	c.tlsConfig = config
	c.mu.Unlock()

	if _, err := c.sendIgnoringError("PBSZ", "0"); err != nil {
		return reply, err
	}
	if _, err := c.sendIgnoringError("PROT", "P"); err != nil {
		return reply, err
	}
	return reply, nil
}

// Login authenticates with USER/PASS, tolerating a 230 to USER alone (no
// password required) and rejecting 332 (ACCT) as unsupported (spec
// Non-goals: no ACCT authentication).
func (c *Client) Login(user, pass string) error {
	_, err := c.handle("USER "+user, func(reply *Reply, transportErr error, send func(string) error) (*Reply, bool, error) {
		if transportErr != nil {
			return nil, true, transportErr
		}
		switch {
		case reply.IsPreliminary():
			return nil, false, nil
		case reply.Code == 230:
			return reply, true, nil
		case reply.Code == 331:
			if err := send("PASS " + pass); err != nil {
				return nil, true, err
			}
			return nil, false, nil
		default:
			return nil, true, &ProtocolError{Command: "USER", Response: reply.Message, Code: reply.Code}
		}
	})
	return err
}

// UseDefaultSettings sets binary transfer type, stream file structure,
// UTF8, and (if TLS is active) the data-channel protection level. Every
// sub-command except TYPE I tolerates a negative reply, so this may be
// called repeatedly with the same observable effect (spec §8 idempotence).
func (c *Client) UseDefaultSettings() error {
	if err := c.Type("I"); err != nil {
		return err
	}
	if _, err := c.sendIgnoringError("STRU", "F"); err != nil {
		return err
	}
	if _, err := c.sendIgnoringError("OPTS", "UTF8", "ON"); err != nil {
		return err
	}
	if _, err := c.sendIgnoringError("OPTS", "MLST", "type;size;modify;perm;unix.mode"); err != nil {
		return err
	}
	c.mu.Lock()
	secure := c.tlsConfig != nil
	c.mu.Unlock()
	if secure {
		if _, err := c.sendIgnoringError("PBSZ", "0"); err != nil {
			return err
		}
		if _, err := c.sendIgnoringError("PROT", "P"); err != nil {
			return err
		}
	}
	return nil
}

// AccessOptions configures Access.
type AccessOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Secure   bool
	TLS      *tls.Config
	Timeout  time.Duration
}

// Access connects, optionally upgrades to TLS, logs in, and applies default
// settings in one call (spec §4.5 access()).
func Access(opts AccessOptions) (*Client, error) {
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	port := opts.Port
	if port == 0 {
		port = 21
	}
	user := opts.User
	if user == "" {
		user = "anonymous"
	}
	pass := opts.Password
	if pass == "" {
		pass = "guest"
	}

	var dialOpts []Option
	if opts.Timeout > 0 {
		dialOpts = append(dialOpts, WithTimeout(opts.Timeout))
	}

	c, err := Dial(net.JoinHostPort(host, fmt.Sprintf("%d", port)), dialOpts...)
	if err != nil {
		return nil, err
	}

	if opts.Secure {
		if _, err := c.UseTLS(opts.TLS); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	if err := c.Login(user, pass); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.UseDefaultSettings(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Type sets the transfer type, skipping the wire round-trip if it is
// already the current type.
func (c *Client) Type(transferType string) error {
	c.mu.Lock()
	same := c.currentType == transferType
	c.mu.Unlock()
	if same {
		return nil
	}
	if _, err := c.request(fmt.Sprintf("TYPE %s", transferType)); err != nil {
		return err
	}
	c.mu.Lock()
	c.currentType = transferType
	c.mu.Unlock()
	return nil
}

// Features queries and caches the server's FEAT capability list. A 4xx/5xx
// reply is tolerated (FEAT is itself an optional extension): it caches an
// empty map rather than returning an error.
func (c *Client) Features() (map[string]string, error) {
	c.mu.Lock()
	cached := c.features
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	reply, err := c.sendIgnoringError("FEAT")
	if err != nil {
		return nil, err
	}

	feats := map[string]string{}
	if reply.Code == 211 && len(reply.Lines) > 2 {
		for _, line := range reply.Lines[1 : len(reply.Lines)-1] {
			feat := trimLeadingSpaces(line)
			if feat == "" {
				continue
			}
			name, rest := splitFirstToken(feat)
			feats[upper(name)] = rest
		}
	}

	c.mu.Lock()
	c.features = feats
	c.mu.Unlock()
	return feats, nil
}

// HasFeature reports whether the server advertised name in FEAT.
func (c *Client) HasFeature(name string) bool {
	feats, err := c.Features()
	if err != nil {
		return false
	}
	_, ok := feats[upper(name)]
	return ok
}

// Syst returns the server's SYST reply.
func (c *Client) Syst() (string, error) {
	reply, err := c.request("SYST")
	if err != nil {
		return "", err
	}
	return reply.Message, nil
}

// Noop sends NOOP, used internally by the idle keep-alive and exposed for
// callers that want to keep a long-idle session warm themselves.
func (c *Client) Noop() error {
	_, err := c.request("NOOP")
	return err
}

// Quote sends a raw command and returns the raw reply, for extensions this
// client has no dedicated method for.
func (c *Client) Quote(command string) (*Reply, error) {
	return c.request(command)
}

// Chmod issues SITE CHMOD.
func (c *Client) Chmod(path string, mode uint32) error {
	_, err := c.request(fmt.Sprintf("SITE CHMOD %04o %s", mode&0o7777, c.protectWhitespace(path)))
	return err
}

// Close cancels any pending operation, stops the keep-alive goroutine, and
// closes the control (and, if one is open, data) socket. Every operation
// after Close fails with ClientClosedError (spec §8).
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.quitChan != nil {
		close(c.quitChan)
		c.quitChan = nil
	}
	c.closed = true
	if c.dataConn != nil {
		_ = c.dataConn.Close()
		c.dataConn = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	// Best-effort QUIT; ignore errors, we are closing regardless.
	_, _ = fmt.Fprintf(conn, "QUIT\r\n")
	return conn.Close()
}

// Quit is an alias for Close, matching the teacher's naming.
func (c *Client) Quit() error { return c.Close() }

// sendIgnoringError downgrades a negative reply to a successful one,
// returning a synthetic *Reply carrying the negative code and message
// instead of a ProtocolError. Transport and timeout errors still propagate
// (spec §7).
func (c *Client) sendIgnoringError(command string, args ...string) (*Reply, error) {
	cmd := command
	for _, a := range args {
		cmd += " " + a
	}
	reply, err := c.request(cmd)
	if err == nil {
		return reply, nil
	}
	if pe, ok := err.(*ProtocolError); ok {
		return &Reply{Code: pe.Code, Message: pe.Response}, nil
	}
	return nil, err
}

func (c *Client) startKeepAlive() {
	if c.idleTimeout == 0 {
		return
	}
	c.quitChan = make(chan struct{})
	ticker := time.NewTicker(c.idleTimeout / 2)
	quit := c.quitChan
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				transferring := c.dataConn != nil
				last := c.lastCommand
				closed := c.closed
				c.mu.Unlock()
				if closed || transferring {
					continue
				}
				if time.Since(last) >= c.idleTimeout {
					_ = c.Noop()
				}
			case <-quit:
				return
			}
		}
	}()
}

func upper(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'a' && ch <= 'z' {
			b[i] = ch - 'a' + 'A'
		}
	}
	return string(b)
}

func trimLeadingSpaces(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

func splitFirstToken(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
