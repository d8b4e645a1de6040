package ftp

import (
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

var (
	pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// passiveStrategy is the cache cell spec §4.3 describes: once one of
// epsvStrategy/pasvStrategy succeeds, it is recorded on the Client and every
// later transfer dials straight through it, skipping the probe.
type passiveStrategy struct {
	name string
	open func(c *Client) (string, error) // returns "host:port" to dial
}

var epsvStrategy = &passiveStrategy{
	name: "EPSV",
	open: func(c *Client) (string, error) {
		reply, err := c.request("EPSV")
		if err != nil {
			return "", err
		}
		port, err := parseEPSV(reply.Message)
		if err != nil {
			return "", &ParseError{Context: "EPSV reply", Text: reply.Message, Err: err}
		}
		return net.JoinHostPort(c.host, port), nil
	},
}

var pasvStrategy = &passiveStrategy{
	name: "PASV",
	open: func(c *Client) (string, error) {
		reply, err := c.request("PASV")
		if err != nil {
			return "", err
		}
		addr, err := parsePASV(reply.Message)
		if err != nil {
			return "", &ParseError{Context: "PASV reply", Text: reply.Message, Err: err}
		}
		return resolveDataAddr(addr, c.host), nil
	},
}

// parsePASV extracts "host:port" from a 227 reply, e.g.
// "Entering Passive Mode (127,0,0,1,200,21)" -> "127.0.0.1:51221".
func parsePASV(reply string) (string, error) {
	m := pasvRegex.FindStringSubmatch(reply)
	if len(m) != 7 {
		return "", fmt.Errorf("no (h1,h2,h3,h4,p1,p2) tuple in %q", reply)
	}
	var h [4]int
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v < 0 || v > 255 {
			return "", fmt.Errorf("invalid address octet %q", m[i+1])
		}
		h[i] = v
	}
	p1, err1 := strconv.Atoi(m[5])
	p2, err2 := strconv.Atoi(m[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", fmt.Errorf("invalid port octets %q,%q", m[5], m[6])
	}
	host := fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3])
	port := p1*256 + p2
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// parseEPSV extracts the port from a 229 reply, e.g.
// "Entering Extended Passive Mode (|||6446|)" -> "6446".
func parseEPSV(reply string) (string, error) {
	m := epsvRegex.FindStringSubmatch(reply)
	if len(m) != 2 {
		return "", fmt.Errorf("no (|||port|) tuple in %q", reply)
	}
	if port, err := strconv.Atoi(m[1]); err != nil || port < 0 || port > 65535 {
		return "", fmt.Errorf("invalid port %q", m[1])
	}
	return m[1], nil
}

// resolveDataAddr substitutes the control host for a PASV-advertised
// 0.0.0.0, which some servers send from behind NAT.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// prepareTransfer opens a passive data socket: the cached strategy if one
// has already won, or EPSV then PASV in order otherwise. A
// permanent-negative (5xx) reply from a strategy falls through to the next
// one; any other error aborts the probe (spec §4.3).
func (c *Client) prepareTransfer() (net.Conn, error) {
	c.mu.Lock()
	cached := c.passiveStrategy
	c.mu.Unlock()

	if cached != nil {
		return c.openWithStrategy(cached)
	}

	for _, strat := range []*passiveStrategy{epsvStrategy, pasvStrategy} {
		conn, err := c.openWithStrategy(strat)
		if err == nil {
			c.mu.Lock()
			c.passiveStrategy = strat
			c.mu.Unlock()
			return conn, nil
		}
		if pe, ok := err.(*ProtocolError); ok && pe.Is5xx() {
			continue // try the next strategy
		}
		return nil, err
	}
	return nil, fmt.Errorf("ftp: no passive-mode strategy succeeded")
}

func (c *Client) openWithStrategy(strat *passiveStrategy) (net.Conn, error) {
	addr, err := strat.open(c)
	if err != nil {
		return nil, err
	}

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial data connection", Err: err}
	}

	c.mu.Lock()
	tlsConfig := c.tlsConfig
	timeout := c.timeout
	c.mu.Unlock()

	if tlsConfig != nil {
		if timeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
				conn.Close()
				return nil, &TransportError{Op: "set handshake deadline", Err: err}
			}
		}
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, &TransportError{Op: "data TLS handshake", Err: err}
		}
		conn = tlsConn
	}

	if timeout > 0 {
		return &deadlineConn{Conn: conn, timeout: timeout}, nil
	}
	return conn, nil
}
