package ftp

import (
	"fmt"
	"strings"
	"time"
)

// HandlerFunc is invoked once per incoming reply (or once with err set, for
// a transport failure) until it returns done=true. Returning done=true with
// result and err set is the synchronous analogue of a task's resolve/reject:
// exactly one call in the sequence may set done.
//
// A handler that wants to send a follow-up command (PASS after 331, RNTO
// after 350) calls send itself and returns done=false to wait for the next
// reply.
type HandlerFunc func(reply *Reply, transportErr error, send func(cmd string) error) (result *Reply, done bool, err error)

// request sends command and installs the default handler: resolve on
// positive completion (2xx), reject with a ProtocolError on any other
// non-preliminary reply. Preliminary (1xx) replies are ignored and the
// handler keeps waiting — this is the common case for plain commands.
func (c *Client) request(command string) (*Reply, error) {
	return c.handle(command, func(reply *Reply, transportErr error, send func(string) error) (*Reply, bool, error) {
		if transportErr != nil {
			return nil, true, transportErr
		}
		if reply.IsPreliminary() {
			return nil, false, nil
		}
		if reply.IsPositiveCompletion() {
			return reply, true, nil
		}
		return nil, true, &ProtocolError{Command: command, Response: reply.Message, Code: reply.Code}
	})
}

// handle is the general form of request: if command is non-empty it is sent
// first, then handler is invoked for every incoming reply (or transport
// error) until it signals done. At most one task is active on the control
// channel at a time; handle blocks a concurrent caller until the current
// task resolves, which realizes the FIFO task-queue invariant of spec §4.2
// as ordinary mutex contention rather than an explicit queue of
// continuations.
func (c *Client) handle(command string, handler HandlerFunc) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &ClientClosedError{}
	}

	if command != "" {
		if err := c.sendLocked(command); err != nil {
			c.closeWithErrorLocked(err)
			return nil, err
		}
	}

	for {
		reply, err := c.readReplyLocked()
		if err != nil {
			result, done, herr := handler(nil, err, c.sendLocked)
			if !done {
				// A transport error always terminates the loop even if the
				// handler asks to continue; there is nothing left to read.
				done = true
			}
			c.closeWithErrorLocked(err)
			if herr != nil {
				return result, herr
			}
			return result, err
		}

		c.log(fmt.Sprintf("< %d %s", reply.Code, firstLine(reply.Message)))

		result, done, herr := handler(reply, nil, c.sendLocked)
		if done {
			return result, herr
		}
	}
}

// send injects a raw command line without waiting for or consuming a reply.
// It is used by handlers that must emit a follow-up mid-exchange (e.g. PASS
// after a 331 to USER).
func (c *Client) send(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ClientClosedError{}
	}
	return c.sendLocked(command)
}

func (c *Client) sendLocked(command string) error {
	c.lastCommand = time.Now()
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return &TransportError{Op: "set write deadline", Err: err}
		}
	}
	c.log("> " + redactCommand(command))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", command); err != nil {
		return &TransportError{Op: "write command", Err: err}
	}
	return nil
}

func (c *Client) readReplyLocked() (*Reply, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, &TransportError{Op: "set read deadline", Err: err}
		}
	}
	reply, err := readReply(c.reader)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, &TimeoutError{Op: "read reply"}
		}
		return nil, &TransportError{Op: "read reply", Err: err}
	}
	return reply, nil
}

// closeWithError forcibly terminates the active task with err and marks
// the session closed; every subsequent operation fails immediately with
// ClientClosedError.
func (c *Client) closeWithError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeWithErrorLocked(err)
}

func (c *Client) closeWithErrorLocked(err error) {
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if c.dataConn != nil {
		_ = c.dataConn.Close()
		c.dataConn = nil
	}
	c.log("connection closed: " + err.Error())
}

// log surfaces a human-readable trace line for debugging.
func (c *Client) log(line string) {
	if c.logger != nil {
		c.logger.Debug(line)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// redactCommand keeps PASS arguments out of debug logs.
func redactCommand(cmd string) string {
	if strings.HasPrefix(strings.ToUpper(cmd), "PASS ") {
		return "PASS ***"
	}
	return cmd
}

func isTimeoutErr(err error) bool {
	type timeoutIface interface{ Timeout() bool }
	te, ok := err.(timeoutIface)
	return ok && te.Timeout()
}
