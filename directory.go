package ftp

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/corvidae/goftp/listing"
	"github.com/corvidae/goftp/mlsdate"
)

// Pwd returns the absolute current working directory via PWD, parsing the
// first quoted segment of the reply (spec §8 scenario 6).
func (c *Client) Pwd() (string, error) {
	reply, err := c.request("PWD")
	if err != nil {
		return "", err
	}
	return parseQuotedPath(reply.Message)
}

func parseQuotedPath(msg string) (string, error) {
	start := strings.IndexByte(msg, '"')
	if start == -1 {
		return "", &ParseError{Context: "PWD reply", Text: msg, Err: fmt.Errorf("no quoted path")}
	}
	end := strings.IndexByte(msg[start+1:], '"')
	if end == -1 {
		return "", &ParseError{Context: "PWD reply", Text: msg, Err: fmt.Errorf("unterminated quoted path")}
	}
	return msg[start+1 : start+1+end], nil
}

// Cd changes the working directory.
func (c *Client) Cd(dir string) (*Reply, error) {
	return c.request("CWD " + c.protectWhitespace(dir))
}

// Cdup moves up one directory.
func (c *Client) Cdup() (*Reply, error) {
	return c.request("CDUP")
}

// Rename issues RNFR followed by RNTO, the two-command rename sequence
// (spec §4.5): RNFR must return 350 before RNTO is sent.
func (c *Client) Rename(src, dst string) (*Reply, error) {
	sentRNTO := false
	return c.handle("RNFR "+c.protectWhitespace(src), func(reply *Reply, transportErr error, send func(string) error) (*Reply, bool, error) {
		if transportErr != nil {
			return nil, true, transportErr
		}
		if reply.IsPreliminary() {
			return nil, false, nil
		}
		if !sentRNTO {
			if reply.Code != 350 {
				return nil, true, &ProtocolError{Command: "RNFR", Response: reply.Message, Code: reply.Code}
			}
			sentRNTO = true
			if err := send("RNTO " + c.protectWhitespace(dst)); err != nil {
				return nil, true, err
			}
			return nil, false, nil
		}
		if reply.IsPositiveCompletion() {
			return reply, true, nil
		}
		return nil, true, &ProtocolError{Command: "RNTO", Response: reply.Message, Code: reply.Code}
	})
}

// Remove deletes a file with DELE.
func (c *Client) Remove(path string) (*Reply, error) {
	return c.request("DELE " + c.protectWhitespace(path))
}

// RemoveEmptyDir removes an empty directory with RMD.
func (c *Client) RemoveEmptyDir(path string) (*Reply, error) {
	return c.request("RMD " + c.protectWhitespace(path))
}

// Size returns the size in bytes of path via SIZE.
func (c *Client) Size(path string) (int64, error) {
	reply, err := c.request("SIZE " + c.protectWhitespace(path))
	if err != nil {
		return 0, err
	}
	size, perr := strconv.ParseInt(strings.TrimSpace(reply.Message), 10, 64)
	if perr != nil {
		return 0, &ParseError{Context: "SIZE reply", Text: reply.Message, Err: perr}
	}
	return size, nil
}

// LastMod returns the modification time of path via MDTM.
func (c *Client) LastMod(path string) (time.Time, error) {
	reply, err := c.request("MDTM " + c.protectWhitespace(path))
	if err != nil {
		return time.Time{}, err
	}
	t, perr := mlsdate.Parse(reply.Message)
	if perr != nil {
		return time.Time{}, &ParseError{Context: "MDTM reply", Text: reply.Message, Err: perr}
	}
	return t, nil
}

// SetModTime sets the modification time of path via MFMT (draft-somers-ftp-mfxx).
func (c *Client) SetModTime(path string, t time.Time) (*Reply, error) {
	return c.request(fmt.Sprintf("MFMT %s %s", mlsdate.Format(t), c.protectWhitespace(path)))
}

// protectWhitespace implements spec §4.5's whitespace protection: a path
// starting with a space is turned into an absolute path rooted at the
// current directory, since most servers otherwise mis-tokenize the command
// line. Any other path passes through unchanged.
func (c *Client) protectWhitespace(p string) string {
	if p == "" || p[0] != ' ' {
		return p
	}
	pwd, err := c.Pwd()
	if err != nil {
		return p
	}
	if !strings.HasSuffix(pwd, "/") {
		pwd += "/"
	}
	return pwd + p
}

// List fetches a directory listing, trying MLSD, then LIST -a, then LIST, in
// that order the first time it is called; once one succeeds it becomes the
// sole candidate for the rest of the session (spec §4.5 "listing command
// discovery"). dir may be empty to list the working directory.
func (c *Client) List(dir string) ([]*listing.FileInfo, error) {
	c.mu.Lock()
	candidates := c.listCommands
	c.mu.Unlock()

	var lastErr error
	for i, base := range candidates {
		cmd := base
		if dir != "" {
			cmd = base + " " + c.protectWhitespace(dir)
		}
		body, err := c.readDataCommand(cmd)
		if err == nil {
			if len(candidates) > 1 {
				c.mu.Lock()
				c.listCommands = []string{base}
				c.mu.Unlock()
			}
			if base == "MLSD" {
				return listing.ParseMLSD(body), nil
			}
			return listing.Parse(body, c.listParsers), nil
		}
		lastErr = err
		if pe, ok := err.(*ProtocolError); ok && pe.Is5xx() && i < len(candidates)-1 {
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// readDataCommand runs command through the transfer engine, capturing
// everything written to the data socket as text. LIST, MLSD, and NLST are
// all, from the control channel's point of view, ordinary transfers.
func (c *Client) readDataCommand(command string) (string, error) {
	dataConn, err := c.prepareTransfer()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := c.runTransfer(command, dataConn, func(conn net.Conn) error {
		_, err := io.Copy(&buf, conn)
		return err
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
