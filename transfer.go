package ftp

import (
	"fmt"
	"io"
	"net"

	"github.com/corvidae/goftp/internal/ratelimit"
	"github.com/corvidae/goftp/progress"
)

// UploadOptions selects a byte range of the local source for Upload.
type UploadOptions struct {
	// LocalStart seeks src this many bytes in before uploading. Requires
	// src to implement io.Seeker; ignored if zero.
	LocalStart int64
	// LocalEndInclusive, if greater than zero, stops the upload after this
	// byte offset (inclusive) in src.
	LocalEndInclusive int64
	// BandwidthLimit caps the upload at this many bytes per second. Zero
	// means unlimited.
	BandwidthLimit int64
}

// DownloadOptions selects a resume point for Download.
type DownloadOptions struct {
	// RemoteStart issues REST before RETR, resuming the transfer from this
	// server-side byte offset. Non-goal: this resume path is download-only,
	// uploads never send REST.
	RemoteStart int64
	// LocalStart seeks dst this many bytes in before writing. Requires dst
	// to implement io.Seeker; ignored if zero.
	LocalStart int64
	// BandwidthLimit caps the download at this many bytes per second. Zero
	// means unlimited.
	BandwidthLimit int64
}

// Upload sends STOR, streaming src to remotePath. sink may be nil.
func (c *Client) Upload(remotePath string, src io.Reader, opts UploadOptions, sink progress.Sink) (*Reply, error) {
	return c.store("STOR", remotePath, src, opts, sink)
}

// Append sends APPE, streaming src onto the end of remotePath (creating it
// if it does not exist). This is the substitute the spec leaves for
// upload resume: no REST is ever sent for an upload.
func (c *Client) Append(remotePath string, src io.Reader, sink progress.Sink) (*Reply, error) {
	return c.store("APPE", remotePath, src, UploadOptions{}, sink)
}

func (c *Client) store(command, remotePath string, src io.Reader, opts UploadOptions, sink progress.Sink) (*Reply, error) {
	if err := c.Type("I"); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = progress.Nop{}
	}

	if opts.LocalStart > 0 {
		seeker, ok := src.(io.Seeker)
		if !ok {
			return nil, fmt.Errorf("ftp: %s: LocalStart set but source does not support seeking", command)
		}
		if _, err := seeker.Seek(opts.LocalStart, io.SeekStart); err != nil {
			return nil, &TransportError{Op: "seek local source", Err: err}
		}
	}
	if opts.LocalEndInclusive > 0 {
		limit := opts.LocalEndInclusive - opts.LocalStart + 1
		if limit < 0 {
			limit = 0
		}
		src = io.LimitReader(src, limit)
	}

	dataConn, err := c.prepareTransfer()
	if err != nil {
		return nil, err
	}

	sink.Start(progress.Info{Name: remotePath, Type: progress.Upload})
	defer sink.Stop()
	var reader io.Reader = &progress.Reader{Reader: src, Sink: sink}
	if opts.BandwidthLimit > 0 {
		reader = ratelimit.NewReader(reader, ratelimit.New(opts.BandwidthLimit))
	}

	cmd := fmt.Sprintf("%s %s", command, c.protectWhitespace(remotePath))
	return c.runTransfer(cmd, dataConn, func(conn net.Conn) error {
		_, err := io.Copy(conn, reader)
		return err
	})
}

// Download sends RETR, streaming remotePath to dst. sink may be nil.
func (c *Client) Download(dst io.Writer, remotePath string, opts DownloadOptions, sink progress.Sink) (*Reply, error) {
	if err := c.Type("I"); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = progress.Nop{}
	}

	if opts.RemoteStart > 0 {
		if _, err := c.restartAt(opts.RemoteStart); err != nil {
			return nil, err
		}
	}
	if opts.LocalStart > 0 {
		seeker, ok := dst.(io.Seeker)
		if !ok {
			return nil, fmt.Errorf("ftp: RETR: LocalStart set but destination does not support seeking")
		}
		if _, err := seeker.Seek(opts.LocalStart, io.SeekStart); err != nil {
			return nil, &TransportError{Op: "seek local destination", Err: err}
		}
	}

	dataConn, err := c.prepareTransfer()
	if err != nil {
		return nil, err
	}

	sink.Start(progress.Info{Name: remotePath, Type: progress.Download})
	defer sink.Stop()
	var writer io.Writer = &progress.Writer{Writer: dst, Sink: sink}
	if opts.BandwidthLimit > 0 {
		writer = ratelimit.NewWriter(writer, ratelimit.New(opts.BandwidthLimit))
	}

	cmd := fmt.Sprintf("RETR %s", c.protectWhitespace(remotePath))
	return c.runTransfer(cmd, dataConn, func(conn net.Conn) error {
		_, err := io.Copy(writer, conn)
		return err
	})
}

// restartAt issues REST ahead of a RETR, expecting the 350 intermediate
// reply that means "ready for the next command at this offset".
func (c *Client) restartAt(offset int64) (*Reply, error) {
	cmd := fmt.Sprintf("REST %d", offset)
	return c.handle(cmd, func(reply *Reply, transportErr error, send func(string) error) (*Reply, bool, error) {
		if transportErr != nil {
			return nil, true, transportErr
		}
		if reply.IsPreliminary() {
			return nil, false, nil
		}
		if reply.Code == 350 {
			return reply, true, nil
		}
		return nil, true, &ProtocolError{Command: "REST", Response: reply.Message, Code: reply.Code}
	})
}

// runTransfer sends command, then pumps bytes over dataConn once a
// preliminary (1xx) reply arrives. A terminal reply that arrives without a
// preliminary one closes dataConn unpumped. It resolves only once both the
// pump has finished (so dataConn is closed) and a terminal control reply
// has been read, satisfying the ordering guarantee of spec §4.4/§8: this
// falls out for free here because the handler below never reads the next
// control reply until pump+Close has already returned.
func (c *Client) runTransfer(command string, dataConn net.Conn, pump func(net.Conn) error) (*Reply, error) {
	c.mu.Lock()
	c.dataConn = dataConn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.dataConn = nil
		c.mu.Unlock()
	}()

	var pumpErr, closeErr error
	pumped := false
	runPump := func() {
		pumped = true
		pumpErr = pump(dataConn)
		closeErr = dataConn.Close()
	}

	reply, err := c.handle(command, func(reply *Reply, transportErr error, send func(string) error) (*Reply, bool, error) {
		if transportErr != nil {
			if !pumped {
				dataConn.Close()
			}
			return nil, true, transportErr
		}
		if reply.IsPreliminary() {
			runPump()
			return nil, false, nil
		}
		if !pumped {
			// The server answered without ever opening the data
			// connection (e.g. an immediate 5xx on the command) —
			// nothing was or will be sent over it.
			dataConn.Close()
		}
		if reply.IsPositiveCompletion() {
			return reply, true, nil
		}
		return nil, true, &ProtocolError{Command: command, Response: reply.Message, Code: reply.Code}
	})

	if pumpErr != nil {
		return reply, &TransportError{Op: "pump transfer data", Err: pumpErr}
	}
	if err == nil && closeErr != nil {
		return reply, &TransportError{Op: "close data connection", Err: closeErr}
	}
	return reply, err
}
