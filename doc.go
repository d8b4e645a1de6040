// Package ftp implements the core of an FTP/FTPS client: a control-channel
// request/response state machine, passive-mode data channel coordination,
// explicit TLS upgrade of both channels, and streaming upload/download with
// progress accounting. Directory traversal and recursive mirror operations
// are layered on top of these primitives.
//
// # Basic usage
//
//	c, err := ftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Login("anonymous", "guest"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.UseDefaultSettings(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Explicit TLS
//
// Only explicit FTPS (AUTH TLS on the plain control port) is supported.
// Implicit TLS and active-mode data transfers are out of scope.
//
//	c, err := ftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := c.UseTLS(&tls.Config{ServerName: "ftp.example.com"}); err != nil {
//	    log.Fatal(err)
//	}
//
// Or, in one call:
//
//	c, err := ftp.Access(ftp.AccessOptions{
//	    Host:   "ftp.example.com",
//	    User:   "anonymous",
//	    Secure: true,
//	})
//
// # Transfers
//
//	f, _ := os.Open("local.txt")
//	defer f.Close()
//	_, err := c.Upload("remote.txt", f, ftp.UploadOptions{}, nil)
//
//	var buf bytes.Buffer
//	_, err = c.Download(&buf, "remote.txt", ftp.DownloadOptions{}, nil)
package ftp
