package ftp

import (
	"testing"
	"time"

	"net/textproto"
)

func TestMLStat_Success(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	ms.handlers["MLST"] = func(c *textproto.Conn, args string) {
		_ = c.PrintfLine("250-Listing %s", args)
		_ = c.PrintfLine(" Type=file;Size=1234;Modify=20231220143000; example.txt")
		_ = c.PrintfLine("250 End")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr, WithTimeout(1*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Quit() }()
	if err := c.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	fi, err := c.MLStat("example.txt")
	if err != nil {
		t.Fatalf("MLStat failed: %v", err)
	}
	if fi.Name != "example.txt" {
		t.Errorf("Name = %q, want example.txt", fi.Name)
	}
	if fi.Size != 1234 {
		t.Errorf("Size = %d, want 1234", fi.Size)
	}
	if fi.IsDir {
		t.Error("IsDir = true, want false")
	}
	if fi.ModTime != "20231220143000" {
		t.Errorf("ModTime = %q, want 20231220143000", fi.ModTime)
	}
}

func TestMLStat_Directory(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	ms.handlers["MLST"] = func(c *textproto.Conn, args string) {
		_ = c.PrintfLine("250-Listing %s", args)
		_ = c.PrintfLine(" Type=dir;Modify=20231220143000; mydir")
		_ = c.PrintfLine("250 End")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr, WithTimeout(1*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Quit() }()
	if err := c.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	fi, err := c.MLStat("mydir")
	if err != nil {
		t.Fatalf("MLStat failed: %v", err)
	}
	if !fi.IsDir {
		t.Error("IsDir = false, want true")
	}
}

func TestMLStat_NotImplemented(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	// No MLST handler: falls through to the default 502 response.
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr, WithTimeout(1*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Quit() }()
	if err := c.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := c.MLStat("whatever"); err == nil {
		t.Error("expected an error when MLST is not implemented")
	}
}
