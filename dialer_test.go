package ftp

import (
	"net"
	"testing"
	"time"
)

// TestWithDialer tests that the WithDialer option is accepted and stored.
func TestWithDialer(t *testing.T) {
	custom := &net.Dialer{Timeout: 5 * time.Second}

	c := &Client{}
	opt := WithDialer(custom)

	if err := opt(c); err != nil {
		t.Fatalf("WithDialer option failed: %v", err)
	}

	if c.dialer != custom {
		t.Error("dialer was not set correctly")
	}
}
