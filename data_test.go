package ftp

import "testing"

func TestResolveDataAddr(t *testing.T) {
	tests := []struct {
		name        string
		pasvAddr    string
		controlHost string
		wantAddr    string
	}{
		{
			name:        "normal address",
			pasvAddr:    "192.168.1.5:12345",
			controlHost: "10.0.0.1",
			wantAddr:    "192.168.1.5:12345",
		},
		{
			name:        "zero address",
			pasvAddr:    "0.0.0.0:12345",
			controlHost: "10.0.0.1",
			wantAddr:    "10.0.0.1:12345",
		},
		{
			name:        "invalid address",
			pasvAddr:    "invalid",
			controlHost: "10.0.0.1",
			wantAddr:    "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDataAddr(tt.pasvAddr, tt.controlHost)
			if got != tt.wantAddr {
				t.Errorf("resolveDataAddr() = %v, want %v", got, tt.wantAddr)
			}
		})
	}
}

func TestParsePASV(t *testing.T) {
	got, err := parsePASV("Entering Passive Mode (127,0,0,1,200,21)")
	if err != nil {
		t.Fatalf("parsePASV: %v", err)
	}
	if want := "127.0.0.1:51221"; got != want {
		t.Errorf("parsePASV() = %q, want %q", got, want)
	}
}

func TestParsePASV_Malformed(t *testing.T) {
	if _, err := parsePASV("no tuple here"); err == nil {
		t.Error("expected error for malformed PASV reply")
	}
}

func TestParseEPSV(t *testing.T) {
	got, err := parseEPSV("Entering Extended Passive Mode (|||6446|)")
	if err != nil {
		t.Fatalf("parseEPSV: %v", err)
	}
	if want := "6446"; got != want {
		t.Errorf("parseEPSV() = %q, want %q", got, want)
	}
}

func TestParseEPSV_Malformed(t *testing.T) {
	if _, err := parseEPSV("no tuple here"); err == nil {
		t.Error("expected error for malformed EPSV reply")
	}
}
