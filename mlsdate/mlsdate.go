// Package mlsdate parses the fixed-width timestamp format RFC 3659 defines
// for MDTM replies and the MLSx "modify" fact: YYYYMMDDHHMMSS, optionally
// followed by a fractional-seconds suffix that this parser discards.
package mlsdate

import (
	"fmt"
	"strings"
	"time"
)

const layout = "20060102150405"

// Parse parses s, the substring of an MDTM reply after its four-character
// code-and-space prefix, or the value of an MLSx "modify" fact. Time values
// per RFC 3659 §2.3 are always UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Drop fractional seconds, if present, before the fixed-width parse.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if len(s) != len(layout) {
		return time.Time{}, fmt.Errorf("mlsdate: %q is not %d digits", s, len(layout))
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("mlsdate: %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Format renders t per the same fixed-width layout, for MFMT/SITE UTIME-style
// commands that take a timestamp argument.
func Format(t time.Time) string {
	return t.UTC().Format(layout)
}
