package ftp

import (
	"fmt"
	"strings"

	"github.com/corvidae/goftp/listing"
)

// MLStat returns structured metadata for a single path via MLST (RFC 3659),
// reusing the MLSD fact parser for the one entry line the reply carries.
func (c *Client) MLStat(path string) (*listing.FileInfo, error) {
	reply, err := c.request("MLST " + c.protectWhitespace(path))
	if err != nil {
		return nil, err
	}

	var entryLine string
	for _, line := range reply.Lines {
		if len(line) >= 4 && (line[3] == '-' || line[3] == ' ') {
			continue // status line, not the fact line
		}
		if t := strings.TrimSpace(line); t != "" {
			entryLine = t
			break
		}
	}
	if entryLine == "" {
		return nil, &ParseError{Context: "MLST reply", Text: reply.String(), Err: fmt.Errorf("no entry line")}
	}

	fi, ok := (&listing.MLSDParser{}).Parse(entryLine)
	if !ok {
		return nil, &ParseError{Context: "MLST entry", Text: entryLine, Err: fmt.Errorf("unparsable fact line")}
	}
	return fi, nil
}
