// Package listing parses the text formats a directory-listing data channel
// can return: Unix and DOS-style LIST output, EPLF, and the machine-readable
// MLSD/MLST fact syntax of RFC 3659. The core client only ever consumes the
// resulting FileInfo.Name and FileInfo.IsDir; the rest of the struct is
// exposed for callers that want it.
package listing

import (
	"strconv"
	"strings"
)

// FileInfo is the parsed shape of a single listing entry, regardless of
// which wire format it came from.
type FileInfo struct {
	Name    string
	IsDir   bool
	IsLink  bool
	Target  string // symlink target, if IsLink
	Size    int64
	ModTime string // raw MLSx modify fact, if present; "" for LIST-derived entries
	Raw     string
}

// Parser recognizes and parses a single line of a specific listing format.
type Parser interface {
	Parse(line string) (*FileInfo, bool)
}

// DefaultParsers returns the built-in parsers in the order they should be
// tried: EPLF and DOS are cheap-and-specific enough to try first, Unix last
// as it accepts the widest range of inputs.
func DefaultParsers() []Parser {
	return []Parser{&EPLFParser{}, &DOSParser{}, &UnixParser{}}
}

// Parse runs a raw LIST/NLST body through parsers, trying each in order for
// every non-blank line, and returns every entry any parser recognized.
func Parse(raw string, parsers []Parser) []*FileInfo {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	var out []*FileInfo
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, p := range parsers {
			if fi, ok := p.Parse(trimmed); ok {
				out = append(out, fi)
				break
			}
		}
	}
	return out
}

// UnixParser parses the traditional `ls -l`-derived LIST format, both the
// 9-field (with group) and 8-field (without group) variants, and both
// symbolic and numeric permission columns.
type UnixParser struct{}

func (UnixParser) Parse(line string) (*FileInfo, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, false
	}
	fi := &FileInfo{Raw: line}
	if !parseUnixEntry(fi, fields) {
		return nil, false
	}
	return fi, true
}

func parseUnixEntry(fi *FileInfo, fields []string) bool {
	perms := fields[0]
	isSymbolic := len(perms) >= 1 && strings.ContainsRune("-dlbcps", rune(perms[0]))
	isNumeric := len(perms) >= 3 && len(perms) <= 4
	for _, ch := range perms {
		if ch < '0' || ch > '7' {
			isNumeric = false
			break
		}
	}
	if !isSymbolic && !isNumeric {
		return false
	}

	if isSymbolic {
		switch perms[0] {
		case 'd':
			fi.IsDir = true
		case 'l':
			fi.IsLink = true
		}
	}

	var sizeIdx, nameStartIdx int
	switch {
	case len(fields) >= 9 && isSize(fields[4]):
		sizeIdx, nameStartIdx = 4, 8
	case len(fields) >= 8 && isSize(fields[3]):
		sizeIdx, nameStartIdx = 3, 7
	default:
		return false
	}

	size, err := strconv.ParseInt(fields[sizeIdx], 10, 64)
	if err != nil {
		return false
	}
	fi.Size = size

	fullName := strings.Join(fields[nameStartIdx:], " ")
	if fi.IsLink {
		if before, after, ok := strings.Cut(fullName, " -> "); ok {
			fi.Name, fi.Target = before, after
		} else {
			fi.Name = fullName
		}
	} else {
		fi.Name = fullName
	}
	return true
}

func isSize(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// DOSParser parses Windows FTP server LIST output:
// "12-14-23  12:22PM  1037794 file.pdf" or "... <DIR> dirname".
type DOSParser struct{}

func (DOSParser) Parse(line string) (*FileInfo, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 || !isDOSDate(fields[0]) {
		return nil, false
	}
	fi := &FileInfo{Raw: line}
	if fields[2] == "<DIR>" {
		fi.IsDir = true
		fi.Name = strings.Join(fields[3:], " ")
		return fi, true
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false
	}
	fi.Size = size
	fi.Name = strings.Join(fields[3:], " ")
	return fi, true
}

func isDOSDate(s string) bool {
	var parts []string
	switch {
	case strings.Contains(s, "-"):
		parts = strings.Split(s, "-")
	case strings.Contains(s, "/"):
		parts = strings.Split(s, "/")
	default:
		return false
	}
	if len(parts) != 3 {
		return false
	}
	for i, part := range parts {
		if len(part) < 1 || len(part) > 4 {
			return false
		}
		if i == 2 && len(part) != 2 && len(part) != 4 {
			return false
		}
		if i < 2 && len(part) > 2 {
			return false
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return false
			}
		}
	}
	return true
}

// EPLFParser parses the Easily Parsed List Format: "+facts\tname".
type EPLFParser struct{}

func (EPLFParser) Parse(line string) (*FileInfo, bool) {
	if !strings.HasPrefix(line, "+") {
		return nil, false
	}
	rest := line[1:]
	idx := strings.IndexAny(rest, "\t ")
	if idx == -1 {
		return nil, false
	}
	facts, name := rest[:idx], strings.TrimSpace(rest[idx+1:])
	if name == "" {
		return nil, false
	}
	fi := &FileInfo{Name: name, Raw: line}
	for _, fact := range strings.Split(facts, ",") {
		if fact == "" {
			continue
		}
		switch fact[0] {
		case '/':
			fi.IsDir = true
		case 's':
			if len(fact) > 1 {
				if size, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
					fi.Size = size
				}
			}
		}
	}
	return fi, true
}

// MLSDParser parses a single RFC 3659 machine-listing line: "fact=val;... name".
type MLSDParser struct{}

func (MLSDParser) Parse(line string) (*FileInfo, bool) {
	spaceIdx := strings.Index(line, " ")
	if spaceIdx == -1 {
		return nil, false
	}
	factsStr, name := line[:spaceIdx], line[spaceIdx+1:]
	if name == "" {
		return nil, false
	}
	fi := &FileInfo{Name: name, Raw: line}
	for _, pair := range strings.Split(factsStr, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "type":
			t := strings.ToLower(v)
			fi.IsDir = t == "dir" || t == "cdir" || t == "pdir"
		case "size":
			if size, err := strconv.ParseInt(v, 10, 64); err == nil {
				fi.Size = size
			}
		case "modify":
			fi.ModTime = v
		}
	}
	return fi, true
}

// ParseMLSD parses an entire MLSD response body, one entry per recognized
// line. The "cdir"/"pdir" pseudo-entries that name the listed directory
// itself and its parent are kept, as directories; callers filter them out.
func ParseMLSD(raw string) []*FileInfo {
	var out []*FileInfo
	p := MLSDParser{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "\r")
		if line == "" {
			continue
		}
		fi, ok := p.Parse(line)
		if !ok {
			continue
		}
		out = append(out, fi)
	}
	return out
}

