// Package syntax parses token-to-color mapping files and reloads them on
// change.
//
// A mapping file is line-oriented: each non-empty line that is not a
// comment has the form
//
//	token=colorspec
//
// Lines starting with # are comments. Malformed lines (no separator, or an
// empty token or colorspec) are skipped; a bad line never fails the whole
// load. Later lines override earlier ones for the same token.
package syntax

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mapping associates token names with color specifications.
type Mapping map[string]string

// Parse reads a mapping from r. The only possible error is a read failure;
// unparseable lines are dropped silently.
func Parse(r io.Reader) (Mapping, error) {
	m := make(Mapping)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		token, spec, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		token = strings.TrimSpace(token)
		spec = strings.TrimSpace(spec)
		if token == "" || spec == "" {
			continue
		}
		m[token] = spec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading mapping: %w", err)
	}
	return m, nil
}

// LoadFile parses the mapping file at path.
func LoadFile(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading mapping %s: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loading mapping %s: %w", path, err)
	}
	return m, nil
}
