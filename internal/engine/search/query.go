package search

import "strings"

// Query is a parsed search input: either a literal substring search or a
// go-to-line jump.
type Query struct {
	Literal string // case-insensitive literal, when not a jump
	Line    int    // 1-based target line, when IsGoto
	IsGoto  bool
}

// Parse interprets raw search input. A leading ':' followed by a positive
// integer means "go to line N" (1-based); anything else, including inputs
// like ":0" or ":abc", is a literal query.
func Parse(raw string) Query {
	if n, ok := gotoTarget(raw); ok {
		return Query{Line: n, IsGoto: true}
	}
	return Query{Literal: raw}
}

func gotoTarget(raw string) (int, bool) {
	if !strings.HasPrefix(raw, ":") || len(raw) == 1 {
		return 0, false
	}
	n := 0
	for _, r := range raw[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
		if n > 1<<30 {
			return 0, false
		}
	}
	if n < 1 {
		return 0, false
	}
	return n, true
}
