// Package search finds literal, case-insensitive matches by streaming over
// the logical document and reports them as absolute character ranges.
//
// Queries are escaped before matching, so they are always plain substrings,
// never regular expressions. Offsets are rune-based and document-relative:
// the walk accumulates each line's rune count plus one for the implicit
// newline, which keeps ranges stable regardless of how lines are split
// across chunks or encoded in bytes.
package search

import (
	"context"
	"regexp"
	"unicode/utf8"
)

// Range is one match as [Start, End) rune offsets from the document start.
type Range struct {
	Start int
	End   int
}

// LineSource streams logical lines in document order. *chunk.LineIter
// satisfies it.
type LineSource interface {
	Next() bool
	Line() string
	Err() error
}

// Matcher matches one literal query case-insensitively.
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher compiles a matcher for the literal query. An empty query
// matches nothing.
func NewMatcher(query string) *Matcher {
	if query == "" {
		return &Matcher{}
	}
	return &Matcher{re: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(query))}
}

// FindLine returns the non-overlapping matches within one line as
// [start, end) rune offsets, ascending.
func (m *Matcher) FindLine(line string) []Range {
	if m.re == nil {
		return nil
	}
	idx := m.re.FindAllStringIndex(line, -1)
	if len(idx) == 0 {
		return nil
	}

	// Convert byte offsets to rune offsets in one forward pass; matches
	// arrive in ascending order.
	out := make([]Range, 0, len(idx))
	byteAt, runeAt := 0, 0
	advance := func(to int) int {
		for byteAt < to {
			_, size := utf8.DecodeRuneInString(line[byteAt:])
			byteAt += size
			runeAt++
		}
		return runeAt
	}
	for _, pair := range idx {
		start := advance(pair[0])
		end := advance(pair[1])
		out = append(out, Range{Start: start, End: end})
	}
	return out
}

// Rewrite replaces every match in line with replacement, taken literally,
// and returns the number of occurrences replaced.
func (m *Matcher) Rewrite(line, replacement string) (string, int) {
	if m.re == nil {
		return line, 0
	}
	idx := m.re.FindAllStringIndex(line, -1)
	if len(idx) == 0 {
		return line, 0
	}
	return m.re.ReplaceAllLiteralString(line, replacement), len(idx)
}

// FindAll streams every logical line from src and returns all matches of
// query as absolute rune ranges, ascending. An empty query returns no
// matches. The walk checks ctx between lines and stops early when it is
// cancelled or when the source fails.
func FindAll(ctx context.Context, src LineSource, query string) ([]Range, error) {
	if query == "" {
		return nil, nil
	}

	m := NewMatcher(query)
	var (
		out    []Range
		offset int
	)
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := src.Line()
		for _, r := range m.FindLine(line) {
			out = append(out, Range{Start: offset + r.Start, End: offset + r.End})
		}
		offset += utf8.RuneCountInString(line) + 1
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
