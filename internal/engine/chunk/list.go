package chunk

import "errors"

// ErrOutOfRange indicates a global line position outside the document.
// Reaching it is an invariant violation in the caller, not a user-facing
// condition.
var ErrOutOfRange = errors.New("line position out of range")

// List is the ordered chunk sequence composing one logical document.
// It is not safe for concurrent mutation; the edit engine serializes all
// writes and hands background readers a Clone.
type List struct {
	chunks []Chunk
}

// NewList returns a list holding the given chunks in order.
func NewList(chunks ...Chunk) *List {
	l := &List{chunks: make([]Chunk, len(chunks))}
	copy(l.chunks, chunks)
	return l
}

// Len returns the number of chunks.
func (l *List) Len() int {
	return len(l.chunks)
}

// At returns a pointer to chunk i. The pointer is valid only until the next
// Append or Splice.
func (l *List) At(i int) *Chunk {
	return &l.chunks[i]
}

// Append adds a chunk at the end of the document.
func (l *List) Append(c Chunk) {
	l.chunks = append(l.chunks, c)
}

// Splice replaces chunk i with zero or more chunks, preserving order.
// An empty replacement removes the chunk.
func (l *List) Splice(i int, repl ...Chunk) {
	out := make([]Chunk, 0, len(l.chunks)-1+len(repl))
	out = append(out, l.chunks[:i]...)
	out = append(out, repl...)
	out = append(out, l.chunks[i+1:]...)
	l.chunks = out
}

// TotalLines sums all chunk sizes. O(number of chunks); callers must not
// assume O(1).
func (l *List) TotalLines(r Resolver) (int, error) {
	total := 0
	for i := range l.chunks {
		n, err := l.chunks[i].Size(r)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Locate maps a global line position to (chunk index, local index) by
// walking the sequence and accumulating sizes. Returns ErrOutOfRange when
// pos is negative or beyond the last line.
func (l *List) Locate(pos int, r Resolver) (int, int, error) {
	if pos < 0 {
		return 0, 0, ErrOutOfRange
	}
	remaining := pos
	for i := range l.chunks {
		n, err := l.chunks[i].Size(r)
		if err != nil {
			return 0, 0, err
		}
		if remaining < n {
			return i, remaining, nil
		}
		remaining -= n
	}
	return 0, 0, ErrOutOfRange
}

// LineAt returns the logical line at pos, indexing into an inserted buffer
// or into cached block lines.
func (l *List) LineAt(pos int, r Resolver) (string, error) {
	i, local, err := l.Locate(pos, r)
	if err != nil {
		return "", err
	}
	lines, err := l.chunks[i].Resolve(r)
	if err != nil {
		return "", err
	}
	return lines[local], nil
}

// Clone returns a deep copy of the list. Inserted buffers are duplicated;
// block references are copied by value. Background readers stream over a
// clone so in-flight edits never move lines under them.
func (l *List) Clone() *List {
	out := make([]Chunk, len(l.chunks))
	for i := range l.chunks {
		out[i] = l.chunks[i].clone()
	}
	return &List{chunks: out}
}

// Lines returns an iterator over every logical line in document order.
func (l *List) Lines(r Resolver) *LineIter {
	return &LineIter{list: l, r: r}
}
