// Package history records edit operations in a bounded linear log with a
// cursor, enabling undo and redo.
//
// A single log, not two stacks: the cursor marks the boundary between
// applied and undone operations, so redo availability survives intervening
// reads. Any new edit truncates everything after the cursor.
//
// The log stores operations; it does not know how to apply them. Undo and
// redo hand the operation to a caller-supplied apply function and commit
// the cursor move only when that function succeeds, so a failed inverse
// application leaves history consistent with the document.
package history

import (
	"errors"
	"sync"
)

// Errors returned by history operations.
var (
	// ErrNothingToUndo indicates the cursor is at the start of history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the cursor is at the end of history.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultMaxEntries bounds the log when no explicit limit is given.
const DefaultMaxEntries = 200

// Log is a bounded, linear, indexable sequence of operations plus a cursor.
type Log struct {
	mu     sync.Mutex
	ops    []Op
	cursor int // index of the last applied op; -1 when nothing to undo
	max    int
}

// NewLog creates a log bounded to max entries. Values <= 0 use
// DefaultMaxEntries.
func NewLog(max int) *Log {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Log{cursor: -1, max: max}
}

// Push appends an operation at the cursor: anything previously undone is
// truncated, and when the bound is exceeded the oldest entries are dropped
// with the cursor adjusted to keep pointing at the same operation.
func (l *Log) Push(op Op) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ops = append(l.ops[:l.cursor+1], op)
	l.cursor++

	if excess := len(l.ops) - l.max; excess > 0 {
		l.ops = l.ops[excess:]
		l.cursor -= excess
	}
}

// StepBack hands the operation at the cursor to apply and, on success,
// moves the cursor back. The apply function performs the inverse of the
// operation; if it fails the cursor does not move and the same operation
// remains next in line.
func (l *Log) StepBack(apply func(Op) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor < 0 {
		return ErrNothingToUndo
	}
	if err := apply(l.ops[l.cursor]); err != nil {
		return err
	}
	l.cursor--
	return nil
}

// StepForward hands the operation after the cursor to apply and, on
// success, moves the cursor forward. The apply function re-applies the
// operation.
func (l *Log) StepForward(apply func(Op) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.ops)-1 {
		return ErrNothingToRedo
	}
	if err := apply(l.ops[l.cursor+1]); err != nil {
		return err
	}
	l.cursor++
	return nil
}

// CanUndo reports whether an operation precedes the cursor.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor >= 0
}

// CanRedo reports whether an undone operation follows the cursor.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.ops)-1
}

// Len returns the number of recorded operations.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// Cursor returns the index of the last applied operation, -1 when none.
func (l *Log) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Clear forgets all history.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = nil
	l.cursor = -1
}
