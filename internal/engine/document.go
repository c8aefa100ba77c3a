package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dshills/blockdoc/internal/engine/block"
	"github.com/dshills/blockdoc/internal/engine/cache"
	"github.com/dshills/blockdoc/internal/engine/chunk"
	"github.com/dshills/blockdoc/internal/engine/history"
	"github.com/dshills/blockdoc/internal/engine/search"
	"github.com/dshills/blockdoc/internal/engine/stats"
)

// Re-export commonly used types for convenience.
type (
	// BlockID identifies a stored block.
	BlockID = block.ID

	// Range is a search match as [Start, End) rune offsets.
	Range = search.Range

	// Counts holds aggregate document metrics.
	Counts = stats.Counts

	// CacheStats reports block cache effectiveness.
	CacheStats = cache.Stats
)

// Document is the chunked document storage engine: an ordered chunk list
// over an append-only block store, with a bounded cache, linear undo/redo
// history, streaming search and counts.
//
// Reads may run concurrently; mutations take the write lock, so there is a
// single logical writer. Background readers work on snapshots and never
// observe a half-applied edit.
type Document struct {
	mu sync.RWMutex

	// Core components
	store  *block.Store
	cache  *cache.Cache
	chunks *chunk.List
	hist   *history.Log

	// File association
	path     string
	trailing bool // source ended with a line break; reproduced on save

	// State
	closed   bool
	modified atomic.Bool
	version  atomic.Uint64

	// Configuration
	blockSize  int
	cacheCap   int
	maxHistory int
	baseDir    string
}

// New creates an empty scratch document: one empty line, no file
// association.
func New(opts ...Option) (*Document, error) {
	d, err := newDocument(opts)
	if err != nil {
		return nil, err
	}
	d.chunks = chunk.NewList(chunk.Inserted([]string{""}))
	return d, nil
}

// Open streams the file at path into blocks and builds a document with one
// chunk per block. An empty file opens as a single empty line.
func Open(path string, opts ...Option) (*Document, error) {
	d, err := newDocument(opts)
	if err != nil {
		return nil, err
	}

	descs, trailing, err := d.store.Open(path)
	if err != nil {
		d.store.Cleanup()
		return nil, err
	}

	d.adopt(descs, trailing)
	d.path = path
	return d, nil
}

// OpenReader streams src into blocks and builds a document with no file
// association, like a scratch document that starts with content. Save
// returns ErrNoFilePath until SaveAs binds a path.
func OpenReader(src io.Reader, opts ...Option) (*Document, error) {
	d, err := newDocument(opts)
	if err != nil {
		return nil, err
	}

	descs, trailing, err := d.store.Stream(src)
	if err != nil {
		d.store.Cleanup()
		return nil, err
	}

	d.adopt(descs, trailing)
	return d, nil
}

// adopt installs the chunk list for freshly streamed blocks. An empty
// source becomes a single empty logical line.
func (d *Document) adopt(descs []block.Desc, trailing bool) {
	list := chunk.NewList()
	for _, desc := range descs {
		list.Append(chunk.FromDesc(desc))
	}
	if list.Len() == 0 {
		list.Append(chunk.Inserted([]string{""}))
	}
	d.chunks = list
	d.trailing = trailing
}

func newDocument(opts []Option) (*Document, error) {
	d := &Document{
		blockSize:  DefaultBlockSize,
		cacheCap:   DefaultCacheCapacity,
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(d)
	}

	storeOpts := []block.Option{block.WithBlockSize(d.blockSize)}
	if d.baseDir != "" {
		storeOpts = append(storeOpts, block.WithBaseDir(d.baseDir))
	}
	store, err := block.NewStore(storeOpts...)
	if err != nil {
		return nil, err
	}

	d.store = store
	d.cache = cache.New(store, cache.WithCapacity(d.cacheCap))
	d.hist = history.NewLog(d.maxHistory)
	return d, nil
}

// ============================================================================
// Read Operations
// ============================================================================

// Path returns the associated file path, empty for scratch documents.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// TotalLines returns the logical line count by summing all chunk sizes.
// O(number of chunks).
func (d *Document) TotalLines() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, ErrDocumentClosed
	}
	return d.chunks.TotalLines(d.cache)
}

// Line returns the logical line at pos. A missing block file surfaces as a
// *block.FileError; the line is lost, not the document.
func (d *Document) Line(pos int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrDocumentClosed
	}
	return d.chunks.LineAt(pos, d.cache)
}

// Snapshot returns a deep copy of the chunk list and the trailing-newline
// flag. Background tasks stream over the copy while edits continue on the
// live list; both share the block cache.
func (d *Document) Snapshot() (*chunk.List, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, false, ErrDocumentClosed
	}
	return d.chunks.Clone(), d.trailing, nil
}

// Resolver returns the block cache as a chunk resolver, for streaming over
// snapshots.
func (d *Document) Resolver() chunk.Resolver {
	return d.cache
}

// Modified reports whether the document changed since the last save.
func (d *Document) Modified() bool {
	return d.modified.Load()
}

// Version returns a counter incremented on every committed mutation.
// Background tasks use it to tell whether their snapshot is still current.
func (d *Document) Version() uint64 {
	return d.version.Load()
}

// CanUndo reports whether an operation can be undone.
func (d *Document) CanUndo() bool {
	return d.hist.CanUndo()
}

// CanRedo reports whether an undone operation can be re-applied.
func (d *Document) CanRedo() bool {
	return d.hist.CanRedo()
}

// CacheStats returns block cache counters.
func (d *Document) CacheStats() CacheStats {
	return d.cache.Stats()
}

// BlockCount returns the number of blocks written this session.
func (d *Document) BlockCount() int {
	return d.store.Count()
}

// ChunkCount returns the current number of chunks.
func (d *Document) ChunkCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chunks.Len()
}

// SessionDir returns the directory holding this document's block files.
// The directory is removed by Close.
func (d *Document) SessionDir() string {
	return d.store.Dir()
}

// ============================================================================
// Edit Operations
// ============================================================================

// ReplaceLine replaces the line at pos. When the line lives in a stored
// block the block is split copy-on-write: the untouched lines before and
// after it become new, smaller blocks and the replaced line becomes an
// in-memory chunk. The edit is recorded in history before it is complete.
func (d *Document) ReplaceLine(pos int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDocumentClosed
	}

	old, err := d.replaceLineLocked(pos, text)
	if err != nil {
		return err
	}
	d.hist.Push(history.ReplaceLine(pos, old, text))
	d.commitLocked()
	return nil
}

// InsertLine inserts text so it becomes the line at pos, shifting later
// lines down. pos may equal TotalLines to append at the end.
func (d *Document) InsertLine(pos int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDocumentClosed
	}

	if err := d.insertLineLocked(pos, text); err != nil {
		return err
	}
	d.hist.Push(history.InsertLine(pos, text))
	d.commitLocked()
	return nil
}

// DeleteLine removes the line at pos, shifting later lines up.
func (d *Document) DeleteLine(pos int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDocumentClosed
	}

	old, err := d.deleteLineLocked(pos)
	if err != nil {
		return err
	}
	d.hist.Push(history.DeleteLine(pos, old))
	d.commitLocked()
	return nil
}

// replaceLineLocked performs the replacement without recording history and
// returns the replaced value. Caller holds the write lock.
func (d *Document) replaceLineLocked(pos int, text string) (string, error) {
	ci, local, err := d.chunks.Locate(pos, d.cache)
	if err != nil {
		return "", err
	}

	c := d.chunks.At(ci)
	if c.IsInserted() {
		old := c.Lines()[local]
		c.SetLine(local, text)
		return old, nil
	}

	lines, err := c.Resolve(d.cache)
	if err != nil {
		return "", err
	}
	old := lines[local]
	oldID := c.BlockID()

	// Split: untouched halves become new blocks, skipped when empty.
	parts := make([]chunk.Chunk, 0, 3)
	if local > 0 {
		b, err := d.writeBlockChunk(lines[:local])
		if err != nil {
			return "", err
		}
		parts = append(parts, b)
	}
	parts = append(parts, chunk.InsertedLine(text))
	if local < len(lines)-1 {
		b, err := d.writeBlockChunk(lines[local+1:])
		if err != nil {
			return "", err
		}
		parts = append(parts, b)
	}

	d.chunks.Splice(ci, parts...)
	d.cache.Invalidate(oldID)
	return old, nil
}

// insertLineLocked performs the insertion without recording history.
// Caller holds the write lock.
func (d *Document) insertLineLocked(pos int, text string) error {
	total, err := d.chunks.TotalLines(d.cache)
	if err != nil {
		return err
	}
	if pos == total {
		// Append: grow a trailing inserted chunk or add a new one.
		if n := d.chunks.Len(); n > 0 && d.chunks.At(n-1).IsInserted() {
			last := d.chunks.At(n - 1)
			last.InsertLine(len(last.Lines()), text)
		} else {
			d.chunks.Append(chunk.InsertedLine(text))
		}
		return nil
	}

	ci, local, err := d.chunks.Locate(pos, d.cache)
	if err != nil {
		return err
	}

	c := d.chunks.At(ci)
	if c.IsInserted() {
		c.InsertLine(local, text)
		return nil
	}

	lines, err := c.Resolve(d.cache)
	if err != nil {
		return err
	}
	oldID := c.BlockID()

	if local == 0 {
		// Inserting at the block boundary leaves the block intact.
		d.chunks.Splice(ci, chunk.InsertedLine(text), *c)
		return nil
	}

	before, err := d.writeBlockChunk(lines[:local])
	if err != nil {
		return err
	}
	after, err := d.writeBlockChunk(lines[local:])
	if err != nil {
		return err
	}
	d.chunks.Splice(ci, before, chunk.InsertedLine(text), after)
	d.cache.Invalidate(oldID)
	return nil
}

// deleteLineLocked performs the removal without recording history and
// returns the removed value. Caller holds the write lock.
func (d *Document) deleteLineLocked(pos int) (string, error) {
	ci, local, err := d.chunks.Locate(pos, d.cache)
	if err != nil {
		return "", err
	}

	c := d.chunks.At(ci)
	if c.IsInserted() {
		old := c.RemoveLine(local)
		if len(c.Lines()) == 0 {
			d.chunks.Splice(ci)
		}
		return old, nil
	}

	lines, err := c.Resolve(d.cache)
	if err != nil {
		return "", err
	}
	old := lines[local]
	oldID := c.BlockID()

	parts := make([]chunk.Chunk, 0, 2)
	if local > 0 {
		b, err := d.writeBlockChunk(lines[:local])
		if err != nil {
			return "", err
		}
		parts = append(parts, b)
	}
	if local < len(lines)-1 {
		b, err := d.writeBlockChunk(lines[local+1:])
		if err != nil {
			return "", err
		}
		parts = append(parts, b)
	}

	d.chunks.Splice(ci, parts...)
	d.cache.Invalidate(oldID)
	return old, nil
}

func (d *Document) writeBlockChunk(lines []string) (chunk.Chunk, error) {
	id, err := d.store.WriteBlock(lines)
	if err != nil {
		return chunk.Chunk{}, err
	}
	return chunk.BlockRef(id, len(lines)), nil
}

func (d *Document) commitLocked() {
	d.modified.Store(true)
	d.version.Add(1)
}

// ============================================================================
// Undo / Redo
// ============================================================================

// Undo reverses the most recent operation. Returns ErrNothingToUndo at the
// start of history. A failed inverse application leaves both the document
// and the history cursor unchanged.
func (d *Document) Undo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDocumentClosed
	}

	if err := d.hist.StepBack(d.applyInverse); err != nil {
		return err
	}
	d.commitLocked()
	return nil
}

// Redo re-applies the most recently undone operation. Returns
// ErrNothingToRedo at the end of history.
func (d *Document) Redo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDocumentClosed
	}

	if err := d.hist.StepForward(d.applyForward); err != nil {
		return err
	}
	d.commitLocked()
	return nil
}

func (d *Document) applyInverse(op history.Op) error {
	switch op.Kind {
	case history.OpReplaceLine:
		_, err := d.replaceLineLocked(op.Pos, op.Old)
		return err
	case history.OpInsertLine:
		_, err := d.deleteLineLocked(op.Pos)
		return err
	case history.OpDeleteLine:
		return d.insertLineLocked(op.Pos, op.Old)
	case history.OpSnapshot:
		d.chunks = op.Before.Clone()
		return nil
	default:
		return fmt.Errorf("unknown operation kind %d", op.Kind)
	}
}

func (d *Document) applyForward(op history.Op) error {
	switch op.Kind {
	case history.OpReplaceLine:
		_, err := d.replaceLineLocked(op.Pos, op.New)
		return err
	case history.OpInsertLine:
		return d.insertLineLocked(op.Pos, op.New)
	case history.OpDeleteLine:
		_, err := d.deleteLineLocked(op.Pos)
		return err
	case history.OpSnapshot:
		d.chunks = op.After.Clone()
		return nil
	default:
		return fmt.Errorf("unknown operation kind %d", op.Kind)
	}
}

// ============================================================================
// Search and Counts
// ============================================================================

// FindAll returns every match of the literal, case-insensitive query as
// absolute character ranges in ascending order. It streams over a snapshot,
// so a concurrent edit does not disturb the walk; ctx cancels it between
// lines.
func (d *Document) FindAll(ctx context.Context, query string) ([]Range, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, ErrDocumentClosed
	}
	list := d.chunks.Clone()
	d.mu.RUnlock()

	return search.FindAll(ctx, list.Lines(d.cache), query)
}

// Stats streams every logical line once and returns aggregate counts.
// Cancellable through ctx; a cancelled computation returns an error and its
// partial result is discarded.
func (d *Document) Stats(ctx context.Context) (Counts, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return Counts{}, ErrDocumentClosed
	}
	list := d.chunks.Clone()
	trailing := d.trailing
	d.mu.RUnlock()

	return stats.Count(ctx, list.Lines(d.cache), trailing)
}

// ReplaceAll replaces every case-insensitive literal occurrence of query
// with replacement and returns how many were replaced. Inserted chunks are
// rewritten in place; stored blocks containing matches are rewritten into
// new blocks at the block size bound, while untouched blocks keep their
// references. The whole change is recorded as one snapshot history entry
// and committed only after every chunk has been rewritten; a failure or
// cancellation midway leaves the document unchanged.
func (d *Document) ReplaceAll(ctx context.Context, query, replacement string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrDocumentClosed
	}
	if query == "" {
		return 0, nil
	}

	m := search.NewMatcher(query)
	rebuilt := chunk.NewList()
	replaced := 0
	var superseded []block.ID

	for i := 0; i < d.chunks.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		c := d.chunks.At(i)
		lines, err := c.Resolve(d.cache)
		if err != nil {
			return 0, err
		}

		out, n := rewriteLines(m, lines, replacement)
		if n == 0 {
			rebuilt.Append(*c)
			continue
		}
		replaced += n

		if c.IsInserted() {
			rebuilt.Append(chunk.Inserted(out))
			continue
		}
		descs, err := d.store.WriteAll(out)
		if err != nil {
			return 0, err
		}
		for _, desc := range descs {
			rebuilt.Append(chunk.FromDesc(desc))
		}
		superseded = append(superseded, c.BlockID())
	}
	if replaced == 0 {
		return 0, nil
	}

	op := history.Snapshot(d.chunks, rebuilt)
	d.chunks = rebuilt
	for _, id := range superseded {
		d.cache.Invalidate(id)
	}
	d.hist.Push(op)
	d.commitLocked()
	return replaced, nil
}

// rewriteLines applies the matcher to every line, returning the rewritten
// lines and the number of occurrences replaced. The input is never
// modified; the result aliases it only when nothing matched.
func rewriteLines(m *search.Matcher, lines []string, replacement string) ([]string, int) {
	var out []string
	total := 0
	for i, line := range lines {
		rewritten, n := m.Rewrite(line, replacement)
		if n > 0 && out == nil {
			out = make([]string, i, len(lines))
			copy(out, lines[:i])
		}
		if out != nil {
			out = append(out, rewritten)
		}
		total += n
	}
	if out == nil {
		return lines, 0
	}
	return out, total
}

// ============================================================================
// Save and Close
// ============================================================================

// Save writes the document to its associated file. Returns ErrNoFilePath
// for a scratch document; the caller then picks a destination and uses
// SaveAs.
func (d *Document) Save() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDocumentClosed
	}
	if d.path == "" {
		return ErrNoFilePath
	}
	return d.saveLocked(d.path)
}

// SaveAs writes the document to path, which becomes the new association.
func (d *Document) SaveAs(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDocumentClosed
	}
	if path == "" {
		return ErrNoFilePath
	}
	if err := d.saveLocked(path); err != nil {
		return err
	}
	d.path = path
	return nil
}

// saveLocked streams all logical lines newline-joined to path, appending a
// final newline only when the source had one. The write goes through a
// temporary file renamed into place, so an interrupted save never truncates
// the previous content.
func (d *Document) saveLocked(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return &block.FileError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	fail := func(op string, cause error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return &block.FileError{Op: op, Path: path, Err: cause}
	}

	w := bufio.NewWriterSize(tmp, 64*1024)
	wrote := false
	it := d.chunks.Lines(d.cache)
	for it.Next() {
		if wrote {
			if err := w.WriteByte('\n'); err != nil {
				return fail("write", err)
			}
		}
		if _, err := w.WriteString(it.Line()); err != nil {
			return fail("write", err)
		}
		wrote = true
	}
	if err := it.Err(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if d.trailing && wrote {
		if err := w.WriteByte('\n'); err != nil {
			return fail("write", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &block.FileError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &block.FileError{Op: "rename", Path: path, Err: err}
	}

	d.modified.Store(false)
	return nil
}

// Close removes the session's block files and marks the document closed.
// Idempotent; all later operations return ErrDocumentClosed.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.cache.Clear()
	return d.store.Cleanup()
}
