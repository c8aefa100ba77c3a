package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/blockdoc/internal/config"
	"github.com/dshills/blockdoc/internal/engine"
	"github.com/dshills/blockdoc/internal/engine/block"
	"github.com/dshills/blockdoc/internal/engine/search"
	"github.com/dshills/blockdoc/internal/syntax"
	"github.com/dshills/blockdoc/internal/task"
)

// Workspace errors.
var (
	// ErrNoDocument indicates no document is open.
	ErrNoDocument = errors.New("no open document")

	// ErrNoFilePath indicates a save needs a destination first. The caller
	// treats it as a request for Save-As.
	ErrNoFilePath = engine.ErrNoFilePath
)

// Background task kinds.
const (
	taskStats  = "stats"
	taskSearch = "search"
)

// staleSessionAge is how old a session directory must be before the
// startup sweep removes it as a crash leftover.
const staleSessionAge = 24 * time.Hour

// SearchResult is the outcome of a background search.
type SearchResult struct {
	Query   string
	Matches []engine.Range
}

// Workspace owns the active document and everything around it: the
// background runner for stats and search, the debouncer holding them back
// during edit bursts, the watch on the associated file for external
// modification, and the shared token mapping with its live reload.
//
// Edits are serialized by the caller; the workspace marshals every
// background result through the runner's single completion goroutine, so
// the published stats and search results are always whole and always the
// newest.
type Workspace struct {
	cfg config.Config
	log *Logger

	mu  sync.Mutex
	doc *engine.Document

	runner  *task.Runner
	recount *task.Debouncer

	watcher   *fsnotify.Watcher
	watchPath string
	watchDone chan struct{}
	settle    *task.Debouncer
	selfWrite atomic.Bool

	extModified atomic.Bool
	lossLogged  atomic.Bool

	synMu    sync.RWMutex
	mapping  syntax.Mapping
	synWatch *syntax.Watcher

	statsMu sync.RWMutex
	counts  engine.Counts
	counted bool

	searchMu sync.RWMutex
	latest   SearchResult
	searched bool

	onStats  atomic.Pointer[func(engine.Counts)]
	onSearch atomic.Pointer[func(SearchResult)]
}

// NewWorkspace creates a workspace with no open document. When a
// dedicated storage directory is configured, session directories
// orphaned by an earlier crash are swept on the way in.
func NewWorkspace(cfg config.Config, log *Logger) *Workspace {
	if log == nil {
		log = NullLogger
	}
	if cfg.Storage.Dir != "" {
		if n, err := block.SweepStale(cfg.Storage.Dir, staleSessionAge); err != nil {
			log.Warn("stale session sweep: %v", err)
		} else if n > 0 {
			log.Info("swept %d stale session dir(s) from %s", n, cfg.Storage.Dir)
		}
	}
	w := &Workspace{
		cfg:    cfg,
		log:    log,
		runner: task.NewRunner(),
	}
	w.recount = task.NewDebouncer(cfg.Tasks.Debounce(), w.submitStats)
	w.settle = task.NewDebouncer(cfg.Tasks.Debounce(), w.flagExternalChange)
	if cfg.Syntax.Mapping != "" {
		w.loadMapping(cfg.Syntax.Mapping)
	}
	return w
}

// OnStats registers a consumer for freshly computed counts. It runs on
// the runner's completion goroutine.
func (w *Workspace) OnStats(fn func(engine.Counts)) {
	w.onStats.Store(&fn)
}

// OnSearch registers a consumer for background search results. It runs on
// the runner's completion goroutine.
func (w *Workspace) OnSearch(fn func(SearchResult)) {
	w.onSearch.Store(&fn)
}

// ============================================================================
// Lifecycle
// ============================================================================

// Open replaces the current document with the file at path. The previous
// document's session directory is cleaned up; pending background results
// for it are dropped.
func (w *Workspace) Open(path string) error {
	doc, err := engine.Open(path, w.docOptions()...)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	w.install(doc)
	if err := w.watchFile(doc.Path()); err != nil {
		w.log.Warn("file watch unavailable for %s: %v", path, err)
	}
	w.log.Info("opened %s: %d blocks", path, doc.BlockCount())
	return nil
}

// NewScratch replaces the current document with an empty scratch one.
func (w *Workspace) NewScratch() error {
	doc, err := engine.New(w.docOptions()...)
	if err != nil {
		return fmt.Errorf("creating scratch document: %w", err)
	}
	w.install(doc)
	w.stopWatch()
	return nil
}

func (w *Workspace) docOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithBlockSize(w.cfg.Storage.BlockSize),
		engine.WithCacheCapacity(w.cfg.Storage.CacheCapacity),
		engine.WithMaxHistory(w.cfg.History.MaxEntries),
	}
	if w.cfg.Storage.Dir != "" {
		opts = append(opts, engine.WithBaseDir(w.cfg.Storage.Dir))
	}
	return opts
}

// install swaps in a new document, retiring the old one and all state
// derived from it.
func (w *Workspace) install(doc *engine.Document) {
	w.mu.Lock()
	old := w.doc
	w.doc = doc
	w.mu.Unlock()

	w.runner.Cancel(taskStats)
	w.runner.Cancel(taskSearch)
	w.recount.Cancel()
	w.extModified.Store(false)
	w.lossLogged.Store(false)

	w.statsMu.Lock()
	w.counts = engine.Counts{}
	w.counted = false
	w.statsMu.Unlock()

	w.searchMu.Lock()
	w.latest = SearchResult{}
	w.searched = false
	w.searchMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			w.log.Warn("closing previous document: %v", err)
		}
	}
	w.recount.Trigger()
}

// Document returns the active document, or nil before the first Open.
func (w *Workspace) Document() *engine.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

// Close shuts down the workspace: background work is cancelled, the file
// and mapping watches stop, and the document's session directory is
// removed.
func (w *Workspace) Close() error {
	w.recount.Cancel()
	w.settle.Cancel()
	w.runner.Close()
	w.stopWatch()
	if w.synWatch != nil {
		if err := w.synWatch.Close(); err != nil {
			w.log.Warn("closing mapping watch: %v", err)
		}
	}

	w.mu.Lock()
	doc := w.doc
	w.doc = nil
	w.mu.Unlock()

	if doc != nil {
		return doc.Close()
	}
	return nil
}

// ============================================================================
// Edits and Reads
// ============================================================================

// ReplaceLine replaces a line and schedules a stats recount.
func (w *Workspace) ReplaceLine(pos int, text string) error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.ReplaceLine(pos, text); err != nil {
		return err
	}
	w.recount.Trigger()
	return nil
}

// InsertLine inserts a line and schedules a stats recount.
func (w *Workspace) InsertLine(pos int, text string) error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.InsertLine(pos, text); err != nil {
		return err
	}
	w.recount.Trigger()
	return nil
}

// DeleteLine deletes a line and schedules a stats recount.
func (w *Workspace) DeleteLine(pos int) error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.DeleteLine(pos); err != nil {
		return err
	}
	w.recount.Trigger()
	return nil
}

// Undo reverses the last edit and schedules a stats recount.
func (w *Workspace) Undo() error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.Undo(); err != nil {
		return err
	}
	w.recount.Trigger()
	return nil
}

// Redo re-applies the last undone edit and schedules a stats recount.
func (w *Workspace) Redo() error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.Redo(); err != nil {
		return err
	}
	w.recount.Trigger()
	return nil
}

// DisplayLine returns the line at pos for presentation. A lost or
// unreadable block is logged once per document and rendered as an empty
// line instead of failing the caller.
func (w *Workspace) DisplayLine(pos int) string {
	doc := w.Document()
	if doc == nil {
		return ""
	}
	line, err := doc.Line(pos)
	if err != nil {
		var fe *block.FileError
		if errors.As(err, &fe) && w.lossLogged.CompareAndSwap(false, true) {
			w.log.Error("block read failed, rendering empty: %v", err)
		}
		return ""
	}
	return line
}

// ============================================================================
// Save
// ============================================================================

// Save writes the document to its associated file. ErrNoFilePath means
// the caller must pick a destination and use SaveAs.
func (w *Workspace) Save() error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	w.selfWrite.Store(true)
	if err := doc.Save(); err != nil {
		w.selfWrite.Store(false)
		return err
	}
	w.log.Debug("saved %s", doc.Path())
	return nil
}

// SaveAs writes the document to path and rebinds the association, moving
// the external-modification watch to the new file.
func (w *Workspace) SaveAs(path string) error {
	doc := w.Document()
	if doc == nil {
		return ErrNoDocument
	}
	w.selfWrite.Store(true)
	if err := doc.SaveAs(path); err != nil {
		w.selfWrite.Store(false)
		return err
	}
	if err := w.watchFile(doc.Path()); err != nil {
		w.log.Warn("file watch unavailable for %s: %v", path, err)
	}
	w.log.Debug("saved %s", doc.Path())
	return nil
}

// ============================================================================
// Background Stats
// ============================================================================

// Counts returns the most recently computed counts. ok is false until the
// first computation for the current document completes.
func (w *Workspace) Counts() (engine.Counts, bool) {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.counts, w.counted
}

// RecountNow bypasses the debounce and recomputes stats in the background.
func (w *Workspace) RecountNow() {
	w.recount.Cancel()
	w.submitStats()
}

func (w *Workspace) submitStats() {
	doc := w.Document()
	if doc == nil {
		return
	}
	w.runner.Submit(taskStats, func(ctx context.Context) func() {
		counts, err := doc.Stats(ctx)
		if err != nil {
			return nil
		}
		return func() {
			w.statsMu.Lock()
			w.counts = counts
			w.counted = true
			w.statsMu.Unlock()
			if fn := w.onStats.Load(); fn != nil {
				(*fn)(counts)
			}
		}
	})
}

// ============================================================================
// Search and Navigation
// ============================================================================

// Navigate interprets raw input as the search mini-language. A go-to-line
// query returns the clamped 0-based position; anything else starts a
// background literal search and returns ok false.
func (w *Workspace) Navigate(raw string) (pos int, ok bool) {
	q := search.Parse(raw)
	if !q.IsGoto {
		w.SubmitSearch(q.Literal)
		return 0, false
	}
	doc := w.Document()
	if doc == nil {
		return 0, false
	}
	total, err := doc.TotalLines()
	if err != nil || total == 0 {
		return 0, false
	}
	pos = q.Line - 1
	if pos >= total {
		pos = total - 1
	}
	return pos, true
}

// SubmitSearch starts a background search for the literal query,
// superseding any search still in flight.
func (w *Workspace) SubmitSearch(query string) {
	doc := w.Document()
	if doc == nil {
		return
	}
	w.runner.Submit(taskSearch, func(ctx context.Context) func() {
		matches, err := doc.FindAll(ctx, query)
		if err != nil {
			return nil
		}
		return func() {
			result := SearchResult{Query: query, Matches: matches}
			w.searchMu.Lock()
			w.latest = result
			w.searched = true
			w.searchMu.Unlock()
			if fn := w.onSearch.Load(); fn != nil {
				(*fn)(result)
			}
		}
	})
}

// LatestSearch returns the most recent completed search result. ok is
// false until a search for the current document completes.
func (w *Workspace) LatestSearch() (SearchResult, bool) {
	w.searchMu.RLock()
	defer w.searchMu.RUnlock()
	return w.latest, w.searched
}

// ============================================================================
// External Modification Watch
// ============================================================================

// ExternallyModified reports whether the associated file changed on disk
// underneath the open document.
func (w *Workspace) ExternallyModified() bool {
	return w.extModified.Load()
}

// ClearExternallyModified resets the flag, typically after the caller
// reloaded or decided to overwrite.
func (w *Workspace) ClearExternallyModified() {
	w.extModified.Store(false)
}

// watchFile points the watcher at path's directory, replacing any
// previous watch. Watching the directory keeps rename-replace saves and
// recreations visible.
func (w *Workspace) watchFile(path string) error {
	w.stopWatch()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return err
	}

	done := make(chan struct{})
	w.mu.Lock()
	w.watcher = fsw
	w.watchPath = abs
	w.watchDone = done
	w.mu.Unlock()

	go w.watchLoop(fsw, abs, done)
	return nil
}

func (w *Workspace) stopWatch() {
	w.mu.Lock()
	fsw := w.watcher
	done := w.watchDone
	w.watcher = nil
	w.watchDone = nil
	w.mu.Unlock()

	if fsw != nil {
		fsw.Close()
		<-done
	}
	w.settle.Cancel()
}

func (w *Workspace) watchLoop(fsw *fsnotify.Watcher, path string, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) ||
				ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Remove) {
				w.settle.Trigger()
			}

		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// flagExternalChange runs after file events settle. A burst caused by our
// own save consumes the selfWrite mark instead of flagging.
func (w *Workspace) flagExternalChange() {
	if w.selfWrite.CompareAndSwap(true, false) {
		return
	}
	w.extModified.Store(true)
	w.log.Info("file changed on disk: %s", w.currentWatchPath())
}

func (w *Workspace) currentWatchPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watchPath
}

// ============================================================================
// Token Mapping
// ============================================================================

// TokenStyle returns the color spec mapped to token. ok is false for
// unmapped tokens and when no mapping file is configured.
func (w *Workspace) TokenStyle(token string) (spec string, ok bool) {
	w.synMu.RLock()
	defer w.synMu.RUnlock()
	spec, ok = w.mapping[token]
	return spec, ok
}

// loadMapping performs the initial mapping load and starts the live
// reload watch. Either step failing is logged and tolerated: the file may
// appear or become readable later, and a reload then replaces the
// mapping.
func (w *Workspace) loadMapping(path string) {
	m, err := syntax.LoadFile(path)
	if err != nil {
		w.log.Warn("token mapping unavailable: %v", err)
	} else {
		w.setMapping(m)
	}

	watch, err := syntax.Watch(path, w.cfg.Tasks.Debounce(), func(m syntax.Mapping, err error) {
		if err != nil {
			w.log.Warn("token mapping reload failed: %v", err)
			return
		}
		w.setMapping(m)
		w.log.Debug("token mapping reloaded: %d tokens", len(m))
	})
	if err != nil {
		w.log.Warn("token mapping watch unavailable: %v", err)
		return
	}
	w.synWatch = watch
}

func (w *Workspace) setMapping(m syntax.Mapping) {
	w.synMu.Lock()
	w.mapping = m
	w.synMu.Unlock()
}
