package syntax

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/blockdoc/internal/task"
)

// ReloadFunc receives each reloaded mapping. On a failed reload the
// mapping is nil and err describes the failure; the consumer keeps
// whatever mapping it had.
type ReloadFunc func(m Mapping, err error)

// Watcher reloads a mapping file when it changes on disk.
//
// The parent directory is watched rather than the file itself, so saves
// that replace the file by rename, and recreations after a delete, keep
// triggering reloads. Rapid change bursts are debounced into one reload.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	reload  *task.Debouncer
	deliver ReloadFunc

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// Watch starts watching the mapping file at path. Each settled change
// triggers a reload delivered through fn. The initial load is the
// caller's job; Watch only reports changes after it returns.
func Watch(path string, debounce time.Duration, fn ReloadFunc) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watching mapping %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watching mapping %s: %w", path, err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching mapping %s: %w", path, err)
	}

	w := &Watcher{
		path:    abs,
		fsw:     fsw,
		deliver: fn,
		closeCh: make(chan struct{}),
	}
	w.reload = task.NewDebouncer(debounce, w.load)

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Close stops watching and drops any pending reload.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.wg.Wait()
		w.reload.Cancel()
	})
	return err
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				w.reload.Trigger()
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) load() {
	select {
	case <-w.closeCh:
		return
	default:
	}
	m, err := LoadFile(w.path)
	w.deliver(m, err)
}
