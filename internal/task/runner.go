package task

import (
	"context"
	"sync"
)

// Work computes a result in the background. It must honor ctx and return a
// completion closure that publishes the result, or nil when there is
// nothing to publish (typically after cancellation).
type Work func(ctx context.Context) func()

// Runner executes background computations keyed by kind, with
// cancel-and-supersede semantics: submitting new work for a kind cancels
// the in-flight computation of that kind through its context.
//
// Completion closures run one at a time on a single drain goroutine, so
// consumers publish results without their own locking. A completion whose
// computation was superseded or cancelled before the drain reaches it is
// dropped; results are applied whole or not at all.
type Runner struct {
	mu      sync.Mutex
	seq     map[string]uint64
	cancels map[string]context.CancelFunc
	closed  bool

	done chan completion
	quit chan struct{}
	idle sync.WaitGroup
	dead chan struct{}
}

type completion struct {
	kind string
	seq  uint64
	fn   func()
}

// NewRunner returns a runner with its drain goroutine started.
func NewRunner() *Runner {
	r := &Runner{
		seq:     make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
		done:    make(chan completion, 16),
		quit:    make(chan struct{}),
		dead:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// Submit starts work for kind on a new goroutine, cancelling any in-flight
// work of the same kind first. After Close, Submit is a no-op.
func (r *Runner) Submit(kind string, work Work) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if cancel := r.cancels[kind]; cancel != nil {
		cancel()
	}
	r.seq[kind]++
	current := r.seq[kind]
	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[kind] = cancel
	r.idle.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.idle.Done()
		defer cancel()

		fn := work(ctx)
		if fn == nil {
			return
		}
		select {
		case r.done <- completion{kind: kind, seq: current, fn: fn}:
		case <-r.quit:
		}
	}()
}

// Cancel stops any in-flight work for kind. Its completion, if already
// queued, is dropped.
func (r *Runner) Cancel(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel := r.cancels[kind]; cancel != nil {
		cancel()
		delete(r.cancels, kind)
	}
	r.seq[kind]++
}

// Close cancels all in-flight work, waits for the workers to return, and
// stops the drain goroutine. Queued completions are dropped.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for kind, cancel := range r.cancels {
		cancel()
		delete(r.cancels, kind)
	}
	r.mu.Unlock()

	close(r.quit)
	r.idle.Wait()
	<-r.dead
}

// drain applies completions one at a time, dropping any whose computation
// is no longer current.
func (r *Runner) drain() {
	defer close(r.dead)
	for {
		select {
		case c := <-r.done:
			r.mu.Lock()
			current := !r.closed && r.seq[c.kind] == c.seq
			r.mu.Unlock()
			if current {
				c.fn()
			}
		case <-r.quit:
			return
		}
	}
}
