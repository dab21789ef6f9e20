package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/gomarketplace/internal/domain"
)

var errWriterStopped = errors.New("cart: writer stopped")

// writer persists snapshots on a single background goroutine. Only the most
// recent unsaved snapshot is kept, so writes never complete out of order and
// the stored value always converges to the latest in-memory state.
type writer struct {
	save func(domain.Collection)

	mu         sync.Mutex
	pending    domain.Collection
	hasPending bool
	closed     bool
	scheduled  uint64
	written    uint64
	progress   chan struct{}

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newWriter(save func(domain.Collection)) *writer {
	w := &writer{
		save:     save,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

// schedule queues snap for writing and returns immediately. It reports false
// once the writer has been closed.
func (w *writer) schedule(snap domain.Collection) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = snap
	w.hasPending = true
	w.scheduled++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		if !w.hasPending {
			w.mu.Unlock()
			return
		}
		snap, version := w.pending, w.scheduled
		w.pending, w.hasPending = nil, false
		w.mu.Unlock()

		w.save(snap)

		w.mu.Lock()
		w.written = version
		close(w.progress)
		w.progress = make(chan struct{})
		w.mu.Unlock()
	}
}

// flush blocks until everything scheduled before the call has been written.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.scheduled
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.written >= target {
			w.mu.Unlock()
			return nil
		}
		ch := w.progress
		w.mu.Unlock()

		select {
		case <-ch:
		case <-w.stopped:
			// run drains before exiting; re-check once more.
			w.mu.Lock()
			ok := w.written >= target
			w.mu.Unlock()
			if ok {
				return nil
			}
			return errWriterStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close stops accepting snapshots, writes the last pending one and waits for
// the goroutine to exit.
func (w *writer) close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
	})

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
