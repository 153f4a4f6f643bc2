package pelitrack

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing.
const (
	MinPoolSize = 1

	// MaxPoolSize caps concurrent browsers; each Chrome takes ~200MB.
	MaxPoolSize = 8

	// Chrome spawns renderer and GPU processes, so one browser per two CPUs.
	cpuPerBrowser = 2
)

// SnapshotPool lends out up to n Snapshotters, each with its own browser.
// A slot starts empty and gets its Snapshotter on first Acquire, so a build
// with two tracks never starts eight browsers.
type SnapshotPool struct {
	slots chan Snapshotter // nil means not created yet
	newFn func() Snapshotter

	mu      sync.Mutex
	created []Snapshotter
	closed  bool
}

// NewSnapshotPool creates a pool of n slots filled by newFn. A nil newFn
// uses NewRodSnapshotter with the default timeout.
func NewSnapshotPool(n int, newFn func() Snapshotter) *SnapshotPool {
	n = max(n, MinPoolSize)
	if newFn == nil {
		newFn = func() Snapshotter { return NewRodSnapshotter(0) }
	}

	slots := make(chan Snapshotter, n)
	for range n {
		slots <- nil
	}
	return &SnapshotPool{slots: slots, newFn: newFn}
}

// Acquire waits for a free Snapshotter. It returns ctx.Err() if ctx ends
// first and ErrPoolClosed after Close.
func (p *SnapshotPool) Acquire(ctx context.Context) (Snapshotter, error) {
	var s Snapshotter
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s = <-p.slots:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		// Pass the wake-up on to the next waiter.
		select {
		case p.slots <- s:
		default:
		}
		return nil, ErrPoolClosed
	}
	if s == nil {
		// RodSnapshotter only launches Chrome on first Capture.
		s = p.newFn()
		p.created = append(p.created, s)
	}
	return s, nil
}

// Release hands s back. Every Acquire must be paired with one Release.
func (p *SnapshotPool) Release(s Snapshotter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// Never blocks: at most cap(slots) Snapshotters are out.
	p.slots <- s
}

// Do runs fn with a pooled Snapshotter.
func (p *SnapshotPool) Do(ctx context.Context, fn func(Snapshotter) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(s)
	return fn(s)
}

// Close shuts down every browser the pool started. Later Acquire calls
// fail with ErrPoolClosed.
func (p *SnapshotPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	created := p.created
	p.created = nil
	p.mu.Unlock()

	// Wake any Acquire still waiting; it sees closed and fails.
	for range cap(p.slots) - len(p.slots) {
		select {
		case p.slots <- nil:
		default:
		}
	}

	errs := make([]error, 0, len(created))
	for _, s := range created {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Size returns the number of slots.
func (p *SnapshotPool) Size() int {
	return cap(p.slots)
}

// ResolvePoolSize picks the browser count: workers when set, else half the
// CPUs, clamped to [MinPoolSize, MaxPoolSize].
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	// GOMAXPROCS follows the container CPU quota through automaxprocs.
	return min(max(runtime.GOMAXPROCS(0)/cpuPerBrowser, MinPoolSize), MaxPoolSize)
}

// ResolveWorkers picks how many articles are processed at once. Track
// conversion mostly waits on gpsbabel, so the default is GOMAXPROCS.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}
	return max(runtime.GOMAXPROCS(0), MinPoolSize)
}
