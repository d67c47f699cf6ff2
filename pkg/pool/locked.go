package pool

import "sync"

// Locked serializes every operation on a Circular pool with a mutex, for
// callers that share one pool between goroutines. Hooks run while the lock is
// held and must not call back into the pool.
type Locked[T comparable] struct {
	mu sync.Mutex
	p  *Circular[T]
}

// NewLocked wraps p. p must not be used directly afterwards.
func NewLocked[T comparable](p *Circular[T]) *Locked[T] {
	return &Locked[T]{p: p}
}

func (l *Locked[T]) Acquire() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Acquire()
}

func (l *Locked[T]) AcquireLease() (Lease[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.AcquireLease()
}

func (l *Locked[T]) Release(item T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Release(item)
}

func (l *Locked[T]) ReleaseLease(lease Lease[T]) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.ReleaseLease(lease)
}

func (l *Locked[T]) Stale(lease Lease[T]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Stale(lease)
}

func (l *Locked[T]) Empty() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.p.Empty()
}

func (l *Locked[T]) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Count()
}

func (l *Locked[T]) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.ActiveCount()
}

func (l *Locked[T]) InactiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.InactiveCount()
}
