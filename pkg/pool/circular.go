package pool

import (
	"container/list"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/pkg/errors"
)

// Circular pools a fixed number of items and recycles the oldest active item
// when every item is in use.
//
// All items are created eagerly by NewCircular. At every point before Empty,
// ActiveCount()+InactiveCount() == Count(). Items are tracked by identity
// (==), so T is usually a pointer type; the zero value of T stands for "no
// item" and is never pooled.
//
// Circular is not safe for concurrent use. Wrap it with NewLocked when more
// than one goroutine needs it.
type Circular[T comparable] struct {
	hooks Hooks[T]
	size  int

	// inactive holds T values, oldest-returned first.
	inactive *queue.Queue
	// active holds T values, oldest-acquired first; index maps each active
	// item to its element so removal from any position is O(1).
	active *list.List
	index  map[T]*list.Element
	// generation counts acquisitions per item, for lease staleness.
	generation map[T]uint64

	emptied bool
	settings
}

// Lease is an item together with the acquisition it came from. A lease turns
// stale once its item is released or reclaimed for another caller.
type Lease[T comparable] struct {
	Item       T
	Generation uint64
}

// NewCircular creates a pool of exactly size items.
//
// Each item is built with hooks.Create and normalized with hooks.OnRelease
// before it is stored as inactive. It fails with ErrInvalidConfiguration when
// size < 1 or Create yields a zero or duplicate item, and with
// ErrMissingCallback when a required hook is nil. Items created before a
// failure are passed to hooks.OnDestroy.
func NewCircular[T comparable](size int, hooks Hooks[T], opts ...Option) (*Circular[T], error) {
	if size < 1 {
		return nil, errors.New(errors.ErrorTypeInvalidConfiguration, "size must be greater than zero").
			WithDetail("size", size)
	}
	if err := hooks.validate(); err != nil {
		return nil, err
	}

	p := &Circular[T]{
		hooks:      hooks,
		size:       size,
		inactive:   queue.New(),
		active:     list.New(),
		index:      make(map[T]*list.Element, size),
		generation: make(map[T]uint64, size),
		settings:   newSettings("circular", opts),
	}

	var zero T
	for i := 0; i < size; i++ {
		item := hooks.Create()
		if item == zero {
			p.discard()
			return nil, errors.New(errors.ErrorTypeInvalidConfiguration, "create returned a zero-valued item").
				WithDetail("index", i)
		}
		if _, dup := p.generation[item]; dup {
			p.discard()
			return nil, errors.New(errors.ErrorTypeInvalidConfiguration, "create returned an item already in the pool").
				WithDetail("index", i)
		}
		p.generation[item] = 0
		hooks.OnRelease(item)
		p.inactive.Add(item)
	}

	p.logger.Debug("circular pool created", zap.Int("size", size))
	p.report()
	return p, nil
}

// discard destroys the items created so far by a failed constructor.
func (p *Circular[T]) discard() {
	for p.inactive.Length() > 0 {
		p.hooks.destroy(p.inactive.Remove().(T))
	}
}

// Acquire hands out the oldest inactive item, running OnAcquire on it.
//
// When no item is inactive, the oldest active item is reclaimed: OnRelease
// and then OnAcquire run on it and it is handed out again. Its previous
// borrower is not told; use AcquireLease and Stale to detect this.
// Acquire fails with ErrInvalidOperation after Empty.
func (p *Circular[T]) Acquire() (T, error) {
	lease, err := p.AcquireLease()
	return lease.Item, err
}

// AcquireLease is Acquire returning a Lease for later staleness checks.
func (p *Circular[T]) AcquireLease() (Lease[T], error) {
	if p.emptied {
		return Lease[T]{}, errEmptied("acquire")
	}

	var (
		item      T
		reclaimed bool
	)
	switch {
	case p.inactive.Length() > 0:
		item = p.inactive.Remove().(T)
		p.index[item] = p.active.PushBack(item)
	case p.active.Len() > 0:
		oldest := p.active.Front()
		item = oldest.Value.(T)
		p.active.MoveToBack(oldest)
		reclaimed = true
	default:
		return Lease[T]{}, errors.New(errors.ErrorTypeInvalidOperation, "pool holds no items")
	}

	p.generation[item]++
	gen := p.generation[item]

	if reclaimed {
		p.logger.Debug("reclaiming oldest active item", zap.Uint64("generation", gen))
		p.hooks.OnRelease(item)
	}
	p.hooks.OnAcquire(item)

	p.metrics.Acquired(p.name, reclaimed)
	p.report()
	return Lease[T]{Item: item, Generation: gen}, nil
}

// Release returns item to the pool and runs OnRelease on it.
//
// The item may sit anywhere in the active order; removal is O(1). Release
// fails with ErrInvalidArgument for the zero value, ErrItemNotActive when the
// item is not on loan, and ErrInvalidOperation after Empty.
func (p *Circular[T]) Release(item T) error {
	var zero T
	if item == zero {
		return errZeroItem()
	}
	if p.emptied {
		return errEmptied("release")
	}

	el, ok := p.index[item]
	if !ok {
		return errors.New(errors.ErrorTypeItemNotActive, "released item is not active in this pool")
	}
	p.active.Remove(el)
	delete(p.index, item)
	p.inactive.Add(item)

	p.hooks.OnRelease(item)

	p.metrics.Released(p.name)
	p.report()
	return nil
}

// ReleaseLease releases the item of lease. It fails with ErrStaleLease when
// the lease's borrow already ended through a release or a reclamation.
func (p *Circular[T]) ReleaseLease(lease Lease[T]) error {
	var zero T
	if lease.Item == zero {
		return errZeroItem()
	}
	if p.emptied {
		return errEmptied("release")
	}
	if p.Stale(lease) {
		return errors.New(errors.ErrorTypeStaleLease, "lease item was recycled since it was acquired").
			WithDetail("generation", lease.Generation).
			WithDetail("current_generation", p.generation[lease.Item])
	}
	return p.Release(lease.Item)
}

// Stale reports whether lease no longer describes the current borrow of its
// item.
func (p *Circular[T]) Stale(lease Lease[T]) bool {
	if _, active := p.index[lease.Item]; !active {
		return true
	}
	return p.generation[lease.Item] != lease.Generation
}

// Empty tears the pool down. OnDestroy, when set, runs exactly once for every
// item, active items first. OnRelease is not called. Later calls to Empty do
// nothing; Acquire and Release fail with ErrInvalidOperation.
func (p *Circular[T]) Empty() {
	if p.emptied {
		return
	}
	p.emptied = true

	items := make([]T, 0, p.size)
	for el := p.active.Front(); el != nil; el = el.Next() {
		items = append(items, el.Value.(T))
	}
	for p.inactive.Length() > 0 {
		items = append(items, p.inactive.Remove().(T))
	}
	p.active.Init()
	p.index = make(map[T]*list.Element)
	p.generation = make(map[T]uint64)

	for _, item := range items {
		p.hooks.destroy(item)
	}

	if p.hooks.OnDestroy != nil {
		p.metrics.Destroyed(p.name, len(items))
	}
	p.logger.Debug("circular pool emptied", zap.Int("items", len(items)))
	p.report()
}

// Count is the fixed number of pooled items, or 0 after Empty.
func (p *Circular[T]) Count() int {
	if p.emptied {
		return 0
	}
	return p.size
}

// ActiveCount is the number of items on loan.
func (p *Circular[T]) ActiveCount() int {
	return p.active.Len()
}

// InactiveCount is the number of items available without reclamation.
func (p *Circular[T]) InactiveCount() int {
	return p.inactive.Length()
}

// Name returns the pool name.
func (p *Circular[T]) Name() string {
	return p.name
}

// Active returns the active items, oldest acquired first.
func (p *Circular[T]) Active() []T {
	out := make([]T, 0, p.active.Len())
	for el := p.active.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(T))
	}
	return out
}

// Inactive returns the inactive items, oldest returned first.
func (p *Circular[T]) Inactive() []T {
	out := make([]T, 0, p.inactive.Length())
	for i := 0; i < p.inactive.Length(); i++ {
		out = append(out, p.inactive.Get(i).(T))
	}
	return out
}

func (p *Circular[T]) report() {
	p.metrics.SetOccupancy(p.name, p.active.Len(), p.inactive.Length())
}
