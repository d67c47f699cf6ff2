// Package pool implements lifecycle-managed object pools for poolkit. Each
// pool owns its items and drives them through caller-supplied hooks, so the
// items themselves never need to know they are pooled.
//
// Architecture
//
// Two pool types are provided, both generic over a comparable item type:
//
//   - Circular[T]: a fixed number of items created up front. When every item
//     is on loan, the oldest active item is reclaimed and handed out again.
//   - Stack[T]: a growable LIFO pool with a max size. It creates items on
//     demand and destroys surplus items on release.
//
// Locked[T] wraps a Circular pool with a mutex for shared use. The pools
// themselves take no locks.
//
// Lifecycle
//
// Hooks[T] carries the callbacks:
//
//	hooks := pool.Hooks[*Bullet]{
//		Create:    func() *Bullet { return &Bullet{} },
//		OnAcquire: func(b *Bullet) { b.Visible = true },
//		OnRelease: func(b *Bullet) { b.Visible = false },
//		OnDestroy: func(b *Bullet) { b.Free() }, // optional
//	}
//
// Fresh items always pass through OnRelease before they are first handed out.
// A reclaimed item passes through OnRelease and then OnAcquire. Before a hook
// runs, the item is already in the collection it is moving to, so a
// panicking hook leaves the pool's counts consistent.
//
// Reclamation
//
// Circular.Acquire never fails for lack of items. Callers that hold items for
// long stretches can detect that theirs was recycled:
//
//	lease, _ := bullets.AcquireLease()
//	// ... later
//	if bullets.Stale(lease) {
//		// someone else owns lease.Item now
//	}
//
// Errors
//
// Every error is an *errors.Error from pkg/errors and matches one of the
// package sentinels with the standard errors.Is:
//
//   - ErrInvalidConfiguration: bad size, zero or duplicate created item
//   - ErrMissingCallback: nil Create, OnAcquire or OnRelease
//   - ErrInvalidOperation: use after Circular.Empty
//   - ErrInvalidArgument: zero-valued item
//   - ErrItemNotActive: release of an item not on loan
//   - ErrStaleLease: release through a lease whose item was recycled
package pool
