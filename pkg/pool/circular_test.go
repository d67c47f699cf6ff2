package pool

import (
	stderrors "errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/pkg/metrics"
	"github.com/boxfriend/poolkit/pkg/testutil"
)

type item struct {
	id    int
	state string
}

// recorder builds hooks that log every call in order.
type recorder struct {
	created   int
	calls     []string
	destroyed map[int]int
}

func newRecorder() *recorder {
	return &recorder{destroyed: make(map[int]int)}
}

func (r *recorder) hooks() Hooks[*item] {
	return Hooks[*item]{
		Create: func() *item {
			r.created++
			r.calls = append(r.calls, fmt.Sprintf("create:%d", r.created))
			return &item{id: r.created}
		},
		OnAcquire: func(it *item) {
			it.state = "busy"
			r.calls = append(r.calls, fmt.Sprintf("acquire:%d", it.id))
		},
		OnRelease: func(it *item) {
			it.state = "free"
			r.calls = append(r.calls, fmt.Sprintf("release:%d", it.id))
		},
		OnDestroy: func(it *item) {
			r.destroyed[it.id]++
		},
	}
}

func (r *recorder) reset() {
	r.calls = nil
}

func ids(items []*item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestNewCircularValidation(t *testing.T) {
	rec := newRecorder()

	for _, size := range []int{0, -1} {
		_, err := NewCircular(size, rec.hooks())
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, ErrInvalidConfiguration), "size %d", size)
	}

	missing := []func(h *Hooks[*item]){
		func(h *Hooks[*item]) { h.Create = nil },
		func(h *Hooks[*item]) { h.OnAcquire = nil },
		func(h *Hooks[*item]) { h.OnRelease = nil },
	}
	for i, drop := range missing {
		h := rec.hooks()
		drop(&h)
		_, err := NewCircular(3, h)
		assert.True(t, stderrors.Is(err, ErrMissingCallback), "case %d", i)
	}

	h := rec.hooks()
	h.OnDestroy = nil
	p, err := NewCircular(1, h)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count())
}

func TestNewCircularRejectsBadItems(t *testing.T) {
	rec := newRecorder()
	h := rec.hooks()
	h.Create = func() *item { return nil }
	_, err := NewCircular(2, h)
	assert.True(t, stderrors.Is(err, ErrInvalidConfiguration))

	shared := &item{id: 7}
	calls := 0
	h = rec.hooks()
	h.Create = func() *item {
		calls++
		if calls == 1 || calls == 3 {
			return shared
		}
		return &item{id: 100 + calls}
	}
	_, err = NewCircular(4, h)
	assert.True(t, stderrors.Is(err, ErrInvalidConfiguration))
	assert.Equal(t, 1, rec.destroyed[7])
	assert.Equal(t, 1, rec.destroyed[102])
}

func TestNewCircularPopulatesInactive(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(3, rec.hooks())
	require.NoError(t, err)

	assert.Equal(t, []string{"create:1", "release:1", "create:2", "release:2", "create:3", "release:3"}, rec.calls)
	assert.Equal(t, []int{1, 2, 3}, ids(p.Inactive()))
	assert.Empty(t, p.Active())
	assert.Equal(t, 3, p.Count())
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 3, p.InactiveCount())
	for _, it := range p.Inactive() {
		assert.Equal(t, "free", it.state)
	}
}

func TestCircularInvariantUnderRandomOps(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(5, rec.hooks())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	held := map[*item]bool{}
	for step := 0; step < 2000; step++ {
		if len(held) == 0 || rng.Intn(3) > 0 {
			it, err := p.Acquire()
			require.NoError(t, err)
			held[it] = true
		} else {
			for it := range held {
				delete(held, it)
				require.NoError(t, p.Release(it))
				break
			}
		}
		testutil.AssertBalanced(t, p)
		require.Equal(t, 5, p.Count())
	}
}

func TestCircularReclaimsOldestActive(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(3, rec.hooks())
	require.NoError(t, err)

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	c, _ := p.Acquire()
	assert.Equal(t, []int{1, 2, 3}, []int{a.id, b.id, c.id})
	assert.Equal(t, 0, p.InactiveCount())

	next, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, a, next)
	assert.Equal(t, []int{2, 3, 1}, ids(p.Active()))

	next, err = p.Acquire()
	require.NoError(t, err)
	assert.Same(t, b, next)
	assert.Equal(t, []int{3, 1, 2}, ids(p.Active()))
}

func TestCircularReclaimRunsReleaseBeforeAcquire(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(1, rec.hooks())
	require.NoError(t, err)

	_, err = p.Acquire()
	require.NoError(t, err)
	rec.reset()

	_, err = p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, []string{"release:1", "acquire:1"}, rec.calls)
}

func TestCircularReleaseFromAnyPosition(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(3, rec.hooks())
	require.NoError(t, err)

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	c, _ := p.Acquire()

	require.NoError(t, p.Release(b))
	assert.Equal(t, []*item{a, c}, p.Active())
	assert.Equal(t, []*item{b}, p.Inactive())
	assert.Equal(t, "free", b.state)

	require.NoError(t, p.Release(c))
	require.NoError(t, p.Release(a))
	assert.Empty(t, p.Active())
	assert.Equal(t, []int{2, 3, 1}, ids(p.Inactive()))

	// inactive order is oldest-returned first
	next, _ := p.Acquire()
	assert.Same(t, b, next)
}

func TestCircularExhaustion(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(2, rec.hooks())
	require.NoError(t, err)

	item1, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "busy", item1.state)

	item2, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "busy", item2.state)
	assert.Equal(t, 2, p.ActiveCount())
	assert.Equal(t, 0, p.InactiveCount())

	rec.reset()
	again, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, item1, again)
	assert.Equal(t, "busy", again.state)
	assert.Equal(t, []string{"release:1", "acquire:1"}, rec.calls)
	assert.Equal(t, 2, p.ActiveCount())
	assert.Equal(t, 0, p.InactiveCount())
}

func TestCircularReleaseErrors(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(2, rec.hooks())
	require.NoError(t, err)

	err = p.Release(nil)
	assert.True(t, stderrors.Is(err, ErrInvalidArgument))

	err = p.Release(&item{id: 99})
	assert.True(t, stderrors.Is(err, ErrItemNotActive))

	it, _ := p.Acquire()
	require.NoError(t, p.Release(it))
	err = p.Release(it)
	assert.True(t, stderrors.Is(err, ErrItemNotActive))
	testutil.AssertBalanced(t, p)
}

func TestCircularEmpty(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(4, rec.hooks())
	require.NoError(t, err)

	held, _ := p.Acquire()
	_, _ = p.Acquire()
	rec.reset()

	p.Empty()
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 4: 1}, rec.destroyed)
	assert.Empty(t, rec.calls, "empty must not run release or acquire hooks")
	assert.Equal(t, 0, p.Count())
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 0, p.InactiveCount())

	_, err = p.Acquire()
	assert.True(t, stderrors.Is(err, ErrInvalidOperation))
	err = p.Release(held)
	assert.True(t, stderrors.Is(err, ErrInvalidOperation))
	_, err = p.AcquireLease()
	assert.True(t, stderrors.Is(err, ErrInvalidOperation))

	p.Empty()
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 4: 1}, rec.destroyed)
}

// selfManaged implements Lifecycle by recording into a recorder.
type selfManaged struct {
	rec *recorder
	h   Hooks[*item]
}

func newSelfManaged() *selfManaged {
	rec := newRecorder()
	return &selfManaged{rec: rec, h: rec.hooks()}
}

func (s *selfManaged) Create() *item { return s.h.Create() }
func (s *selfManaged) OnAcquire(it *item) { s.h.OnAcquire(it) }
func (s *selfManaged) OnRelease(it *item) { s.h.OnRelease(it) }
func (s *selfManaged) OnDestroy(it *item) { s.h.OnDestroy(it) }

func TestCircularFromLifecycle(t *testing.T) {
	l := newSelfManaged()
	p, err := NewCircular(3, HooksFrom[*item](l))
	require.NoError(t, err)
	assert.Equal(t, []string{"create:1", "release:1", "create:2", "release:2", "create:3", "release:3"}, l.rec.calls)

	_, _ = p.Acquire()
	b, _ := p.Acquire()
	_, _ = p.Acquire()
	l.rec.reset()

	reclaimed, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed.id)
	assert.Equal(t, []string{"release:1", "acquire:1"}, l.rec.calls)

	require.NoError(t, p.Release(b))
	assert.Equal(t, "free", b.state)
	assert.Equal(t, []int{3, 1}, ids(p.Active()))
	assert.Equal(t, []int{2}, ids(p.Inactive()))

	p.Empty()
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, l.rec.destroyed)
}

func TestCircularEmptyWithoutDestroyHook(t *testing.T) {
	rec := newRecorder()
	h := rec.hooks()
	h.OnDestroy = nil
	p, err := NewCircular(2, h)
	require.NoError(t, err)
	_, _ = p.Acquire()

	assert.NotPanics(t, p.Empty)
	assert.Empty(t, rec.destroyed)
	assert.Equal(t, 0, p.ActiveCount()+p.InactiveCount())
}

func TestCircularLeases(t *testing.T) {
	rec := newRecorder()
	p, err := NewCircular(2, rec.hooks())
	require.NoError(t, err)

	first, err := p.AcquireLease()
	require.NoError(t, err)
	second, err := p.AcquireLease()
	require.NoError(t, err)
	assert.False(t, p.Stale(first))
	assert.Equal(t, uint64(1), first.Generation)

	// exhausts the pool and takes first.Item from its holder
	third, err := p.AcquireLease()
	require.NoError(t, err)
	assert.Same(t, first.Item, third.Item)
	assert.Equal(t, uint64(2), third.Generation)
	assert.True(t, p.Stale(first))
	assert.False(t, p.Stale(third))

	err = p.ReleaseLease(first)
	assert.True(t, stderrors.Is(err, ErrStaleLease))
	assert.Equal(t, 2, p.ActiveCount())

	require.NoError(t, p.ReleaseLease(second))
	assert.True(t, p.Stale(second))
	err = p.ReleaseLease(second)
	assert.True(t, stderrors.Is(err, ErrStaleLease))

	err = p.ReleaseLease(Lease[*item]{})
	assert.True(t, stderrors.Is(err, ErrInvalidArgument))
}

func TestCircularHookPanicKeepsCountsConsistent(t *testing.T) {
	rec := newRecorder()
	h := rec.hooks()
	fail := false
	h.OnAcquire = func(it *item) {
		if fail {
			panic("acquire hook failed")
		}
	}
	p, err := NewCircular(2, h)
	require.NoError(t, err)

	fail = true
	assert.Panics(t, func() { _, _ = p.Acquire() })
	testutil.AssertBalanced(t, p)
	assert.Equal(t, 1, p.ActiveCount())

	fail = false
	it := p.Active()[0]
	require.NoError(t, p.Release(it))
	assert.Equal(t, 2, p.InactiveCount())
}

func TestCircularLogsReclaims(t *testing.T) {
	log, logs := testutil.ObservedLogger(zap.DebugLevel)
	rec := newRecorder()
	p, err := NewCircular(1, rec.hooks(), WithName("bullets"), WithLogger(log))
	require.NoError(t, err)
	assert.Equal(t, "bullets", p.Name())

	_, _ = p.Acquire()
	_, _ = p.Acquire()
	_, _ = p.Acquire()

	reclaims := logs.FilterMessage("reclaiming oldest active item")
	require.Equal(t, 2, reclaims.Len())
	assert.Equal(t, "bullets", reclaims.All()[0].ContextMap()["pool"])
}

func TestCircularReportsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewPoolCollector(reg, "test")
	rec := newRecorder()
	p, err := NewCircular(2, rec.hooks(),
		WithName("bullets"),
		WithMetrics(collector),
		WithLogger(testutil.TestLogger(t)),
	)
	require.NoError(t, err)

	a, _ := p.Acquire()
	_, _ = p.Acquire()
	_, _ = p.Acquire()
	require.NoError(t, p.Release(a))

	expected := `
# HELP test_pool_acquires_total Total number of items handed out by the pool
# TYPE test_pool_acquires_total counter
test_pool_acquires_total{pool="bullets"} 3
# HELP test_pool_reclaims_total Total number of active items forcibly recycled on exhaustion
# TYPE test_pool_reclaims_total counter
test_pool_reclaims_total{pool="bullets"} 1
# HELP test_pool_active_items Number of items currently on loan
# TYPE test_pool_active_items gauge
test_pool_active_items{pool="bullets"} 1
# HELP test_pool_inactive_items Number of items available for the next acquire
# TYPE test_pool_inactive_items gauge
test_pool_inactive_items{pool="bullets"} 1
`
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"test_pool_acquires_total", "test_pool_reclaims_total",
		"test_pool_active_items", "test_pool_inactive_items"))

	p.Empty()
	destroyed := `
# HELP test_pool_destroyed_total Total number of items permanently disposed
# TYPE test_pool_destroyed_total counter
test_pool_destroyed_total{pool="bullets"} 2
`
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(destroyed), "test_pool_destroyed_total"))
}
