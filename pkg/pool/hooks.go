package pool

import (
	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/pkg/errors"
	"github.com/boxfriend/poolkit/pkg/metrics"
)

// Hooks are the caller-supplied lifecycle callbacks of a pool.
//
// Create, OnAcquire and OnRelease are required. OnDestroy is optional and is
// only called when the pool permanently disposes of an item.
type Hooks[T any] struct {
	// Create builds one new item.
	Create func() T
	// OnAcquire runs on an item when it is handed to a caller.
	OnAcquire func(T)
	// OnRelease runs on an item when it returns to the pool, including
	// freshly created items and items reclaimed on exhaustion.
	OnRelease func(T)
	// OnDestroy runs on an item when the pool disposes of it.
	OnDestroy func(T)
}

// Lifecycle is the method form of Hooks, for item types that manage
// themselves.
type Lifecycle[T any] interface {
	Create() T
	OnAcquire(T)
	OnRelease(T)
	OnDestroy(T)
}

// HooksFrom adapts a Lifecycle into Hooks.
func HooksFrom[T any](l Lifecycle[T]) Hooks[T] {
	return Hooks[T]{
		Create:    l.Create,
		OnAcquire: l.OnAcquire,
		OnRelease: l.OnRelease,
		OnDestroy: l.OnDestroy,
	}
}

func (h Hooks[T]) validate() error {
	var missing []string
	if h.Create == nil {
		missing = append(missing, "create")
	}
	if h.OnAcquire == nil {
		missing = append(missing, "on_acquire")
	}
	if h.OnRelease == nil {
		missing = append(missing, "on_release")
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrorTypeMissingCallback, "required lifecycle hook is nil").
			WithDetail("hooks", missing)
	}
	return nil
}

func (h Hooks[T]) destroy(item T) {
	if h.OnDestroy != nil {
		h.OnDestroy(item)
	}
}

// Option configures the ambient behavior shared by every pool type.
type Option func(*settings)

type settings struct {
	name    string
	logger  *zap.Logger
	metrics *metrics.PoolCollector
}

func newSettings(defaultName string, opts []Option) settings {
	s := settings{
		name:   defaultName,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.With(zap.String("pool", s.name))
	return s
}

// WithName sets the pool name used in logs and metric labels.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger. Pools log nothing by default.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics reports pool activity to collector.
func WithMetrics(collector *metrics.PoolCollector) Option {
	return func(s *settings) {
		s.metrics = collector
	}
}
