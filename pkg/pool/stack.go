package pool

import (
	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/pkg/errors"
)

// StackConfig sizes a Stack pool.
type StackConfig struct {
	// DefaultSize is the number of items created up front.
	DefaultSize int `yaml:"default_size" json:"default_size"`
	// MaxSize caps the number of items the pool keeps. Items released while
	// the pool is full are destroyed.
	MaxSize int `yaml:"max_size" json:"max_size"`
}

// DefaultStackConfig returns a config with 10 items up front and room for 100.
func DefaultStackConfig() StackConfig {
	return StackConfig{DefaultSize: 10, MaxSize: 100}
}

// Validate checks the size bounds.
func (c StackConfig) Validate() error {
	if c.DefaultSize < 0 {
		return errors.New(errors.ErrorTypeInvalidConfiguration, "default size must be greater than or equal to zero").
			WithDetail("default_size", c.DefaultSize)
	}
	if c.MaxSize < c.DefaultSize {
		return errors.New(errors.ErrorTypeInvalidConfiguration, "max size must be greater than or equal to default size").
			WithDetail("default_size", c.DefaultSize).
			WithDetail("max_size", c.MaxSize)
	}
	return nil
}

// Stack is a growable LIFO pool. Acquire creates a new item when the pool is
// empty, and Release drops items beyond MaxSize. Unlike Circular it never
// reclaims items from callers and does not know which items are on loan.
//
// Stack is not safe for concurrent use.
type Stack[T comparable] struct {
	hooks   Hooks[T]
	cfg     StackConfig
	items   []T
	created int
	loaned  int
	settings
}

// NewStack creates a stack pool and releases cfg.DefaultSize fresh items
// into it.
func NewStack[T comparable](cfg StackConfig, hooks Hooks[T], opts ...Option) (*Stack[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := hooks.validate(); err != nil {
		return nil, err
	}

	s := &Stack[T]{
		hooks:    hooks,
		cfg:      cfg,
		items:    make([]T, 0, cfg.DefaultSize),
		settings: newSettings("stack", opts),
	}
	for i := 0; i < cfg.DefaultSize; i++ {
		if err := s.Release(s.create()); err != nil {
			s.Empty()
			return nil, errors.Wrap(err, errors.ErrorTypeInvalidConfiguration, "create returned an unusable item").
				WithDetail("index", i)
		}
	}
	s.report()
	return s, nil
}

func (s *Stack[T]) create() T {
	s.created++
	return s.hooks.Create()
}

// Acquire pops the most recently released item, or creates one when the pool
// is empty, and runs OnAcquire on it.
func (s *Stack[T]) Acquire() T {
	var item T
	if n := len(s.items); n > 0 {
		item = s.items[n-1]
		var zero T
		s.items[n-1] = zero
		s.items = s.items[:n-1]
	} else {
		item = s.create()
		s.logger.Debug("stack pool empty, created item", zap.Int("created", s.created))
	}
	s.loaned++
	s.hooks.OnAcquire(item)

	s.metrics.Acquired(s.name, false)
	s.report()
	return item
}

// Release runs OnRelease on item and keeps it, or destroys it when the pool
// already holds MaxSize items. The zero value fails with ErrInvalidArgument.
func (s *Stack[T]) Release(item T) error {
	var zero T
	if item == zero {
		return errZeroItem()
	}

	if s.loaned > 0 {
		s.loaned--
	}
	s.hooks.OnRelease(item)

	if len(s.items) >= s.cfg.MaxSize {
		s.hooks.destroy(item)
		if s.hooks.OnDestroy != nil {
			s.metrics.Destroyed(s.name, 1)
		}
		s.report()
		return nil
	}
	s.items = append(s.items, item)

	s.metrics.Released(s.name)
	s.report()
	return nil
}

// Empty destroys every held item. The pool stays usable afterwards.
func (s *Stack[T]) Empty() {
	items := s.items
	s.items = s.items[:0:0]
	for i := len(items) - 1; i >= 0; i-- {
		s.hooks.destroy(items[i])
	}
	if s.hooks.OnDestroy != nil {
		s.metrics.Destroyed(s.name, len(items))
	}
	s.report()
}

// Count is the number of items held by the pool.
func (s *Stack[T]) Count() int {
	return len(s.items)
}

// Created is the number of items Create has built over the pool's lifetime.
func (s *Stack[T]) Created() int {
	return s.created
}

// Name returns the pool name.
func (s *Stack[T]) Name() string {
	return s.name
}

func (s *Stack[T]) report() {
	s.metrics.SetOccupancy(s.name, s.loaned, len(s.items))
}
