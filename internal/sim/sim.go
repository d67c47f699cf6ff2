// Package sim drives a circular pool with a seeded random workload and
// reports what happened. It is the engine behind the poolsim command.
package sim

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/pkg/config"
	"github.com/boxfriend/poolkit/pkg/errors"
	"github.com/boxfriend/poolkit/pkg/events"
	"github.com/boxfriend/poolkit/pkg/metrics"
	"github.com/boxfriend/poolkit/pkg/observability"
	"github.com/boxfriend/poolkit/pkg/pool"
	"github.com/boxfriend/poolkit/pkg/timer"
)

// Events published on the bus passed with WithEvents. The argument is the
// item ID and the sender is the pool name.
const (
	EventAcquired  = "pool.acquired"
	EventReleased  = "pool.released"
	EventReclaimed = "pool.reclaimed"
)

// StepDuration is the simulated time one step takes.
const StepDuration = time.Millisecond

// Report summarizes one simulator run.
//
// A borrower whose item is reclaimed keeps its now stale lease and later
// tries to release through it. StaleLeases counts those rejected releases;
// OrphanedLeases counts stale leases still unreturned when the run ends.
type Report struct {
	Pool            string        `json:"pool"`
	Size            int           `json:"size"`
	Seed            int64         `json:"seed"`
	Steps           int           `json:"steps"`
	Acquires        int           `json:"acquires"`
	Releases        int           `json:"releases"`
	Reclaims        int           `json:"reclaims"`
	StaleLeases     int           `json:"stale_leases"`
	OrphanedLeases  int           `json:"orphaned_leases"`
	IdleSteps       int           `json:"idle_steps"`
	PeakActive      int           `json:"peak_active"`
	FinalActive     int           `json:"final_active"`
	Destroyed       int           `json:"destroyed"`
	InvariantChecks int           `json:"invariant_checks"`
	Duration        time.Duration `json:"duration_ns"`
}

// Option configures a run.
type Option func(*runner)

// WithLogger sets the logger for run progress. Runs log nothing by default.
func WithLogger(logger *zap.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics reports pool activity and run duration to collector.
func WithMetrics(collector *metrics.PoolCollector) Option {
	return func(r *runner) {
		r.metrics = collector
	}
}

// WithEvents publishes acquire, release and reclaim events on bus. Missing
// events are registered on the bus at the start of the run.
func WithEvents(bus *events.Bus) Option {
	return func(r *runner) {
		r.bus = bus
	}
}

// WithProgressInterval logs progress every d of simulated time. Zero
// disables progress logging.
func WithProgressInterval(d time.Duration) Option {
	return func(r *runner) {
		r.progressEvery = d
	}
}

type slot struct {
	id    int
	uses  int
	inUse bool
}

type runner struct {
	logger        *zap.Logger
	poolLogger    *zap.Logger
	metrics       *metrics.PoolCollector
	bus           *events.Bus
	progressEvery time.Duration

	cfg    config.SimulationConfig
	rng    *rand.Rand
	pool   *pool.Circular[*slot]
	report Report

	// held mirrors the pool's active set from the borrower side; pos maps
	// each held item to its index in held.
	held []pool.Lease[*slot]
	pos  map[*slot]int
	// orphans are leases whose item was reclaimed from their borrower.
	orphans []pool.Lease[*slot]
}

// Run builds a pool of cfg.Pool.Size items and performs cfg.Steps random
// operations on it. Each step acquires with probability cfg.AcquireRatio and
// otherwise releases a random held item. The pool's invariants are checked
// after every step; a violation ends the run with an ErrorTypeInternal
// error.
//
// Run checks ctx between steps. On cancellation it returns the report so far
// together with the context error.
func Run(ctx context.Context, cfg config.SimulationConfig, opts ...Option) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	r := &runner{
		logger: zap.NewNop(),
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		pos:    make(map[*slot]int, cfg.Pool.Size),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.poolLogger = r.logger
	r.logger = r.logger.With(zap.String("pool", cfg.Pool.Name), zap.Int64("seed", cfg.Seed))
	r.report = Report{Pool: cfg.Pool.Name, Size: cfg.Pool.Size, Seed: cfg.Seed}

	ctx, span := observability.StartSpan(ctx, "sim.run",
		attribute.String("pool.name", cfg.Pool.Name),
		attribute.Int("pool.size", cfg.Pool.Size),
		attribute.Int("sim.steps", cfg.Steps),
		attribute.Int64("sim.seed", cfg.Seed),
	)
	t := metrics.NewTimer(cfg.Pool.Name)

	err := r.run(ctx)

	r.report.Duration = t.Stop()
	r.metrics.ObserveRun(t.Name(), r.report.Duration)
	span.SetAttributes(
		attribute.Int("sim.acquires", r.report.Acquires),
		attribute.Int("sim.releases", r.report.Releases),
		attribute.Int("sim.reclaims", r.report.Reclaims),
		attribute.Int("sim.peak_active", r.report.PeakActive),
	)
	observability.EndSpan(span, err)

	if err != nil {
		r.logger.Warn("simulation stopped", zap.Int("steps", r.report.Steps), zap.Error(err))
		return r.report, err
	}
	r.logger.Info("simulation finished",
		zap.Int("steps", r.report.Steps),
		zap.Int("acquires", r.report.Acquires),
		zap.Int("releases", r.report.Releases),
		zap.Int("reclaims", r.report.Reclaims),
		zap.Int("peak_active", r.report.PeakActive),
		zap.Duration("duration", r.report.Duration),
	)
	return r.report, nil
}

func (r *runner) run(ctx context.Context) error {
	if err := r.registerEvents(); err != nil {
		return err
	}

	p, err := pool.NewCircular(r.cfg.Pool.Size, r.hooks(),
		pool.WithName(r.cfg.Pool.Name),
		pool.WithLogger(r.poolLogger),
		pool.WithMetrics(r.metrics),
	)
	if err != nil {
		return err
	}
	r.pool = p
	defer func() {
		r.report.FinalActive = p.ActiveCount()
		r.report.OrphanedLeases = len(r.orphans)
		p.Empty()
	}()

	progress := r.newProgressTimer()
	for step := 0; step < r.cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "simulation canceled").
				WithDetail("step", step)
		}

		if r.rng.Float64() < r.cfg.AcquireRatio {
			err = r.acquire()
		} else {
			err = r.release()
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "pool operation failed").
				WithDetail("step", step)
		}
		r.report.Steps++

		if err := r.check(step); err != nil {
			return err
		}
		if progress != nil && progress.Update(StepDuration) {
			progress = r.newProgressTimer()
		}
	}
	return nil
}

func (r *runner) hooks() pool.Hooks[*slot] {
	next := 0
	return pool.Hooks[*slot]{
		Create: func() *slot {
			next++
			return &slot{id: next}
		},
		OnAcquire: func(s *slot) {
			s.inUse = true
			s.uses++
			r.publish(EventAcquired, s.id)
		},
		OnRelease: func(s *slot) {
			s.inUse = false
		},
		OnDestroy: func(s *slot) {
			r.report.Destroyed++
		},
	}
}

func (r *runner) acquire() error {
	reclaiming := r.pool.InactiveCount() == 0
	lease, err := r.pool.AcquireLease()
	if err != nil {
		return err
	}
	r.report.Acquires++

	if reclaiming {
		r.report.Reclaims++
		i, ok := r.pos[lease.Item]
		if !ok {
			return errors.New(errors.ErrorTypeInternal, "reclaimed item was not held").
				WithDetail("item", lease.Item.id)
		}
		old := r.held[i]
		if !r.pool.Stale(old) {
			return errors.New(errors.ErrorTypeInternal, "reclaimed lease is still current").
				WithDetail("item", old.Item.id)
		}
		r.orphans = append(r.orphans, old)
		r.held[i] = lease
		r.publish(EventReclaimed, lease.Item.id)
		return nil
	}

	r.pos[lease.Item] = len(r.held)
	r.held = append(r.held, lease)
	if n := len(r.held); n > r.report.PeakActive {
		r.report.PeakActive = n
	}
	return nil
}

func (r *runner) release() error {
	n := len(r.held) + len(r.orphans)
	if n == 0 {
		r.report.IdleSteps++
		return nil
	}

	i := r.rng.Intn(n)
	if i >= len(r.held) {
		return r.releaseOrphan(i - len(r.held))
	}

	lease := r.held[i]
	last := len(r.held) - 1
	r.held[i] = r.held[last]
	r.pos[r.held[i].Item] = i
	r.held = r.held[:last]
	delete(r.pos, lease.Item)

	if err := r.pool.ReleaseLease(lease); err != nil {
		return err
	}
	r.report.Releases++
	r.publish(EventReleased, lease.Item.id)
	return nil
}

// releaseOrphan returns the stale lease at i, which the pool must refuse.
func (r *runner) releaseOrphan(i int) error {
	lease := r.orphans[i]
	last := len(r.orphans) - 1
	r.orphans[i] = r.orphans[last]
	r.orphans = r.orphans[:last]

	err := r.pool.ReleaseLease(lease)
	switch {
	case err == nil:
		return errors.New(errors.ErrorTypeInternal, "pool accepted a stale lease").
			WithDetail("item", lease.Item.id)
	case !errors.IsType(err, errors.ErrorTypeStaleLease):
		return err
	}
	r.report.StaleLeases++
	return nil
}

func (r *runner) check(step int) error {
	r.report.InvariantChecks++
	active, inactive, count := r.pool.ActiveCount(), r.pool.InactiveCount(), r.pool.Count()

	var msg string
	switch {
	case active+inactive != count:
		msg = "active and inactive items do not add up to the pool size"
	case active != len(r.held):
		msg = "pool and borrowers disagree on the number of active items"
	default:
		return nil
	}
	return errors.New(errors.ErrorTypeInternal, msg).
		WithDetail("step", step).
		WithDetail("active", active).
		WithDetail("inactive", inactive).
		WithDetail("count", count).
		WithDetail("held", len(r.held))
}

func (r *runner) newProgressTimer() *timer.Timer {
	if r.progressEvery <= 0 {
		return nil
	}
	return timer.New(func() {
		r.logger.Debug("simulation progress",
			zap.Int("steps", r.report.Steps),
			zap.Int("active", r.pool.ActiveCount()),
			zap.Int("reclaims", r.report.Reclaims),
		)
	}, r.progressEvery)
}

func (r *runner) registerEvents() error {
	if r.bus == nil {
		return nil
	}
	for _, name := range []string{EventAcquired, EventReleased, EventReclaimed} {
		if _, err := r.bus.Register(name); err != nil && !errors.IsType(err, errors.ErrorTypeConflict) {
			return err
		}
	}
	return nil
}

func (r *runner) publish(name string, id int) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Invoke(name, id, r.cfg.Pool.Name); err != nil {
		r.logger.Debug("event not delivered", zap.String("event", name), zap.Error(err))
	}
}
