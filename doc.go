// Package poolkit provides lifecycle-managed object pools and the small
// runtime utilities that usually travel with them.
//
// The centerpiece is a fixed-capacity circular pool. It never fails an
// acquire for lack of items: when every item is on loan, the oldest active
// item is reclaimed and handed out again.
//
// # Quick Start
//
//	import "github.com/boxfriend/poolkit/pkg/pool"
//
//	bullets, err := pool.NewCircular(32, pool.Hooks[*Bullet]{
//	    Create:    func() *Bullet { return &Bullet{} },
//	    OnAcquire: func(b *Bullet) { b.Visible = true },
//	    OnRelease: func(b *Bullet) { b.Visible = false },
//	})
//	if err != nil {
//	    return err
//	}
//	defer bullets.Empty()
//
//	b, _ := bullets.Acquire()
//	// ...
//	_ = bullets.Release(b)
//
// # Key Packages
//
//	pkg/pool          - Circular and Stack pools, Locked wrapper
//	pkg/events        - Named event bus
//	pkg/timer         - Step-driven countdown timer
//	pkg/config        - Simulator configuration and YAML loading
//	pkg/errors        - Typed errors matched with errors.Is
//	pkg/logger        - Structured logging with zap
//	pkg/metrics       - Prometheus pool metrics
//	pkg/observability - OpenTelemetry tracing
//	internal/sim      - Randomized workload simulator
//	cmd/poolsim       - Simulator command line
//
// # Simulator
//
// poolsim drives a circular pool with a seeded random mix of acquires and
// releases and prints a JSON report:
//
//	poolsim run --size 16 --steps 100000 --acquire-ratio 0.6 --seed 1
//
// Settings come from defaults, an optional YAML file (--config), POOLSIM_*
// environment variables and flags, in that order of precedence. Environment
// variables are also substituted in the YAML file with ${VAR_NAME} syntax.
package poolkit
