package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPoolCollector(reg, "test")

	c.Acquired("bullets", false)
	c.Acquired("bullets", true)
	c.Released("bullets")
	c.Destroyed("bullets", 3)
	c.SetOccupancy("bullets", 2, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.acquires.WithLabelValues("bullets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reclaims.WithLabelValues("bullets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.releases.WithLabelValues("bullets")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.destroyed.WithLabelValues("bullets")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.active.WithLabelValues("bullets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inactive.WithLabelValues("bullets")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *PoolCollector
	assert.NotPanics(t, func() {
		c.Acquired("p", true)
		c.Released("p")
		c.Destroyed("p", 1)
		c.SetOccupancy("p", 1, 1)
		c.ObserveRun("p", time.Millisecond)
	})
}

func TestTimer(t *testing.T) {
	timer := NewTimer("run")
	assert.Equal(t, "run", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
