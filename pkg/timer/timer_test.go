package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerFiresOnce(t *testing.T) {
	fired := 0
	tm := New(func() { fired++ }, 100*time.Millisecond)

	assert.False(t, tm.Update(40*time.Millisecond))
	assert.Equal(t, 60*time.Millisecond, tm.Remaining())
	assert.True(t, tm.Update(70*time.Millisecond))
	assert.False(t, tm.Update(time.Second))

	assert.Equal(t, 1, fired)
	assert.True(t, tm.Ended())
	assert.Equal(t, -10*time.Millisecond, tm.Remaining())
}

func TestTimerPause(t *testing.T) {
	fired := false
	tm := New(func() { fired = true }, time.Second)

	tm.Pause()
	assert.True(t, tm.Paused())
	tm.Update(2 * time.Second)
	assert.False(t, fired)
	assert.Equal(t, time.Second, tm.Remaining())

	tm.Resume()
	tm.Update(2 * time.Second)
	assert.True(t, fired)
}

func TestTimerAddTime(t *testing.T) {
	tm := New(nil, time.Second)
	tm.AddTime(500 * time.Millisecond)
	assert.False(t, tm.Update(1200*time.Millisecond))
	assert.True(t, tm.Update(300*time.Millisecond))

	tm.AddTime(time.Minute)
	assert.Equal(t, time.Duration(0), tm.Remaining())
}

func TestTimerEnd(t *testing.T) {
	fired := 0
	tm := New(func() { fired++ }, time.Second)

	tm.End()
	assert.False(t, tm.Update(2*time.Second))
	tm.EndWithAction()
	assert.Equal(t, 0, fired)

	other := New(func() { fired++ }, time.Second)
	other.EndWithAction()
	other.EndWithAction()
	assert.Equal(t, 1, fired)
	assert.True(t, other.Ended())
}
