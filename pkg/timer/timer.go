// Package timer provides a countdown timer driven by explicit ticks, for
// frame or step based loops that advance time themselves.
package timer

import "time"

// Timer counts down on Update and runs its action once when the remaining
// time reaches zero. Once ended it can not be restarted.
//
// Timer is not safe for concurrent use.
type Timer struct {
	action    func()
	remaining time.Duration
	ended     bool
	paused    bool
}

// New creates a running timer that calls action after d of updates. A nil
// action is allowed and makes the timer a plain countdown.
func New(action func(), d time.Duration) *Timer {
	return &Timer{action: action, remaining: d}
}

// Update advances the timer by dt unless it is paused or ended. It returns
// true on the update that fires the action.
func (t *Timer) Update(dt time.Duration) bool {
	if t.ended || t.paused {
		return false
	}
	t.remaining -= dt
	if t.remaining <= 0 {
		t.EndWithAction()
		return true
	}
	return false
}

// Pause stops the countdown until Resume.
func (t *Timer) Pause() { t.paused = true }

// Resume continues a paused countdown.
func (t *Timer) Resume() { t.paused = false }

// Paused reports whether the timer is paused.
func (t *Timer) Paused() bool { return t.paused }

// Ended reports whether the timer has ended, with or without its action.
func (t *Timer) Ended() bool { return t.ended }

// Remaining is the time left. It may be negative after the timer fired on an
// update larger than the time left.
func (t *Timer) Remaining() time.Duration { return t.remaining }

// AddTime extends a running timer. It has no effect once the timer ended.
func (t *Timer) AddTime(d time.Duration) {
	if t.ended {
		return
	}
	t.remaining += d
}

// End stops the timer without running its action.
func (t *Timer) End() {
	t.ended = true
}

// EndWithAction runs the action and ends the timer. It does nothing if the
// timer already ended.
func (t *Timer) EndWithAction() {
	if t.ended {
		return
	}
	t.ended = true
	if t.action != nil {
		t.action()
	}
}
