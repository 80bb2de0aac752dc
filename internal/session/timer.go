package session

import (
	"sync"
	"time"
)

// TimerState represents the lifecycle state of a Timer.
type TimerState int

const (
	// TimerIdle means the timer has not been started (or was reset).
	TimerIdle TimerState = iota

	// TimerRunning means the playback clock is accumulating elapsed time.
	TimerRunning

	// TimerPaused means the playback clock is frozen.
	TimerPaused

	// TimerFired means the timer reached its target and ran its callback.
	TimerFired
)

// String returns a human-readable name for the state.
func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Timer is a suspendable countdown that fires a callback once per armed
// period. It measures playback time, not wall-clock time: pausing freezes
// the elapsed count and resuming continues from where it left off.
//
// A Timer starts without a deadline; the clock runs but nothing is
// scheduled until Update sets a target. Updating the target recomputes the
// remaining time from the elapsed count so far rather than restarting, so
// corrections (a late-arriving track duration, a recomputed scrobble
// threshold) never discard credited playback time. Clear drops the pending
// deadline while leaving the clock as-is.
//
// The callback runs on its own goroutine. A fire that loses the race with
// Pause, Clear, Update or Reset is abandoned: the generation counter
// guarantees at most one callback per armed period.
type Timer struct {
	mu sync.Mutex

	state     TimerState
	cb        func()
	hasTarget bool
	target    time.Duration // playback time at which to fire
	elapsed   time.Duration // accumulated before the current run
	startedAt time.Time     // start of the current run, valid while running
	pending   *time.Timer
	gen       uint64
}

// NewTimer returns an idle timer with no deadline.
func NewTimer() *Timer {
	return &Timer{state: TimerIdle}
}

// Start begins the playback clock and registers the fire callback.
// It is a no-op unless the timer is idle.
func (t *Timer) Start(cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerIdle {
		return
	}
	t.cb = cb
	t.startedAt = time.Now()
	t.state = TimerRunning
	t.armLocked()
}

// Pause freezes the playback clock and cancels the pending fire.
// It is a no-op unless the timer is running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerRunning {
		return
	}
	t.elapsed += time.Since(t.startedAt)
	t.cancelLocked()
	t.state = TimerPaused
}

// Resume continues the playback clock and reschedules the remaining time.
// It is a no-op unless the timer is paused.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerPaused {
		return
	}
	t.startedAt = time.Now()
	t.state = TimerRunning
	t.armLocked()
}

// Update sets a new target and recomputes the remaining time from the
// elapsed count so far. A target at or below the already-elapsed time
// schedules an immediate fire. Updating a fired timer is a no-op; the
// armed period is over until Reset.
func (t *Timer) Update(target time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TimerFired {
		return
	}
	t.hasTarget = true
	t.target = target
	t.cancelLocked()
	t.armLocked()
}

// Clear drops the pending deadline without touching the clock: the timer
// keeps running (or stays paused) and will not fire until a new target is
// set with Update.
func (t *Timer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TimerFired {
		return
	}
	t.hasTarget = false
	t.target = 0
	t.cancelLocked()
}

// Reset cancels any pending fire and returns the timer to idle with a zero
// clock and no deadline.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.state = TimerIdle
	t.cb = nil
	t.hasTarget = false
	t.target = 0
	t.elapsed = 0
	t.startedAt = time.Time{}
}

// State returns the current lifecycle state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Elapsed returns the accumulated playback time.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// Remaining returns the playback time left until the target fires. The
// second return is false when no deadline is set.
func (t *Timer) Remaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasTarget {
		return 0, false
	}
	return t.target - t.elapsedLocked(), true
}

func (t *Timer) elapsedLocked() time.Duration {
	if t.state == TimerRunning {
		return t.elapsed + time.Since(t.startedAt)
	}
	return t.elapsed
}

// armLocked schedules the fire for the remaining time. Callers must hold
// t.mu and have cancelled any previous schedule.
func (t *Timer) armLocked() {
	if !t.hasTarget || t.state != TimerRunning {
		return
	}
	remaining := t.target - t.elapsedLocked()
	if remaining < 0 {
		remaining = 0
	}
	gen := t.gen
	t.pending = time.AfterFunc(remaining, func() {
		t.fire(gen)
	})
}

// cancelLocked invalidates the current generation and stops any scheduled
// fire. Callers must hold t.mu.
func (t *Timer) cancelLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.elapsed += time.Since(t.startedAt)
	t.state = TimerFired
	t.pending = nil
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
