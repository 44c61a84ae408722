package timer

import (
	"sync"
	"time"
)

// Remaining computes the time left in a segment of length total that began
// at start. Elapsed time is floored to whole seconds, so a countdown shown
// once per second never skips ahead of the wall clock.
func Remaining(total time.Duration, start, now time.Time) time.Duration {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	rem := total - elapsed.Truncate(time.Second)
	if rem < 0 {
		return 0
	}
	return rem
}

// Countdown ticks once per second until its segment runs out, then fires
// its expiry callback exactly once. Every tick recomputes the remaining time
// from the segment start, so late ticks catch up instead of drifting.
type Countdown struct {
	clock    Clock
	start    time.Time
	total    time.Duration
	onTick   func(remaining time.Duration)
	onExpire func()

	mu      sync.Mutex
	timer   Stopper
	stopped bool
}

// StartCountdown begins a countdown of total length at the clock's current time.
// Either callback may be nil.
func StartCountdown(c Clock, total time.Duration, onTick func(time.Duration), onExpire func()) *Countdown {
	cd := &Countdown{
		clock:    c,
		start:    c.Now(),
		total:    total,
		onTick:   onTick,
		onExpire: onExpire,
	}
	cd.mu.Lock()
	cd.schedule(cd.start)
	cd.mu.Unlock()
	return cd
}

// schedule arms the next tick on the next whole second after the segment
// start, or at expiry if that comes first. Caller holds cd.mu.
func (cd *Countdown) schedule(now time.Time) {
	elapsed := now.Sub(cd.start)
	next := (elapsed/time.Second + 1) * time.Second
	if next > cd.total {
		next = cd.total
	}
	delay := next - elapsed
	if delay < 0 {
		delay = 0
	}
	cd.timer = cd.clock.AfterFunc(delay, cd.fire)
}

func (cd *Countdown) fire() {
	cd.mu.Lock()
	if cd.stopped {
		cd.mu.Unlock()
		return
	}
	now := cd.clock.Now()
	rem := Remaining(cd.total, cd.start, now)
	if rem <= 0 {
		cd.stopped = true
		cd.mu.Unlock()
		if cd.onExpire != nil {
			cd.onExpire()
		}
		return
	}
	cd.schedule(now)
	cd.mu.Unlock()

	if cd.onTick != nil {
		cd.onTick(rem)
	}
}

// Remaining reports the time left at the clock's current time.
func (cd *Countdown) Remaining() time.Duration {
	return Remaining(cd.total, cd.start, cd.clock.Now())
}

// Stop cancels the countdown. It reports whether the countdown was still running.
func (cd *Countdown) Stop() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if cd.stopped {
		return false
	}
	cd.stopped = true
	if cd.timer != nil {
		cd.timer.Stop()
	}
	return true
}

// Repeater calls a function on a fixed interval until stopped.
type Repeater struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   Stopper
	stopped bool
}

// Every starts a Repeater. The first call happens one interval from now.
func Every(c Clock, interval time.Duration, fn func()) *Repeater {
	r := &Repeater{clock: c, interval: interval, fn: fn}
	r.mu.Lock()
	r.timer = c.AfterFunc(interval, r.fire)
	r.mu.Unlock()
	return r
}

func (r *Repeater) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.timer = r.clock.AfterFunc(r.interval, r.fire)
	r.mu.Unlock()
	r.fn()
}

// Stop cancels the repeater. It reports whether it was still running.
func (r *Repeater) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
	return true
}
