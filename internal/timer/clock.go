// Package timer provides the wall-clock countdowns, one-shot timeouts and
// repeaters that drive a workout session, plus the registry that owns them.
package timer

import "time"

// Stopper is a cancellable scheduled task.
type Stopper interface {
	Stop() bool
}

// Clock abstracts time so that session timing can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// System returns the real wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
