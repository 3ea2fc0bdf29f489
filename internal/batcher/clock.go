package batcher

import "time"

// Timer is the handle of an armed one-shot timer.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so the batcher can run on a virtual clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
