package fakecall

import (
	"sync"
	"time"
)

// Stopper cancels a scheduled callback. Stop is idempotent.
type Stopper interface {
	Stop()
}

// Clock schedules the session's periodic and delayed work.
type Clock interface {
	Every(d time.Duration, fn func()) Stopper
	AfterFunc(d time.Duration, fn func()) Stopper
}

// RealClock runs callbacks on wall-clock time.
func RealClock() Clock { return realClock{} }

type realClock struct{}

type tickerStopper struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerStopper) Stop() {
	t.once.Do(func() { close(t.done) })
}

func (realClock) Every(d time.Duration, fn func()) Stopper {
	ts := &tickerStopper{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ts.done:
				return
			}
		}
	}()
	return ts
}

type timerStopper struct{ t *time.Timer }

func (ts timerStopper) Stop() { ts.t.Stop() }

func (realClock) AfterFunc(d time.Duration, fn func()) Stopper {
	return timerStopper{t: time.AfterFunc(d, fn)}
}

type nopStopper struct{}

func (nopStopper) Stop() {}
