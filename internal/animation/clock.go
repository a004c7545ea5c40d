package animation

import (
	"sync"
	"time"
)

// Ticker is a running recurring timer.
type Ticker interface {
	// Stop cancels the timer. It does not wait for a callback in progress.
	Stop()
}

// Clock creates recurring timers.
type Clock interface {
	// Every calls fn every d until the returned Ticker is stopped.
	Every(d time.Duration, fn func()) Ticker
}

// SystemClock is a Clock backed by time.Ticker.
type SystemClock struct{}

// Every implements Clock.
func (SystemClock) Every(d time.Duration, fn func()) Ticker {
	t := &systemTicker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type systemTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *systemTicker) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			fn()
		}
	}
}

func (t *systemTicker) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
