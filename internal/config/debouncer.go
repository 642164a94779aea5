package config

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of Trigger calls into one onFlush call that
// runs once the burst has been quiet for window.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	onFlush func()
	stopped bool
}

func NewDebouncer(window time.Duration, onFlush func()) *Debouncer {
	return &Debouncer{
		window:  window,
		onFlush: onFlush,
	}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.onFlush()
	})
}

// Stop drops any pending flush.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
