package stream

import (
	"sync"
	"time"
)

// Debouncer runs the most recently triggered function once the trigger has
// been quiet for the configured window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
	seq    uint64
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Trigger schedules fn, replacing any function still waiting.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		fire := seq == d.seq
		d.mu.Unlock()
		if fire {
			fn()
		}
	})
}

// Stop drops the pending function, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
