// Package watch turns outside signals into refreshes: daemon events, a
// periodic schedule, and the daemon socket reappearing.
package watch

import (
	"sync"
	"time"

	"github.com/MH0386/containr/internal/state"
)

// Refresher is the part of state.Inventory the watchers drive.
type Refresher interface {
	RefreshAll()
	Refresh(kind state.Kind)
}

const debounceDelay = 200 * time.Millisecond

// debouncer manages per-key trailing-edge timers. Each key resets its own
// timer; fn runs once delay has passed since the last trigger for that key.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// stop cancels all pending timers.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	clear(d.timers)
}
