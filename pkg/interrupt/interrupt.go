// Package interrupt turns operator interrupts into a "kill the fixture"
// request when they come in quick succession.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"time"
)

// DefaultWindow is the longest gap between two interrupts that still counts
// as a double interrupt.
const DefaultWindow = 400 * time.Millisecond

// Detector counts interrupts arriving within window of each other. The zero
// value never fires; use NewDetector.
type Detector struct {
	window time.Duration
	need   int
	count  int
	last   time.Time
}

// NewDetector returns a detector firing after need interrupts, each within
// window of the previous one.
func NewDetector(window time.Duration, need int) Detector {
	return Detector{window: window, need: need}
}

// Observe records an interrupt at t and reports whether it completes a
// run. The run restarts after firing.
func (d *Detector) Observe(t time.Time) bool {
	if d.need <= 0 {
		return false
	}
	if d.count > 0 && t.Sub(d.last) <= d.window {
		d.count++
	} else {
		d.count = 1
	}
	d.last = t

	if d.count >= d.need {
		d.count = 0
		return true
	}
	return false
}

// Watch delivers a value on the returned channel for every double
// interrupt until ctx is done. A single interrupt does nothing here: it is
// left to the children sharing cargo-fixture's process group.
func Watch(ctx context.Context, window time.Duration) <-chan struct{} {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, os.Interrupt)
	return watch(ctx, sigs, window, func() { signal.Stop(sigs) })
}

func watch(ctx context.Context, sigs <-chan os.Signal, window time.Duration, stop func()) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer stop()
		det := NewDetector(window, 2)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if det.Observe(time.Now()) {
					select {
					case out <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
	return out
}
