package supervisor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultStallInterval is how often a stalled wait on the fixture is
// reported.
const DefaultStallInterval = 10 * time.Second

// Stall periodically warns that the fixture process is taking long to
// reach a checkpoint. Stop ends the warnings.
type Stall struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// StallWarning starts warning every interval that the fixture has still not
// done what verb describes, e.g. "connected" or "wrapped up". A
// non-positive interval disables the warnings.
func StallWarning(interval time.Duration, verb string) *Stall {
	s := &Stall{stop: make(chan struct{})}
	if interval <= 0 {
		return s
	}

	start := time.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				secs := int(now.Sub(start).Seconds())
				slog.Warn(stallMessage(verb, secs))
			}
		}
	}()
	return s
}

func stallMessage(verb string, secs int) string {
	return fmt.Sprintf("fixture process has still not %s after %ds (use Ctrl+C twice to kill the process)", verb, secs)
}

// Stop cancels the warnings and waits for the warning goroutine to exit.
// It is safe to call more than once.
func (s *Stall) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
