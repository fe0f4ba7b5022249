package interrupt //nolint:testpackage // white-box: drives the watcher with a fake signal channel

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestDetector(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

	tests := []struct {
		name  string
		times []int
		fires []bool
	}{
		{"single", []int{0}, []bool{false}},
		{"double within window", []int{0, 300}, []bool{false, true}},
		{"double at window edge", []int{0, 400}, []bool{false, true}},
		{"too slow", []int{0, 401}, []bool{false, false}},
		{"slow then quick", []int{0, 1000, 1200}, []bool{false, false, true}},
		{"restarts after firing", []int{0, 100, 200, 300}, []bool{false, true, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(DefaultWindow, 2)
			for i, ms := range tt.times {
				if got := d.Observe(at(ms)); got != tt.fires[i] {
					t.Errorf("interrupt %d at %dms: fired=%v, want %v", i, ms, got, tt.fires[i])
				}
			}
		})
	}
}

func TestDetectorZeroValueNeverFires(t *testing.T) {
	var d Detector
	now := time.Now()
	for i := 0; i < 5; i++ {
		if d.Observe(now) {
			t.Fatal("zero Detector fired")
		}
	}
}

func TestWatchFiresOnDoubleInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 2)
	stopped := make(chan struct{})
	out := watch(ctx, sigs, time.Second, func() { close(stopped) })

	sigs <- os.Interrupt
	select {
	case <-out:
		t.Fatal("single interrupt must not fire")
	case <-time.After(50 * time.Millisecond):
	}

	sigs <- os.Interrupt
	select {
	case <-out:
	case <-time.After(5 * time.Second):
		t.Fatal("double interrupt did not fire")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
