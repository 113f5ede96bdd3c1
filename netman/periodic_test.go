package netman

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPeriodicReschedulesAtReturnedInterval(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{})
	p := NewPeriodic("test", nil, func() time.Duration {
		if runs.Add(1) == 3 {
			close(done)
			return 0 // end the loop
		}
		return time.Millisecond
	})
	p.Start(0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not reach three runs")
	}
	p.Stop()
	if got := runs.Load(); got != 3 {
		t.Errorf("task ran %d times, want 3", got)
	}
}

func TestPeriodicStartIsOneShot(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", nil, func() time.Duration {
		runs.Add(1)
		return time.Hour
	})
	p.Start(0)
	p.Start(0)
	p.Start(0)

	time.Sleep(50 * time.Millisecond)
	p.Stop()
	if got := runs.Load(); got != 1 {
		t.Errorf("task ran %d times, want 1", got)
	}
}

func TestPeriodicStopWaitsForInFlightRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	p := NewPeriodic("test", nil, func() time.Duration {
		close(entered)
		<-release
		finished.Store(true)
		return time.Hour
	})
	p.Start(0)
	<-entered

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the task was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the task finished")
	}
	if !finished.Load() {
		t.Error("task interrupted mid-run")
	}
}

func TestPeriodicStopIdempotentAndSafeBeforeStart(t *testing.T) {
	p := NewPeriodic("test", nil, func() time.Duration { return time.Hour })
	p.Stop() // never started

	p.Start(time.Hour)
	p.Stop()
	p.Stop()
}

func TestPeriodicInitialDelay(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", nil, func() time.Duration {
		runs.Add(1)
		return time.Hour
	})
	p.Start(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("task ran %d times before the initial delay elapsed", got)
	}
	p.Stop()
}
