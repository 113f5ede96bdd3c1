package netman

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Periodic runs a task repeatedly on a single goroutine, sleeping between
// runs for the interval the task itself returns. Because one goroutine
// drives the loop, the task never overlaps with itself. A non-positive
// returned interval ends the loop.
type Periodic struct {
	name string
	log  *slog.Logger
	task func() time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPeriodic wraps task as a self-rescheduling recurring job. The task is
// not run until Start is called.
func NewPeriodic(name string, logger *slog.Logger, task func() time.Duration) *Periodic {
	return &Periodic{
		name: name,
		log:  logger,
		task: task,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start begins running the task after initialDelay. Calling Start again is
// a no-op.
func (p *Periodic) Start(initialDelay time.Duration) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run(initialDelay)
}

func (p *Periodic) run(delay time.Duration) {
	defer close(p.done)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-timer.C:
		}
		next := p.task()
		if next <= 0 {
			if p.log != nil {
				p.log.Debug("periodic:finished", slog.String("name", p.name))
			}
			return
		}
		timer.Reset(next)
	}
}

// Stop halts the loop and waits for an in-flight run to finish. Safe to
// call more than once; a no-op if Start was never called.
func (p *Periodic) Stop() {
	if !p.started.Load() {
		return
	}
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}
