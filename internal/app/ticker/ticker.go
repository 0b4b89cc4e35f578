// Package ticker provides a recurring task that owns its own cancellation.
package ticker

import (
	"context"
	"sync"
	"time"
)

// Task runs a function on a fixed period until it is stopped or the
// function asks to stop. Each Task is independent of every other Task.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start schedules fn every interval. fn returning false ends the task.
// onExit, if non-nil, runs once on the task goroutine after the last tick.
func Start(interval time.Duration, fn func() bool, onExit func()) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		if onExit != nil {
			defer onExit()
		}

		tk := time.NewTicker(interval)
		defer tk.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				// Cancellation wins over a tick that raced with it.
				if ctx.Err() != nil {
					return
				}
				if !fn() {
					return
				}
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for it to exit.
// Must not be called from fn or onExit.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Running reports whether the task has not exited yet.
func (t *Task) Running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// AfterFunc calls fn once after d unless the returned cancel func runs first.
func AfterFunc(d time.Duration, fn func()) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			if ctx.Err() == nil {
				fn()
			}
		}
	}()
	return stop
}
