// Package loop runs tasks one at a time on a single goroutine.
//
// It is the render loop of the map: everything that mutates map state is
// posted here, including completions of network requests that finish on
// other goroutines.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when posting to a loop that has stopped.
var ErrClosed = errors.New("loop closed")

// Loop is a FIFO task queue drained by Run.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	executing atomic.Int32
	running   atomic.Bool
}

// New creates a loop whose queue holds up to size pending tasks
// before Post blocks.
func New(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn for execution on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Call posts fn and waits until it has run.
// It must not be called from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// the task may still have run before shutdown
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Executing reports whether a task is running on the loop right now.
// Code that must only run on the loop can assert it with this.
func (l *Loop) Executing() bool {
	return l.executing.Load() > 0
}

// Run drains tasks until ctx is cancelled. Tasks still queued at that
// point are discarded. Run may only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop already running")
	}
	defer l.closeOnce.Do(func() { close(l.done) })

	log.Debug().Int("queue", cap(l.tasks)).Msg("Render loop started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("dropped", len(l.tasks)).Msg("Render loop stopped")
			return nil
		case fn := <-l.tasks:
			if err := l.exec(fn); err != nil {
				log.Error().Err(err).Msg("Render loop task failed")
			}
		}
	}
}

func (l *Loop) exec(fn func()) (err error) {
	l.executing.Add(1)
	defer l.executing.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	fn()
	return nil
}
