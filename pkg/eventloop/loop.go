// Package eventloop provides the single goroutine that owns binding,
// session and dispatcher state.
//
// Work items run one at a time in the order they were posted. Code on
// other goroutines must Post (or RunSync) instead of touching loop-owned
// state directly; loop-owned components call AssertOnLoop at their entry
// points.
package eventloop

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/logging"
	"go.uber.org/atomic"
)

// ErrClosed is returned when posting to a closed loop.
var ErrClosed = errors.New("eventloop: closed")

// Config configures a Loop.
type Config struct {
	// Name is used as the logger scope suffix.
	// Default: "eventloop"
	Name string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Loop is a FIFO work queue drained by one goroutine.
type Loop struct {
	log logging.LeveledLogger

	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}

	onLoop    atomic.Bool
	processed atomic.Uint64
}

// New starts a loop.
func New(config Config) *Loop {
	if config.Name == "" {
		config.Name = "eventloop"
	}
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger(config.Name)
	}
	go l.run()
	return l
}

// Post enqueues fn. It never blocks and is safe from any goroutine,
// including from inside a work item.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// RunSync runs fn on the loop and waits for it to return. Called from a
// work item it runs fn inline.
func (l *Loop) RunSync(fn func()) error {
	if l.OnLoop() {
		fn()
		return nil
	}
	ran := make(chan struct{})
	if err := l.Post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// Close drains the queue, so fn either ran or was never queued.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// After posts fn once d has elapsed. Stopping the returned timer before
// it fires cancels the post.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		if err := l.Post(fn); err != nil && l.log != nil {
			l.log.Debugf("dropping timer callback: %v", err)
		}
	})
}

// OnLoop reports whether the caller is running inside a work item.
func (l *Loop) OnLoop() bool {
	return l.onLoop.Load()
}

// AssertOnLoop panics when called outside a work item.
func (l *Loop) AssertOnLoop() {
	if !l.onLoop.Load() {
		panic("eventloop: loop-owned state accessed off the loop")
	}
}

// Processed returns the number of work items run so far.
func (l *Loop) Processed() uint64 {
	return l.processed.Load()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops accepting work, runs what is already queued and waits for
// the loop goroutine to exit. Called from a work item it does not wait.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if !l.OnLoop() {
		<-l.done
	}
	return nil
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		closed := l.closed
		l.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				if l.log != nil {
					l.log.Debugf("stopped after %d work items", l.processed.Load())
				}
				return
			}
			<-l.wake
			continue
		}

		for _, fn := range batch {
			l.onLoop.Store(true)
			fn()
			l.onLoop.Store(false)
			l.processed.Inc()
		}
	}
}
