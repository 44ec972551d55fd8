// Package eventloop provides the single logical session thread.
//
// Platform speech services deliver their events from their own goroutines.
// Everything that touches session state (the recognition controller, the
// listener and its restart policy) is marshaled onto one Loop so that state
// transitions happen one at a time and never need locks.
package eventloop

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Do when the loop has stopped.
var ErrClosed = errors.New("event loop is closed")

// Executor runs functions on the session thread.
type Executor interface {
	Post(fn func())
}

// Inline runs posted functions immediately on the caller's goroutine.
// Use it when the caller already is the session thread, e.g. in tests
// that drive platform events by hand.
type Inline struct{}

// Post runs fn synchronously.
func (Inline) Post(fn func()) { fn() }

// Loop is an unbounded FIFO of functions executed by a single goroutine.
// Post never blocks, so it is safe to call from inside a running function.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closed  bool
	running bool
	done    chan struct{}
	logger  zerolog.Logger
}

// New creates a loop. Call Run to start executing posted functions.
func New() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: log.With().Str("component", "eventloop").Logger(),
	}
}

// Post enqueues fn. Functions posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Debug().Msg("Post after close dropped")
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts fn and waits until it has run. It must not be called from
// the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})

	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is cancelled or Close is called.
// Functions still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("event loop already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.Close()
		close(l.done)
	}()

	for {
		fn, ok := l.next()
		if ok {
			l.run(fn)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return nil
			}
		}
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running && !l.closed
}

// Close stops accepting functions and makes Run return. Idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// run executes fn and keeps a panic from killing the session thread.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Recovered panic on session thread")
		}
	}()
	fn()
}
