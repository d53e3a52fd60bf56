// Package loop implements the compositor's single-threaded event loop.
//
// Work arrives from other goroutines (client connections, timers,
// signals) as functions posted to the loop. The loop runs them one
// batch at a time on the goroutine that called Run, so everything the
// posted functions touch is only ever mutated from that goroutine.
package loop

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/internal/ev"
)

// Loop is a single-threaded event loop.
type Loop struct {
	done  chan struct{}
	close sync.Once
	queue *ev.Queue
	log   *slog.Logger

	flush []func() error
}

// New creates a new Loop. If log is nil, errors returned by events are
// discarded.
func New(log *slog.Logger) *Loop {
	return &Loop{
		done:  make(chan struct{}),
		queue: ev.NewQueue(),
		log:   debug.Logger(log),
	}
}

// Post queues f to be run on the loop. It is safe to call from any
// goroutine, including the loop's own.
func (l *Loop) Post(f func() error) {
	select {
	case <-l.done:
	case l.queue.Add() <- f:
	}
}

// OnFlush registers f to be called after every batch of events. It is
// used to write buffered output once all of the events that may have
// produced it have been handled.
func (l *Loop) OnFlush(f func() error) {
	l.flush = append(l.flush, f)
}

// Done returns a channel that is closed when the loop is terminated.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Terminate stops the loop. Run returns after the current batch.
func (l *Loop) Terminate() {
	l.close.Do(func() {
		close(l.done)
		l.queue.Stop()
	})
}

// Run processes events until ctx is canceled or Terminate is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Terminate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case events := <-l.queue.Get():
			err := events.Flush()
			if err != nil {
				l.log.Error("event failed", "err", err)
			}
			l.runFlush()
		}
	}
}

func (l *Loop) runFlush() {
	for _, f := range l.flush {
		err := f()
		if err != nil {
			l.log.Error("flush failed", "err", err)
		}
	}
}

// AddSignal calls f on the loop whenever the process receives sig.
func (l *Loop) AddSignal(sig os.Signal, f func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, sig)

	go func() {
		defer signal.Stop(c)
		for {
			select {
			case <-l.done:
				return
			case <-c:
				l.Post(func() error { f(); return nil })
			}
		}
	}()
}

// Timer is a one-shot timer whose callback runs on the loop.
type Timer interface {
	// Update arms the timer to fire after d, replacing any previous
	// deadline. A d of zero disarms it.
	Update(d time.Duration)
}

type timer struct {
	loop *Loop
	f    func()
	t    *time.Timer
	gen  uint64
}

// AddTimer creates a disarmed timer that calls f on the loop.
func (l *Loop) AddTimer(f func()) Timer {
	return &timer{loop: l, f: f}
}

func (t *timer) Update(d time.Duration) {
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	if d <= 0 {
		return
	}

	gen := t.gen
	t.t = time.AfterFunc(d, func() {
		t.loop.Post(func() error {
			// A timer that was rearmed or disarmed after this one was
			// scheduled must not fire.
			if t.gen != gen {
				return nil
			}
			t.t = nil
			t.f()
			return nil
		})
	})
}
