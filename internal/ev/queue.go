// Package ev provides the bulk event queue that feeds the event loop.
// Any goroutine may add events; the loop receives everything queued
// since its last receive as a single batch.
package ev

import (
	"errors"

	"deedles.dev/xsync/cq"
)

type Queue = cq.BulkQueue[func() error, *Events]

func NewQueue() *Queue {
	return cq.New(func(v []func() error) *Events {
		return &Events{
			events: v,
		}
	})
}

// Events represents a batch of events from a Queue.
type Events struct {
	events []func() error
}

// Len returns the number of events in the batch that have not yet been
// flushed.
func (q *Events) Len() int {
	return len(q.events)
}

// Flush processes all of the events represented by q.
func (q *Events) Flush() error {
	return errors.Join(Flush(q)...)
}

func Flush(queue *Events) (errs []error) {
	for _, ev := range queue.events {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	queue.events = nil
	return errs
}
