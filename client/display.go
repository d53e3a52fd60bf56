package client

import (
	"errors"
	"fmt"
	"sync"

	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/internal/ev"
	"deedles.dev/wlcomp/internal/objstore"
	"deedles.dev/wlcomp/wire"
)

// ErrDisconnected is returned once the connection to the server has
// been lost.
var ErrDisconnected = errors.New("disconnected")

// Display is the connection to the compositor and the object that
// bootstraps every other one.
type Display struct {
	// Error is called when the server reports a fatal error.
	Error func(id, code uint32, msg string)

	object
	done  chan struct{}
	lost  chan struct{}
	close sync.Once
	conn  *wire.Conn
	store *objstore.Store
	queue *ev.Queue
	err   error

	registry *Registry
}

// Dial connects to the compositor that the environment points at.
func Dial() (*Display, error) {
	c, err := wire.Dial()
	if err != nil {
		return nil, err
	}
	return Connect(c), nil
}

// Connect uses c as the connection to the compositor.
func Connect(c *wire.Conn) *Display {
	display := Display{
		done:  make(chan struct{}),
		lost:  make(chan struct{}),
		conn:  c,
		store: objstore.New(1),
		queue: ev.NewQueue(),
	}
	display.object = object{display: &display, iface: displayInterface, id: display.store.NextID()}
	display.store.Add(&display)

	go display.listen()

	return &display
}

func (display *Display) listen() {
	defer close(display.lost)

	for {
		msg, err := wire.ReadMessage(display.conn)
		if err != nil {
			select {
			case <-display.done:
			case display.queue.Add() <- func() error { return fmt.Errorf("read message: %w", err) }:
			}
			return
		}

		select {
		case <-display.done:
			return
		case display.queue.Add() <- func() error { return display.store.Dispatch(msg) }:
		}
	}
}

// Close closes the connection.
func (display *Display) Close() error {
	display.close.Do(func() { close(display.done) })
	display.queue.Stop()
	return display.conn.Close()
}

func (display *Display) send(mb *wire.MessageBuilder) {
	debug.Printf(" -> %v", mb)
	err := mb.Build(display.conn)
	if err != nil {
		display.err = errors.Join(display.err, err)
	}
}

// Object returns the object with the given ID.
func (display *Display) Object(id uint32) wire.Object {
	return display.store.Get(id)
}

// Flush sends every pending request and handles every event that has
// arrived since the last call.
func (display *Display) Flush() error {
	errs := []error{display.flushRequests()}

	select {
	case events := <-display.queue.Get():
		errs = append(errs, events.Flush())
	default:
	}
	return errors.Join(errs...)
}

func (display *Display) flushRequests() error {
	err := display.err
	display.err = nil
	return errors.Join(err, display.conn.Flush())
}

// RoundTrip sends every pending request and handles events until the
// server has processed all of them.
func (display *Display) RoundTrip() error {
	done := make(chan struct{})
	display.Sync(func(uint32) { close(done) })

	errs := []error{display.flushRequests()}
	for {
		select {
		case <-done:
			return errors.Join(errs...)

		case events := <-display.queue.Get():
			errs = append(errs, events.Flush())

		case <-display.lost:
			select {
			case events := <-display.queue.Get():
				errs = append(errs, events.Flush())
			default:
			}
			select {
			case <-done:
				return errors.Join(errs...)
			default:
				return errors.Join(append(errs, ErrDisconnected)...)
			}
		}
	}
}

// Sync asks the server to call done once it has handled every request
// sent so far.
func (display *Display) Sync(done func(uint32)) {
	cb := Callback{object: display.newObject(callbackInterface), Done: done}
	display.store.Add(&cb)

	mb := display.request(0)
	mb.WriteUint(cb.id)
	display.send(mb)
}

// GetRegistry returns the connection's registry, creating it the first
// time.
func (display *Display) GetRegistry() *Registry {
	if display.registry != nil {
		return display.registry
	}

	r := Registry{
		object:  display.newObject(registryInterface),
		globals: make(map[uint32]Global),
	}
	display.store.Add(&r)

	mb := display.request(1)
	mb.WriteUint(r.id)
	display.send(mb)

	display.registry = &r
	return &r
}

func (display *Display) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		id := msg.ReadUint()
		code := msg.ReadUint()
		message := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		if display.Error != nil {
			display.Error(id, code, message)
		}
		return nil

	case 1:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		display.store.Delete(id)
		return nil

	default:
		return display.object.Dispatch(msg)
	}
}

// Callback is called once by the server.
type Callback struct {
	Done func(data uint32)

	object
}

func (cb *Callback) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		data := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if cb.Done != nil {
			cb.Done(data)
		}
		return nil

	default:
		return cb.object.Dispatch(msg)
	}
}
