// Package client is a client library for the compositor's protocol.
//
// Incoming events are read on a background goroutine but are only
// handled when Flush or RoundTrip is called, so the callbacks of every
// object run on the goroutine that calls those methods.
package client

import (
	"fmt"

	"deedles.dev/wlcomp/protocol"
	"deedles.dev/wlcomp/wire"
)

func mustInterface(name string) *protocol.Interface {
	i, ok := protocol.Core().Interface(name)
	if !ok {
		panic(fmt.Errorf("protocol has no interface %q", name))
	}
	return i
}

// Names of the interfaces that a client binds through the registry.
const (
	CompositorInterface  = "wl_compositor"
	ShmInterface         = "wl_shm"
	InputDeviceInterface = "wl_input_device"
	OutputInterface      = "wl_output"
)

var (
	displayInterface     = mustInterface("wl_display")
	registryInterface    = mustInterface("wl_registry")
	callbackInterface    = mustInterface("wl_callback")
	compositorInterface  = mustInterface(CompositorInterface)
	surfaceInterface     = mustInterface("wl_surface")
	shmInterface         = mustInterface(ShmInterface)
	shmPoolInterface     = mustInterface("wl_shm_pool")
	bufferInterface      = mustInterface("wl_buffer")
	inputDeviceInterface = mustInterface(InputDeviceInterface)
	outputInterface      = mustInterface(OutputInterface)
)

type object struct {
	display *Display
	iface   *protocol.Interface
	id      uint32
}

func (obj *object) String() string {
	return fmt.Sprintf("%v@%v", obj.iface.Name, obj.id)
}

func (obj *object) ID() uint32 {
	return obj.id
}

// MethodName returns the name of the event with opcode op, as events
// are what clients receive.
func (obj *object) MethodName(op uint16) string {
	ev, ok := obj.iface.Event(op)
	if !ok {
		return fmt.Sprintf("unknown(%v)", op)
	}
	return ev.Name
}

func (obj *object) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: obj.iface.Name, Type: "event", Op: msg.Op()}
}

func (obj *object) Delete() {}

func (obj *object) request(op uint16) *wire.MessageBuilder {
	mb := wire.NewMessage(obj, op)
	if r, ok := obj.iface.Request(op); ok {
		mb.Method = r.Name
	}
	return mb
}

func (obj *object) send(mb *wire.MessageBuilder) {
	obj.display.send(mb)
}

// newObject allocates an ID for a new object of the given interface.
func (d *Display) newObject(iface *protocol.Interface) object {
	return object{display: d, iface: iface, id: d.store.NextID()}
}
