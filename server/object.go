package server

import (
	"fmt"

	"deedles.dev/wlcomp/protocol"
	"deedles.dev/wlcomp/wire"
)

// Opcodes of the requests and events of each interface, in the order
// in which they are declared in the protocol description.
const (
	displaySync        = 0
	displayGetRegistry = 1

	displayErrorEvent = 0
	displayDeleteID   = 1

	registryBind = 0

	registryGlobal       = 0
	registryGlobalRemove = 1

	callbackDone = 0

	compositorCreateSurface = 0

	surfaceDestroy       = 0
	surfaceAttach        = 1
	surfaceMapToplevel   = 2
	surfaceMapTransient  = 3
	surfaceMapFullscreen = 4
	surfaceDamage        = 5
	surfaceFrame         = 6

	shmCreatePool = 0

	shmFormat = 0

	shmPoolCreateBuffer = 0
	shmPoolDestroy      = 1
	shmPoolResize       = 2

	bufferDestroy = 0
	bufferDamage  = 1

	inputDeviceAttach = 0

	inputDeviceMotion        = 0
	inputDeviceButton        = 1
	inputDeviceKey           = 2
	inputDevicePointerFocus  = 3
	inputDeviceKeyboardFocus = 4

	outputGeometry = 0
)

var (
	displayInterface     = mustInterface("wl_display")
	registryInterface    = mustInterface("wl_registry")
	callbackInterface    = mustInterface("wl_callback")
	compositorInterface  = mustInterface("wl_compositor")
	surfaceInterface     = mustInterface("wl_surface")
	shmInterface         = mustInterface("wl_shm")
	shmPoolInterface     = mustInterface("wl_shm_pool")
	bufferInterface      = mustInterface("wl_buffer")
	inputDeviceInterface = mustInterface("wl_input_device")
	outputInterface      = mustInterface("wl_output")
)

func mustInterface(name string) *protocol.Interface {
	i, ok := protocol.Core().Interface(name)
	if !ok {
		panic(fmt.Errorf("protocol has no interface %q", name))
	}
	return i
}

// object holds what every protocol object has in common. It
// implements wire.Object for objects that accept no requests and is
// embedded in the rest.
type object struct {
	client *Client
	iface  *protocol.Interface
	id     uint32
}

func (obj *object) String() string {
	return fmt.Sprintf("%v@%v", obj.iface.Name, obj.id)
}

func (obj *object) ID() uint32 {
	return obj.id
}

func (obj *object) MethodName(op uint16) string {
	r, ok := obj.iface.Request(op)
	if !ok {
		return fmt.Sprintf("unknown(%v)", op)
	}
	return r.Name
}

func (obj *object) Dispatch(msg *wire.MessageBuffer) error {
	return obj.unknownOp(msg.Op())
}

func (obj *object) Delete() {}

func (obj *object) unknownOp(op uint16) error {
	return &ProtocolError{
		Object:  obj.id,
		Code:    ErrorInvalidMethod,
		Message: wire.UnknownOpError{Interface: obj.iface.Name, Type: "request", Op: op}.Error(),
	}
}

// event starts building the event with opcode op.
func (obj *object) event(op uint16) *wire.MessageBuilder {
	mb := wire.NewMessage(obj, op)
	if ev, ok := obj.iface.Event(op); ok {
		mb.Method = ev.Name
	}
	return mb
}

func (obj *object) send(mb *wire.MessageBuilder) {
	obj.client.send(mb)
}

// malformed returns a protocol error if reading the arguments of msg
// failed.
func (obj *object) malformed(msg *wire.MessageBuffer) error {
	err := msg.Err()
	if err == nil {
		return nil
	}
	return &ProtocolError{
		Object:  obj.id,
		Code:    ErrorInvalidMethod,
		Message: fmt.Sprintf("%v.%v: %v", obj, obj.MethodName(msg.Op()), err),
	}
}
