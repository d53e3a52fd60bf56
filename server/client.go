package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"slices"

	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/input"
	"deedles.dev/wlcomp/internal/bin"
	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/internal/objstore"
	"deedles.dev/wlcomp/wire"
)

// Client is a connected client. It implements compositor.Client.
type Client struct {
	server *Server
	conn   *wire.Conn
	store  *objstore.Store
	closed bool

	display    *display
	registries []*registry
	surfaces   map[compositor.SurfaceID]*surface
	devices    map[*compositor.InputDevice][]*inputDevice
}

func newClient(server *Server, conn *wire.Conn) *Client {
	client := Client{
		server:   server,
		conn:     conn,
		store:    objstore.New(1),
		surfaces: make(map[compositor.SurfaceID]*surface),
		devices:  make(map[*compositor.InputDevice][]*inputDevice),
	}

	client.display = &display{object: object{client: &client, iface: displayInterface, id: 1}}
	client.store.Add(client.display)

	go client.listen()

	return &client
}

func (client *Client) String() string {
	return fmt.Sprintf("client(%p)", client)
}

// listen reads messages and posts them to the loop until the
// connection fails.
func (client *Client) listen() {
	loop := client.server.loop
	for {
		msg, err := wire.ReadMessage(client.conn)
		if err != nil {
			loop.Post(func() error {
				if !client.closed && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					client.server.log.Warn("read failed", "client", client, "err", err)
				}
				client.destroy()
				return nil
			})
			return
		}

		loop.Post(func() error {
			client.dispatch(msg)
			return nil
		})
	}
}

func (client *Client) dispatch(msg *wire.MessageBuffer) {
	if client.closed {
		return
	}

	err := client.store.Dispatch(msg)
	if err == nil {
		return
	}

	var perr *ProtocolError
	var unknown wire.UnknownSenderIDError
	switch {
	case errors.As(err, &perr):
		client.postError(perr)
	case errors.As(err, &unknown):
		client.postError(invalidObject(msg.Sender(), "%v", err))
	default:
		client.server.log.Warn("request failed", "client", client, "sender", msg.Sender(), "op", msg.Op(), "err", err)
	}
}

// postError sends err to the client and disconnects it.
func (client *Client) postError(err *ProtocolError) {
	client.server.log.Warn("protocol error", "client", client, "err", err)

	mb := client.display.event(displayErrorEvent)
	mb.WriteUint(err.Object)
	mb.WriteUint(err.Code)
	mb.WriteString(err.Message)
	client.send(mb)
	client.conn.Flush()

	client.destroy()
}

func (client *Client) send(mb *wire.MessageBuilder) {
	if client.closed {
		return
	}

	debug.Printf(" -> %v", mb)
	err := mb.Build(client.conn)
	if err != nil {
		client.server.log.Warn("build event", "client", client, "event", mb, "err", err)
	}
}

// destroy releases every object of the client and closes its
// connection.
func (client *Client) destroy() {
	if client.closed {
		return
	}
	client.closed = true

	client.store.Clear()
	client.conn.Close()
	client.server.removeClient(client)
}

// add stores a newly created object.
func (client *Client) add(obj wire.Object) error {
	err := client.store.Add(obj)
	if err != nil {
		return invalidObject(obj.ID(), "%v", err)
	}
	return nil
}

// remove deletes the object with the given ID and tells the client that
// the ID may be reused.
func (client *Client) remove(id uint32) {
	client.store.Delete(id)

	mb := client.display.event(displayDeleteID)
	mb.WriteUint(id)
	client.send(mb)
}

// lookup returns the object with the given ID if it is a T.
func lookup[T wire.Object](client *Client, sender, id uint32) (T, error) {
	obj, ok := client.store.Get(id).(T)
	if !ok {
		var zero T
		return zero, invalidObject(sender, "object %v is not a %T", id, zero)
	}
	return obj, nil
}

func (client *Client) announceGlobal(name uint32, g global) {
	for _, r := range client.registries {
		r.global(name, g)
	}
}

func (client *Client) removeGlobal(name uint32) {
	for _, r := range client.registries {
		r.globalRemove(name)
	}
}

func (client *Client) surfaceID(s *compositor.Surface) uint32 {
	if s == nil {
		return 0
	}
	surf := client.surfaces[s.ID()]
	if surf == nil {
		return 0
	}
	return surf.id
}

func (client *Client) PointerFocus(dev *compositor.InputDevice, time uint32, s *compositor.Surface, x, y, sx, sy int) {
	id := client.surfaceID(s)
	for _, d := range client.devices[dev] {
		mb := d.event(inputDevicePointerFocus)
		mb.WriteUint(time)
		mb.WriteUint(id)
		mb.WriteInt(int32(x))
		mb.WriteInt(int32(y))
		mb.WriteInt(int32(sx))
		mb.WriteInt(int32(sy))
		client.send(mb)
	}
}

func (client *Client) KeyboardFocus(dev *compositor.InputDevice, time uint32, s *compositor.Surface, keys []input.Key) {
	id := client.surfaceID(s)

	data := make([]byte, 0, 4*len(keys))
	for _, key := range keys {
		b := bin.Bytes(uint32(key))
		data = append(data, b[:]...)
	}

	for _, d := range client.devices[dev] {
		mb := d.event(inputDeviceKeyboardFocus)
		mb.WriteUint(time)
		mb.WriteUint(id)
		mb.WriteArray(data)
		client.send(mb)
	}
}

func (client *Client) Motion(dev *compositor.InputDevice, time uint32, x, y, sx, sy int) {
	for _, d := range client.devices[dev] {
		mb := d.event(inputDeviceMotion)
		mb.WriteUint(time)
		mb.WriteInt(int32(x))
		mb.WriteInt(int32(y))
		mb.WriteInt(int32(sx))
		mb.WriteInt(int32(sy))
		client.send(mb)
	}
}

func (client *Client) Button(dev *compositor.InputDevice, time uint32, button input.Button, pressed bool) {
	for _, d := range client.devices[dev] {
		mb := d.event(inputDeviceButton)
		mb.WriteUint(time)
		mb.WriteUint(uint32(button))
		mb.WriteUint(boolState(pressed))
		client.send(mb)
	}
}

func (client *Client) Key(dev *compositor.InputDevice, time uint32, key input.Key, pressed bool) {
	for _, d := range client.devices[dev] {
		mb := d.event(inputDeviceKey)
		mb.WriteUint(time)
		mb.WriteUint(uint32(key))
		mb.WriteUint(boolState(pressed))
		client.send(mb)
	}
}

func (client *Client) Frame(s *compositor.Surface, time uint32) {
	surf := client.surfaces[s.ID()]
	if surf == nil {
		return
	}

	frames := surf.frames
	surf.frames = nil
	for _, cb := range frames {
		cb.done(time)
		client.remove(cb.id)
	}
}

func (client *Client) removeDevice(d *inputDevice) {
	devs := client.devices[d.dev]
	devs = slices.DeleteFunc(devs, func(o *inputDevice) bool { return o == d })
	if len(devs) == 0 {
		delete(client.devices, d.dev)
		return
	}
	client.devices[d.dev] = devs
}

func boolState(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
