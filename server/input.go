package server

import (
	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/wire"
)

type inputDevice struct {
	object
	dev *compositor.InputDevice
}

func bindInputDevice(client *Client, id uint32, dev *compositor.InputDevice) error {
	d := inputDevice{
		object: object{client: client, iface: inputDeviceInterface, id: id},
		dev:    dev,
	}
	err := client.add(&d)
	if err != nil {
		return err
	}
	client.devices[dev] = append(client.devices[dev], &d)
	return nil
}

func (d *inputDevice) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case inputDeviceAttach:
		time := msg.ReadUint()
		bufID := msg.ReadUint()
		hx, hy := msg.ReadInt(), msg.ReadInt()
		if err := d.malformed(msg); err != nil {
			return err
		}

		var buf compositor.Buffer
		if bufID != 0 {
			b, err := lookup[*buffer](d.client, d.id, bufID)
			if err != nil {
				return err
			}
			buf = b.buf
		}

		return d.client.server.comp.AttachPointer(d.dev, d.client, time, buf, int(hx), int(hy))

	default:
		return d.unknownOp(msg.Op())
	}
}

func (d *inputDevice) Delete() {
	d.client.removeDevice(d)
}

type output struct {
	object
	out *compositor.Output
}

func bindOutput(client *Client, id uint32, out *compositor.Output) error {
	o := output{
		object: object{client: client, iface: outputInterface, id: id},
		out:    out,
	}
	err := client.add(&o)
	if err != nil {
		return err
	}

	r := out.Bounds()
	mb := o.event(outputGeometry)
	mb.WriteInt(int32(r.Min.X))
	mb.WriteInt(int32(r.Min.Y))
	mb.WriteInt(int32(r.Dx()))
	mb.WriteInt(int32(r.Dy()))
	o.send(mb)
	return nil
}
