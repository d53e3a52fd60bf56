package client

import (
	"deedles.dev/wlcomp/input"
	"deedles.dev/wlcomp/internal/bin"
	"deedles.dev/wlcomp/wire"
)

type InputDevice struct {
	Motion        func(time uint32, x, y, sx, sy int32)
	Button        func(time uint32, button input.Button, pressed bool)
	Key           func(time uint32, key input.Key, pressed bool)
	PointerFocus  func(time uint32, s *Surface, x, y, sx, sy int32)
	KeyboardFocus func(time uint32, s *Surface, keys []input.Key)

	object
}

func BindInputDevice(display *Display, name uint32) *InputDevice {
	dev := InputDevice{object: display.newObject(inputDeviceInterface)}
	display.store.Add(&dev)
	display.GetRegistry().bind(name, &dev.object, 1)
	return &dev
}

// Attach sets the pointer image to buf. A nil buf restores the
// compositor's own pointer.
func (dev *InputDevice) Attach(time uint32, buf *Buffer, hx, hy int32) {
	mb := dev.request(0)
	mb.WriteUint(time)
	mb.WriteObject(buf)
	mb.WriteInt(hx)
	mb.WriteInt(hy)
	dev.send(mb)
}

func (dev *InputDevice) surface(id uint32) *Surface {
	s, _ := dev.display.Object(id).(*Surface)
	return s
}

func (dev *InputDevice) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		time := msg.ReadUint()
		x, y := msg.ReadInt(), msg.ReadInt()
		sx, sy := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if dev.Motion != nil {
			dev.Motion(time, x, y, sx, sy)
		}
		return nil

	case 1:
		time := msg.ReadUint()
		button := msg.ReadUint()
		state := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if dev.Button != nil {
			dev.Button(time, input.Button(button), state != 0)
		}
		return nil

	case 2:
		time := msg.ReadUint()
		key := msg.ReadUint()
		state := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if dev.Key != nil {
			dev.Key(time, input.Key(key), state != 0)
		}
		return nil

	case 3:
		time := msg.ReadUint()
		id := msg.ReadUint()
		x, y := msg.ReadInt(), msg.ReadInt()
		sx, sy := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if dev.PointerFocus != nil {
			dev.PointerFocus(time, dev.surface(id), x, y, sx, sy)
		}
		return nil

	case 4:
		time := msg.ReadUint()
		id := msg.ReadUint()
		data := msg.ReadArray()
		if err := msg.Err(); err != nil {
			return err
		}
		keys := make([]input.Key, 0, len(data)/4)
		for i := 0; i+4 <= len(data); i += 4 {
			keys = append(keys, bin.Value[input.Key]([4]byte(data[i:i+4])))
		}
		if dev.KeyboardFocus != nil {
			dev.KeyboardFocus(time, dev.surface(id), keys)
		}
		return nil

	default:
		return dev.object.Dispatch(msg)
	}
}
