package client

import "deedles.dev/wlcomp/wire"

type Compositor struct {
	object
}

func BindCompositor(display *Display, name uint32) *Compositor {
	c := Compositor{object: display.newObject(compositorInterface)}
	display.store.Add(&c)
	display.GetRegistry().bind(name, &c.object, 1)
	return &c
}

func (c *Compositor) CreateSurface() *Surface {
	s := Surface{object: c.display.newObject(surfaceInterface)}
	c.display.store.Add(&s)

	mb := c.request(0)
	mb.WriteUint(s.id)
	c.send(mb)
	return &s
}

type Surface struct {
	object
}

func (s *Surface) Destroy() {
	s.send(s.request(0))
}

func (s *Surface) Attach(buf *Buffer, x, y int32) {
	mb := s.request(1)
	mb.WriteObject(buf)
	mb.WriteInt(x)
	mb.WriteInt(y)
	s.send(mb)
}

func (s *Surface) MapToplevel() {
	s.send(s.request(2))
}

func (s *Surface) MapTransient(parent *Surface, x, y int32) {
	mb := s.request(3)
	mb.WriteObject(parent)
	mb.WriteInt(x)
	mb.WriteInt(y)
	mb.WriteUint(0)
	s.send(mb)
}

func (s *Surface) MapFullscreen() {
	s.send(s.request(4))
}

func (s *Surface) Damage(x, y, width, height int32) {
	mb := s.request(5)
	mb.WriteInt(x)
	mb.WriteInt(y)
	mb.WriteInt(width)
	mb.WriteInt(height)
	s.send(mb)
}

// Frame asks for done to be called once the surface's next frame has
// been shown.
func (s *Surface) Frame(done func(time uint32)) {
	cb := Callback{object: s.display.newObject(callbackInterface), Done: done}
	s.display.store.Add(&cb)

	mb := s.request(6)
	mb.WriteUint(cb.id)
	s.send(mb)
}

// Output is a screen of the compositor.
type Output struct {
	Geometry func(x, y, width, height int32)

	object
}

func BindOutput(display *Display, name uint32) *Output {
	out := Output{object: display.newObject(outputInterface)}
	display.store.Add(&out)
	display.GetRegistry().bind(name, &out.object, 1)
	return &out
}

func (out *Output) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if out.Geometry != nil {
			out.Geometry(x, y, w, h)
		}
		return nil

	default:
		return out.object.Dispatch(msg)
	}
}
