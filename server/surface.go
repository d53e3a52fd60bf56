package server

import (
	"fmt"

	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/wire"
)

type compositorObject struct {
	object
}

func bindCompositor(client *Client, id uint32) error {
	return client.add(&compositorObject{object: object{client: client, iface: compositorInterface, id: id}})
}

func (c *compositorObject) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case compositorCreateSurface:
		id := msg.ReadUint()
		if err := c.malformed(msg); err != nil {
			return err
		}
		return c.createSurface(id)

	default:
		return c.unknownOp(msg.Op())
	}
}

func (c *compositorObject) createSurface(id uint32) error {
	if c.client.store.Get(id) != nil {
		return invalidObject(c.id, "ID %v is already in use", id)
	}

	comp := c.client.server.comp
	sid, err := comp.CreateSurface(c.client)
	if err != nil {
		return &ProtocolError{
			Object:  c.id,
			Code:    ErrorNoMemory,
			Message: fmt.Sprintf("create surface: %v", err),
		}
	}

	s := surface{
		object: object{client: c.client, iface: surfaceInterface, id: id},
		sid:    sid,
	}
	c.client.surfaces[sid] = &s
	return c.client.add(&s)
}

type surface struct {
	object
	sid    compositor.SurfaceID
	frames []*callback
}

func (s *surface) Dispatch(msg *wire.MessageBuffer) error {
	comp := s.client.server.comp

	switch msg.Op() {
	case surfaceDestroy:
		if err := s.malformed(msg); err != nil {
			return err
		}
		for _, cb := range s.frames {
			s.client.remove(cb.id)
		}
		s.frames = nil
		s.client.remove(s.id)
		return nil

	case surfaceAttach:
		bufID := msg.ReadUint()
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := s.malformed(msg); err != nil {
			return err
		}
		buf, err := lookup[*buffer](s.client, s.id, bufID)
		if err != nil {
			return err
		}
		return comp.Attach(s.sid, buf.buf, int(x), int(y))

	case surfaceMapToplevel:
		if err := s.malformed(msg); err != nil {
			return err
		}
		return comp.MapToplevel(s.sid)

	case surfaceMapTransient:
		parentID := msg.ReadUint()
		x, y := msg.ReadInt(), msg.ReadInt()
		msg.ReadUint()
		if err := s.malformed(msg); err != nil {
			return err
		}
		parent, err := lookup[*surface](s.client, s.id, parentID)
		if err != nil {
			return err
		}
		return comp.MapTransient(s.sid, parent.sid, int(x), int(y))

	case surfaceMapFullscreen:
		if err := s.malformed(msg); err != nil {
			return err
		}
		return comp.MapFullscreen(s.sid)

	case surfaceDamage:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := s.malformed(msg); err != nil {
			return err
		}
		return comp.DamageSurface(s.sid, int(x), int(y), int(w), int(h))

	case surfaceFrame:
		id := msg.ReadUint()
		if err := s.malformed(msg); err != nil {
			return err
		}
		cb := newCallback(s.client, id)
		err := s.client.add(cb)
		if err != nil {
			return err
		}
		s.frames = append(s.frames, cb)
		comp.ScheduleRepaint()
		return nil

	default:
		return s.unknownOp(msg.Op())
	}
}

func (s *surface) Delete() {
	delete(s.client.surfaces, s.sid)
	s.client.server.comp.DestroySurface(s.sid)
}
