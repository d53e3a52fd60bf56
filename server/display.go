package server

import (
	"slices"

	"deedles.dev/wlcomp/wire"
)

type display struct {
	object
}

func (d *display) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case displaySync:
		id := msg.ReadUint()
		if err := d.malformed(msg); err != nil {
			return err
		}
		return d.sync(id)

	case displayGetRegistry:
		id := msg.ReadUint()
		if err := d.malformed(msg); err != nil {
			return err
		}
		return d.getRegistry(id)

	default:
		return d.unknownOp(msg.Op())
	}
}

// sync answers immediately. Requests are handled in order, so every
// earlier request has already been dealt with.
func (d *display) sync(id uint32) error {
	cb := newCallback(d.client, id)
	err := d.client.add(cb)
	if err != nil {
		return err
	}

	cb.done(0)
	d.client.remove(id)
	return nil
}

func (d *display) getRegistry(id uint32) error {
	r := registry{object: object{client: d.client, iface: registryInterface, id: id}}
	err := d.client.add(&r)
	if err != nil {
		return err
	}
	d.client.registries = append(d.client.registries, &r)

	server := d.client.server
	for _, name := range server.sortedGlobals() {
		r.global(name, server.globals[name])
	}
	return nil
}

type registry struct {
	object
}

func (r *registry) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case registryBind:
		name := msg.ReadUint()
		id := msg.ReadNewID()
		if err := r.malformed(msg); err != nil {
			return err
		}
		return r.bind(name, id)

	default:
		return r.unknownOp(msg.Op())
	}
}

func (r *registry) Delete() {
	r.client.registries = slices.DeleteFunc(r.client.registries, func(o *registry) bool { return o == r })
}

func (r *registry) bind(name uint32, id wire.NewID) error {
	g, ok := r.client.server.globals[name]
	if !ok {
		return invalidObject(r.id, "no global named %v", name)
	}
	if g.iface != id.Interface {
		return invalidObject(r.id, "global %v is a %v, not a %v", name, g.iface, id.Interface)
	}
	if (id.Version == 0) || (id.Version > g.version) {
		return invalidObject(r.id, "%v version %v is not supported", g.iface, id.Version)
	}

	return g.bind(r.client, id.ID)
}

func (r *registry) global(name uint32, g global) {
	mb := r.event(registryGlobal)
	mb.WriteUint(name)
	mb.WriteString(g.iface)
	mb.WriteUint(g.version)
	r.send(mb)
}

func (r *registry) globalRemove(name uint32) {
	mb := r.event(registryGlobalRemove)
	mb.WriteUint(name)
	r.send(mb)
}

type callback struct {
	object
}

func newCallback(client *Client, id uint32) *callback {
	return &callback{object: object{client: client, iface: callbackInterface, id: id}}
}

func (cb *callback) done(data uint32) {
	mb := cb.event(callbackDone)
	mb.WriteUint(data)
	cb.send(mb)
}
