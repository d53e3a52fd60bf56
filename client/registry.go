package client

import (
	"deedles.dev/wlcomp/wire"
	"golang.org/x/exp/maps"
)

// Global is an object advertised by the server.
type Global struct {
	Interface string
	Version   uint32
}

type Registry struct {
	Global       func(name uint32, g Global)
	GlobalRemove func(name uint32)

	object
	globals map[uint32]Global
}

// Globals returns every global that is currently advertised.
func (r *Registry) Globals() map[uint32]Global {
	return maps.Clone(r.globals)
}

// Find returns the name of the first advertised global with the given
// interface.
func (r *Registry) Find(iface string) (uint32, bool) {
	var found uint32
	for name, g := range r.globals {
		if (g.Interface == iface) && ((found == 0) || (name < found)) {
			found = name
		}
	}
	return found, found != 0
}

func (r *Registry) bind(name uint32, obj *object, version uint32) {
	mb := r.request(0)
	mb.WriteUint(name)
	mb.WriteNewID(wire.NewID{Interface: obj.iface.Name, Version: version, ID: obj.id})
	r.send(mb)
}

func (r *Registry) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		name := msg.ReadUint()
		iface := msg.ReadString()
		version := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		g := Global{Interface: iface, Version: version}
		r.globals[name] = g
		if r.Global != nil {
			r.Global(name, g)
		}
		return nil

	case 1:
		name := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		delete(r.globals, name)
		if r.GlobalRemove != nil {
			r.GlobalRemove(name)
		}
		return nil

	default:
		return r.object.Dispatch(msg)
	}
}
