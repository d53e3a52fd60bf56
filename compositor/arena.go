package compositor

import "fmt"

// SurfaceID is a stable handle to a surface. The zero value refers to
// no surface. A SurfaceID is never reused once its surface has been
// destroyed.
type SurfaceID struct {
	index uint32
	gen   uint32
}

// Valid reports whether id refers to a surface that existed at some
// point. It does not report whether that surface still exists.
func (id SurfaceID) Valid() bool {
	return id.gen != 0
}

func (id SurfaceID) String() string {
	if !id.Valid() {
		return "surface(nil)"
	}
	return fmt.Sprintf("surface(%v.%v)", id.index, id.gen)
}

type slot struct {
	gen     uint32
	surface *Surface
}

// arena stores surfaces addressed by generation-checked handles.
type arena struct {
	slots []slot
	free  []uint32
}

func (a *arena) insert(s *Surface) SurfaceID {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}

	slot := &a.slots[index]
	slot.gen++
	slot.surface = s

	id := SurfaceID{index: index, gen: slot.gen}
	s.id = id
	return id
}

func (a *arena) get(id SurfaceID) *Surface {
	if !id.Valid() || (int(id.index) >= len(a.slots)) {
		return nil
	}
	slot := a.slots[id.index]
	if slot.gen != id.gen {
		return nil
	}
	return slot.surface
}

func (a *arena) remove(id SurfaceID) {
	if a.get(id) == nil {
		return
	}
	a.slots[id.index].surface = nil
	a.free = append(a.free, id.index)
}

func (a *arena) len() int {
	return len(a.slots) - len(a.free)
}
