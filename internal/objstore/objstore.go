// Package objstore tracks the protocol objects of a single connection
// by ID.
package objstore

import (
	"fmt"
	"slices"

	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/wire"
)

type Store struct {
	objects map[uint32]wire.Object
	nextID  uint32
}

// New returns an empty store that allocates IDs starting at start.
func New(start uint32) *Store {
	return &Store{
		objects: make(map[uint32]wire.Object),
		nextID:  start,
	}
}

// NextID allocates an ID that is not yet in use.
func (s *Store) NextID() uint32 {
	for s.objects[s.nextID] != nil {
		s.nextID++
	}
	id := s.nextID
	s.nextID++
	return id
}

// Add stores obj under its own ID. It fails if the ID is zero or
// already in use.
func (s *Store) Add(obj wire.Object) error {
	id := obj.ID()
	if id == 0 {
		return fmt.Errorf("%v: object ID 0 is reserved", obj)
	}
	if old := s.objects[id]; old != nil {
		return fmt.Errorf("%v: ID %v is already used by %v", obj, id, old)
	}

	s.objects[id] = obj
	return nil
}

func (s *Store) Get(id uint32) wire.Object {
	return s.objects[id]
}

// Delete removes the object with the given ID and calls its Delete
// method.
func (s *Store) Delete(id uint32) {
	obj := s.objects[id]
	delete(s.objects, id)
	if obj != nil {
		obj.Delete()
	}
}

func (s *Store) Len() int {
	return len(s.objects)
}

// Clear deletes every object, newest IDs first.
func (s *Store) Clear() {
	ids := make([]uint32, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range slices.Backward(ids) {
		s.Delete(id)
	}
}

// Dispatch hands msg to the object that sent it.
func (s *Store) Dispatch(msg *wire.MessageBuffer) error {
	obj := s.objects[msg.Sender()]
	if obj == nil {
		return wire.UnknownSenderIDError{ID: msg.Sender(), Op: msg.Op()}
	}

	err := obj.Dispatch(msg)
	debug.Printf("%v", msg.Debug(obj))
	return err
}
