package client

import (
	"os"

	"deedles.dev/wlcomp/shm"
	"deedles.dev/wlcomp/wire"
)

type Shm struct {
	Format func(shm.Format)

	object
	formats []shm.Format
}

func BindShm(display *Display, name uint32) *Shm {
	s := Shm{object: display.newObject(shmInterface)}
	display.store.Add(&s)
	display.GetRegistry().bind(name, &s.object, 1)
	return &s
}

// Formats returns the formats that the server has announced so far.
func (s *Shm) Formats() []shm.Format {
	return s.formats
}

func (s *Shm) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		format := shm.Format(msg.ReadUint())
		if err := msg.Err(); err != nil {
			return err
		}
		s.formats = append(s.formats, format)
		if s.Format != nil {
			s.Format(format)
		}
		return nil

	default:
		return s.object.Dispatch(msg)
	}
}

// CreatePool shares size bytes of file with the server. The caller
// keeps ownership of file.
func (s *Shm) CreatePool(file *os.File, size int32) *ShmPool {
	pool := ShmPool{object: s.display.newObject(shmPoolInterface)}
	s.display.store.Add(&pool)

	mb := s.request(0)
	mb.WriteUint(pool.id)
	mb.WriteFile(file)
	mb.WriteInt(size)
	s.send(mb)
	return &pool
}

type ShmPool struct {
	object
}

func (pool *ShmPool) CreateBuffer(offset, width, height, stride int32, format shm.Format) *Buffer {
	buf := Buffer{object: pool.display.newObject(bufferInterface)}
	pool.display.store.Add(&buf)

	mb := pool.request(0)
	mb.WriteUint(buf.id)
	mb.WriteInt(offset)
	mb.WriteInt(width)
	mb.WriteInt(height)
	mb.WriteInt(stride)
	mb.WriteUint(uint32(format))
	pool.send(mb)
	return &buf
}

func (pool *ShmPool) Destroy() {
	pool.send(pool.request(1))
}

func (pool *ShmPool) Resize(size int32) {
	mb := pool.request(2)
	mb.WriteInt(size)
	pool.send(mb)
}

type Buffer struct {
	object
}

func (buf *Buffer) Destroy() {
	buf.send(buf.request(0))
}

// Damage tells the server that the given rectangle of the buffer has
// new contents.
func (buf *Buffer) Damage(x, y, width, height int32) {
	mb := buf.request(1)
	mb.WriteInt(x)
	mb.WriteInt(y)
	mb.WriteInt(width)
	mb.WriteInt(height)
	buf.send(mb)
}
