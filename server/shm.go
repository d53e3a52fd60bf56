package server

import (
	"errors"
	"fmt"

	"deedles.dev/wlcomp/shm"
	"deedles.dev/wlcomp/wire"
)

type shmObject struct {
	object
}

func bindShm(client *Client, id uint32) error {
	obj := shmObject{object: object{client: client, iface: shmInterface, id: id}}
	err := client.add(&obj)
	if err != nil {
		return err
	}

	for _, f := range shm.Formats {
		mb := obj.event(shmFormat)
		mb.WriteUint(uint32(f))
		obj.send(mb)
	}
	return nil
}

func (obj *shmObject) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case shmCreatePool:
		id := msg.ReadUint()
		file := msg.ReadFile()
		size := msg.ReadInt()
		if err := obj.malformed(msg); err != nil {
			if file != nil {
				file.Close()
			}
			return err
		}

		if obj.client.store.Get(id) != nil {
			file.Close()
			return invalidObject(obj.id, "ID %v is already in use", id)
		}

		pool, err := shm.NewPool(file, int(size))
		if err != nil {
			return shmError(obj.id, err)
		}
		return obj.client.add(&shmPool{
			object: object{client: obj.client, iface: shmPoolInterface, id: id},
			pool:   pool,
		})

	default:
		return obj.unknownOp(msg.Op())
	}
}

type shmPool struct {
	object
	pool *shm.Pool
}

func (p *shmPool) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case shmPoolCreateBuffer:
		id := msg.ReadUint()
		offset := msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		stride := msg.ReadInt()
		format := msg.ReadUint()
		if err := p.malformed(msg); err != nil {
			return err
		}
		if p.client.store.Get(id) != nil {
			return invalidObject(p.id, "ID %v is already in use", id)
		}

		buf, err := p.pool.NewBuffer(int(offset), int(w), int(h), int(stride), shm.Format(format))
		if err != nil {
			return shmError(p.id, err)
		}
		p.client.server.comp.BufferCreated(buf)
		return p.client.add(&buffer{
			object: object{client: p.client, iface: bufferInterface, id: id},
			buf:    buf,
		})

	case shmPoolDestroy:
		if err := p.malformed(msg); err != nil {
			return err
		}
		p.client.remove(p.id)
		return nil

	case shmPoolResize:
		size := msg.ReadInt()
		if err := p.malformed(msg); err != nil {
			return err
		}
		err := p.pool.Resize(int(size))
		if err != nil {
			return shmError(p.id, err)
		}
		return nil

	default:
		return p.unknownOp(msg.Op())
	}
}

func (p *shmPool) Delete() {
	err := p.pool.Destroy()
	if err != nil {
		p.client.server.log.Warn("destroy pool", "pool", p, "err", err)
	}
}

type buffer struct {
	object
	buf *shm.Buffer
}

func (b *buffer) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case bufferDestroy:
		if err := b.malformed(msg); err != nil {
			return err
		}
		b.client.remove(b.id)
		return nil

	case bufferDamage:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := b.malformed(msg); err != nil {
			return err
		}
		b.client.server.comp.BufferDamaged(b.buf, int(x), int(y), int(w), int(h))
		return nil

	default:
		return b.unknownOp(msg.Op())
	}
}

func (b *buffer) Delete() {
	b.client.server.comp.BufferDestroyed(b.buf)
	err := b.buf.Destroy()
	if err != nil {
		b.client.server.log.Warn("destroy buffer", "buffer", b, "err", err)
	}
}

func shmError(sender uint32, err error) *ProtocolError {
	code := uint32(ShmErrorInvalidFD)
	switch {
	case errors.Is(err, shm.ErrInvalidFormat):
		code = ShmErrorInvalidFormat
	case errors.Is(err, shm.ErrInvalidStride), errors.Is(err, shm.ErrInvalidSize):
		code = ShmErrorInvalidStride
	}

	return &ProtocolError{
		Object:  sender,
		Code:    code,
		Message: fmt.Sprintf("%v", err),
	}
}
