// Package wire implements the Wayland wire protocol: framing of
// messages, encoding and decoding of their arguments, and passing of
// file descriptors over the socket.
package wire

import (
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// maxFDs is the most file descriptors that a single read can carry.
const maxFDs = 28

// Object represents a Wayland protocol object.
type Object interface {
	fmt.Stringer

	// ID returns the object's ID.
	ID() uint32

	// MethodName returns the name of the request with the given
	// opcode.
	MethodName(op uint16) string

	// Dispatch performs the operation requested by the message in the
	// buffer.
	Dispatch(msg *MessageBuffer) error

	// Delete releases the object's resources after it has been removed
	// from its connection.
	Delete()
}

// NewID is an untyped new_id argument, which carries the interface of
// the object being created along with its ID.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

// unixTee reads from c, but also reads out-of-band data
// simultaneously, writing it into oob.
type unixTee struct {
	c   *net.UnixConn
	oob io.Writer
}

func (t unixTee) Read(buf []byte) (int, error) {
	oob := make([]byte, unix.CmsgSpace(maxFDs*4))
	n, oobn, _, _, err := t.c.ReadMsgUnix(buf, oob)
	_, ooberr := t.oob.Write(oob[:oobn])
	return n, errors.Join(err, ooberr)
}

func padding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}
