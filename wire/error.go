package wire

import "fmt"

// UnknownOpError is returned by Object.Dispatch if it is given a
// message with an invalid opcode. Type is either "request" or "event".
type UnknownOpError struct {
	Interface string
	Type      string
	Op        uint16
}

func (err UnknownOpError) Error() string {
	return fmt.Sprintf("unknown %v opcode for %v: %v", err.Type, err.Interface, err.Op)
}

// UnknownSenderIDError is returned when a message arrives for an object
// ID that the connection has no object for.
type UnknownSenderIDError struct {
	ID uint32
	Op uint16
}

func (err UnknownSenderIDError) Error() string {
	return fmt.Sprintf("unknown sender object ID %v (opcode %v)", err.ID, err.Op)
}
