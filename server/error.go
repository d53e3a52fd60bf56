package server

import "fmt"

// Error codes sent with the display error event.
const (
	ErrorInvalidObject = 0
	ErrorInvalidMethod = 1
	ErrorNoMemory      = 2
)

// Error codes specific to shared memory objects.
const (
	ShmErrorInvalidFormat = 0
	ShmErrorInvalidStride = 1
	ShmErrorInvalidFD     = 2
)

// ProtocolError is a fatal error caused by a client. It is reported to
// the client with the display error event, after which the client is
// disconnected.
type ProtocolError struct {
	Object  uint32
	Code    uint32
	Message string
}

func (err *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on object %v: code %v: %v", err.Object, err.Code, err.Message)
}

func invalidObject(sender uint32, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Object:  sender,
		Code:    ErrorInvalidObject,
		Message: fmt.Sprintf(format, args...),
	}
}
