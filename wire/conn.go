package wire

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"deedles.dev/wlcomp/internal/set"
	"golang.org/x/sys/unix"
)

func xdgRuntimeDir() string {
	dir, ok := os.LookupEnv("XDG_RUNTIME_DIR")
	if ok {
		return dir
	}
	return fmt.Sprintf("/var/run/user/%v", os.Getuid())
}

// SocketPath determines the path to the Wayland Unix domain socket
// based on the contents of the $WAYLAND_DISPLAY environment variable.
// It does not attempt to determine if the value corresponds to an
// actual socket.
func SocketPath() string {
	v, ok := os.LookupEnv("WAYLAND_DISPLAY")
	if !ok {
		v = "wayland-0"
	}
	if filepath.IsAbs(v) {
		return v
	}

	return filepath.Join(xdgRuntimeDir(), v)
}

// NewSocketPath attempts to generate a valid path for opening a new
// socket to listen on.
func NewSocketPath() (string, error) {
	dir := xdgRuntimeDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make(set.Set[int], len(entries))
	for _, ent := range entries {
		after, ok := strings.CutPrefix(ent.Name(), "wayland-")
		if !ok {
			continue
		}
		after, _ = strings.CutSuffix(after, ".lock")
		n, err := strconv.ParseInt(after, 10, 0)
		if err != nil {
			continue
		}
		names.Add(int(n))
	}

	var num int
	for names.Has(num) {
		num++
	}

	return filepath.Join(dir, fmt.Sprintf("wayland-%v", num)), nil
}

// Listen listens on the Unix domain socket at path. A socket file left
// behind by a server that is no longer running is replaced.
func Listen(path string) (*net.UnixListener, error) {
	addr := &net.UnixAddr{Name: path, Net: "unix"}

	lis, err := net.ListenUnix("unix", addr)
	if err == nil {
		return lis, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, err
	}

	c, derr := net.DialUnix("unix", nil, addr)
	if derr == nil {
		c.Close()
		return nil, fmt.Errorf("%v is in use: %w", path, err)
	}

	err = os.Remove(path)
	if err != nil {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	return net.ListenUnix("unix", addr)
}

// Conn represents a low-level Wayland connection.
//
// Reading is done with ReadMessage and may happen on a different
// goroutine than writing. Messages are written by building them into
// the Conn's output buffer and then calling Flush.
type Conn struct {
	conn *net.UnixConn

	m   sync.Mutex
	fds []int

	out    bytes.Buffer
	outFDs []int
}

// NewConn creates a new Conn that wraps c. After this is called, use
// the provided Close method to close c instead of calling its own
// Close method.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{
		conn: c,
	}
}

// Close closes the underlying connection along with any file
// descriptors that were received but never used.
func (c *Conn) Close() error {
	errs := []error{c.conn.Close()}

	c.m.Lock()
	for _, fd := range c.fds {
		errs = append(errs, unix.Close(fd))
	}
	c.fds = nil
	c.m.Unlock()

	for _, fd := range c.outFDs {
		errs = append(errs, unix.Close(fd))
	}
	c.outFDs = nil
	return errors.Join(errs...)
}

func (c *Conn) readFDs(data []byte) error {
	cmsgs, err := unix.ParseSocketControlMessage(data)
	if err != nil {
		return fmt.Errorf("parse socket control messages: %w", err)
	}
	for _, cmsg := range cmsgs {
		fds, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				continue
			}
			return fmt.Errorf("parse unix control message: %w", err)
		}
		c.m.Lock()
		c.fds = append(c.fds, fds...)
		c.m.Unlock()
	}
	return nil
}

// popFD removes the oldest received file descriptor from the queue.
func (c *Conn) popFD() (int, bool) {
	c.m.Lock()
	defer c.m.Unlock()

	if len(c.fds) == 0 {
		return -1, false
	}

	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, true
}

// Buffered returns the number of bytes waiting to be flushed.
func (c *Conn) Buffered() int {
	return c.out.Len()
}

// Flush writes every built message to the socket.
func (c *Conn) Flush() error {
	if c.out.Len() == 0 {
		return nil
	}

	oob := unix.UnixRights(c.outFDs...)
	n, _, err := c.conn.WriteMsgUnix(c.out.Bytes(), oob, nil)
	if (err == nil) && (n < c.out.Len()) {
		_, err = c.conn.Write(c.out.Bytes()[n:])
	}

	for _, fd := range c.outFDs {
		unix.Close(fd)
	}
	c.outFDs = c.outFDs[:0]
	c.out.Reset()

	return err
}

// Dial opens a connection to the Wayland socket based on the current
// environment. It follows the procedure outlined at
// https://wayland-book.com/protocol-design/wire-protocol.html#transports
func Dial() (*Conn, error) {
	if v, ok := os.LookupEnv("WAYLAND_SOCKET"); ok {
		fd, err := strconv.ParseInt(v, 10, 0)
		if err != nil {
			return nil, fmt.Errorf("parse WAYLAND_SOCKET fd: %w", err)
		}
		file := os.NewFile(uintptr(fd), "WAYLAND_SOCKET")
		defer file.Close()

		c, err := net.FileConn(file)
		if err != nil {
			return nil, fmt.Errorf("open WAYLAND_SOCKET connection: %w", err)
		}
		uc, ok := c.(*net.UnixConn)
		if !ok {
			c.Close()
			return nil, errors.New("WAYLAND_SOCKET is not a Unix domain socket")
		}
		return NewConn(uc), nil
	}

	s, err := net.Dial("unix", SocketPath())
	if err != nil {
		return nil, err
	}
	return NewConn(s.(*net.UnixConn)), nil
}
