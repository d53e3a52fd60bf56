package wire

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testObject uint32

func (obj testObject) String() string                { return "test@" + strconv.FormatUint(uint64(obj), 10) }
func (obj testObject) ID() uint32                    { return uint32(obj) }
func (obj testObject) MethodName(op uint16) string   { return "method" }
func (obj testObject) Dispatch(*MessageBuffer) error { return nil }
func (obj testObject) Delete()                       {}

func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	conns := make([]*Conn, 2)
	for i, fd := range fds {
		f := os.NewFile(uintptr(fd), "socketpair")
		c, err := net.FileConn(f)
		f.Close()
		require.NoError(t, err)
		conns[i] = NewConn(c.(*net.UnixConn))
		t.Cleanup(func() { conns[i].Close() })
	}
	return conns[0], conns[1]
}

func TestPadding(t *testing.T) {
	tests := []struct {
		length uint32
		want   uint32
	}{
		{0, 0},
		{1, 3},
		{4, 0},
		{5, 3},
		{7, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, padding(tt.length), "padding(%v)", tt.length)
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, Fixed(256), FixedInt(1))
	assert.Equal(t, Fixed(384), FixedFloat(1.5))
	assert.Equal(t, 1.5, FixedFloat(1.5).Float())
	assert.Equal(t, -2, FixedFloat(-1.5).Int())
	assert.Equal(t, 128, FixedFloat(-1.5).Frac())
	assert.Equal(t, "-0.25", FixedFloat(-0.25).String())
}

func TestMessageRoundTrip(t *testing.T) {
	a, b := connPair(t)

	msg := NewMessage(testObject(3), 7)
	msg.WriteInt(-5)
	msg.WriteUint(12)
	msg.WriteFixed(FixedFloat(2.5))
	msg.WriteString("wl_surface")
	msg.WriteArray([]byte{1, 2, 3, 4, 5})
	msg.WriteObject(testObject(9))
	msg.WriteObject(nil)
	msg.WriteNewID(NewID{Interface: "wl_output", Version: 1, ID: 20})
	require.NoError(t, msg.Build(a))
	assert.Equal(t, 8+4+4+4+(4+12)+(4+8)+4+4+(4+12+4+4), a.Buffered())
	require.NoError(t, a.Flush())
	assert.Zero(t, a.Buffered())

	mb, err := ReadMessage(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), mb.Sender())
	assert.Equal(t, uint16(7), mb.Op())
	assert.Equal(t, int32(-5), mb.ReadInt())
	assert.Equal(t, uint32(12), mb.ReadUint())
	assert.Equal(t, 2.5, mb.ReadFixed().Float())
	assert.Equal(t, "wl_surface", mb.ReadString())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, mb.ReadArray())
	assert.Equal(t, uint32(9), mb.ReadUint())
	assert.Equal(t, uint32(0), mb.ReadUint())
	assert.Equal(t, NewID{Interface: "wl_output", Version: 1, ID: 20}, mb.ReadNewID())
	assert.NoError(t, mb.Err())

	assert.Equal(t, `test@3.method(-5, 12, 2.5, "wl_surface", array[5], 9, 0, "wl_output", 1, 20)`, mb.Debug(testObject(3)))
}

func TestReadPastEnd(t *testing.T) {
	a, b := connPair(t)

	msg := NewMessage(testObject(1), 0)
	msg.WriteUint(1)
	require.NoError(t, msg.Build(a))
	require.NoError(t, a.Flush())

	mb, err := ReadMessage(b)
	require.NoError(t, err)
	mb.ReadUint()
	mb.ReadUint()
	mb.ReadString()
	assert.ErrorIs(t, mb.Err(), io.ErrUnexpectedEOF)
}

func TestSeveralMessagesOneFlush(t *testing.T) {
	a, b := connPair(t)

	for i := range 3 {
		msg := NewMessage(testObject(1), uint16(i))
		msg.WriteUint(uint32(i * 10))
		require.NoError(t, msg.Build(a))
	}
	require.NoError(t, a.Flush())

	for i := range 3 {
		mb, err := ReadMessage(b)
		require.NoError(t, err)
		assert.Equal(t, uint16(i), mb.Op())
		assert.Equal(t, uint32(i*10), mb.ReadUint())
	}
}

func TestFilePassing(t *testing.T) {
	a, b := connPair(t)

	f, err := os.Create(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("shared")
	require.NoError(t, err)

	msg := NewMessage(testObject(4), 0)
	msg.WriteFile(f)
	msg.WriteUint(6)
	require.NoError(t, msg.Build(a))
	require.NoError(t, a.Flush())

	mb, err := ReadMessage(b)
	require.NoError(t, err)
	got := mb.ReadFile()
	require.NoError(t, mb.Err())
	require.NotNil(t, got)
	defer got.Close()
	assert.Equal(t, uint32(6), mb.ReadUint())

	data := make([]byte, 6)
	_, err = got.ReadAt(data, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))

	assert.Nil(t, mb.ReadFile())
	assert.Error(t, mb.Err())
}

func TestShortHeader(t *testing.T) {
	a, b := connPair(t)

	_, err := a.conn.Write([]byte{1, 0, 0, 0, 4, 0, 0, 0})
	require.NoError(t, err)

	_, err = ReadMessage(b)
	assert.Error(t, err)
}

func TestNewSocketPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	for _, name := range []string{"wayland-0", "wayland-0.lock", "wayland-1", "other"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0600))
	}

	path, err := NewSocketPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "wayland-2"), path)
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/test")

	t.Setenv("WAYLAND_DISPLAY", "wayland-3")
	assert.Equal(t, "/run/test/wayland-3", SocketPath())

	t.Setenv("WAYLAND_DISPLAY", "/tmp/abs")
	assert.Equal(t, "/tmp/abs", SocketPath())
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wayland-0")

	lis, err := Listen(path)
	require.NoError(t, err)

	_, err = Listen(path)
	assert.Error(t, err)

	lis.SetUnlinkOnClose(false)
	require.NoError(t, lis.Close())

	lis, err = Listen(path)
	require.NoError(t, err)
	lis.Close()
}
