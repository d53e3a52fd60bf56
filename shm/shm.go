// Package shm implements the server side of shared-memory buffers:
// pools mapped from client file descriptors and the pixel buffers that
// are carved out of them.
package shm

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"deedles.dev/wlcomp/compositor"
	"deedles.dev/ximage"
	"golang.org/x/sys/unix"
)

// Format is a pixel format. All formats are four bytes per pixel,
// stored in native byte order.
type Format uint32

const (
	// FormatARGB8888 has premultiplied alpha.
	FormatARGB8888 Format = iota
	// FormatXRGB8888 ignores its alpha channel.
	FormatXRGB8888
	// FormatStraightARGB8888 has non-premultiplied alpha.
	FormatStraightARGB8888
)

// Formats lists every supported format.
var Formats = []Format{FormatARGB8888, FormatXRGB8888, FormatStraightARGB8888}

func (f Format) String() string {
	switch f {
	case FormatARGB8888:
		return "argb8888"
	case FormatXRGB8888:
		return "xrgb8888"
	case FormatStraightARGB8888:
		return "straight_argb8888"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

// Visual returns the compositor visual that buffers of format f are
// drawn with.
func (f Format) Visual() (compositor.Visual, bool) {
	switch f {
	case FormatARGB8888:
		return compositor.VisualPremultiplied, true
	case FormatXRGB8888:
		return compositor.VisualOpaque, true
	case FormatStraightARGB8888:
		return compositor.VisualARGB, true
	default:
		return 0, false
	}
}

var (
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidStride = errors.New("invalid stride")
	ErrInvalidSize   = errors.New("invalid size")
	ErrPoolDestroyed = errors.New("pool destroyed")
)

// Create creates an anonymous shared-memory file.
func Create() (*os.File, error) {
	path := "/dev/shm/wlcomp-" + time.Now().Format("20060102150405.000000000")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	return file, os.Remove(path)
}

type Mmap []byte

func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	cerr := sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})
	if cerr != nil {
		return nil, cerr
	}

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	if mmap == nil {
		return nil
	}
	return unix.Munmap(mmap)
}

// Pool is a region of memory shared with a client. It stays mapped
// until it has been destroyed and every buffer created from it has
// been destroyed as well.
type Pool struct {
	file      *os.File
	mmap      Mmap
	buffers   int
	destroyed bool
}

// NewPool maps size bytes of file read-only. The pool takes ownership
// of file.
func NewPool(file *os.File, size int) (*Pool, error) {
	if size <= 0 {
		file.Close()
		return nil, fmt.Errorf("pool size %v: %w", size, ErrInvalidSize)
	}
	err := checkFileSize(file, size)
	if err != nil {
		file.Close()
		return nil, err
	}

	mmap, err := Map(file, size, unix.PROT_READ)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &Pool{file: file, mmap: mmap}, nil
}

// checkFileSize returns ErrInvalidSize if file is shorter than size.
// Reading a mapping past the end of its file raises SIGBUS.
func checkFileSize(file *os.File, size int) error {
	var st unix.Stat_t
	err := unix.Fstat(int(file.Fd()), &st)
	if err != nil {
		return fmt.Errorf("stat pool file: %w", err)
	}
	if int64(size) > st.Size {
		return fmt.Errorf("pool size %v exceeds file size %v: %w", size, st.Size, ErrInvalidSize)
	}
	return nil
}

// Size returns the number of bytes in the pool.
func (p *Pool) Size() int {
	return len(p.mmap)
}

// Resize grows the pool to size bytes. Pools can never shrink.
func (p *Pool) Resize(size int) error {
	if p.mmap == nil {
		return ErrPoolDestroyed
	}
	if size < len(p.mmap) {
		return fmt.Errorf("shrink pool from %v to %v: %w", len(p.mmap), size, ErrInvalidSize)
	}
	if size == len(p.mmap) {
		return nil
	}
	err := checkFileSize(p.file, size)
	if err != nil {
		return err
	}

	mmap, err := Map(p.file, size, unix.PROT_READ)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	old := p.mmap
	p.mmap = mmap

	err = old.Unmap()
	if err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	return nil
}

// Destroy releases the pool once its last buffer is gone.
func (p *Pool) Destroy() error {
	p.destroyed = true
	return p.release()
}

func (p *Pool) release() error {
	if !p.destroyed || (p.buffers > 0) || (p.mmap == nil) {
		return nil
	}

	err := errors.Join(p.mmap.Unmap(), p.file.Close())
	p.mmap = nil
	return err
}

// Buffer is a rectangle of pixels within a pool. It implements
// compositor.ShmBuffer.
type Buffer struct {
	pool   *Pool
	offset int
	width  int
	height int
	stride int
	format Format
	visual compositor.Visual

	destroyed bool
}

// NewBuffer creates a width by height buffer starting offset bytes into
// the pool.
func (p *Pool) NewBuffer(offset, width, height, stride int, format Format) (*Buffer, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}

	visual, ok := format.Visual()
	if !ok {
		return nil, fmt.Errorf("%v: %w", format, ErrInvalidFormat)
	}
	if (width <= 0) || (height <= 0) {
		return nil, fmt.Errorf("%vx%v: %w", width, height, ErrInvalidSize)
	}
	if (stride < 4*width) || (stride%4 != 0) {
		return nil, fmt.Errorf("stride %v for width %v: %w", stride, width, ErrInvalidStride)
	}
	if (offset < 0) || (offset+stride*height > len(p.mmap)) {
		return nil, fmt.Errorf("buffer at %v of %v bytes in pool of %v: %w", offset, stride*height, len(p.mmap), ErrInvalidSize)
	}

	p.buffers++
	return &Buffer{
		pool:   p,
		offset: offset,
		width:  width,
		height: height,
		stride: stride,
		format: format,
		visual: visual,
	}, nil
}

func (b *Buffer) Size() image.Point         { return image.Pt(b.width, b.height) }
func (b *Buffer) Visual() compositor.Visual { return b.visual }
func (b *Buffer) Stride() int               { return b.stride }
func (b *Buffer) Format() Format            { return b.format }

// Data returns the buffer's pixels. The slice is only valid until the
// pool is next resized.
func (b *Buffer) Data() []byte {
	if b.destroyed || (b.pool.mmap == nil) {
		return nil
	}
	return b.pool.mmap[b.offset : b.offset+b.stride*b.height]
}

// Image returns a view of the buffer's pixels. The image is
// stride/4 pixels wide.
func (b *Buffer) Image() image.Image {
	return &ximage.FormatImage{
		Format: ximage.ARGB8888,
		Rect:   image.Rect(0, 0, b.stride/4, b.height),
		Pix:    b.Data(),
	}
}

// Destroy releases the buffer's hold on its pool.
func (b *Buffer) Destroy() error {
	if b.destroyed {
		return nil
	}
	b.destroyed = true
	b.pool.buffers--
	return b.pool.release()
}
