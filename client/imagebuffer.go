package client

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"

	"deedles.dev/wlcomp/shm"
	"deedles.dev/ximage"
	"golang.org/x/sys/unix"
)

// ImageBuffer is a buffer in its own shared-memory pool whose pixels
// can be drawn to directly.
type ImageBuffer struct {
	w, h int32
	pool *ShmPool
	buf  *Buffer
	file *os.File
	mmap shm.Mmap
}

// NewImageBuffer creates a w by h buffer with premultiplied alpha.
func NewImageBuffer(s *Shm, w, h int32) (buf *ImageBuffer, err error) {
	if (w <= 0) || (h <= 0) {
		return nil, fmt.Errorf("invalid buffer size %vx%v", w, h)
	}

	buf = &ImageBuffer{w: w, h: h}
	defer func() {
		if err != nil {
			buf.Destroy()
		}
	}()
	size := buf.Stride() * h

	file, err := shm.Create()
	if err != nil {
		return buf, fmt.Errorf("create SHM file: %w", err)
	}
	buf.file = file

	err = file.Truncate(int64(size))
	if err != nil {
		return buf, fmt.Errorf("truncate SHM file: %w", err)
	}

	mmap, err := shm.Map(file, int(size), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return buf, fmt.Errorf("mmap SHM file: %w", err)
	}
	buf.mmap = mmap

	buf.pool = s.CreatePool(file, size)
	buf.buf = buf.pool.CreateBuffer(0, w, h, buf.Stride(), shm.FormatARGB8888)

	return buf, nil
}

// Destroy destroys the buffer and its pool and releases the memory.
func (buf *ImageBuffer) Destroy() error {
	if buf.buf != nil {
		buf.buf.Destroy()
		buf.buf = nil
	}
	if buf.pool != nil {
		buf.pool.Destroy()
		buf.pool = nil
	}

	var errs []error
	if buf.mmap != nil {
		errs = append(errs, buf.mmap.Unmap())
		buf.mmap = nil
	}
	if buf.file != nil {
		errs = append(errs, buf.file.Close())
		buf.file = nil
	}
	return errors.Join(errs...)
}

func (buf *ImageBuffer) Stride() int32 {
	return buf.w * 4
}

// Buffer returns the protocol object of the buffer.
func (buf *ImageBuffer) Buffer() *Buffer {
	return buf.buf
}

// Image returns a view of the buffer's pixels.
func (buf *ImageBuffer) Image() draw.Image {
	return &ximage.FormatImage{
		Format: ximage.ARGB8888,
		Rect:   image.Rect(0, 0, int(buf.w), int(buf.h)),
		Pix:    buf.mmap,
	}
}

// Draw copies img into the buffer and tells the server about the new
// contents.
func (buf *ImageBuffer) Draw(img image.Image) {
	draw.Draw(buf.Image(), buf.Image().Bounds(), img, img.Bounds().Min, draw.Src)
	buf.buf.Damage(0, 0, buf.w, buf.h)
}
