package cursor

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"slices"
	"time"

	"deedles.dev/ximage"
)

var (
	// ErrBadMagic indicates an unrecognized magic number when attempting
	// to load a cursor.
	ErrBadMagic = errors.New("bad magic")

	// ErrNoImages indicates a cursor file that contains no images.
	ErrNoImages = errors.New("no images")
)

const (
	fileMagic = 0x72756358 // ASCII "Xcur"

	chunkComment = 0xfffe0001
	chunkImage   = 0xfffd0002

	maxImageSize = 0x7fff
)

type decoder struct {
	r    io.Reader
	br   *bufio.Reader
	n    int
	err  error
	size int
}

// DecodeFile decodes the XCursor file at path, keeping only the images
// whose nominal size is closest to size.
func DecodeFile(path string, size int) (*Cursor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	return Decode(file, size)
}

// Decode decodes an XCursor file from r, keeping only the images whose
// nominal size is closest to size.
func Decode(r io.Reader, size int) (*Cursor, error) {
	d := decoder{
		r:    r,
		br:   bufio.NewReader(r),
		size: size,
	}
	return d.Decode()
}

func (d *decoder) Decode() (c *Cursor, err error) {
	if d.err != nil {
		return nil, d.err
	}

	defer d.catch(&err)

	tocs := d.header()
	best := bestSize(tocs, d.size)
	slices.SortStableFunc(tocs, func(t1, t2 fileToc) int { return cmp.Compare(t1.Position, t2.Position) })

	var cur Cursor
	for _, toc := range tocs {
		switch {
		case toc.Type == chunkComment:
			d.SeekTo(int(toc.Position))
			cur.Comments = append(cur.Comments, d.comment(toc))

		case (toc.Type == chunkImage) && (toc.Subtype == best):
			d.SeekTo(int(toc.Position))
			cur.Frames = append(cur.Frames, d.image(toc))
		}
	}
	if len(cur.Frames) == 0 {
		d.throw(ErrNoImages)
	}

	return &cur, nil
}

func (d *decoder) header() []fileToc {
	magic := d.uint32()
	if magic != fileMagic {
		d.throw(ErrBadMagic)
	}
	hsize := d.uint32()
	d.uint32() // Version.
	ntoc := int(d.uint32())
	d.SeekTo(int(hsize))

	tocs := make([]fileToc, 0, ntoc)
	for i := 0; i < ntoc; i++ {
		tocs = append(tocs, fileToc{
			Type:     d.uint32(),
			Subtype:  d.uint32(),
			Position: d.uint32(),
		})
	}

	return tocs
}

// bestSize returns the nominal image size in tocs that is closest to
// size.
func bestSize(tocs []fileToc, size int) uint32 {
	var best uint32
	dist := -1
	for _, toc := range tocs {
		if toc.Type != chunkImage {
			continue
		}

		d := abs(int(toc.Subtype) - size)
		if (dist < 0) || (d < dist) {
			best = toc.Subtype
			dist = d
		}
	}
	return best
}

func (d *decoder) chunkHeader(toc fileToc) (version uint32) {
	d.uint32() // Header size, including the chunk specific fields.
	typ := d.uint32()
	subtype := d.uint32()
	version = d.uint32()
	if (typ != toc.Type) || (subtype != toc.Subtype) {
		d.throw(fmt.Errorf("chunk at %v does not match its table entry", toc.Position))
	}
	return version
}

func (d *decoder) comment(toc fileToc) *Comment {
	version := d.chunkHeader(toc)
	length := d.uint32()

	buf := make([]byte, length)
	_, err := io.ReadFull(d, buf)
	d.throw(err)

	return &Comment{
		Subtype: CommentSubtype(toc.Subtype),
		Version: version,
		Comment: string(buf),
	}
}

func (d *decoder) image(toc fileToc) *Image {
	version := d.chunkHeader(toc)
	width := d.uint32()
	height := d.uint32()
	xhot := d.uint32()
	yhot := d.uint32()
	delay := d.uint32()

	if (width > maxImageSize) || (height > maxImageSize) {
		d.throw(fmt.Errorf("image too large: %vx%v", width, height))
	}
	if (xhot > width) || (yhot > height) {
		d.throw(fmt.Errorf("hotspot (%v, %v) outside of %vx%v image", xhot, yhot, width, height))
	}

	pix := make([]byte, 4*int(width)*int(height))
	_, err := io.ReadFull(d, pix)
	d.throw(err)

	return &Image{
		Version:     int(version),
		NominalSize: int(toc.Subtype),
		XHot:        int(xhot),
		YHot:        int(yhot),
		Delay:       time.Duration(delay) * time.Millisecond,
		Image: &ximage.FormatImage{
			Format: ximage.ARGB8888,
			Rect:   image.Rect(0, 0, int(width), int(height)),
			Pix:    pix,
		},
	}
}

func (d *decoder) uint32() (v uint32) {
	d.throw(binary.Read(d, binary.LittleEndian, &v))
	return v
}

func (d *decoder) Read(buf []byte) (int, error) {
	n, err := d.br.Read(buf)
	d.n += n
	if errors.Is(err, io.EOF) && (n > 0) {
		return n, nil
	}
	d.throw(err)
	return n, err
}

func (d *decoder) Discard(n int) (int, error) {
	disc, err := d.br.Discard(n)
	d.throw(err)
	d.n += disc
	return disc, err
}

func (d *decoder) SeekTo(n int) error {
	diff := n - d.n
	if diff < 0 {
		d.throw(fmt.Errorf("tried to seek backwards from %v to %v", d.n, n))
	}
	if diff == 0 {
		return nil
	}

	s, ok := d.r.(io.Seeker)
	if !ok || (diff <= d.br.Buffered()) {
		_, err := d.Discard(diff)
		d.throw(err)
		return nil
	}

	_, err := s.Seek(int64(n), io.SeekStart)
	d.throw(err)
	d.br.Reset(d.r)
	d.n = n
	return nil
}

type fileToc struct {
	Type     uint32
	Subtype  uint32
	Position uint32
}

type decoderError struct {
	err error
}

func (d *decoder) throw(err error) {
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		panic(decoderError{err: err})
	}
}

func (d *decoder) catch(err *error) {
	switch r := recover().(type) {
	case decoderError:
		*err = r.err
		d.err = r.err
	case nil:
		*err = d.err
	default:
		panic(r)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
