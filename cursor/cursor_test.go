package cursor

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testImage struct {
	size, w, h, xhot, yhot, delay uint32
}

// encode builds an XCursor file containing a copyright comment followed
// by the given images.
func encode(comment string, images ...testImage) []byte {
	const headerLen = 16

	type chunk struct {
		typ, subtype uint32
		data         []uint32
		extra        []byte
	}

	chunks := []chunk{{
		typ:     chunkComment,
		subtype: uint32(CommentSubtypeCopyright),
		data:    []uint32{20, chunkComment, uint32(CommentSubtypeCopyright), 1, uint32(len(comment))},
		extra:   []byte(comment),
	}}
	for _, img := range images {
		chunks = append(chunks, chunk{
			typ:     chunkImage,
			subtype: img.size,
			data:    []uint32{36, chunkImage, img.size, 1, img.w, img.h, img.xhot, img.yhot, img.delay},
			extra:   bytes.Repeat([]byte{0x10, 0x20, 0x30, 0xff}, int(img.w*img.h)),
		})
	}

	var buf bytes.Buffer
	write := func(v any) { binary.Write(&buf, binary.LittleEndian, v) }

	write([]uint32{fileMagic, headerLen, 0x10000, uint32(len(chunks))})
	pos := headerLen + 12*len(chunks)
	for _, c := range chunks {
		write([]uint32{c.typ, c.subtype, uint32(pos)})
		pos += 4*len(c.data) + len(c.extra)
	}
	for _, c := range chunks {
		write(c.data)
		buf.Write(c.extra)
	}
	return buf.Bytes()
}

func TestDecodePicksClosestSize(t *testing.T) {
	data := encode("public domain",
		testImage{size: 16, w: 16, h: 16, xhot: 1, yhot: 2},
		testImage{size: 32, w: 32, h: 32, xhot: 4, yhot: 5, delay: 50},
		testImage{size: 32, w: 32, h: 32, xhot: 6, yhot: 7, delay: 50},
		testImage{size: 48, w: 48, h: 48},
	)

	tests := []struct {
		name   string
		size   int
		want   int
		frames int
	}{
		{"exact", 32, 32, 2},
		{"smaller", 10, 16, 1},
		{"between", 30, 32, 2},
		{"larger", 100, 48, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, err := Decode(bytes.NewReader(data), tt.size)
			require.NoError(t, err)
			require.Len(t, cur.Frames, tt.frames)
			for _, f := range cur.Frames {
				assert.Equal(t, tt.want, f.NominalSize)
				assert.Equal(t, image.Rect(0, 0, tt.want, tt.want), f.Image.Rect)
				assert.Len(t, f.Image.Pix, 4*tt.want*tt.want)
			}
		})
	}
}

func TestDecodeFrames(t *testing.T) {
	data := encode("made for testing",
		testImage{size: 24, w: 20, h: 24, xhot: 4, yhot: 5, delay: 50},
		testImage{size: 24, w: 20, h: 24, xhot: 6, yhot: 7, delay: 60},
	)

	// Wrapping the reader hides its Seek method.
	cur, err := Decode(io.MultiReader(bytes.NewReader(data)), 24)
	require.NoError(t, err)

	require.Len(t, cur.Comments, 1)
	assert.Equal(t, CommentSubtypeCopyright, cur.Comments[0].Subtype)
	assert.Equal(t, "made for testing", cur.Comments[0].Comment)

	require.Len(t, cur.Frames, 2)
	assert.Equal(t, image.Pt(4, 5), cur.Frames[0].Hotspot())
	assert.Equal(t, 50*time.Millisecond, cur.Frames[0].Delay)
	assert.Equal(t, image.Pt(6, 7), cur.Frames[1].Hotspot())
	assert.Equal(t, image.Rect(0, 0, 20, 24), cur.Frames[1].Image.Rect)
	assert.Equal(t, []byte{0x10, 0x20, 0x30, 0xff}, cur.Frames[1].Image.Pix[:4])
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("Inherits=Adwaita\n")), 24)
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode(bytes.NewReader(encode("no images")), 24)
	assert.ErrorIs(t, err, ErrNoImages)

	data := encode("", testImage{size: 24, w: 8, h: 8})
	_, err = Decode(bytes.NewReader(data[:len(data)-10]), 24)
	assert.Error(t, err)

	_, err = Decode(bytes.NewReader(encode("", testImage{size: 24, w: 8, h: 8, xhot: 9})), 24)
	assert.Error(t, err)
}

func writeTheme(t *testing.T, root, name, inherits string, cursors ...string) {
	t.Helper()

	dir := filepath.Join(root, name, "cursors")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, c := range cursors {
		data := encode(name, testImage{size: 24, w: 24, h: 24, xhot: uint32(len(name)), yhot: 1})
		require.NoError(t, os.WriteFile(filepath.Join(dir, c), data, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a cursor"), 0o644))

	if inherits != "" {
		index := "[Icon Theme]\nInherits=" + inherits + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(root, name, "index.theme"), []byte(index), 0o644))
	}
}

func TestLoadTheme(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XCURSOR_PATH", root)

	writeTheme(t, root, "child", "base", "left_ptr")
	writeTheme(t, root, "base", "child", "left_ptr", "xterm")

	theme, err := LoadTheme("child", 24)
	require.NoError(t, err)
	assert.Len(t, theme.Cursors, 2)

	img, ok := theme.Image("left_ptr")
	require.True(t, ok)
	assert.Equal(t, image.Pt(len("child"), 1), img.Hotspot(), "the child theme wins")

	img, ok = theme.Image("xterm")
	require.True(t, ok)
	assert.Equal(t, image.Pt(len("base"), 1), img.Hotspot())

	_, ok = theme.Image("grabbing")
	assert.False(t, ok)
}

func TestLoadFallsBack(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XCURSOR_PATH", root)
	writeTheme(t, root, "partial", "", "xterm")

	images := Load("partial", 24, []string{"xterm", "left_ptr", "nonexistent"}, nil)
	require.Len(t, images, 3)
	assert.Equal(t, image.Pt(len("partial"), 1), images[0].Hotspot())
	assert.Equal(t, image.Pt(10, 5), images[1].Hotspot())
	assert.Nil(t, images[2])

	images = Load("missing", 24, []string{"left_ptr"}, nil)
	require.Len(t, images, 1)
	assert.NotNil(t, images[0])
}

func TestFallback(t *testing.T) {
	for name, hot := range fallbackHotspots {
		img, err := Fallback(name)
		require.NoError(t, err, name)
		assert.Equal(t, hot, img.Hotspot(), name)
		assert.Equal(t, image.Rect(0, 0, fallbackSize, fallbackSize), img.Image.Rect)
	}

	_, err := Fallback("wait")
	assert.ErrorIs(t, err, ErrNoCursor)
}
