package compositor

import (
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"testing"
	"time"

	"deedles.dev/wlcomp/input"
	"deedles.dev/wlcomp/loop"
	"deedles.dev/wlcomp/region"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	f func()
	d time.Duration
}

func (t *fakeTimer) Update(d time.Duration) { t.d = d }

func (t *fakeTimer) armed() bool { return t.d > 0 }

func (t *fakeTimer) fire() {
	t.d = 0
	t.f()
}

type fakeLoop struct {
	timers     []*fakeTimer
	terminated bool
}

func (l *fakeLoop) AddTimer(f func()) loop.Timer {
	t := &fakeTimer{f: f}
	l.timers = append(l.timers, t)
	return t
}

func (l *fakeLoop) Terminate() { l.terminated = true }

type fakeTexture struct {
	id      int
	size    image.Point
	uploads int
}

func (t *fakeTexture) Bounds() image.Rectangle {
	return image.Rectangle{Max: t.size}
}

type fakeRenderer struct {
	next      int
	live      map[*fakeTexture]struct{}
	renders   map[*Output][][]DrawOp
	failNew   bool
	importErr error
}

func (r *fakeRenderer) newTexture(size image.Point) *fakeTexture {
	r.next++
	tex := &fakeTexture{id: r.next, size: size}
	r.live[tex] = struct{}{}
	return tex
}

func (r *fakeRenderer) NewTexture() (Texture, error) {
	if r.failNew {
		return nil, errors.New("out of textures")
	}
	return r.newTexture(image.Point{}), nil
}

func (r *fakeRenderer) NewSprite(img image.Image) (Texture, error) {
	return r.newTexture(img.Bounds().Size()), nil
}

func (r *fakeRenderer) DestroyTexture(tex Texture) {
	delete(r.live, tex.(*fakeTexture))
}

func (r *fakeRenderer) Upload(tex Texture, buf ShmBuffer) error {
	t := tex.(*fakeTexture)
	t.uploads++
	t.size = image.Pt(buf.Stride()/4, buf.Size().Y)
	return nil
}

func (r *fakeRenderer) Import(tex Texture, buf Buffer) error {
	if r.importErr != nil {
		return r.importErr
	}
	tex.(*fakeTexture).size = buf.Size()
	return nil
}

func (r *fakeRenderer) Render(out *Output, ops []DrawOp) error {
	r.renders[out] = append(r.renders[out], ops)
	return nil
}

type fakeBackend struct {
	prepared   int
	presented  []*Output
	scanoutErr error
	cursorErr  error
	scanouts   []SurfaceID
}

func (b *fakeBackend) PrepareRender(out *Output) error {
	b.prepared++
	return nil
}

func (b *fakeBackend) Present(out *Output) error {
	b.presented = append(b.presented, out)
	return nil
}

func (b *fakeBackend) PrepareScanoutSurface(out *Output, s *Surface) error {
	if b.scanoutErr != nil {
		return b.scanoutErr
	}
	b.scanouts = append(b.scanouts, s.ID())
	return nil
}

func (b *fakeBackend) SetHardwareCursor(out *Output, dev *InputDevice) error {
	return b.cursorErr
}

type fakeShell struct {
	locked   int
	attached []SurfaceID
	mapped   []MapType
}

func (s *fakeShell) Lock()               { s.locked++ }
func (s *fakeShell) Attach(sur *Surface) { s.attached = append(s.attached, sur.ID()) }
func (s *fakeShell) Map(sur *Surface)    { s.mapped = append(s.mapped, sur.MapType()) }

type focusEvent struct {
	surface SurfaceID
	sx, sy  int
}

type fakeClient struct {
	pointerFocus  []focusEvent
	keyboardFocus []focusEvent
	motions       []image.Point
	buttons       []input.Button
	keys          []input.Key
	frames        []SurfaceID
}

func focusID(s *Surface) SurfaceID {
	if s == nil {
		return SurfaceID{}
	}
	return s.ID()
}

func (c *fakeClient) PointerFocus(dev *InputDevice, time uint32, s *Surface, x, y, sx, sy int) {
	c.pointerFocus = append(c.pointerFocus, focusEvent{surface: focusID(s), sx: sx, sy: sy})
}

func (c *fakeClient) KeyboardFocus(dev *InputDevice, time uint32, s *Surface, keys []input.Key) {
	c.keyboardFocus = append(c.keyboardFocus, focusEvent{surface: focusID(s)})
}

func (c *fakeClient) Motion(dev *InputDevice, time uint32, x, y, sx, sy int) {
	c.motions = append(c.motions, image.Pt(sx, sy))
}

func (c *fakeClient) Button(dev *InputDevice, time uint32, button input.Button, pressed bool) {
	c.buttons = append(c.buttons, button)
}

func (c *fakeClient) Key(dev *InputDevice, time uint32, key input.Key, pressed bool) {
	c.keys = append(c.keys, key)
}

func (c *fakeClient) Frame(s *Surface, time uint32) {
	c.frames = append(c.frames, s.ID())
}

type fakeBuffer struct {
	size   image.Point
	visual Visual
}

func newBuffer(w, h int, visual Visual) *fakeBuffer {
	return &fakeBuffer{size: image.Pt(w, h), visual: visual}
}

func (b *fakeBuffer) Size() image.Point { return b.size }
func (b *fakeBuffer) Visual() Visual    { return b.visual }
func (b *fakeBuffer) Stride() int       { return b.size.X * 4 }
func (b *fakeBuffer) Data() []byte      { return make([]byte, b.Stride()*b.size.Y) }

// gpuBuffer is a buffer that does not live in shared memory.
type gpuBuffer struct {
	size image.Point
}

func (b *gpuBuffer) Size() image.Point { return b.size }
func (b *gpuBuffer) Visual() Visual    { return VisualOpaque }

type testCompositor struct {
	*Compositor
	backend  *fakeBackend
	renderer *fakeRenderer
	loop     *fakeLoop
	shell    *fakeShell
	now      time.Time
}

const testPointerSize = 8

var testHotspot = image.Pt(2, 3)

func testPointerImages() []PointerImage {
	images := make([]PointerImage, numPointerTypes)
	for i := range images {
		images[i] = PointerImage{
			Image:   image.NewRGBA(image.Rect(0, 0, testPointerSize, testPointerSize)),
			Hotspot: testHotspot,
		}
	}
	return images
}

func newTestCompositor(t *testing.T, outputs ...image.Rectangle) *testCompositor {
	t.Helper()
	return newTestCompositorWith(t, nil, outputs...)
}

func newTestCompositorWith(t *testing.T, configure func(*Config), outputs ...image.Rectangle) *testCompositor {
	t.Helper()

	tc := testCompositor{
		backend: &fakeBackend{
			scanoutErr: ErrUnsupported,
			cursorErr:  ErrUnsupported,
		},
		renderer: &fakeRenderer{
			live:    make(map[*fakeTexture]struct{}),
			renders: make(map[*Output][][]DrawOp),
		},
		loop:  &fakeLoop{},
		shell: &fakeShell{},
		now:   time.UnixMilli(1000),
	}

	cfg := Config{
		Backend:       tc.backend,
		Renderer:      tc.renderer,
		Loop:          tc.loop,
		Shell:         tc.shell,
		IdleTime:      time.Minute,
		Clock:         func() time.Time { return tc.now },
		PointerImages: testPointerImages(),
		Rand:          rand.New(rand.NewPCG(1, 2)),
	}
	if configure != nil {
		configure(&cfg)
	}

	c, err := New(cfg)
	require.NoError(t, err)
	tc.Compositor = c

	for i, r := range outputs {
		_, err := c.AddOutput(fmt.Sprintf("test-%v", i), r, false)
		require.NoError(t, err)
	}

	return &tc
}

func (tc *testCompositor) idleTimer() *fakeTimer    { return tc.loop.timers[0] }
func (tc *testCompositor) repaintTimer() *fakeTimer { return tc.loop.timers[1] }

// resetDamage forgets all pending and previous damage.
func (tc *testCompositor) resetDamage() {
	tc.damage = region.Region{}
	for _, out := range tc.outputs {
		out.previousDamage = region.Region{}
	}
}

// mapAt creates a toplevel surface covering r with a buffer of the
// given visual.
func (tc *testCompositor) mapAt(t *testing.T, client Client, r image.Rectangle, visual Visual) SurfaceID {
	t.Helper()

	id, err := tc.CreateSurface(client)
	require.NoError(t, err)
	require.NoError(t, tc.Attach(id, newBuffer(r.Dx(), r.Dy(), visual), 0, 0))
	require.NoError(t, tc.MapToplevel(id))

	s := tc.Surface(id)
	require.NoError(t, tc.Attach(id, newBuffer(r.Dx(), r.Dy(), visual), r.Min.X-s.x, r.Min.Y-s.y))
	require.Equal(t, r, s.Bounds())
	return id
}

// opsFor returns the draw operations that draw the surface id.
func opsFor(ops []DrawOp, id SurfaceID) []DrawOp {
	var r []DrawOp
	for _, op := range ops {
		if (op.Kind == OpTexture) && (op.Surface == id) {
			r = append(r, op)
		}
	}
	return r
}

func quadRects(op DrawOp) []image.Rectangle {
	rects := make([]image.Rectangle, 0, len(op.Quads))
	for _, q := range op.Quads {
		rects = append(rects, q.Rect)
	}
	return rects
}

// frames finishes n frames on out, 16ms apart, and returns the time of
// the last one.
func (tc *testCompositor) frames(out *Output, n int) uint32 {
	for i := 0; i < n; i++ {
		tc.now = tc.now.Add(16 * time.Millisecond)
		tc.FinishFrame(out, tc.Time())
	}
	return tc.Time()
}
