package compositor

import (
	"image"

	"deedles.dev/wlcomp/input"
	"deedles.dev/wlcomp/loop"
)

// Visual describes how a surface's pixels should be blended.
type Visual int

const (
	// VisualOpaque surfaces ignore alpha and are drawn without blending.
	VisualOpaque Visual = iota
	// VisualPremultiplied surfaces have color channels already scaled
	// by alpha.
	VisualPremultiplied
	// VisualARGB surfaces have straight, non-premultiplied alpha.
	VisualARGB
)

func (v Visual) String() string {
	switch v {
	case VisualOpaque:
		return "opaque"
	case VisualPremultiplied:
		return "premultiplied"
	case VisualARGB:
		return "argb"
	default:
		return "unknown"
	}
}

// Texture is an image resident in a Renderer. Its contents are opaque
// to the compositor.
type Texture interface {
	Bounds() image.Rectangle
}

// Buffer is a client-provided pixel buffer.
type Buffer interface {
	Size() image.Point
	Visual() Visual
}

// ShmBuffer is a Buffer whose pixels live in memory shared with the
// client. Pixels are ARGB8888 in native byte order.
type ShmBuffer interface {
	Buffer
	Stride() int
	Data() []byte
}

// Renderer owns textures and rasterizes draw operations.
type Renderer interface {
	// NewTexture creates an empty texture for a surface.
	NewTexture() (Texture, error)

	// NewSprite creates a texture holding img.
	NewSprite(img image.Image) (Texture, error)

	// DestroyTexture releases tex.
	DestroyTexture(tex Texture)

	// Upload replaces the contents of tex with the pixels of buf. The
	// texture is sized stride/4 by height texels.
	Upload(tex Texture, buf ShmBuffer) error

	// Import binds a buffer that does not live in shared memory to tex.
	// Renderers that cannot do so return ErrUnsupported.
	Import(tex Texture, buf Buffer) error

	// Render draws ops, in order, onto the framebuffer of out.
	Render(out *Output, ops []DrawOp) error
}

// Backend drives the physical or virtual outputs.
type Backend interface {
	// PrepareRender is called before any drawing is done for out.
	PrepareRender(out *Output) error

	// Present shows the most recently rendered frame of out. The
	// backend must later call FinishFrame once the frame is visible.
	Present(out *Output) error

	// PrepareScanoutSurface attempts to show the buffer of s directly
	// on out, bypassing composition. A non-nil error means that normal
	// compositing should be used instead.
	PrepareScanoutSurface(out *Output, s *Surface) error

	// SetHardwareCursor attempts to display dev's sprite using a
	// hardware cursor plane. A non-nil error means that the sprite
	// will be composited in software.
	SetHardwareCursor(out *Output, dev *InputDevice) error
}

// Client receives the events destined for the owner of a surface.
type Client interface {
	// PointerFocus is sent when pointer focus enters s or, if s is
	// nil, leaves the client's surfaces.
	PointerFocus(dev *InputDevice, time uint32, s *Surface, x, y, sx, sy int)

	// KeyboardFocus is sent when keyboard focus enters s or, if s is
	// nil, leaves the client's surfaces.
	KeyboardFocus(dev *InputDevice, time uint32, s *Surface, keys []input.Key)

	Motion(dev *InputDevice, time uint32, x, y, sx, sy int)
	Button(dev *InputDevice, time uint32, button input.Button, pressed bool)
	Key(dev *InputDevice, time uint32, key input.Key, pressed bool)

	// Frame is sent once a frame containing s has been presented.
	Frame(s *Surface, time uint32)
}

// Shell is the window-management policy that sits on top of the
// compositor.
type Shell interface {
	// Lock is called when the compositor falls asleep.
	Lock()

	// Attach is called after a new buffer has been attached to s.
	Attach(s *Surface)

	// Map is called after s has changed map state.
	Map(s *Surface)
}

// Loop provides the timers that drive the compositor.
type Loop interface {
	AddTimer(f func()) loop.Timer
	Terminate()
}
