// Package render implements a software renderer for the compositor.
//
// Textures are kept as premultiplied RGBA images. Each output gets its
// own framebuffer, in output-local coordinates, that the draw
// operations of a compositing pass are executed against.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"

	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/internal/set"
	"deedles.dev/ximage"
	"golang.org/x/image/draw"
)

// texelEpsilon absorbs rounding in texture coordinates so that a
// coordinate that lands exactly on a texel edge is not widened by one.
const texelEpsilon = 1e-6

// ErrNoFramebuffer is returned when an output has not been rendered to.
var ErrNoFramebuffer = errors.New("no framebuffer")

// Texture is the renderer's implementation of compositor.Texture.
type Texture struct {
	img *image.RGBA
}

func (t *Texture) Bounds() image.Rectangle {
	if t.img == nil {
		return image.Rectangle{}
	}
	return t.img.Bounds()
}

// Image returns the texture's contents, or nil if it is empty.
func (t *Texture) Image() *image.RGBA {
	return t.img
}

// resize makes sure that the texture is exactly size texels.
func (t *Texture) resize(size image.Point) {
	if (t.img != nil) && (t.img.Bounds().Size() == size) {
		return
	}
	t.img = image.NewRGBA(image.Rectangle{Max: size})
}

// Renderer is a software compositor.Renderer.
type Renderer struct {
	// Scaler is used for texture quads that are not drawn at their
	// natural size, such as stretched backgrounds and pointer sprites.
	Scaler draw.Scaler

	log          *slog.Logger
	textures     set.Set[*Texture]
	framebuffers map[*compositor.Output]*image.RGBA
}

// New returns a new Renderer. If log is nil, nothing is logged.
func New(log *slog.Logger) *Renderer {
	return &Renderer{
		Scaler:       draw.ApproxBiLinear,
		log:          debug.Logger(log),
		textures:     set.New[*Texture](),
		framebuffers: make(map[*compositor.Output]*image.RGBA),
	}
}

// Textures returns the number of live textures.
func (r *Renderer) Textures() int {
	return len(r.textures)
}

func (r *Renderer) texture(tex compositor.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || !r.textures.Has(t) {
		return nil, fmt.Errorf("texture %v does not belong to this renderer", tex)
	}
	return t, nil
}

func (r *Renderer) NewTexture() (compositor.Texture, error) {
	t := &Texture{}
	r.textures.Add(t)
	return t, nil
}

func (r *Renderer) NewSprite(img image.Image) (compositor.Texture, error) {
	b := img.Bounds()
	t := &Texture{img: image.NewRGBA(image.Rectangle{Max: b.Size()})}
	draw.Draw(t.img, t.img.Bounds(), img, b.Min, draw.Src)

	r.textures.Add(t)
	return t, nil
}

func (r *Renderer) DestroyTexture(tex compositor.Texture) {
	t, ok := tex.(*Texture)
	if !ok {
		return
	}
	r.textures.Remove(t)
	t.img = nil
}

func (r *Renderer) Upload(tex compositor.Texture, buf compositor.ShmBuffer) error {
	t, err := r.texture(tex)
	if err != nil {
		return err
	}

	stride := buf.Stride()
	size := image.Pt(stride/4, buf.Size().Y)
	data := buf.Data()
	if len(data) < stride*size.Y {
		return fmt.Errorf("buffer holds %v bytes, need %v", len(data), stride*size.Y)
	}
	data = data[:stride*size.Y]

	t.resize(size)
	switch buf.Visual() {
	case compositor.VisualPremultiplied:
		src := ximage.FormatImage{
			Format: ximage.ARGB8888,
			Rect:   image.Rectangle{Max: size},
			Pix:    data,
		}
		draw.Draw(t.img, t.img.Bounds(), &src, image.Point{}, draw.Src)
	case compositor.VisualARGB:
		convertARGB(t.img, data, premultiply)
	default:
		convertARGB(t.img, data, opaque)
	}

	return nil
}

// Import copies buffers that can provide their contents as an image.
// Anything else is unsupported.
func (r *Renderer) Import(tex compositor.Texture, buf compositor.Buffer) error {
	t, err := r.texture(tex)
	if err != nil {
		return err
	}

	src, ok := buf.(interface{ Image() image.Image })
	if !ok {
		return compositor.ErrUnsupported
	}

	img := src.Image()
	t.resize(img.Bounds().Size())
	draw.Draw(t.img, t.img.Bounds(), img, img.Bounds().Min, draw.Src)
	return nil
}

func (r *Renderer) framebuffer(out *compositor.Output) *image.RGBA {
	size := out.Bounds().Size()
	fb, ok := r.framebuffers[out]
	if !ok || (fb.Bounds().Size() != size) {
		fb = image.NewRGBA(image.Rectangle{Max: size})
		r.framebuffers[out] = fb
	}
	return fb
}

// Render executes ops against the framebuffer of out.
func (r *Renderer) Render(out *compositor.Output, ops []compositor.DrawOp) error {
	fb := r.framebuffer(out)
	origin := out.Bounds().Min

	for i, op := range ops {
		switch op.Kind {
		case compositor.OpClear:
			draw.Draw(fb, fb.Bounds(), image.Transparent, image.Point{}, draw.Src)

		case compositor.OpSolid:
			src := image.NewUniform(op.Color)
			for _, q := range op.Quads {
				draw.Draw(fb, q.Rect.Sub(origin), src, image.Point{}, drawOp(op.Blend))
			}

		case compositor.OpTexture:
			t, err := r.texture(op.Texture)
			if err != nil {
				return fmt.Errorf("op %v: %w", i, err)
			}
			if t.img == nil {
				r.log.Debug("skipping empty texture", "surface", op.Surface)
				continue
			}
			for _, q := range op.Quads {
				r.drawQuad(fb, q.Rect.Sub(origin), t.img, q, drawOp(op.Blend))
			}

		default:
			return fmt.Errorf("op %v: unknown kind %v", i, op.Kind)
		}
	}

	return nil
}

func (r *Renderer) drawQuad(dst *image.RGBA, dr image.Rectangle, src *image.RGBA, q compositor.Quad, op draw.Op) {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	sr := image.Rect(
		int(math.Floor(q.U0*w+texelEpsilon)),
		int(math.Floor(q.V0*h+texelEpsilon)),
		int(math.Ceil(q.U1*w-texelEpsilon)),
		int(math.Ceil(q.V1*h-texelEpsilon)),
	).Intersect(b)
	if sr.Empty() || dr.Empty() {
		return
	}

	if sr.Size() == dr.Size() {
		draw.Draw(dst, dr, src, sr.Min, op)
		return
	}
	r.Scaler.Scale(dst, dr, src, sr, op, nil)
}

func drawOp(b compositor.Blend) draw.Op {
	if b == compositor.BlendNone {
		return draw.Src
	}
	return draw.Over
}

// Framebuffer returns the last frame rendered for out.
func (r *Renderer) Framebuffer(out *compositor.Output) (*image.RGBA, bool) {
	fb, ok := r.framebuffers[out]
	return fb, ok
}

// RemoveOutput frees the framebuffer of out.
func (r *Renderer) RemoveOutput(out *compositor.Output) {
	delete(r.framebuffers, out)
}

// Screenshot writes the last frame rendered for out to w as a PNG.
func (r *Renderer) Screenshot(w io.Writer, out *compositor.Output) error {
	fb, ok := r.Framebuffer(out)
	if !ok {
		return fmt.Errorf("%v: %w", out, ErrNoFramebuffer)
	}

	err := png.Encode(w, fb)
	if err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}
