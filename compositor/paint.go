package compositor

import (
	"image"
	"image/color"

	"deedles.dev/wlcomp/region"
)

// Blend selects how a draw operation is combined with what is already
// in the framebuffer.
type Blend int

const (
	// BlendNone replaces the destination.
	BlendNone Blend = iota
	// BlendAlpha blends straight-alpha sources.
	BlendAlpha
	// BlendPremultiplied blends premultiplied-alpha sources.
	BlendPremultiplied
)

// BlendFor returns the blend mode used to draw surfaces of visual v.
func BlendFor(v Visual) Blend {
	switch v {
	case VisualARGB:
		return BlendAlpha
	case VisualPremultiplied:
		return BlendPremultiplied
	default:
		return BlendNone
	}
}

// OpKind is the type of a DrawOp.
type OpKind int

const (
	// OpTexture draws quads sampled from a texture.
	OpTexture OpKind = iota
	// OpSolid fills quads with a color.
	OpSolid
	// OpClear clears the whole framebuffer to transparent black.
	OpClear
)

// Quad is a screen-space rectangle and the texture coordinates of its
// corners. Texture coordinates are normalized so that (1, 1) is the
// bottom-right corner of the texture.
type Quad struct {
	Rect           image.Rectangle
	U0, V0, U1, V1 float64
}

// DrawOp is a single draw call. A compositing pass produces one per
// visible surface, with one quad per damaged rectangle of it.
type DrawOp struct {
	Kind    OpKind
	Blend   Blend
	Surface SurfaceID
	Texture Texture

	// Color is the premultiplied fill color of an OpSolid.
	Color color.RGBA64

	Quads []Quad
}

// painter accumulates the draw operations for one output.
type painter struct {
	ops []DrawOp
}

func (p *painter) clear() {
	p.ops = append(p.ops, DrawOp{Kind: OpClear})
}

func (p *painter) surface(s *Surface, clip region.Region) {
	if (s == nil) || (s.texture == nil) || (s.pitch <= 0) || (s.height <= 0) {
		return
	}

	repaint := clip.IntersectRect(s.Bounds())
	if repaint.Empty() {
		return
	}

	rects := repaint.Rects()
	quads := make([]Quad, 0, len(rects))
	invWidth := 1 / float64(s.pitch)
	invHeight := 1 / float64(s.height)
	for _, r := range rects {
		quads = append(quads, Quad{
			Rect: r,
			U0:   float64(r.Min.X-s.x) * invWidth,
			V0:   float64(r.Min.Y-s.y) * invHeight,
			U1:   float64(r.Max.X-s.x) * invWidth,
			V1:   float64(r.Max.Y-s.y) * invHeight,
		})
	}

	p.ops = append(p.ops, DrawOp{
		Kind:    OpTexture,
		Blend:   BlendFor(s.visual),
		Surface: s.id,
		Texture: s.texture,
		Quads:   quads,
	})
}

func (p *painter) solid(r image.Rectangle, c color.RGBA64, blend Blend, clip region.Region) {
	repaint := clip.IntersectRect(r)
	if repaint.Empty() {
		return
	}

	rects := repaint.Rects()
	quads := make([]Quad, 0, len(rects))
	for _, r := range rects {
		quads = append(quads, Quad{Rect: r})
	}

	p.ops = append(p.ops, DrawOp{
		Kind:  OpSolid,
		Blend: blend,
		Color: c,
		Quads: quads,
	})
}

// fadeColor returns the fade color with its alpha scaled by tint.
func (c *Compositor) fadeColor(tint float64) color.RGBA64 {
	r, g, b, a := c.fade.color.RGBA()
	scale := func(v uint32) uint16 {
		return uint16(float64(v) * min(max(tint, 0), 1))
	}
	return color.RGBA64{R: scale(r), G: scale(g), B: scale(b), A: scale(a)}
}

func (c *Compositor) fadeOutput(p *painter, out *Output, tint float64, clip region.Region) {
	p.solid(out.Bounds(), c.fadeColor(tint), BlendPremultiplied, clip)
}

// repaintOutput runs the compositing pass for out and hands the
// resulting draw operations to the renderer.
func (c *Compositor) repaintOutput(out *Output) {
	err := c.backend.PrepareRender(out)
	if err != nil {
		c.log.Error("prepare render", "output", out, "err", err)
		return
	}

	ops, ok := c.composite(out)
	if !ok {
		return
	}

	err = c.renderer.Render(out, ops)
	if err != nil {
		c.log.Error("render", "output", out, "err", err)
	}
}

// composite computes the draw operations for out. It returns false if
// the output is being scanned out directly and nothing needs to be
// drawn.
func (c *Compositor) composite(out *Output) ([]DrawOp, bool) {
	newDamage := c.damage.IntersectRect(out.Bounds())
	c.damage = c.damage.Subtract(newDamage)
	total := newDamage.Union(out.previousDamage)
	out.previousDamage = newDamage

	hardwareCursor := true
	if c.focus && (len(c.devices) > 0) {
		err := c.backend.SetHardwareCursor(out, c.devices[0])
		if err != nil {
			hardwareCursor = false
		}
	}
	if c.fade.tweener.Current > fadeEpsilon {
		hardwareCursor = false
	}

	var p painter
	if top := c.top(); (top != nil) && (top.fullscreenOutput == out) {
		if (top.visual == VisualOpaque) && hardwareCursor {
			err := c.backend.PrepareScanoutSurface(out, top)
			if err == nil {
				// Nothing is drawn, so the damage stays pending for
				// the frame that composites again.
				c.damage = c.damage.Union(total)
				return nil, false
			}
		}

		if (top.width < out.width) || (top.height < out.height) {
			p.clear()
		}
		p.surface(top, total)
	} else {
		damage := total

		for _, id := range c.paint {
			s := c.surfaces.get(id)
			if s.visual != VisualOpaque {
				continue
			}
			p.surface(s, total)
			total = total.SubtractRect(s.Bounds())
		}

		if bg := out.Background(); bg != nil {
			p.surface(bg, total)
		} else {
			c.fadeOutput(&p, out, 1, total)
		}

		// above[i] is the area covered by opaque surfaces in front of
		// c.paint[i].
		above := make([]region.Region, len(c.paint))
		var covered region.Region
		for i, id := range c.paint {
			above[i] = covered
			if s := c.surfaces.get(id); s.visual == VisualOpaque {
				covered = covered.UnionRect(s.Bounds())
			}
		}

		for i := len(c.paint) - 1; i >= 0; i-- {
			s := c.surfaces.get(c.paint[i])
			if s.id == c.overlay {
				continue
			}

			if s.visual == VisualOpaque {
				// Anything translucent above this surface must be
				// blended over it.
				total = total.Union(damage.IntersectRect(s.Bounds()))
				continue
			}
			p.surface(s, total.Subtract(above[i]))
		}
	}

	if overlay := c.surfaces.get(c.overlay); overlay != nil {
		p.surface(overlay, total)
	}

	if c.focus {
		for i, dev := range c.devices {
			if (i != 0) || !hardwareCursor {
				p.surface(c.surfaces.get(dev.sprite), total)
			}
		}
	}

	if c.fade.tweener.Current > fadeEpsilon {
		c.fadeOutput(&p, out, c.fade.tweener.Current, total)
	}

	return p.ops, true
}
