package compositor

import (
	"fmt"
	"image"
	"slices"

	"deedles.dev/wlcomp/matrix"
	"deedles.dev/wlcomp/region"
)

// Output is a screen, or a window acting as one, that the compositor
// paints into.
type Output struct {
	c    *Compositor
	name string

	x, y          int
	width, height int
	flipped       bool

	matrix     matrix.Matrix
	background SurfaceID

	previousDamage region.Region
	finished       bool
	repaintNeeded  bool
}

// AddOutput creates a new output covering r. If flipped is true, the
// output's y axis points up, as it does for some GL framebuffers.
func (c *Compositor) AddOutput(name string, r image.Rectangle, flipped bool) (*Output, error) {
	r = r.Canon()
	if r.Empty() {
		return nil, fmt.Errorf("output %q has empty geometry %v", name, r)
	}

	out := Output{
		c:        c,
		name:     name,
		x:        r.Min.X,
		y:        r.Min.Y,
		width:    r.Dx(),
		height:   r.Dy(),
		flipped:  flipped,
		finished: true,
	}

	if c.background != nil {
		bg, err := c.createSurface(nil, r)
		if err != nil {
			return nil, fmt.Errorf("create background surface: %w", err)
		}
		c.attachSprite(bg, c.background)
		out.background = bg.id
	}

	c.outputs = append(c.outputs, &out)
	out.Move(r.Min.X, r.Min.Y)

	c.log.Info("added output", "output", &out)
	return &out, nil
}

// RemoveOutput destroys out. Surfaces that were on it move to the
// remaining outputs.
func (c *Compositor) RemoveOutput(out *Output) {
	i := slices.Index(c.outputs, out)
	if i < 0 {
		return
	}
	c.outputs = slices.Delete(c.outputs, i, i+1)
	c.destroySurface(c.surfaces.get(out.background))
	out.background = SurfaceID{}

	for _, id := range c.paint {
		s := c.surfaces.get(id)
		if s == nil {
			continue
		}
		if s.fullscreenOutput == out {
			s.fullscreenOutput = nil
			if len(c.outputs) > 0 {
				s.fullscreenOutput = c.outputs[0]
				s.center()
				s.updateMatrix()
			}
		}
		if s.output == out {
			c.assignOutput(s)
		}
	}

	c.DamageAll()
}

// Outputs returns every output, in the order they were added.
func (c *Compositor) Outputs() []*Output {
	return slices.Clone(c.outputs)
}

func (out *Output) String() string {
	return fmt.Sprintf("%v %v", out.name, out.Bounds())
}

func (out *Output) Name() string { return out.name }

// Bounds returns the output's rectangle in global coordinates.
func (out *Output) Bounds() image.Rectangle {
	return image.Rect(out.x, out.y, out.x+out.width, out.y+out.height)
}

func (out *Output) Flipped() bool { return out.flipped }

// Matrix returns the orthographic projection mapping the output's
// rectangle onto normalized device coordinates.
func (out *Output) Matrix() matrix.Matrix { return out.matrix }

// Background returns the output's background surface, or nil.
func (out *Output) Background() *Surface {
	return out.c.surfaces.get(out.background)
}

// PreviousDamage returns the damage painted in the previous frame.
func (out *Output) PreviousDamage() region.Region { return out.previousDamage }

// Finished reports whether the previous frame has been presented.
func (out *Output) Finished() bool { return out.finished }

// RepaintNeeded reports whether the output is waiting to be repainted.
func (out *Output) RepaintNeeded() bool { return out.repaintNeeded }

// Move places the output's origin at (x, y) in the global coordinate
// space and damages its new area.
func (out *Output) Move(x, y int) {
	out.x, out.y = x, y

	if bg := out.Background(); bg != nil {
		bg.x, bg.y = x, y
		bg.width, bg.height = out.width, out.height
		bg.updateMatrix()
	}

	out.previousDamage = region.Region{}

	flip := 1.0
	if out.flipped {
		flip = -1
	}
	out.matrix = matrix.Identity().
		Translate(-float64(out.x)-float64(out.width)/2, -float64(out.y)-float64(out.height)/2, 0).
		Scale(2/float64(out.width), flip*2/float64(out.height), 1)

	out.Damage()
}

// Damage marks the whole output as needing to be repainted.
func (out *Output) Damage() {
	out.c.DamageRect(out.Bounds())
}
