package compositor

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"slices"

	"deedles.dev/wlcomp/internal/set"
	"deedles.dev/wlcomp/matrix"
)

// MapType is the map state of a surface.
type MapType int

const (
	Unmapped MapType = iota
	Toplevel
	Transient
	Fullscreen
)

func (m MapType) String() string {
	switch m {
	case Unmapped:
		return "unmapped"
	case Toplevel:
		return "toplevel"
	case Transient:
		return "transient"
	case Fullscreen:
		return "fullscreen"
	default:
		return fmt.Sprintf("MapType(%d)", int(m))
	}
}

const (
	defaultPlacementMin   = 10
	defaultPlacementRange = 400

	// transformEpsilon absorbs rounding error when mapping a point
	// through an inverse matrix so that exact pixel positions do not
	// land just below an integer.
	transformEpsilon = 1e-6
)

// Surface is a rectangle of client or compositor pixels placed in the
// global coordinate space.
type Surface struct {
	id     SurfaceID
	c      *Compositor
	client Client

	x, y          int
	width, height int
	pitch         int
	savedX        int
	savedY        int

	matrix  matrix.Matrix
	inverse matrix.Matrix

	mapType          MapType
	output           *Output
	fullscreenOutput *Output

	texture      Texture
	savedTexture Texture
	visual       Visual
	buffer       Buffer

	destroy event[uint32]
}

func (s *Surface) ID() SurfaceID         { return s.id }
func (s *Surface) Client() Client        { return s.client }
func (s *Surface) MapType() MapType      { return s.mapType }
func (s *Surface) Visual() Visual        { return s.visual }
func (s *Surface) Texture() Texture      { return s.texture }
func (s *Surface) Pitch() int            { return s.pitch }
func (s *Surface) Matrix() matrix.Matrix { return s.matrix }

// Inverse returns the matrix mapping global coordinates into the unit
// square of the surface.
func (s *Surface) Inverse() matrix.Matrix { return s.inverse }

// Output returns the output that the surface's origin is on, or nil.
func (s *Surface) Output() *Output { return s.output }

// FullscreenOutput returns the output that the surface is fullscreen
// on, or nil.
func (s *Surface) FullscreenOutput() *Output { return s.fullscreenOutput }

// Bounds returns the surface's rectangle in global coordinates.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(s.x, s.y, s.x+s.width, s.y+s.height)
}

// OnDestroy registers f to be called with the destruction time when
// the surface is destroyed.
func (s *Surface) OnDestroy(f func(time uint32)) Token {
	return s.destroy.subscribe(f)
}

// RemoveDestroyListener undoes a previous call to OnDestroy.
func (s *Surface) RemoveDestroyListener(t Token) {
	s.destroy.unsubscribe(t)
}

// Transform converts the global point (x, y) into surface-local
// coordinates.
func (s *Surface) Transform(x, y int) (sx, sy int) {
	v := s.inverse.Transform(matrix.Point(float64(x), float64(y)))
	sx = int(math.Floor(v[0]*float64(s.width) + transformEpsilon))
	sy = int(math.Floor(v[1]*float64(s.height) + transformEpsilon))
	return sx, sy
}

func (s *Surface) updateMatrix() {
	s.matrix = matrix.Identity().
		Scale(float64(s.width), float64(s.height), 1).
		Translate(float64(s.x), float64(s.y), 0)

	if (s.width <= 0) || (s.height <= 0) {
		s.inverse = matrix.Matrix{}
		return
	}
	s.inverse = matrix.Identity().
		Translate(float64(-s.x), float64(-s.y), 0).
		Scale(1/float64(s.width), 1/float64(s.height), 1)
}

func (s *Surface) damageRect(x, y, w, h int) {
	if (w <= 0) || (h <= 0) {
		return
	}
	s.c.DamageRect(image.Rect(s.x+x, s.y+y, s.x+x+w, s.y+y+h))
}

func (s *Surface) damageAll() {
	s.damageRect(0, 0, s.width, s.height)
}

// Sprite is a compositor-owned image, such as a pointer image or an
// output background, that surfaces can display in place of a buffer.
type Sprite struct {
	Texture Texture
	Size    image.Point
	Visual  Visual
	Hotspot image.Point
}

func (c *Compositor) newSprite(img image.Image, hotspot image.Point) (*Sprite, error) {
	tex, err := c.renderer.NewSprite(img)
	if err != nil {
		return nil, err
	}

	return &Sprite{
		Texture: tex,
		Size:    img.Bounds().Size(),
		Visual:  VisualPremultiplied,
		Hotspot: hotspot,
	}, nil
}

// Surface returns the surface referred to by id, or nil if it has been
// destroyed.
func (c *Compositor) Surface(id SurfaceID) *Surface {
	return c.surfaces.get(id)
}

// Surfaces returns the mapped surfaces in paint order, topmost first.
func (c *Compositor) Surfaces() []SurfaceID {
	return slices.Clone(c.paint)
}

func (c *Compositor) lookup(id SurfaceID) (*Surface, error) {
	s := c.surfaces.get(id)
	if s == nil {
		return nil, fmt.Errorf("%v: %w", id, ErrStaleSurface)
	}
	return s, nil
}

func (c *Compositor) createSurface(client Client, r image.Rectangle) (*Surface, error) {
	tex, err := c.renderer.NewTexture()
	if err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}

	s := Surface{
		c:       c,
		client:  client,
		x:       r.Min.X,
		y:       r.Min.Y,
		width:   r.Dx(),
		height:  r.Dy(),
		texture: tex,
	}
	s.updateMatrix()
	c.surfaces.insert(&s)

	return &s, nil
}

// CreateSurface creates an unmapped, empty surface owned by client. An
// error means that no more surfaces can be created and should be
// reported to the client as an out-of-memory condition.
func (c *Compositor) CreateSurface(client Client) (SurfaceID, error) {
	s, err := c.createSurface(client, image.Rectangle{})
	if err != nil {
		return SurfaceID{}, err
	}
	return s.id, nil
}

// DestroySurface destroys the surface referred to by id and notifies
// its destroy listeners.
func (c *Compositor) DestroySurface(id SurfaceID) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	c.destroySurface(s)
	return nil
}

func (c *Compositor) destroySurface(s *Surface) {
	if s == nil {
		return
	}

	s.damageAll()

	c.paint = slices.DeleteFunc(c.paint, func(id SurfaceID) bool { return id == s.id })
	if c.overlay == s.id {
		c.overlay = SurfaceID{}
	}
	c.detachBuffer(s)

	tex := s.texture
	if s.savedTexture != nil {
		tex = s.savedTexture
	}
	c.renderer.DestroyTexture(tex)

	for _, dev := range c.devices {
		dev.forget(s.id)
	}

	s.destroy.emit(c.Time())
	c.surfaces.remove(s.id)
}

// MapToplevel maps the surface as an ordinary window.
func (c *Compositor) MapToplevel(id SurfaceID) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}

	switch s.mapType {
	case Unmapped:
		if len(c.outputs) == 0 {
			return ErrNoOutputs
		}
		s.x, s.y = c.defaultPosition()
		s.updateMatrix()
		s.output = c.outputs[0]
		c.paint = slices.Insert(c.paint, 0, s.id)

	case Toplevel:
		return nil

	case Fullscreen:
		s.fullscreenOutput = nil
		s.x, s.y = s.savedX, s.savedY
		s.updateMatrix()
	}

	s.damageAll()
	s.mapType = Toplevel
	c.shell.Map(s)
	return nil
}

// MapTransient maps the surface relative to parent, offset by (dx, dy).
func (c *Compositor) MapTransient(id, parent SurfaceID, dx, dy int) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	p, err := c.lookup(parent)
	if err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if s == p {
		return errors.New("surface cannot be its own parent")
	}

	switch s.mapType {
	case Unmapped:
		c.paint = slices.Insert(c.paint, 0, s.id)
		s.output = p.output
	case Fullscreen:
		s.fullscreenOutput = nil
	}

	s.x = p.x + dx
	s.y = p.y + dy
	s.updateMatrix()
	s.damageAll()
	s.mapType = Transient
	c.shell.Map(s)
	return nil
}

// MapFullscreen maps the surface centered on the first output.
func (c *Compositor) MapFullscreen(id SurfaceID) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	if len(c.outputs) == 0 {
		return ErrNoOutputs
	}
	out := c.outputs[0]

	switch s.mapType {
	case Unmapped:
		s.x, s.y = c.defaultPosition()
		s.output = out
		c.paint = slices.Insert(c.paint, 0, s.id)
	case Fullscreen:
		return nil
	}

	s.savedX, s.savedY = s.x, s.y
	s.fullscreenOutput = out
	s.center()
	s.updateMatrix()
	s.damageAll()
	s.mapType = Fullscreen
	c.shell.Map(s)
	return nil
}

func (c *Compositor) defaultPosition() (x, y int) {
	intn := func(n int) int {
		if c.rand != nil {
			return c.rand.IntN(n)
		}
		return rand.IntN(n)
	}
	return defaultPlacementMin + intn(defaultPlacementRange), defaultPlacementMin + intn(defaultPlacementRange)
}

// center positions s in the middle of its fullscreen output.
func (s *Surface) center() {
	out := s.fullscreenOutput
	s.x = out.x + (out.width-s.width)/2
	s.y = out.y + (out.height-s.height)/2
}

// Attach makes buf the surface's content. The surface is resized to
// the buffer's size and moved by (dx, dy), unless it is fullscreen, in
// which case it is recentered.
func (c *Compositor) Attach(id SurfaceID, buf Buffer, dx, dy int) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	if buf == nil {
		return errors.New("attach nil buffer")
	}

	s.damageAll()

	err = c.attachBuffer(s, buf)
	if err != nil {
		return fmt.Errorf("attach buffer: %w", err)
	}

	size := buf.Size()
	s.width, s.height = size.X, size.Y

	switch {
	case (s.mapType == Fullscreen) && (s.fullscreenOutput != nil):
		s.center()
	default:
		s.x += dx
		s.y += dy
	}
	if (dx != 0) || (dy != 0) {
		c.assignOutput(s)
	}
	s.updateMatrix()

	c.shell.Attach(s)
	return nil
}

func (c *Compositor) attachBuffer(s *Surface, buf Buffer) error {
	if s.savedTexture != nil {
		s.texture = s.savedTexture
		s.savedTexture = nil
	}

	if shm, ok := buf.(ShmBuffer); ok {
		err := c.renderer.Upload(s.texture, shm)
		if err != nil {
			return err
		}
		s.pitch = shm.Stride() / 4
		s.visual = shm.Visual()

		c.detachBuffer(s)
		attached, ok := c.attachments[buf]
		if !ok {
			attached = set.New[SurfaceID]()
			c.attachments[buf] = attached
		}
		attached.Add(s.id)
		s.buffer = buf
		return nil
	}

	err := c.renderer.Import(s.texture, buf)
	if err != nil {
		return err
	}
	c.detachBuffer(s)
	s.visual = buf.Visual()
	s.pitch = buf.Size().X
	return nil
}

func (c *Compositor) detachBuffer(s *Surface) {
	if s.buffer == nil {
		return
	}
	if attached, ok := c.attachments[s.buffer]; ok {
		attached.Remove(s.id)
	}
	s.buffer = nil
}

// attachSprite makes s display sprite, stretched to the surface's
// current size, until a buffer is next attached.
func (c *Compositor) attachSprite(s *Surface, sprite *Sprite) {
	c.detachBuffer(s)

	if s.savedTexture == nil {
		s.savedTexture = s.texture
	}
	if sprite == nil {
		s.texture = nil
		s.pitch = 0
		s.visual = VisualPremultiplied
		return
	}

	s.texture = sprite.Texture
	s.pitch = s.width
	s.visual = sprite.Visual
}

// assignOutput sets the surface's output to the first output whose
// interior contains the surface's origin, falling back to the first
// output.
func (c *Compositor) assignOutput(s *Surface) {
	prev := s.output
	s.output = nil

	for _, out := range c.outputs {
		if (out.x < s.x) && (s.x < out.x+out.width) &&
			(out.y < s.y) && (s.y < out.y+out.height) {
			s.output = out
			break
		}
	}

	if s.output == nil {
		c.log.Debug("no output contains surface origin", "surface", s.id)
		if len(c.outputs) > 0 {
			s.output = c.outputs[0]
		}
	}

	if s.output != prev {
		c.log.Debug("assigned surface to output", "surface", s.id, "output", s.output)
	}
}

// DamageSurface marks the rectangle (x, y, w, h), relative to the
// surface's origin, as needing to be repainted.
func (c *Compositor) DamageSurface(id SurfaceID, x, y, w, h int) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	s.damageRect(x, y, w, h)
	return nil
}

// Raise moves the surface to the top of the paint order.
func (c *Compositor) Raise(id SurfaceID) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	c.raise(s)
	return nil
}

func (c *Compositor) raise(s *Surface) {
	i := slices.Index(c.paint, s.id)
	if i < 0 {
		return
	}
	c.paint = slices.Delete(c.paint, i, i+1)
	c.paint = slices.Insert(c.paint, 0, s.id)
}

// Activate raises the surface and gives it dev's keyboard focus.
func (c *Compositor) Activate(id SurfaceID, dev *InputDevice, time uint32) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	c.activate(s, dev, time)
	return nil
}

func (c *Compositor) activate(s *Surface, dev *InputDevice, time uint32) {
	c.raise(s)
	dev.setKeyboardFocus(s, time)
}

// SetOverlay makes the surface referred to by id be drawn above every
// other surface. The zero SurfaceID removes the overlay.
func (c *Compositor) SetOverlay(id SurfaceID) {
	c.overlay = id
	c.DamageAll()
}

// PickSurface returns the topmost surface containing the global point
// (x, y) along with the point in that surface's coordinates, or nil if
// no surface contains the point.
func (c *Compositor) PickSurface(x, y int) (s *Surface, sx, sy int) {
	for _, id := range c.paint {
		s := c.surfaces.get(id)
		if (s == nil) || (s.width <= 0) || (s.height <= 0) {
			continue
		}

		sx, sy := s.Transform(x, y)
		if (0 <= sx) && (sx < s.width) && (0 <= sy) && (sy < s.height) {
			return s, sx, sy
		}
	}
	return nil, 0, 0
}

func (c *Compositor) top() *Surface {
	if len(c.paint) == 0 {
		return nil
	}
	return c.surfaces.get(c.paint[0])
}

// BufferCreated starts tracking the surfaces that buf is attached to.
func (c *Compositor) BufferCreated(buf ShmBuffer) {
	c.attachments[buf] = set.New[SurfaceID]()
}

// BufferDamaged uploads the new contents of buf to every surface that
// it is attached to.
func (c *Compositor) BufferDamaged(buf ShmBuffer, x, y, w, h int) {
	for id := range c.attachments[buf] {
		s := c.surfaces.get(id)
		if s == nil {
			continue
		}
		err := c.renderer.Upload(s.texture, buf)
		if err != nil {
			c.log.Error("upload damaged buffer", "surface", id, "err", err)
		}
	}
}

// BufferDestroyed detaches buf from every surface that it is attached
// to. The surfaces keep displaying their last uploaded contents.
func (c *Compositor) BufferDestroyed(buf ShmBuffer) {
	for id := range c.attachments[buf] {
		if s := c.surfaces.get(id); s != nil {
			s.buffer = nil
		}
	}
	delete(c.attachments, buf)
}
