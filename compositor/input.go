package compositor

import (
	"fmt"
	"image"
	"math"
	"slices"

	"deedles.dev/wlcomp/input"
)

const defaultSpriteSize = 32

// Grab takes over pointer event delivery from the normal focus rules
// while it is active.
type Grab interface {
	Motion(dev *InputDevice, time uint32, x, y int)
	Button(dev *InputDevice, time uint32, button input.Button, pressed bool)
	End(dev *InputDevice, time uint32)
}

// InputDevice is a seat: a pointer and a keyboard that share focus
// rules and a cursor.
type InputDevice struct {
	c *Compositor

	x, y int

	pointerFocus      SurfaceID
	pointerFocusTime  uint32
	keyboardFocus     SurfaceID
	keyboardFocusTime uint32

	keys      []input.Key
	modifiers input.Modifier

	grab       Grab
	grabButton input.Button
	grabTime   uint32

	sprite  SurfaceID
	hotspot image.Point
}

// AddInputDevice creates a new input device with its pointer at the
// global origin showing the default pointer image.
func (c *Compositor) AddInputDevice() (*InputDevice, error) {
	dev := InputDevice{
		c:       c,
		hotspot: image.Pt(defaultSpriteSize/2, defaultSpriteSize/2),
	}

	sprite, err := c.createSurface(nil, image.Rect(0, 0, defaultSpriteSize, defaultSpriteSize))
	if err != nil {
		return nil, fmt.Errorf("create sprite surface: %w", err)
	}
	dev.sprite = sprite.id

	c.devices = append(c.devices, &dev)
	dev.SetPointerImage(PointerLeftPtr)

	return &dev, nil
}

// InputDevices returns every input device. The first one is the device
// whose cursor may be shown using a hardware cursor.
func (c *Compositor) InputDevices() []*InputDevice {
	return slices.Clone(c.devices)
}

// Position returns the pointer position in global coordinates.
func (dev *InputDevice) Position() image.Point {
	return image.Pt(dev.x, dev.y)
}

// PointerFocus returns the surface under the pointer, or nil.
func (dev *InputDevice) PointerFocus() *Surface {
	return dev.c.surfaces.get(dev.pointerFocus)
}

// PointerFocusTime returns the time of the last pointer focus change.
func (dev *InputDevice) PointerFocusTime() uint32 {
	return dev.pointerFocusTime
}

// KeyboardFocus returns the surface receiving key events, or nil.
func (dev *InputDevice) KeyboardFocus() *Surface {
	return dev.c.surfaces.get(dev.keyboardFocus)
}

// Keys returns the currently held keys in no particular order.
func (dev *InputDevice) Keys() []input.Key {
	return slices.Clone(dev.keys)
}

func (dev *InputDevice) Modifiers() input.Modifier { return dev.modifiers }

// Grab returns the active grab, or nil.
func (dev *InputDevice) Grab() Grab { return dev.grab }

// Sprite returns the surface that displays the device's cursor.
func (dev *InputDevice) Sprite() *Surface {
	return dev.c.surfaces.get(dev.sprite)
}

func (dev *InputDevice) Hotspot() image.Point { return dev.hotspot }

// StartGrab makes g receive all pointer events until the grab ends.
// The grab ends automatically when button is released.
func (dev *InputDevice) StartGrab(g Grab, button input.Button, time uint32) {
	dev.grab = g
	dev.grabButton = button
	dev.grabTime = time
}

// EndGrab ends the active grab, if any.
func (dev *InputDevice) EndGrab(time uint32) {
	g := dev.grab
	if g == nil {
		return
	}
	dev.grab = nil
	g.End(dev, time)
}

// forget drops every reference that dev holds to the surface id, which
// is being destroyed.
func (dev *InputDevice) forget(id SurfaceID) {
	if dev.pointerFocus == id {
		dev.pointerFocus = SurfaceID{}
	}
	if dev.keyboardFocus == id {
		dev.keyboardFocus = SurfaceID{}
	}
}

func (dev *InputDevice) setPointerFocus(s *Surface, time uint32, x, y, sx, sy int) {
	var id SurfaceID
	if s != nil {
		id = s.id
	}
	if dev.pointerFocus == id {
		return
	}

	old := dev.PointerFocus()
	if (old != nil) && (old.client != nil) && ((s == nil) || (old.client != s.client)) {
		old.client.PointerFocus(dev, time, nil, 0, 0, 0, 0)
	}
	if (s != nil) && (s.client != nil) {
		s.client.PointerFocus(dev, time, s, x, y, sx, sy)
	}

	dev.pointerFocus = id
	dev.pointerFocusTime = time
}

func (dev *InputDevice) setKeyboardFocus(s *Surface, time uint32) {
	var id SurfaceID
	if s != nil {
		id = s.id
	}
	if dev.keyboardFocus == id {
		return
	}

	old := dev.KeyboardFocus()
	if (old != nil) && (old.client != nil) && ((s == nil) || (old.client != s.client)) {
		old.client.KeyboardFocus(dev, time, nil, nil)
	}
	if (s != nil) && (s.client != nil) {
		s.client.KeyboardFocus(dev, time, s, dev.Keys())
	}

	dev.keyboardFocus = id
	dev.keyboardFocusTime = time
}

// moveSprite places the cursor sprite so that its hotspot is under the
// pointer.
func (dev *InputDevice) moveSprite() {
	sprite := dev.Sprite()
	sprite.x = dev.x - dev.hotspot.X
	sprite.y = dev.y - dev.hotspot.Y
	sprite.updateMatrix()
}

func (dev *InputDevice) attach(hotspot, size image.Point) {
	sprite := dev.Sprite()
	sprite.damageAll()

	dev.hotspot = hotspot
	sprite.width, sprite.height = size.X, size.Y
	dev.moveSprite()

	sprite.damageAll()
}

// SetPointerImage shows one of the built-in pointer images.
func (dev *InputDevice) SetPointerImage(t PointerType) {
	var sprite *Sprite
	if (t >= 0) && (int(t) < len(dev.c.pointerSprites)) {
		sprite = dev.c.pointerSprites[t]
	}

	if sprite == nil {
		dev.c.attachSprite(dev.Sprite(), nil)
		dev.attach(image.Point{}, image.Point{})
		return
	}
	dev.attach(sprite.Hotspot, sprite.Size)
	dev.c.attachSprite(dev.Sprite(), sprite)
}

// AttachPointer sets the device's cursor to a client-provided buffer
// with the given hotspot. The request is ignored unless client owns the
// surface with pointer focus and the request is not older than the
// last focus change. A nil buffer restores the default pointer image.
func (c *Compositor) AttachPointer(dev *InputDevice, client Client, time uint32, buf Buffer, hx, hy int) error {
	if time < dev.pointerFocusTime {
		return nil
	}
	focus := dev.PointerFocus()
	if (focus == nil) || (focus.client != client) {
		return nil
	}

	if buf == nil {
		dev.SetPointerImage(PointerLeftPtr)
		return nil
	}

	err := c.attachBuffer(dev.Sprite(), buf)
	if err != nil {
		return fmt.Errorf("attach cursor buffer: %w", err)
	}
	dev.attach(image.Pt(hx, hy), buf.Size())
	return nil
}

// clamp restricts the point (x, y) to the span of the outputs. Each
// axis is checked separately: a coordinate that falls within any
// output's extent on that axis is left alone.
func (c *Compositor) clamp(x, y int) (int, int) {
	if len(c.outputs) == 0 {
		return x, y
	}

	var xValid, yValid bool
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, out := range c.outputs {
		if (out.x <= x) && (x <= out.x+out.width) {
			xValid = true
		}
		if (out.y <= y) && (y <= out.y+out.height) {
			yValid = true
		}

		minX = min(minX, out.x)
		minY = min(minY, out.y)
		maxX = max(maxX, out.x+out.width)
		maxY = max(maxY, out.y+out.height)
	}

	if !xValid {
		x = min(max(x, minX), maxX)
	}
	if !yValid {
		y = min(max(y, minY), maxY)
	}
	return x, y
}

// NotifyMotion moves dev's pointer to the global point (x, y).
func (c *Compositor) NotifyMotion(dev *InputDevice, time uint32, x, y int) {
	c.Wake()

	x, y = c.clamp(x, y)
	dev.x, dev.y = x, y

	if dev.grab != nil {
		dev.grab.Motion(dev, time, x, y)
	} else {
		s, sx, sy := c.PickSurface(x, y)
		dev.setPointerFocus(s, time, x, y, sx, sy)
		if (s != nil) && (s.client != nil) {
			s.client.Motion(dev, time, x, y, sx, sy)
		}
	}

	sprite := dev.Sprite()
	sprite.damageAll()
	dev.moveSprite()
	sprite.damageAll()
}

// NotifyButton reports a button press or release on dev.
func (c *Compositor) NotifyButton(dev *InputDevice, time uint32, button input.Button, pressed bool) {
	if pressed {
		c.IdleInhibit()
	} else {
		c.IdleRelease()
	}

	if s := dev.PointerFocus(); pressed && (s != nil) && (dev.grab == nil) {
		c.activate(s, dev, time)
		dev.StartGrab(motionGrab{}, button, time)
	}

	c.runButtonBinding(dev, time, button, pressed)

	if dev.grab != nil {
		dev.grab.Button(dev, time, button, pressed)
	}

	if !pressed && (dev.grab != nil) && (dev.grabButton == button) {
		dev.EndGrab(time)
	}
}

// NotifyKey reports a key press or release on dev.
func (c *Compositor) NotifyKey(dev *InputDevice, time uint32, key input.Key, pressed bool) {
	if pressed {
		c.IdleInhibit()
	} else {
		c.IdleRelease()
	}

	c.runKeyBinding(dev, time, key, pressed)

	dev.modifiers = dev.modifiers.Update(key, pressed)
	dev.keys = removeKey(dev.keys, key)
	if pressed {
		dev.keys = append(dev.keys, key)
	}

	if s := dev.KeyboardFocus(); (s != nil) && (s.client != nil) {
		s.client.Key(dev, time, key, pressed)
	}
}

// removeKey removes every occurrence of key from keys without
// preserving order.
func removeKey(keys []input.Key, key input.Key) []input.Key {
	for i := 0; i < len(keys); {
		if keys[i] != key {
			i++
			continue
		}
		last := len(keys) - 1
		keys[i] = keys[last]
		keys = keys[:last]
	}
	return keys
}

// NotifyPointerFocus is called by the backend when the pointer enters
// out at (x, y) or, if out is nil, leaves every output.
func (c *Compositor) NotifyPointerFocus(dev *InputDevice, time uint32, out *Output, x, y int) {
	if out != nil {
		dev.x, dev.y = x, y
		s, sx, sy := c.PickSurface(x, y)
		dev.setPointerFocus(s, time, x, y, sx, sy)
		c.focus = true
		dev.moveSprite()
	} else {
		dev.setPointerFocus(nil, time, 0, 0, 0, 0)
		c.focus = false
	}

	dev.Sprite().damageAll()
}

// NotifyKeyboardFocus is called by the backend when the keyboard
// enters out with keys already held or, if out is nil, leaves.
func (c *Compositor) NotifyKeyboardFocus(dev *InputDevice, time uint32, out *Output, keys []input.Key) {
	if out != nil {
		dev.keys = slices.Clone(keys)
		dev.modifiers = 0
		for _, k := range dev.keys {
			c.IdleInhibit()
			dev.modifiers = dev.modifiers.Update(k, true)
		}

		dev.setKeyboardFocus(c.top(), time)
		return
	}

	for range dev.keys {
		c.IdleRelease()
	}
	dev.keys = nil
	dev.modifiers = 0
	dev.setKeyboardFocus(nil, time)
}

// motionGrab is the implicit grab started by a button press. It sends
// every pointer event to the surface that had focus when it started.
type motionGrab struct{}

func (motionGrab) Motion(dev *InputDevice, time uint32, x, y int) {
	s := dev.PointerFocus()
	if (s == nil) || (s.client == nil) {
		return
	}

	sx, sy := s.Transform(x, y)
	s.client.Motion(dev, time, x, y, sx, sy)
}

func (motionGrab) Button(dev *InputDevice, time uint32, button input.Button, pressed bool) {
	s := dev.PointerFocus()
	if (s == nil) || (s.client == nil) {
		return
	}

	s.client.Button(dev, time, button, pressed)
}

func (motionGrab) End(dev *InputDevice, time uint32) {}
