package compositor

import (
	"slices"

	"deedles.dev/wlcomp/input"
)

// BindingHandler is called when a binding's key or button is used with
// its modifiers held. For button bindings key is zero, and for key
// bindings button is zero.
type BindingHandler func(dev *InputDevice, time uint32, key input.Key, button input.Button, pressed bool)

// Binding associates a key or button and a modifier set with a
// handler.
type Binding struct {
	c        *Compositor
	key      input.Key
	button   input.Button
	modifier input.Modifier
	handler  BindingHandler
}

// AddBinding registers a handler for key or button pressed while
// exactly modifier is held. Bindings are checked in the order they
// were added and only the first match runs. Key bindings run on both
// press and release; button bindings run on press only.
func (c *Compositor) AddBinding(key input.Key, button input.Button, modifier input.Modifier, handler BindingHandler) *Binding {
	b := Binding{
		c:        c,
		key:      key,
		button:   button,
		modifier: modifier,
		handler:  handler,
	}
	c.bindings = append(c.bindings, &b)
	return &b
}

// Destroy unregisters the binding.
func (b *Binding) Destroy() {
	b.c.bindings = slices.DeleteFunc(b.c.bindings, func(v *Binding) bool { return v == b })
}

func (c *Compositor) runKeyBinding(dev *InputDevice, time uint32, key input.Key, pressed bool) bool {
	for _, b := range c.bindings {
		if (b.key == key) && (b.modifier == dev.modifiers) {
			b.handler(dev, time, key, 0, pressed)
			return true
		}
	}
	return false
}

func (c *Compositor) runButtonBinding(dev *InputDevice, time uint32, button input.Button, pressed bool) bool {
	if !pressed {
		return false
	}

	for _, b := range c.bindings {
		if (b.button == button) && (b.modifier == dev.modifiers) {
			b.handler(dev, time, 0, button, pressed)
			return true
		}
	}
	return false
}
