package input

import "strings"

// Key is a keyboard scancode.
type Key uint32

// These values were pulled from linux/input-event-codes.h. Only the
// keys that the compositor itself cares about are listed.
const (
	KeyEsc       Key = 1
	KeyBackspace Key = 14
	KeyTab       Key = 15
	KeyS         Key = 31
	KeyLeftCtrl  Key = 29
	KeyLeftShift Key = 42
	KeyLeftAlt   Key = 56
	KeyRightCtrl Key = 97
	KeyRightAlt  Key = 100
	KeyLeftMeta  Key = 125
	KeyRightMeta Key = 126
)

// Modifier is a set of held modifier keys.
type Modifier uint32

const (
	ModifierCtrl Modifier = 1 << iota
	ModifierAlt
	ModifierSuper
)

// ModifierFor returns the modifier bit that key controls, or zero if
// key is not a modifier.
func ModifierFor(key Key) Modifier {
	switch key {
	case KeyLeftCtrl, KeyRightCtrl:
		return ModifierCtrl
	case KeyLeftAlt, KeyRightAlt:
		return ModifierAlt
	case KeyLeftMeta, KeyRightMeta:
		return ModifierSuper
	default:
		return 0
	}
}

// Update returns m with the modifier controlled by key set or cleared
// depending on whether key is pressed.
func (m Modifier) Update(key Key, pressed bool) Modifier {
	if pressed {
		return m | ModifierFor(key)
	}
	return m &^ ModifierFor(key)
}

func (m Modifier) String() string {
	if m == 0 {
		return "none"
	}

	var names []string
	if m&ModifierCtrl != 0 {
		names = append(names, "ctrl")
	}
	if m&ModifierAlt != 0 {
		names = append(names, "alt")
	}
	if m&ModifierSuper != 0 {
		names = append(names, "super")
	}
	return strings.Join(names, "+")
}
