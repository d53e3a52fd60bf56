package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModifierUpdate(t *testing.T) {
	var m Modifier
	m = m.Update(KeyLeftCtrl, true)
	m = m.Update(KeyRightAlt, true)
	assert.Equal(t, ModifierCtrl|ModifierAlt, m)

	m = m.Update(KeyS, true)
	assert.Equal(t, ModifierCtrl|ModifierAlt, m, "non-modifier keys leave the state alone")

	m = m.Update(KeyLeftAlt, false)
	assert.Equal(t, ModifierCtrl, m)
	assert.Equal(t, "ctrl", m.String())
}

func TestModifierString(t *testing.T) {
	assert.Equal(t, "none", Modifier(0).String())
	assert.Equal(t, "ctrl+alt+super", (ModifierCtrl | ModifierAlt | ModifierSuper).String())
}

func TestButtonString(t *testing.T) {
	assert.Equal(t, "left", ButtonLeft.String())
	assert.Equal(t, Button(272), ButtonLeft)
	assert.Equal(t, "unknown", Button(1).String())
}
