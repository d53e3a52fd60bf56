package compositor

import (
	"testing"
	"time"

	"deedles.dev/wlcomp/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxFadeFrames is comfortably more frames than a full fade takes.
const maxFadeFrames = 20000

func TestIdleFadesToSleep(t *testing.T) {
	tc := newTestCompositor(t, screen)
	out := tc.outputs[0]
	idle := tc.idleTimer()

	require.True(t, idle.armed())
	assert.Equal(t, time.Minute, idle.d)

	idle.fire()
	assert.Equal(t, 1.0, tc.FadeTweener().Target)
	assert.True(t, tc.fade.animation.Animating())

	for i := 0; (i < maxFadeFrames) && (tc.State() != StateSleeping); i++ {
		tc.frames(out, 1)
	}
	require.Equal(t, StateSleeping, tc.State())
	assert.Equal(t, 1, tc.shell.locked)
	assert.Equal(t, 1.0, tc.FadeTweener().Current)
	assert.False(t, tc.fade.animation.Animating())

	// Damage while asleep does not repaint.
	tc.repaintTimer().fire()
	tc.DamageAll()
	assert.False(t, tc.repaintTimer().armed())

	dev := newDevice(t, tc)
	tc.NotifyMotion(dev, tc.Time(), 10, 10)
	assert.Equal(t, StateActive, tc.State())
	assert.Zero(t, tc.FadeTweener().Target)
	assert.True(t, tc.fade.animation.Animating())
	assert.True(t, tc.repaintTimer().armed(), "waking schedules a repaint")
	assert.True(t, out.RepaintNeeded())
	assert.Equal(t, time.Minute, idle.d)

	for i := 0; (i < maxFadeFrames) && tc.fade.animation.Animating(); i++ {
		tc.frames(out, 1)
	}
	assert.False(t, tc.fade.animation.Animating())
	assert.Zero(t, tc.FadeTweener().Current)
	assert.Equal(t, StateActive, tc.State())
}

func TestInputCancelsFade(t *testing.T) {
	tc := newTestCompositor(t, screen)
	out := tc.outputs[0]
	dev := newDevice(t, tc)

	tc.idleTimer().fire()
	tc.frames(out, 100)
	require.Greater(t, tc.FadeTweener().Current, 0.0)
	require.Less(t, tc.FadeTweener().Current, 0.5)

	tc.NotifyKey(dev, tc.Time(), input.KeyS, true)
	tc.NotifyKey(dev, tc.Time(), input.KeyS, false)
	assert.Zero(t, tc.FadeTweener().Target)

	for i := 0; (i < maxFadeFrames) && tc.fade.animation.Animating(); i++ {
		tc.frames(out, 1)
	}
	assert.Zero(t, tc.FadeTweener().Current)
	assert.Equal(t, StateActive, tc.State())
	assert.Zero(t, tc.shell.locked)
}

func TestIdleInhibit(t *testing.T) {
	tc := newTestCompositor(t, screen)
	idle := tc.idleTimer()

	tc.IdleInhibit()
	tc.IdleInhibit()
	assert.Equal(t, 2, tc.IdleInhibitCount())

	idle.fire()
	assert.False(t, tc.fade.animation.Animating(), "inhibited")
	assert.Zero(t, tc.FadeTweener().Target)

	tc.IdleRelease()
	assert.False(t, idle.armed(), "still inhibited")

	tc.IdleRelease()
	assert.Zero(t, tc.IdleInhibitCount())
	assert.Equal(t, time.Minute, idle.d)

	tc.IdleRelease()
	assert.Zero(t, tc.IdleInhibitCount(), "never negative")
}

func TestFadeIgnoresClockGoingBack(t *testing.T) {
	tc := newTestCompositor(t, screen)
	out := tc.outputs[0]
	assert.Zero(t, tc.Time())

	tc.idleTimer().fire()
	tc.frames(out, 1)
	assert.Equal(t, uint32(16), tc.Time())
	before := tc.FadeTweener().Current
	require.Greater(t, before, 0.0)

	tc.now = tc.now.Add(-time.Second)
	tc.FinishFrame(out, tc.Time())

	assert.Less(t, tc.FadeTweener().Current, 0.01)
	assert.Equal(t, StateActive, tc.State())
	assert.Zero(t, tc.shell.locked)
	assert.True(t, tc.fade.animation.Animating())
}

func TestTimeUsesMonotonicClock(t *testing.T) {
	start := time.Now()
	now := start
	tc := newTestCompositorWith(t, func(cfg *Config) {
		cfg.Clock = func() time.Time { return now }
	}, screen)

	now = start.Add(250 * time.Millisecond)
	assert.Equal(t, uint32(250), tc.Time())
}
