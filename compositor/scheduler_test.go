package compositor

import (
	"image"
	"testing"
	"time"

	"deedles.dev/wlcomp/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepaintCycle(t *testing.T) {
	tc := newTestCompositor(t, screen)
	out := tc.outputs[0]
	timer := tc.repaintTimer()

	require.True(t, timer.armed())
	assert.Equal(t, time.Millisecond, timer.d)
	assert.True(t, out.RepaintNeeded())
	assert.True(t, out.Finished())

	timer.fire()
	assert.Equal(t, []*Output{out}, tc.backend.presented)
	assert.Len(t, tc.renderer.renders[out], 1)
	assert.False(t, out.Finished())
	assert.False(t, out.RepaintNeeded())
	assert.False(t, timer.armed())

	// New damage while the frame is still being presented waits.
	tc.DamageRect(image.Rect(0, 0, 10, 10))
	require.True(t, timer.armed())
	timer.fire()
	assert.Len(t, tc.backend.presented, 1)
	assert.True(t, out.RepaintNeeded())
	assert.Equal(t, retryDelay, timer.d, "busy outputs are retried")

	tc.FinishFrame(out, 2000)
	assert.True(t, out.Finished())
	assert.Equal(t, finishDelay, timer.d)

	timer.fire()
	assert.Len(t, tc.backend.presented, 2)
	assert.False(t, timer.armed())
}

func TestScheduleRepaintCoalesces(t *testing.T) {
	tc := newTestCompositor(t, screen)
	timer := tc.repaintTimer()
	timer.fire()

	tc.DamageRect(image.Rect(0, 0, 10, 10))
	timer.d = 42 * time.Millisecond
	tc.DamageRect(image.Rect(20, 20, 30, 30))
	assert.Equal(t, 42*time.Millisecond, timer.d, "an armed timer is left alone")
}

func TestOutputsPacedIndependently(t *testing.T) {
	right := image.Rect(1024, 0, 2048, 640)
	tc := newTestCompositor(t, screen, right)
	left, rightOut := tc.outputs[0], tc.outputs[1]
	timer := tc.repaintTimer()

	timer.fire()
	require.Len(t, tc.backend.presented, 2)

	tc.FinishFrame(left, 100)
	tc.DamageAll()
	timer.fire()
	assert.Equal(t, []*Output{left, rightOut, left}, tc.backend.presented)
	assert.True(t, rightOut.RepaintNeeded())
	assert.Equal(t, retryDelay, timer.d)
}

func TestSleepingSuppressesRepaint(t *testing.T) {
	tc := newTestCompositor(t, screen)
	out := tc.outputs[0]
	timer := tc.repaintTimer()
	timer.fire()
	tc.FinishFrame(out, 10)
	timer.fire()
	require.False(t, timer.armed())

	tc.state = StateSleeping
	tc.DamageRect(image.Rect(0, 0, 10, 10))
	assert.False(t, timer.armed())
	assert.False(t, out.RepaintNeeded())
	assert.False(t, tc.Damage().Empty(), "damage still accumulates")
}

func TestFinishFrameSendsFrameEvents(t *testing.T) {
	right := image.Rect(1024, 0, 2048, 640)
	tc := newTestCompositor(t, screen, right)
	client := &fakeClient{}
	onLeft := tc.mapAt(t, client, image.Rect(100, 100, 200, 200), VisualOpaque)
	onRight := tc.mapAt(t, client, image.Rect(1100, 100, 1200, 200), VisualOpaque)

	tc.FinishFrame(tc.outputs[0], 500)
	assert.Equal(t, []SurfaceID{onLeft}, client.frames)

	tc.FinishFrame(tc.outputs[1], 516)
	assert.Equal(t, []SurfaceID{onLeft, onRight}, client.frames)
}

func TestAnimations(t *testing.T) {
	tc := newTestCompositor(t, screen)
	out := tc.outputs[0]

	var frames []uint32
	a := &Animation{Frame: func(a *Animation, o *Output, msecs uint32) {
		assert.Equal(t, out, o)
		frames = append(frames, msecs)
		if len(frames) == 2 {
			tc.RemoveAnimation(a)
		}
	}}
	tc.AddAnimation(a)
	tc.AddAnimation(a)
	assert.True(t, a.Animating())

	tc.FinishFrame(out, 1)
	tc.FinishFrame(out, 2)
	tc.FinishFrame(out, 3)
	assert.Equal(t, []uint32{1, 2}, frames)
	assert.False(t, a.Animating())
}

func TestOutputMatrix(t *testing.T) {
	tests := []struct {
		name    string
		flipped bool
		topY    float64
	}{
		{"normal", false, -1},
		{"flipped", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCompositor(t)
			out, err := tc.AddOutput("test", image.Rect(100, 50, 900, 650), tt.flipped)
			require.NoError(t, err)

			m := out.Matrix()
			tl := m.Transform(matrix.Point(100, 50))
			br := m.Transform(matrix.Point(900, 650))
			assert.InDelta(t, -1, tl[0], 1e-9)
			assert.InDelta(t, tt.topY, tl[1], 1e-9)
			assert.InDelta(t, 1, br[0], 1e-9)
			assert.InDelta(t, -tt.topY, br[1], 1e-9)
		})
	}
}

func TestAddOutputRejectsEmpty(t *testing.T) {
	tc := newTestCompositor(t)
	_, err := tc.AddOutput("empty", image.Rect(0, 0, 0, 100), false)
	assert.Error(t, err)
}

func TestRemoveOutput(t *testing.T) {
	right := image.Rect(1024, 0, 2048, 640)
	tc := newTestCompositor(t, screen, right)
	id := tc.mapAt(t, &fakeClient{}, image.Rect(1100, 100, 1200, 200), VisualOpaque)
	require.Equal(t, tc.outputs[1], tc.Surface(id).Output())

	tc.RemoveOutput(tc.outputs[1])
	assert.Len(t, tc.Outputs(), 1)
	assert.Equal(t, tc.outputs[0], tc.Surface(id).Output())
}

func TestCloseDisarmsTimers(t *testing.T) {
	tc := newTestCompositor(t, screen)
	newDevice(t, tc)
	tc.repaintTimer().fire()
	require.False(t, tc.repaintTimer().armed())

	tc.Close()
	assert.False(t, tc.repaintTimer().armed())
	assert.False(t, tc.idleTimer().armed())
}
