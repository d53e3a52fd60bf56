// Package tween implements a damped spring used to animate scalar
// values, such as the fade-to-black tint, one output frame at a time.
package tween

import "math"

const (
	defaultFriction = 100.0

	// doneEpsilon is how close both the current and previous values
	// must be to the target for the spring to count as settled.
	doneEpsilon = 0.0002
)

// Tweener moves Current towards Target. Values are clamped to [0, 1].
type Tweener struct {
	K        float64
	Friction float64

	Current  float64
	Previous float64
	Target   float64

	// Timestamp is the time in milliseconds of the last update.
	Timestamp uint32
}

// New returns a Tweener with spring constant k, at rest at current and
// heading for target.
func New(k, current, target float64) Tweener {
	return Tweener{
		K:        k,
		Friction: defaultFriction,
		Current:  current,
		Previous: current,
		Target:   target,
	}
}

// Update advances the spring to msec.
func (t *Tweener) Update(msec uint32) {
	// A timestamp older than the last one does not move the spring.
	elapsed := max(int32(msec-t.Timestamp), 0)
	step := float64(elapsed) / 500
	t.Timestamp = msec

	current := t.Current
	v := current - t.Previous
	force := t.K*(t.Target-current)/10 + (t.Previous - current) - v*t.Friction

	t.Current = current + (current - t.Previous) + force*step*step
	t.Previous = current

	if t.Current >= 1 {
		t.Current = 1
		t.Previous = 1
	}
	if t.Current <= 0 {
		t.Current = 0
		t.Previous = 0
	}
}

// Done reports whether the spring has settled on its target.
func (t *Tweener) Done() bool {
	return (math.Abs(t.Previous-t.Target) < doneEpsilon) &&
		(math.Abs(t.Current-t.Target) < doneEpsilon)
}
