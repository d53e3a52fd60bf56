package tween

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settle(t *testing.T, tw *Tweener, dt uint32) int {
	t.Helper()

	ts := tw.Timestamp
	for i := 1; i <= 20000; i++ {
		ts += dt
		tw.Update(ts)
		if tw.Done() {
			return i
		}
	}
	t.Fatalf("tweener did not settle: current %v, target %v", tw.Current, tw.Target)
	return 0
}

func TestNewIsDoneAtRest(t *testing.T) {
	tw := New(0.8, 0, 0)
	assert.True(t, tw.Done())

	tw.Target = 1
	assert.False(t, tw.Done())
}

func TestSettlesOnTarget(t *testing.T) {
	tests := []struct {
		name            string
		current, target float64
	}{
		{"fade out", 0, 1},
		{"fade in", 1, 0},
		{"partial", 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := New(0.8, tt.current, tt.target)
			settle(t, &tw, 16)
			assert.InDelta(t, tt.target, tw.Current, doneEpsilon)
		})
	}
}

func TestMonotonicTowardsTarget(t *testing.T) {
	tw := New(0.8, 0, 1)
	last := tw.Current
	for ts := uint32(16); ts < 16*2000; ts += 16 {
		tw.Update(ts)
		require.GreaterOrEqual(t, tw.Current, last)
		last = tw.Current
	}
	assert.Greater(t, last, 0.0)
	assert.Less(t, last, 1.0)
}

func TestClamped(t *testing.T) {
	tw := New(0.8, 0.9999, 1)
	tw.Previous = 0.9
	tw.Update(16)
	assert.Equal(t, 1.0, tw.Current)
	assert.Equal(t, 1.0, tw.Previous)

	tw = New(0.8, 0.0001, 0)
	tw.Previous = 0.1
	tw.Update(16)
	assert.Equal(t, 0.0, tw.Current)
	assert.Equal(t, 0.0, tw.Previous)
}

func TestTimestampTracksUpdates(t *testing.T) {
	tw := New(0.8, 0, 1)
	tw.Timestamp = 1000
	tw.Update(1016)
	assert.Equal(t, uint32(1016), tw.Timestamp)
}

func TestOlderTimestampDoesNotStep(t *testing.T) {
	tw := New(0.8, 0, 1)
	tw.Timestamp = 1000
	tw.Update(1016)
	moved := tw.Current

	// A timestamp from before the last update would otherwise wrap
	// around to a huge step.
	tw.Update(16)
	assert.Less(t, tw.Current, 0.01)
	assert.Greater(t, tw.Current, moved, "velocity still carries")
	assert.Equal(t, uint32(16), tw.Timestamp)
	assert.False(t, tw.Done())
}
