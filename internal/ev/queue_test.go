package ev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlushRunsEveryEvent(t *testing.T) {
	var ran []int
	errA := errors.New("a")
	errB := errors.New("b")

	q := &Events{events: []func() error{
		func() error { ran = append(ran, 1); return errA },
		func() error { ran = append(ran, 2); return nil },
		func() error { ran = append(ran, 3); return errB },
	}}
	assert.Equal(t, 3, q.Len())

	err := q.Flush()
	assert.Equal(t, []int{1, 2, 3}, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 0, q.Len())
}
