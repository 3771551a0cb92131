package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceCursor(t *testing.T) {
	// Budget spans past this epoch: skip it whole.
	skip, remaining, skipEpoch := AdvanceCursor(100, 250)
	assert.True(t, skipEpoch)
	assert.Equal(t, 0, skip)
	assert.Equal(t, 150, remaining)

	// Budget lands mid-epoch: discard exactly that many batches.
	skip, remaining, skipEpoch = AdvanceCursor(100, 50)
	assert.False(t, skipEpoch)
	assert.Equal(t, 50, skip)
	assert.Equal(t, 0, remaining)

	// No budget: no skip.
	skip, remaining, skipEpoch = AdvanceCursor(100, 0)
	assert.False(t, skipEpoch)
	assert.Equal(t, 0, skip)
	assert.Equal(t, 0, remaining)
}

func TestAdvanceCursorExhaustsExactly(t *testing.T) {
	// A budget of whole epochs burns down to exactly zero.
	remaining := 300
	epochs := 0
	for remaining > 0 {
		var skipEpoch bool
		_, remaining, skipEpoch = AdvanceCursor(100, remaining)
		assert.True(t, skipEpoch)
		epochs++
	}
	assert.Equal(t, 3, epochs)
	assert.Equal(t, 0, remaining)
}

func TestAdvanceCursorEpochBoundary(t *testing.T) {
	// A budget equal to the epoch length skips the epoch rather than
	// resuming at its end.
	skip, remaining, skipEpoch := AdvanceCursor(100, 100)
	assert.True(t, skipEpoch)
	assert.Equal(t, 0, skip)
	assert.Equal(t, 0, remaining)
}
