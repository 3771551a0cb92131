package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleInterval(t *testing.T) {
	v := ValidationScheduler{Interval: 100}
	var fired []int
	for step := 1; step <= 350; step++ {
		if run, reason := v.ShouldRun(step, false, false); run {
			assert.Equal(t, ReasonInterval, reason)
			fired = append(fired, step)
		}
	}
	assert.Equal(t, []int{100, 200, 300}, fired)
}

func TestScheduleIntervalDisabled(t *testing.T) {
	v := ValidationScheduler{Interval: 0}
	for step := 1; step <= 50; step++ {
		run, reason := v.ShouldRun(step, false, false)
		assert.False(t, run)
		assert.Equal(t, ReasonNone, reason)
	}
}

func TestScheduleTriggerOrder(t *testing.T) {
	v := ValidationScheduler{Interval: 10, OnEpochEnd: true, OnTrainingEnd: true}

	// Mid-epoch at a multiple: interval wins.
	run, reason := v.ShouldRun(20, false, false)
	assert.True(t, run)
	assert.Equal(t, ReasonInterval, reason)

	// Epoch end at a multiple: the interval trigger is mid-epoch only.
	run, reason = v.ShouldRun(20, true, false)
	assert.True(t, run)
	assert.Equal(t, ReasonEpochEnd, reason)

	// Training end outranks nothing but fires last.
	run, reason = v.ShouldRun(23, false, true)
	assert.True(t, run)
	assert.Equal(t, ReasonTrainingEnd, reason)

	// Epoch end before training end when both apply.
	run, reason = v.ShouldRun(23, true, true)
	assert.True(t, run)
	assert.Equal(t, ReasonEpochEnd, reason)
}

func TestScheduleReasonStrings(t *testing.T) {
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "interval", ReasonInterval.String())
	assert.Equal(t, "epoch_end", ReasonEpochEnd.String())
	assert.Equal(t, "training_end", ReasonTrainingEnd.String())
}
