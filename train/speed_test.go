package train

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpeedMonitorRate(t *testing.T) {
	m := NewSpeedMonitor(8)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, m.Rate())

	m.Add(base, 100)
	assert.Equal(t, 0.0, m.Rate())

	m.Add(base.Add(time.Second), 100)
	assert.InDelta(t, 200.0, m.Rate(), 1e-9)

	m.Add(base.Add(2*time.Second), 100)
	assert.InDelta(t, 150.0, m.Rate(), 1e-9)
}

func TestSpeedMonitorWindow(t *testing.T) {
	m := NewSpeedMonitor(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// A slow start falls out of the window.
	m.Add(base, 1)
	m.Add(base.Add(10*time.Second), 100)
	m.Add(base.Add(11*time.Second), 100)
	assert.InDelta(t, 200.0, m.Rate(), 1e-9)
}

func TestSpeedMonitorZeroElapsed(t *testing.T) {
	m := NewSpeedMonitor(4)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Add(at, 50)
	m.Add(at, 50)
	assert.Equal(t, 0.0, m.Rate())
}

func TestSpeedMonitorMinWindow(t *testing.T) {
	m := NewSpeedMonitor(0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Add(base, 10)
	m.Add(base.Add(time.Second), 10)
	assert.InDelta(t, 20.0, m.Rate(), 1e-9)
}
