package train

import "time"

type speedSample struct {
	at    time.Time
	units int
}

// A SpeedMonitor tracks throughput over a sliding window of samples. It
// has no side effects beyond its own bookkeeping and is not safe for
// concurrent use; each rank owns its own monitor.
type SpeedMonitor struct {
	window  int
	samples []speedSample
}

// NewSpeedMonitor creates a monitor keeping the most recent window
// samples. A window below 2 is raised to 2, since a rate needs at least
// two timestamps.
func NewSpeedMonitor(window int) *SpeedMonitor {
	if window < 2 {
		window = 2
	}
	return &SpeedMonitor{window: window}
}

// Add records that units samples or tokens were processed at time at.
func (m *SpeedMonitor) Add(at time.Time, units int) {
	m.samples = append(m.samples, speedSample{at: at, units: units})
	if len(m.samples) > m.window {
		m.samples = m.samples[len(m.samples)-m.window:]
	}
}

// Rate returns units per second over the current window, computed over
// however many samples are available. It returns 0 when fewer than two
// samples exist or when no time has elapsed between them.
func (m *SpeedMonitor) Rate() float64 {
	if len(m.samples) < 2 {
		return 0
	}
	elapsed := m.samples[len(m.samples)-1].at.Sub(m.samples[0].at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	var units int
	for _, s := range m.samples {
		units += s.units
	}
	return float64(units) / elapsed
}
