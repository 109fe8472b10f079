package engine

import "github.com/montanaflynn/stats"

// meter keeps an instantaneous value and a bounded window for running
// averages (GPS accuracy, fix update rate).
type meter struct {
	window []float64
	size   int
	last   float64
	any    bool
}

func newMeter(size int) *meter {
	return &meter{size: size}
}

func (m *meter) Push(v float64) {
	m.last = v
	m.any = true
	m.window = append(m.window, v)
	if len(m.window) > m.size {
		m.window = m.window[1:]
	}
}

func (m *meter) Current() float64 {
	return m.last
}

func (m *meter) Avg() float64 {
	if len(m.window) == 0 {
		return 0
	}
	mean, err := stats.Mean(m.window)
	if err != nil {
		return 0
	}
	return mean
}

func (m *meter) Reset() {
	m.window = m.window[:0]
	m.last = 0
	m.any = false
}
