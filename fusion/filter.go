package fusion

import (
	"math"
	"time"
)

// lowpass is a single-pole IIR low-pass filter whose smoothing factor is
// recomputed from the true inter-sample interval, so variable-rate sensors
// get filtered consistently.
type lowpass struct {
	cutoffHz float64
	lastAt   time.Time
	value    float64
	primed   bool
}

func newLowpass(cutoffHz float64) lowpass {
	return lowpass{cutoffHz: cutoffHz}
}

// Update feeds one sample and returns the filtered value.
// The first sample passes through unfiltered; so does any sample whose
// interval is non-positive (out-of-order delivery).
func (f *lowpass) Update(x float64, at time.Time) float64 {
	if !f.primed {
		f.value = x
		f.lastAt = at
		f.primed = true
		return f.value
	}
	dt := at.Sub(f.lastAt).Seconds()
	f.lastAt = at
	if dt <= 0 {
		return f.value
	}
	rc := 1.0 / (2 * math.Pi * f.cutoffHz)
	alpha := dt / (dt + rc)
	f.value += alpha * (x - f.value)
	return f.value
}

// Reset discards filter state, as on (re)calibration.
func (f *lowpass) Reset() {
	f.primed = false
	f.value = 0
	f.lastAt = time.Time{}
}
