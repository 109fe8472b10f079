// Package fusion converts raw orientation and linear-acceleration samples
// into a calibrated lean angle and forward-axis acceleration.
//
// Calibration captures the first orientation sample after Start as the
// reference frame. The mount angle of the device is unknown and not assumed
// stable across stop/start, so every activation recalibrates from scratch.
package fusion

import (
	"log/slog"
	"math"
	"time"

	"github.com/leantrack/tripd/params"
)

type State int

const (
	Inactive State = iota
	Calibrating
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Calibrating:
		return "calibrating"
	case Active:
		return "active"
	}
	return "unknown"
}

// degenerateForwardEps: below this horizontal magnitude the device is
// edge-on and its lateral axis has no usable horizontal projection.
const degenerateForwardEps = 1e-6

// Fusion is the inertial sensor-fusion state machine:
// Inactive -> Calibrating -> Active.
// It is fed from the engine's single event loop and needs no locking.
type Fusion struct {
	cfg    params.FusionConfig
	logger *slog.Logger

	state State

	// Calibration frame, captured once per activation.
	ref     Matrix3
	refInv  Matrix3 // transpose, valid because ref is orthonormal
	forward [3]float64

	// live is the most recent orientation sample; acceleration samples are
	// rotated with it, not with the calibration reference.
	live Matrix3

	leanFilter  lowpass
	accelFilter lowpass

	lean  float64
	accel float64
}

func New(cfg params.FusionConfig) *Fusion {
	return &Fusion{
		cfg:         cfg,
		logger:      slog.With("d", "fusion"),
		state:       Inactive,
		leanFilter:  newLowpass(cfg.LowPassCutoffHz),
		accelFilter: newLowpass(cfg.LowPassCutoffHz),
		lean:        math.NaN(),
		accel:       math.NaN(),
	}
}

func (f *Fusion) State() State { return f.state }

// Start transitions to Calibrating; the next orientation sample becomes the
// reference frame. Callers gate on sensor availability: with no inertial
// source attached, never call Start and Readings stay NaN.
func (f *Fusion) Start() {
	f.state = Calibrating
	f.leanFilter.Reset()
	f.accelFilter.Reset()
	f.lean = math.NaN()
	f.accel = math.NaN()
	f.logger.Debug("Fusion started, awaiting calibration sample")
}

// Stop returns to Inactive, discarding calibration and filter state.
func (f *Fusion) Stop() {
	f.state = Inactive
	f.lean = math.NaN()
	f.accel = math.NaN()
	f.leanFilter.Reset()
	f.accelFilter.Reset()
}

// Readings returns the current filtered lean angle (degrees) and
// longitudinal acceleration (m/s^2). NaN, NaN unless Active and fed.
func (f *Fusion) Readings() (leanDeg, accel float64) {
	return f.lean, f.accel
}

// calibrate captures m as the reference orientation.
// The forward-heading vector is the device's lateral (X) axis expressed in
// the world frame, projected onto the horizontal plane and normalized.
// Edge-on mounting makes that projection degenerate; fall back to a unit
// vector rather than failing calibration.
func (f *Fusion) calibrate(m Matrix3) {
	f.ref = m
	f.refInv = m.Transpose()
	f.live = m

	fwd := m.Column(0)
	fwd[2] = 0 // horizontal plane
	if n := norm(fwd); n > degenerateForwardEps {
		f.forward = scale(fwd, 1/n)
	} else {
		f.forward = [3]float64{1, 0, 0}
		f.logger.Warn("Degenerate forward projection, using fallback axis")
	}
	f.state = Active
	f.logger.Info("Fusion calibrated", "forward", f.forward)
}

// OrientationSample feeds one device-to-world rotation sample.
// While Calibrating it captures the reference frame; while Active it updates
// the lean angle. Pre-allocated value types only on this path.
func (f *Fusion) OrientationSample(m Matrix3, at time.Time) {
	switch f.state {
	case Inactive:
		return
	case Calibrating:
		f.calibrate(m)
		return
	}
	f.live = m

	// Relative rotation of the live frame against the calibration frame.
	rel := m.Mul(f.refInv)
	// Roll about the forward axis, from the relative rotation's
	// bottom-row entries.
	leanRad := math.Atan2(rel[7], rel[8])
	f.lean = f.leanFilter.Update(leanRad*180/math.Pi, at)
}

// AccelSample feeds one device-frame linear-acceleration sample.
// The vector is rotated into the world frame with the live orientation -
// not the reference - then projected onto the calibrated forward-heading
// vector for signed longitudinal acceleration.
func (f *Fusion) AccelSample(v [3]float64, at time.Time) {
	if f.state != Active {
		return
	}
	world := f.live.Apply(v)
	f.accel = f.accelFilter.Update(dot(world, f.forward), at)
}
