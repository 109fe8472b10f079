package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/leantrack/tripd/params"
)

// rollX builds a rotation by deg degrees about the world X axis.
func rollX(deg float64) Matrix3 {
	r := deg * math.Pi / 180
	c, s := math.Cos(r), math.Sin(r)
	return Matrix3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

func t0() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestReadingsNaNUntilFed(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	lean, accel := f.Readings()
	if !math.IsNaN(lean) || !math.IsNaN(accel) {
		t.Fatalf("inactive readings must be NaN, got %v %v", lean, accel)
	}

	// Samples while Inactive are dropped entirely.
	f.OrientationSample(rollX(45), t0())
	f.AccelSample([3]float64{1, 0, 0}, t0())
	if f.State() != Inactive {
		t.Fatalf("state=%v", f.State())
	}
	lean, accel = f.Readings()
	if !math.IsNaN(lean) || !math.IsNaN(accel) {
		t.Fatalf("got %v %v", lean, accel)
	}
}

func TestCalibrationZerosLean(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	if f.State() != Calibrating {
		t.Fatalf("state=%v", f.State())
	}

	// The first sample is the reference; identical follow-up means zero lean,
	// whatever the mount orientation.
	mount := rollX(17)
	f.OrientationSample(mount, t0())
	if f.State() != Active {
		t.Fatalf("state=%v", f.State())
	}
	f.OrientationSample(mount, t0().Add(10*time.Millisecond))
	lean, _ := f.Readings()
	if math.Abs(lean) > 1e-9 {
		t.Fatalf("lean=%v want 0", lean)
	}
}

func TestLeanIsRollAgainstReference(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	f.OrientationSample(Identity, t0())
	// First post-calibration sample primes the filter and passes through.
	f.OrientationSample(rollX(30), t0().Add(10*time.Millisecond))
	lean, _ := f.Readings()
	if math.Abs(lean-30) > 1e-9 {
		t.Fatalf("lean=%v want 30", lean)
	}
}

func TestLeanLowPassConverges(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	f.OrientationSample(Identity, t0())
	at := t0()
	for i := 0; i < 200; i++ {
		at = at.Add(20 * time.Millisecond)
		f.OrientationSample(rollX(40), at)
	}
	lean, _ := f.Readings()
	if math.Abs(lean-40) > 0.5 {
		t.Fatalf("lean=%v should have converged to 40", lean)
	}
}

func TestAccelProjectsOntoForward(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	f.OrientationSample(Identity, t0())
	// Identity reference: forward is the device X axis in world coordinates.
	f.AccelSample([3]float64{2.5, 0, 0}, t0().Add(10*time.Millisecond))
	_, accel := f.Readings()
	if math.Abs(accel-2.5) > 1e-9 {
		t.Fatalf("accel=%v want 2.5", accel)
	}
	// Purely lateral/vertical acceleration has no longitudinal component;
	// the filter pulls the reading back toward zero.
	before := accel
	f.AccelSample([3]float64{0, 3, 9.8}, t0().Add(20*time.Millisecond))
	_, accel = f.Readings()
	if accel >= before || accel < 0 {
		t.Fatalf("accel=%v should decay toward 0 from %v", accel, before)
	}
}

func TestAccelUsesLiveOrientation(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	f.OrientationSample(Identity, t0())
	// Device has rolled since calibration. A device-frame vector must be
	// rotated with the live orientation before projecting.
	f.OrientationSample(rollX(90), t0().Add(10*time.Millisecond))
	// Device Y axis now points along world -Z under rollX(90)... the forward
	// (world X) component of a device-frame X vector is unchanged by X-roll.
	f.AccelSample([3]float64{1.5, 0, 0}, t0().Add(20*time.Millisecond))
	_, accel := f.Readings()
	if math.Abs(accel-1.5) > 1e-9 {
		t.Fatalf("accel=%v want 1.5", accel)
	}
}

func TestStopDiscardsAndStartRecalibrates(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	f.OrientationSample(Identity, t0())
	f.OrientationSample(rollX(30), t0().Add(10*time.Millisecond))

	f.Stop()
	if f.State() != Inactive {
		t.Fatalf("state=%v", f.State())
	}
	lean, accel := f.Readings()
	if !math.IsNaN(lean) || !math.IsNaN(accel) {
		t.Fatalf("stop must discard readings, got %v %v", lean, accel)
	}

	// Recalibration takes the new mount angle as zero.
	f.Start()
	f.OrientationSample(rollX(30), t0().Add(time.Minute))
	f.OrientationSample(rollX(30), t0().Add(time.Minute+10*time.Millisecond))
	lean, _ = f.Readings()
	if math.Abs(lean) > 1e-9 {
		t.Fatalf("lean=%v want 0 after recalibration", lean)
	}
}

func TestDegenerateForwardFallback(t *testing.T) {
	f := New(params.DefaultFusionConfig)
	f.Start()
	// Device X axis pointing straight up: its horizontal projection vanishes.
	edgeOn := Matrix3{
		0, 0, 1,
		0, 1, 0,
		-1, 0, 0,
	}
	f.OrientationSample(edgeOn, t0())
	if f.State() != Active {
		t.Fatalf("degenerate mount must still calibrate, state=%v", f.State())
	}
	if f.forward != [3]float64{1, 0, 0} {
		t.Fatalf("forward=%v want fallback axis", f.forward)
	}
}

func TestLowpassFirstSamplePassesThrough(t *testing.T) {
	f := newLowpass(2.0)
	if got := f.Update(12.0, t0()); got != 12.0 {
		t.Fatalf("got %v", got)
	}
	// Second sample lands between the previous value and the input.
	got := f.Update(0, t0().Add(50*time.Millisecond))
	if got <= 0 || got >= 12.0 {
		t.Fatalf("got %v, want within (0, 12)", got)
	}
	// Out-of-order sample is a no-op.
	if again := f.Update(100, t0()); again != got {
		t.Fatalf("got %v, want %v", again, got)
	}
}
