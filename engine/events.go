package engine

import (
	"context"
	"time"

	"github.com/leantrack/tripd/fusion"
)

// Event is anything the engine consumes on its single logical timeline:
// location fixes, inertial samples, power/motion triggers, and timer ticks.
// No two events are processed concurrently against session state.
type Event interface {
	When() time.Time
}

// LocationFix is one pushed GPS fix. Absent speed/altitude arrive as zero.
type LocationFix struct {
	Lat      float64
	Lon      float64
	Speed    float64
	Altitude float64
	Accuracy float64
	At       time.Time
}

func (e LocationFix) When() time.Time { return e.At }

// OrientationSample is one device-to-world rotation sample.
type OrientationSample struct {
	M  fusion.Matrix3
	At time.Time
}

func (e OrientationSample) When() time.Time { return e.At }

// AccelSample is one device-frame linear-acceleration sample.
type AccelSample struct {
	V  [3]float64
	At time.Time
}

func (e AccelSample) When() time.Time { return e.At }

type TriggerKind int

const (
	// TriggerStart requests capture start or resume: explicit user start,
	// charger reconnect, motion detection - deployment policy, not ours.
	TriggerStart TriggerKind = iota
	// TriggerPause requests capture pause: charger disconnect or
	// no-motion timeout.
	TriggerPause
)

func (k TriggerKind) String() string {
	if k == TriggerStart {
		return "start"
	}
	return "pause"
}

// Trigger is a discrete start/pause signal from a TriggerSource.
type Trigger struct {
	Kind TriggerKind
	At   time.Time
}

func (e Trigger) When() time.Time { return e.At }

// StopRequest finalizes the session immediately, from any state.
type StopRequest struct {
	At time.Time
}

func (e StopRequest) When() time.Time { return e.At }

// statsTick drives periodic statistics and the finalize deadline check.
type statsTick struct {
	At time.Time
}

func (e statsTick) When() time.Time { return e.At }

// flushTick drains the point buffer into a new increment segment.
type flushTick struct {
	At time.Time
}

func (e flushTick) When() time.Time { return e.At }

// TriggerSource abstracts the deployment's start/pause policy
// (charger state, accelerometer magnitude, a button - whatever).
// The state machine only needs the two signals.
type TriggerSource interface {
	Triggers() <-chan Trigger
}

// ChanTriggerSource is the trivial TriggerSource over a channel.
type ChanTriggerSource chan Trigger

func (c ChanTriggerSource) Triggers() <-chan Trigger { return c }

// AttachTriggers pumps a trigger source into the engine until ctx is done.
func (e *Engine) AttachTriggers(ctx context.Context, src TriggerSource) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case trig, ok := <-src.Triggers():
				if !ok {
					return
				}
				e.Feed(trig)
			}
		}
	}()
}
