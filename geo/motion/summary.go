package motion

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/leantrack/tripd/common"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/types/trackpoint"
)

// Summary aggregates a finished track for display.
type Summary struct {
	Points         int
	DistanceMeters float64
	Moving         time.Duration
	Paused         time.Duration
	MaxSpeed       float64
	AvgMovingSpeed float64
	MaxLeanDeg     float64 // absolute
	P95LeanDeg     float64 // absolute
	MaxAccelG      float64
	MaxBrakeG      float64
	SensorLean     bool
}

// Summarize computes a Summary, preferring recorded (sensor) lean over the
// GPS fallback when any point carries it.
func Summarize(points []*trackpoint.TrackPoint, cfg params.MotionConfig) Summary {
	s := Summary{Points: len(points)}
	if len(points) == 0 {
		return s
	}
	s.DistanceMeters = TrackDistance(points)
	s.Moving, s.Paused = MovingPaused(points, cfg)
	s.SensorLean = HasSensorLean(points)

	var leans []float64
	if s.SensorLean {
		for _, tp := range points {
			if tp.HasLean() {
				leans = append(leans, math.Abs(tp.Lean))
			}
		}
	} else {
		for _, v := range LeanSeries(points, cfg) {
			leans = append(leans, math.Abs(v))
		}
	}
	if len(leans) > 0 {
		s.MaxLeanDeg, _ = stats.Max(leans)
		s.P95LeanDeg, _ = stats.Percentile(leans, 95)
	}

	var accels []float64
	if anySensorAccel(points) {
		for _, tp := range points {
			if tp.HasAccel() {
				// Recorded accel is m/s^2; summary units are g.
				accels = append(accels, tp.Accel/common.GravityStandard)
			}
		}
	} else {
		accels = AccelSeries(points, cfg)
	}
	for _, a := range accels {
		if a > s.MaxAccelG {
			s.MaxAccelG = a
		}
		if a < s.MaxBrakeG {
			s.MaxBrakeG = a
		}
	}

	speeds := make([]float64, 0, len(points))
	movingSpeeds := make([]float64, 0, len(points))
	for _, tp := range points {
		speeds = append(speeds, tp.Speed)
		if tp.Speed > cfg.MovingSpeedMin {
			movingSpeeds = append(movingSpeeds, tp.Speed)
		}
	}
	s.MaxSpeed, _ = stats.Max(speeds)
	if len(movingSpeeds) > 0 {
		s.AvgMovingSpeed, _ = stats.Mean(movingSpeeds)
	}
	return s
}

func anySensorAccel(points []*trackpoint.TrackPoint) bool {
	for _, tp := range points {
		if tp.HasAccel() {
			return true
		}
	}
	return false
}
