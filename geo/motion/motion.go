// Package motion derives lean angle, longitudinal g-force, moving time,
// and distance from a finished point sequence. It is the fallback estimator
// when no inertial data was recorded, and the summary engine either way.
package motion

import (
	"math"
	"time"

	"github.com/paulmach/orb/geo"

	"github.com/leantrack/tripd/common"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/types/trackpoint"
)

// Distance is the great-circle (haversine) distance between two points,
// in meters, on a spherical earth of radius common.EarthRadius.
// Not orb's geo.Distance: that uses a different earth radius constant,
// and trip distances must be reproducible against recorded summaries.
func Distance(a, b *trackpoint.TrackPoint) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * common.EarthRadius * math.Asin(math.Sqrt(h))
}

// TrackDistance sums pairwise distance over consecutive points.
// Idempotent: recomputing a finalized track always yields the same total.
func TrackDistance(points []*trackpoint.TrackPoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// MovingPaused splits total elapsed time into moving and paused time.
// A point-to-point interval counts as moving only if its duration is within
// a sane bound (teleports and signal-loss gaps are excluded entirely from
// moving time) and the mean endpoint speed beats a slow-walking threshold.
func MovingPaused(points []*trackpoint.TrackPoint, cfg params.MotionConfig) (moving, paused time.Duration) {
	for i := 1; i < len(points); i++ {
		dt := points[i].Time().Sub(points[i-1].Time())
		if dt <= 0 {
			continue
		}
		meanSpeed := (points[i-1].Speed + points[i].Speed) / 2
		if dt <= cfg.MaxGapInterval && meanSpeed > cfg.MovingSpeedMin {
			moving += dt
		} else {
			paused += dt
		}
	}
	return moving, paused
}

// LeanSeries estimates a lean angle per point from GPS trajectory alone.
// Used only when no sensor-derived lean exists in the series.
//
// For each interior point: bearing of the incoming and outgoing segments,
// signed bearing delta, turn radius from arc length over delta angle, then
// lean = atan(v^2 / (r*g)), signed by turn direction and clamped.
// Points below minimum speed or minimum segment distance stay at zero;
// that's a straight line or GPS noise, not a real lean.
func LeanSeries(points []*trackpoint.TrackPoint, cfg params.MotionConfig) []float64 {
	leans := make([]float64, len(points))
	for i := 1; i < len(points)-1; i++ {
		prev, cur, next := points[i-1], points[i], points[i+1]
		if cur.Speed < cfg.LeanMinSpeed {
			continue
		}
		distIn := Distance(prev, cur)
		distOut := Distance(cur, next)
		if distIn < cfg.LeanMinSegment || distOut < cfg.LeanMinSegment {
			continue
		}
		bearingIn := geo.Bearing(prev.Point(), cur.Point())
		bearingOut := geo.Bearing(cur.Point(), next.Point())
		deltaDeg := common.NormalizeDeltaDeg(bearingOut - bearingIn)
		deltaRad := deltaDeg * math.Pi / 180
		if deltaRad == 0 {
			continue
		}
		arc := (distIn + distOut) / 2
		radius := arc / math.Abs(deltaRad)
		if radius <= 0 {
			continue
		}
		lean := math.Atan(cur.Speed*cur.Speed/(radius*common.GravityStandard)) * 180 / math.Pi
		lean = math.Min(lean, cfg.LeanMaxDeg)
		leans[i] = math.Copysign(lean, deltaDeg)
	}
	return leans
}

// AccelSeries estimates per-point longitudinal acceleration, in g,
// from speed deltas. Non-positive or excessively large time gaps are skipped.
func AccelSeries(points []*trackpoint.TrackPoint, cfg params.MotionConfig) []float64 {
	accels := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		dt := points[i].Time().Sub(points[i-1].Time()).Seconds()
		if dt <= 0 || dt > cfg.MaxGapInterval.Seconds() {
			continue
		}
		accels[i] = (points[i].Speed - points[i-1].Speed) / dt / common.GravityStandard
	}
	return accels
}

// HasSensorLean reports whether any point carries sensor-derived lean.
// One real reading is enough to prefer the recorded series over the fallback.
func HasSensorLean(points []*trackpoint.TrackPoint) bool {
	for _, tp := range points {
		if tp.HasLean() {
			return true
		}
	}
	return false
}

// SeverityBucket maps a value onto a band index given ascending bounds:
// bucket 0 is below bounds[0], bucket len(bounds) is above the last.
// Pure and stateless; band colors are the caller's business.
func SeverityBucket(v float64, bounds []float64) int {
	v = math.Abs(v)
	for i, b := range bounds {
		if v < b {
			return i
		}
	}
	return len(bounds)
}
