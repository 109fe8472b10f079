package params

import (
	"time"

	"github.com/leantrack/tripd/common"
)

type Config struct {
	EngineConfig
	FusionConfig
	MotionConfig
}

type EngineConfig struct {
	// StatsInterval is how often running statistics are recomputed and emitted.
	StatsInterval time.Duration
	// FlushInterval is how often the in-memory buffer is drained to a segment.
	FlushInterval time.Duration
	// FinalizeTimeout is how long a paused session waits for a resume trigger
	// before its segments are merged into a finalized track.
	FinalizeTimeout time.Duration
	// MeterWindow bounds the accuracy/update-rate running-average windows.
	MeterWindow int
	// FlushFailureWarn is the consecutive-failure count after which the
	// retained buffer is reported as a memory-growth warning.
	FlushFailureWarn int
}

var DefaultEngineConfig = EngineConfig{
	StatsInterval:    1 * time.Second,
	FlushInterval:    10 * time.Second,
	FinalizeTimeout:  20 * time.Minute,
	MeterWindow:      300,
	FlushFailureWarn: 3,
}

type FusionConfig struct {
	// LowPassCutoffHz is the single-pole filter cutoff applied to both
	// the lean and longitudinal-acceleration streams.
	LowPassCutoffHz float64
}

var DefaultFusionConfig = FusionConfig{
	LowPassCutoffHz: 2.0,
}

type MotionConfig struct {
	// MaxGapInterval excludes teleports and signal-loss gaps from moving time.
	MaxGapInterval time.Duration
	// MovingSpeedMin is the mean endpoint speed above which an interval
	// counts as moving rather than paused.
	MovingSpeedMin float64
	// LeanMinSpeed and LeanMinSegment gate the GPS lean fallback;
	// below either, the point is straight-line or noise-dominated and left at zero.
	LeanMinSpeed   float64
	LeanMinSegment float64
	// LeanMaxDeg clamps the fallback lean estimate.
	LeanMaxDeg float64
}

var DefaultMotionConfig = MotionConfig{
	MaxGapInterval: 60 * time.Second,
	MovingSpeedMin: common.SpeedOfWalkingSlow,
	LeanMinSpeed:   1.0,
	LeanMinSegment: 1.0,
	LeanMaxDeg:     common.LeanAngleMax,
}

func DefaultConfig() *Config {
	return &Config{
		EngineConfig: DefaultEngineConfig,
		FusionConfig: DefaultFusionConfig,
		MotionConfig: DefaultMotionConfig,
	}
}
