package events

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/leantrack/tripd/conceptual"
	"github.com/leantrack/tripd/types/trackpoint"
)

// Stats is the periodic statistics payload consumed by UI collaborators.
// Emitted once per stats tick while a session exists (recording or paused).
type Stats struct {
	Token                   conceptual.Token `json:"token"`
	DistanceMeters          float64          `json:"distanceMeters"`
	DurationMs              int64            `json:"durationMs"`
	IsRecording             bool             `json:"isRecording"`
	FileName                string           `json:"fileName"`
	PauseTimeoutRemainingMs int64            `json:"pauseTimeoutRemainingMs"`
	PausedForMs             int64            `json:"pausedForMs"`
	CurrentAccuracy         float64          `json:"currentAccuracy"`
	AvgAccuracy             float64          `json:"avgAccuracy"`
	CurrentUpdateRateHz     float64          `json:"currentUpdateRateHz"`
	AvgUpdateRateHz         float64          `json:"avgUpdateRateHz"`
}

type LifecycleKind string

const (
	SessionStarted   LifecycleKind = "started"
	SessionPaused    LifecycleKind = "paused"
	SessionResumed   LifecycleKind = "resumed"
	SessionFinalized LifecycleKind = "finalized"
)

// Lifecycle marks a session state-machine transition.
type Lifecycle struct {
	Kind  LifecycleKind    `json:"kind"`
	Token conceptual.Token `json:"token"`
	// TrackPath is set on finalize, when a track file was produced.
	TrackPath string `json:"trackPath,omitempty"`
}

// StatsFeed is emitted for every periodic statistics recomputation.
var StatsFeed = event.FeedOf[Stats]{}

// LifecycleFeed is emitted for every session lifecycle transition.
var LifecycleFeed = event.FeedOf[Lifecycle]{}

// NewStampedPointFeed is emitted for every location fix accepted into the
// session buffer, after inertial stamping. Subscribers should expect high
// rates and must not block.
var NewStampedPointFeed = event.FeedOf[*trackpoint.TrackPoint]{}
