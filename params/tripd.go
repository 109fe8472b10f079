package params

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/leantrack/tripd/conceptual"
)

func init() {
	metrics.Enabled = true
}

const (
	// SegmentsDir holds in-flight increment segments, under the datadir root.
	SegmentsDir = "segments"
	// TracksDir holds finalized GPX tracks, under the datadir root.
	TracksDir = "tracks"

	// SegmentFileExt suffixes increment segment files.
	SegmentFileExt = ".inc"

	// EngineDBName is the bbolt file for engine state (odometer, last point).
	EngineDBName = "trip.db"
)

var DefaultDatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".tripd")
}()

var EngineStateBucket = []byte("engine")

// SegmentFileName names one increment segment: {token}_{4-digit seq}.inc.
// Sequence order, derived from this name, is the authoritative point order.
func SegmentFileName(token conceptual.Token, seq int) string {
	return fmt.Sprintf("%s_%04d%s", token, seq, SegmentFileExt)
}

// TrackFileName names the finalized track for a token.
func TrackFileName(token conceptual.Token) string {
	return fmt.Sprintf("track_%s.gpx", token)
}

var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)

var CacheLastPointTTL = 24 * time.Hour
