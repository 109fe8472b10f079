package trackpoint

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leantrack/tripd/common"
	"github.com/paulmach/orb"
)

// TrackPoint is one recorded GPS fix, stamped (maybe) with fused inertial data.
// A TrackPoint is as much a point in time as it is a point in space;
// time is kept at millisecond granularity since trip math (update rates,
// filter intervals) needs sub-second resolution.
// Lean and Accel are NaN when no inertial source was active at record time.
// NaN - not zero - because zero lean is a real, meaningful reading.
// TrackPoints are immutable once created.
type TrackPoint struct {
	Lat       float64
	Lon       float64
	Elevation float64
	Speed     float64
	UnixMilli int64
	Lean      float64
	Accel     float64
}

// trackPointJSON is the wire shape: NaN is not representable in JSON,
// so absent lean/accel are omitted instead.
type trackPointJSON struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation float64  `json:"elevation"`
	Speed     float64  `json:"speed"`
	UnixMilli int64    `json:"time"`
	Lean      *float64 `json:"lean,omitempty"`
	Accel     *float64 `json:"accel,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface.
func (tp TrackPoint) MarshalJSON() ([]byte, error) {
	j := trackPointJSON{
		Lat:       tp.Lat,
		Lon:       tp.Lon,
		Elevation: tp.Elevation,
		Speed:     tp.Speed,
		UnixMilli: tp.UnixMilli,
	}
	if tp.HasLean() {
		j.Lean = &tp.Lean
	}
	if tp.HasAccel() {
		j.Accel = &tp.Accel
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (tp *TrackPoint) UnmarshalJSON(data []byte) error {
	j := trackPointJSON{}
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	tp.Lat, tp.Lon = j.Lat, j.Lon
	tp.Elevation, tp.Speed = j.Elevation, j.Speed
	tp.UnixMilli = j.UnixMilli
	tp.Lean, tp.Accel = math.NaN(), math.NaN()
	if j.Lean != nil {
		tp.Lean = *j.Lean
	}
	if j.Accel != nil {
		tp.Accel = *j.Accel
	}
	return nil
}

// New creates a TrackPoint without inertial data.
func New(lat, lon, elevation, speed float64, t time.Time) *TrackPoint {
	return &TrackPoint{
		Lat:       lat,
		Lon:       lon,
		Elevation: elevation,
		Speed:     speed,
		UnixMilli: t.UnixMilli(),
		Lean:      math.NaN(),
		Accel:     math.NaN(),
	}
}

// Point returns the point the vehicle is or was at, x/y :: lng/lat.
func (tp *TrackPoint) Point() orb.Point {
	return orb.Point{tp.Lon, tp.Lat}
}

func (tp *TrackPoint) Time() time.Time {
	return time.UnixMilli(tp.UnixMilli)
}

func (tp *TrackPoint) HasLean() bool {
	return !math.IsNaN(tp.Lean)
}

func (tp *TrackPoint) HasAccel() bool {
	return !math.IsNaN(tp.Accel)
}

// Validate checks the point for basic validity,
// returning the first error it encounters.
func (tp *TrackPoint) Validate() error {
	if tp.Lat < -90 || tp.Lat > 90 {
		return fmt.Errorf("invalid coordinate: lat=%.14f", tp.Lat)
	}
	if tp.Lon < -180 || tp.Lon > 180 {
		return fmt.Errorf("invalid coordinate: lng=%.14f", tp.Lon)
	}
	if tp.UnixMilli <= 0 {
		return fmt.Errorf("zero time")
	}
	return nil
}

// SlicesSortFunc implements the slices.SortFunc contract for TrackPoint slices.
// Sorting is chronological.
// > cmp(a, b) should return a negative number when a < b,
// > a positive number when a > b, and zero when a == b
func SlicesSortFunc(a, b *TrackPoint) int {
	switch {
	case a.UnixMilli < b.UnixMilli:
		return -1
	case a.UnixMilli > b.UnixMilli:
		return 1
	}
	return 0
}

// MarshalLine encodes the point as one segment-file line:
// lat,lon,speed,timestampMs,elevation,lean,accel
// Lean and accel are blank when absent.
func (tp *TrackPoint) MarshalLine() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatFloat(tp.Lat, 'f', -1, 64))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatFloat(tp.Lon, 'f', -1, 64))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatFloat(tp.Speed, 'f', -1, 64))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatInt(tp.UnixMilli, 10))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatFloat(tp.Elevation, 'f', -1, 64))
	sb.WriteByte(',')
	if tp.HasLean() {
		sb.WriteString(strconv.FormatFloat(tp.Lean, 'f', -1, 64))
	}
	sb.WriteByte(',')
	if tp.HasAccel() {
		sb.WriteString(strconv.FormatFloat(tp.Accel, 'f', -1, 64))
	}
	return sb.String()
}

// UnmarshalLine decodes one segment-file line.
// The inverse of MarshalLine.
func UnmarshalLine(line string) (*TrackPoint, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 7 {
		return nil, fmt.Errorf("malformed track point line: %d fields", len(fields))
	}
	tp := &TrackPoint{Lean: math.NaN(), Accel: math.NaN()}
	var err error
	if tp.Lat, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return nil, fmt.Errorf("bad lat: %w", err)
	}
	if tp.Lon, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return nil, fmt.Errorf("bad lon: %w", err)
	}
	if tp.Speed, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return nil, fmt.Errorf("bad speed: %w", err)
	}
	if tp.UnixMilli, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
		return nil, fmt.Errorf("bad timestamp: %w", err)
	}
	if tp.Elevation, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return nil, fmt.Errorf("bad elevation: %w", err)
	}
	if fields[5] != "" {
		if tp.Lean, err = strconv.ParseFloat(fields[5], 64); err != nil {
			return nil, fmt.Errorf("bad lean: %w", err)
		}
	}
	if fields[6] != "" {
		if tp.Accel, err = strconv.ParseFloat(fields[6], 64); err != nil {
			return nil, fmt.Errorf("bad accel: %w", err)
		}
	}
	if err := tp.Validate(); err != nil {
		return nil, err
	}
	return tp, nil
}

func (tp *TrackPoint) StringPretty() string {
	return fmt.Sprintf("%v %s %.2fm/s",
		tp.Time().UTC().Format("2006-01-02 15:04:05"),
		fmt.Sprintf("[%v,%v]",
			common.DecimalToFixed(tp.Lat, 5),
			common.DecimalToFixed(tp.Lon, 5)),
		tp.Speed,
	)
}
