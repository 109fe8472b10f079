// Package gpx encodes finalized trips as GPX-1.1 documents:
// one track, one segment, with vendor extensions for lean angle
// and longitudinal acceleration.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/leantrack/tripd/types/trackpoint"
)

const (
	Creator = "tripd"
	Xmlns   = "http://www.topografix.com/GPX/1/1"
)

type document struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Trk     track    `xml:"trk"`
}

type track struct {
	Name    string  `xml:"name,omitempty"`
	Segment segment `xml:"trkseg"`
}

type segment struct {
	Points []point `xml:"trkpt"`
}

type point struct {
	Lat        float64     `xml:"lat,attr"`
	Lon        float64     `xml:"lon,attr"`
	Ele        string      `xml:"ele"`
	Time       string      `xml:"time"`
	Speed      string      `xml:"speed"`
	Extensions *extensions `xml:"extensions,omitempty"`
}

type extensions struct {
	// Lean angle in degrees, 2 decimals. Accel in m/s^2, 3 decimals.
	Lean  string `xml:"lean,omitempty"`
	Accel string `xml:"accel,omitempty"`
}

// Encode writes points as one GPX document.
// Times are UTC at second precision.
func Encode(w io.Writer, name string, points []*trackpoint.TrackPoint) error {
	doc := document{
		Version: "1.1",
		Creator: Creator,
		Xmlns:   Xmlns,
		Trk:     track{Name: name},
	}
	doc.Trk.Segment.Points = make([]point, 0, len(points))
	for _, tp := range points {
		p := point{
			Lat:   tp.Lat,
			Lon:   tp.Lon,
			Ele:   strconv.FormatFloat(tp.Elevation, 'f', -1, 64),
			Time:  tp.Time().UTC().Truncate(time.Second).Format(time.RFC3339),
			Speed: strconv.FormatFloat(tp.Speed, 'f', -1, 64),
		}
		if tp.HasLean() || tp.HasAccel() {
			ext := &extensions{}
			if tp.HasLean() {
				ext.Lean = fmt.Sprintf("%.2f", tp.Lean)
			}
			if tp.HasAccel() {
				ext.Accel = fmt.Sprintf("%.3f", tp.Accel)
			}
			p.Extensions = ext
		}
		doc.Trk.Segment.Points = append(doc.Trk.Segment.Points, p)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Decode reads a GPX document back into track points.
// Points missing lean/accel extensions come back with NaN there,
// matching how they were recorded.
func Decode(r io.Reader) ([]*trackpoint.TrackPoint, error) {
	doc := document{}
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("gpx decode: %w", err)
	}
	points := make([]*trackpoint.TrackPoint, 0, len(doc.Trk.Segment.Points))
	for i, p := range doc.Trk.Segment.Points {
		t, err := time.Parse(time.RFC3339, p.Time)
		if err != nil {
			return nil, fmt.Errorf("gpx trkpt %d: bad time: %w", i, err)
		}
		ele, _ := strconv.ParseFloat(p.Ele, 64)
		speed, _ := strconv.ParseFloat(p.Speed, 64)
		tp := trackpoint.New(p.Lat, p.Lon, ele, speed, t)
		if p.Extensions != nil {
			if p.Extensions.Lean != "" {
				if v, err := strconv.ParseFloat(p.Extensions.Lean, 64); err == nil {
					tp.Lean = v
				}
			}
			if p.Extensions.Accel != "" {
				if v, err := strconv.ParseFloat(p.Extensions.Accel, 64); err == nil {
					tp.Accel = v
				}
			}
		}
		points = append(points, tp)
	}
	return points, nil
}
