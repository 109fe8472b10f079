package influxdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/leantrack/tripd/conceptual"
	"github.com/leantrack/tripd/geo/motion"
	"github.com/leantrack/tripd/params"
)

// ExportTripSummary posts one finalized-trip summary to an InfluxDB Write API.
// Configuration comes from the INFLUXDB_* environment (see params).
// The last error encountered is returned.
func ExportTripSummary(token conceptual.Token, s motion.Summary) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	at := time.Now()
	if t, terr := token.Time(); terr == nil {
		at = t
	}
	p := influxdb2.NewPointWithMeasurement("trip").
		SetTime(at).
		AddTag("token", token.String()).
		AddField("points", s.Points).
		AddField("distance_m", s.DistanceMeters).
		AddField("moving_s", s.Moving.Seconds()).
		AddField("paused_s", s.Paused.Seconds()).
		AddField("max_speed", s.MaxSpeed).
		AddField("avg_moving_speed", s.AvgMovingSpeed).
		AddField("max_lean_deg", s.MaxLeanDeg).
		AddField("p95_lean_deg", s.P95LeanDeg).
		AddField("max_accel_g", s.MaxAccelG).
		AddField("max_brake_g", s.MaxBrakeG).
		AddField("sensor_lean", s.SensorLean)
	writeAPI.WritePoint(p)

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
