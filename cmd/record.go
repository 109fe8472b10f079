/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/leantrack/tripd/daemon/webd"
	"github.com/leantrack/tripd/engine"
	"github.com/leantrack/tripd/events"
	"github.com/leantrack/tripd/fusion"
	"github.com/leantrack/tripd/geo/motion"
	"github.com/leantrack/tripd/gpx"
	"github.com/leantrack/tripd/metrics/influxdb"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/tripdb/increment"
)

var optServeAddr string
var optAutoStart bool

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a trip from NDJSON events on stdin",
	Long: `

Consumes newline-delimited JSON from stdin, one event per line, and runs the
recording session engine against it. This is the bridge mode: location and
inertial drivers (or a replay of their logs) pipe their output here.

Recognized lines:

  {"lat": 46.87, "lon": -113.99, "speed": 12.1, "altitude": 980, "accuracy": 4, "time": 1731952467000}
  {"orientation": [r11,r12,r13,r21,r22,r23,r31,r32,r33], "time": ...}
  {"accel": [x, y, z], "time": ...}
  {"event": "start"} | {"event": "pause"} | {"event": "stop"}

"time" is epoch milliseconds; when omitted, arrival time is used.
Missing speed/altitude are treated as zero; lean/accel on the recorded points
stay absent unless inertial samples flow.

Orphaned sessions from a prior unclean shutdown are finalized before the
engine accepts anything.

Examples:

  tripd-gps-driver | tripd record --serve localhost:3000
  zcat ride.ndjson.gz | tripd record --auto-start
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ilog, err := increment.NewLog(datadirRoot())
		if err != nil {
			log.Fatalln(err)
		}
		eng, err := engine.New(params.DefaultConfig(), ilog,
			filepath.Join(datadirRoot(), params.EngineDBName))
		if err != nil {
			log.Fatalln(err)
		}
		defer eng.Close()

		if params.INFLUXDB_URL != "" {
			go exportFinalizedTrips(ctx, ilog)
		}

		if optServeAddr != "" {
			cfg := params.DefaultWebDaemonConfig()
			cfg.Address = optServeAddr
			go func() {
				if err := webd.NewWebDaemon(cfg, eng).Run(); err != nil {
					slog.Error("Web daemon exited", "error", err)
				}
			}()
		}

		triggers := make(engine.ChanTriggerSource)
		eng.AttachTriggers(ctx, triggers)

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := eng.Run(ctx); err != nil {
				slog.Error("Engine exited", "error", err)
			}
		}()

		if optAutoStart {
			triggers <- engine.Trigger{Kind: engine.TriggerStart, At: time.Now()}
		}

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		for scanner.Scan() {
			feedLine(eng, triggers, scanner.Bytes())
		}
		if err := scanner.Err(); err != nil {
			slog.Error("Stdin read failed", "error", err)
		}

		// Input exhausted: stop the engine (flush + finalize) and wait.
		stop()
		<-done
	},
}

// feedLine sniffs one NDJSON line and feeds the matching engine event.
// Unrecognized lines are logged and dropped; a replay with garbage in it
// should degrade, not die.
func feedLine(eng *engine.Engine, triggers engine.ChanTriggerSource, line []byte) {
	if !gjson.ValidBytes(line) {
		slog.Warn("Dropping invalid JSON line")
		return
	}
	at := time.Now()
	if t := gjson.GetBytes(line, "time"); t.Exists() {
		at = time.UnixMilli(t.Int())
	}

	if ev := gjson.GetBytes(line, "event"); ev.Exists() {
		switch ev.String() {
		case "start":
			triggers <- engine.Trigger{Kind: engine.TriggerStart, At: at}
		case "pause":
			triggers <- engine.Trigger{Kind: engine.TriggerPause, At: at}
		case "stop":
			eng.Feed(engine.StopRequest{At: at})
		default:
			slog.Warn("Dropping unknown event line", "event", ev.String())
		}
		return
	}
	if o := gjson.GetBytes(line, "orientation"); o.Exists() {
		vals := o.Array()
		if len(vals) != 9 {
			slog.Warn("Dropping malformed orientation line", "n", len(vals))
			return
		}
		m := fusion.Matrix3{}
		for i, v := range vals {
			m[i] = v.Float()
		}
		eng.Feed(engine.OrientationSample{M: m, At: at})
		return
	}
	if a := gjson.GetBytes(line, "accel"); a.Exists() {
		vals := a.Array()
		if len(vals) != 3 {
			slog.Warn("Dropping malformed accel line", "n", len(vals))
			return
		}
		eng.Feed(engine.AccelSample{
			V:  [3]float64{vals[0].Float(), vals[1].Float(), vals[2].Float()},
			At: at,
		})
		return
	}
	if gjson.GetBytes(line, "lat").Exists() && gjson.GetBytes(line, "lon").Exists() {
		eng.Feed(engine.LocationFix{
			Lat:      gjson.GetBytes(line, "lat").Float(),
			Lon:      gjson.GetBytes(line, "lon").Float(),
			Speed:    gjson.GetBytes(line, "speed").Float(),
			Altitude: gjson.GetBytes(line, "altitude").Float(),
			Accuracy: gjson.GetBytes(line, "accuracy").Float(),
			At:       at,
		})
		return
	}
	slog.Warn("Dropping unrecognized line")
}

// exportFinalizedTrips posts a summary of every finalized trip to InfluxDB.
func exportFinalizedTrips(ctx context.Context, ilog *increment.Log) {
	lifeCh := make(chan events.Lifecycle)
	sub := events.LifecycleFeed.Subscribe(lifeCh)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			slog.Error("Lifecycle subscription failed", "error", err)
			return
		case lc := <-lifeCh:
			if lc.Kind != events.SessionFinalized || lc.TrackPath == "" {
				continue
			}
			fi, err := os.Open(lc.TrackPath)
			if err != nil {
				slog.Error("Cannot open finalized track", "path", lc.TrackPath, "error", err)
				continue
			}
			points, err := gpx.Decode(fi)
			fi.Close()
			if err != nil {
				slog.Error("Cannot decode finalized track", "path", lc.TrackPath, "error", err)
				continue
			}
			summary := motion.Summarize(points, params.DefaultMotionConfig)
			if err := influxdb.ExportTripSummary(lc.Token, summary); err != nil {
				slog.Warn("InfluxDB export failed", "token", lc.Token, "error", err)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(recordCmd)

	pFlags := recordCmd.PersistentFlags()
	pFlags.StringVar(&optServeAddr, "serve", "", "Also serve status/websocket HTTP on this address")
	pFlags.BoolVar(&optAutoStart, "auto-start", false, "Fire a start trigger immediately")
}
