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
	"fmt"
	"log"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/leantrack/tripd/geo/motion"
	"github.com/leantrack/tripd/gpx"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/types/trackpoint"
)

// leanBucketBounds band lean angles for the severity histogram, degrees.
var leanBucketBounds = []float64{10, 20, 30, 40, 50}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [track.gpx ...]",
	Short: "Derive and summarize trip series from finalized tracks",
	Long: `Reads finalized GPX tracks and prints summary statistics: distance,
moving vs. paused time, speeds, lean angle and longitudinal g.

When the track carries sensor-recorded lean/acceleration those are used;
otherwise both are estimated from the GPS trajectory alone.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		cfg := params.DefaultMotionConfig
		for _, arg := range args {
			fi, err := os.Open(arg)
			if err != nil {
				log.Fatalln(err)
			}
			points, err := gpx.Decode(fi)
			fi.Close()
			if err != nil {
				log.Fatalln(err)
			}
			s := motion.Summarize(points, cfg)

			source := "gps-estimated"
			if s.SensorLean {
				source = "sensor"
			}
			fmt.Printf("%s\n", arg)
			fmt.Printf("  points          %s\n", humanize.Comma(int64(s.Points)))
			fmt.Printf("  distance        %s km\n", humanize.CommafWithDigits(s.DistanceMeters/1000, 2))
			fmt.Printf("  moving          %s\n", s.Moving.Round(time.Second))
			fmt.Printf("  paused          %s\n", s.Paused.Round(time.Second))
			fmt.Printf("  max speed       %.1f m/s\n", s.MaxSpeed)
			fmt.Printf("  avg moving      %.1f m/s\n", s.AvgMovingSpeed)
			fmt.Printf("  max lean        %.1f deg (%s)\n", s.MaxLeanDeg, source)
			fmt.Printf("  p95 lean        %.1f deg\n", s.P95LeanDeg)
			fmt.Printf("  max accel       %.2f g\n", s.MaxAccelG)
			fmt.Printf("  max braking     %.2f g\n", s.MaxBrakeG)

			printLeanHistogram(points, cfg)
		}
	},
}

// printLeanHistogram bands absolute lean into severity buckets.
func printLeanHistogram(points []*trackpoint.TrackPoint, cfg params.MotionConfig) {
	var leans []float64
	if motion.HasSensorLean(points) {
		for _, tp := range points {
			if tp.HasLean() {
				leans = append(leans, tp.Lean)
			}
		}
	} else {
		leans = motion.LeanSeries(points, cfg)
	}
	counts := make([]int, len(leanBucketBounds)+1)
	for _, v := range leans {
		counts[motion.SeverityBucket(v, leanBucketBounds)]++
	}
	fmt.Printf("  lean histogram  ")
	lo := 0.0
	for i, c := range counts {
		if i < len(leanBucketBounds) {
			fmt.Printf("[%g-%g)=%d ", lo, leanBucketBounds[i], c)
			lo = leanBucketBounds[i]
		} else {
			fmt.Printf("[%g+]=%d", lo, c)
		}
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
