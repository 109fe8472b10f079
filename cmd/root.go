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
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leantrack/tripd/params"
)

var optVerbose bool
var optDatadir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tripd",
	Short: "Crash-safe vehicle trip recorder",
	Long: `tripd records a vehicle's GPS track together with
inertial-sensor-derived lean angle and longitudinal acceleration,
persists it crash-safely as increment segments, and produces finalized
GPX trip files.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pFlags := rootCmd.PersistentFlags()
	pFlags.BoolVarP(&optVerbose, "verbose", "v", false, "Debug logging")
	pFlags.StringVar(&optDatadir, "datadir", params.DefaultDatadirRoot, "Data directory root")

	viper.SetEnvPrefix("TRIPD")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pFlags)
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if optVerbose {
		level = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(level)
}

func datadirRoot() string {
	return viper.GetString("datadir")
}
