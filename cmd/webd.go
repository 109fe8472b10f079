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
	"log"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leantrack/tripd/daemon/webd"
	"github.com/leantrack/tripd/engine"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/tripdb/increment"
)

var optHTTPAddr string

// webdCmd represents the webd command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Serve trip status over HTTP",
	Long: `Serves engine status, the last recorded point, and a websocket
statistics stream for UI collaborators. Recovers orphaned sessions on start.

For a daemon that also records, see 'tripd record --serve'.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

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
		if _, err := eng.RecoverOrphans(); err != nil {
			slog.Error("Orphan recovery failed", "error", err)
		}

		cfg := params.DefaultWebDaemonConfig()
		cfg.Address = optHTTPAddr
		cfg.DataDir = datadirRoot()
		if err := webd.NewWebDaemon(cfg, eng).Run(); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()
	pFlags := webdCmd.PersistentFlags()
	pFlags.StringVar(&optHTTPAddr, "address", defaults.Address, "HTTP address to listen on")
}
