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

	"github.com/spf13/cobra"

	"github.com/leantrack/tripd/tripdb/increment"
)

// recoverCmd represents the recover command
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Finalize orphaned sessions",
	Long: `Scans the segment directory for sessions with persisted increment
segments but no finalized track (an unclean prior shutdown), merges each
into a GPX track, and deletes the merged segments.

Safe to run repeatedly; finalize is terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ilog, err := increment.NewLog(datadirRoot())
		if err != nil {
			log.Fatalln(err)
		}
		n, err := ilog.FinalizeOrphans()
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("recovered %d orphaned session(s)\n", n)
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
