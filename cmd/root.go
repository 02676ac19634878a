// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evbcore",
	Short: "evbcore - a physics-DAQ event-builder core",
	Long: `evbcore orders timestamped fragments from independently-clocked data
sources, synchronizes them against begin/end/pause/resume run barriers, and
glues coincident fragments into composite events for a downstream sink.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
}
