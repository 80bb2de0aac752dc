/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stylus",
	Short: "Headless scrobbling daemon",
	Long: `stylus is a headless scrobbling daemon.

Connectors report playback snapshots to its local HTTP API. The daemon
tracks each playback session, detects song changes, pauses and replays,
and scrobbles songs to Last.fm and ListenBrainz once they have played
long enough.

It also provides CLI commands to query the currently playing song,
inspect recent scrobbles, and control the active session, useful for
tmux status lines, status bars and scripting.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
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
	// Global flags can be added here if needed
}
