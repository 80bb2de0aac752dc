package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylus/stylus/internal/config"
	"github.com/stylus/stylus/internal/tui"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Full-screen terminal monitor for the daemon",
	Long: `Display a terminal UI showing what the daemon is doing in real time.

The monitor includes:
- Now playing display with song metadata and a progress bar
- Active playback sessions with their state
- Recently scrobbled songs
- Daemon status (providers, scrobble counters)

It talks to the daemon's HTTP API and refreshes once a second.
Press 'q' or Esc to quit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app := tui.New(tui.Config{BaseURL: "http://" + cfg.Server.ListenAddr})
	if err := app.Run(); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}
