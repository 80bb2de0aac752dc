package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently scrobbled songs",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}

// daemonStatus mirrors the daemon's /api/v1/status response.
type daemonStatus struct {
	Version       string   `json:"version"`
	UptimeSeconds float64  `json:"uptimeSeconds"`
	Providers     []string `json:"providers"`
	Sessions      int      `json:"sessions"`
	Scrobbles     uint64   `json:"scrobbles"`
	Errors        uint64   `json:"errors"`
}

// journalEntry mirrors one /api/v1/history element.
type journalEntry struct {
	Artist      string    `json:"artist"`
	Track       string    `json:"track"`
	Album       string    `json:"album"`
	ScrobbledAt time.Time `json:"scrobbledAt"`
	Providers   []string  `json:"providers"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var st daemonStatus
	if err := client.get(ctx, "/api/v1/status", &st); err != nil {
		return err
	}

	uptime := time.Duration(st.UptimeSeconds * float64(time.Second)).Round(time.Second)
	providers := "none"
	if len(st.Providers) > 0 {
		providers = strings.Join(st.Providers, ", ")
	}

	fmt.Printf("stylus %s, up %s\n", st.Version, uptime)
	fmt.Printf("providers: %s\n", providers)
	fmt.Printf("sessions:  %d\n", st.Sessions)
	fmt.Printf("scrobbles: %d (%d failed)\n", st.Scrobbles, st.Errors)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var entries []journalEntry
	path := fmt.Sprintf("/api/v1/history?limit=%d", historyLimit)
	if err := client.get(ctx, path, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No scrobbles yet")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %s - %s",
			e.ScrobbledAt.Local().Format("2006-01-02 15:04"), e.Artist, e.Track)
		if e.Album != "" {
			line += fmt.Sprintf(" (%s)", e.Album)
		}
		fmt.Println(line)
	}
	return nil
}
