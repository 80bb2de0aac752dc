/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/stylus/stylus/internal/config"
	"github.com/stylus/stylus/internal/session"
)

// Marquee tuning. The scroll position is derived from the wall clock,
// so repeated invocations (tmux status refreshes) advance the window.
const (
	marqueeSpeed     = 2 // display columns per second
	marqueeSeparator = "   "
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the currently playing song",
	Long: `Query the daemon and display the currently playing song.

The output format can be customized in ~/.config/stylus/config.yaml
using a Go template. Available fields: .Artist, .Track, .Album,
.CurrentTime, .Duration

Exit codes:
  0 - A song is currently playing
  1 - Nothing playing, playback paused, or daemon not running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width in display columns (0=disabled)")
	// Add marquee flag to enable scrolling
	nowCmd.Flags().Bool("marquee", false, "Scroll output that exceeds --width")
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	format := cfg.NowFormat
	if flag, _ := cmd.Flags().GetString("format"); flag != "" {
		format = flag
	}

	// Fetch the active song from the daemon
	var view session.SongView
	err = newAPIClient(cfg.Server.ListenAddr).get(ctx, "/api/v1/song", &view)
	if errors.Is(err, errDaemonDown) || isNotFound(err) {
		// Nothing to show; status bars want a silent exit
		os.Exit(1)
	}
	if err != nil {
		return fmt.Errorf("failed to get current song: %w", err)
	}

	// If not playing, exit with code 1
	if !view.IsPlaying {
		os.Exit(1)
	}

	// Format and print output
	output, err := formatSong(view, format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding/marquee if requested
	width, _ := cmd.Flags().GetInt("width")
	marquee, _ := cmd.Flags().GetBool("marquee")

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, marqueeSpeed, marqueeSeparator)
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

// formatSong applies the template to the song data
func formatSong(view session.SongView, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width. Width is
// measured in display columns, so emoji and CJK characters count by
// their visual width. Overlong text is truncated with a "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	current := runewidth.StringWidth(text)
	switch {
	case current > width:
		const ellipsis = "..."
		if width <= runewidth.StringWidth(ellipsis) {
			return runewidth.Truncate(ellipsis, width, "")
		}
		out := runewidth.Truncate(text, width-runewidth.StringWidth(ellipsis), "") + ellipsis
		// Truncating before a wide rune can land a column short.
		if got := runewidth.StringWidth(out); got < width {
			out += strings.Repeat(" ", width-got)
		}
		return out
	case current < width:
		return text + strings.Repeat(" ", width-current)
	}
	return text
}

// marqueeText scrolls text that exceeds width by sliding a window over
// "text + separator + text". The window position comes from the current
// unix time, so each status-bar refresh advances it by speed columns per
// second and the same timestamp always yields the same output.
func marqueeText(text string, width, speed int, separator string) string {
	if width <= 0 {
		return text
	}

	// If text fits, just pad normally (no scrolling needed)
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	extended := []rune(text + separator + text)
	position := int(time.Now().Unix()*int64(speed)) % len(extended)

	var out []rune
	outWidth := 0
	for i := 0; i < len(extended) && outWidth < width; i++ {
		r := extended[(position+i)%len(extended)]
		w := runewidth.RuneWidth(r)
		if outWidth+w > width {
			break
		}
		out = append(out, r)
		outWidth += w
	}

	// Pad with spaces if needed to reach exact width
	if outWidth < width {
		return string(out) + strings.Repeat(" ", width-outWidth)
	}
	return string(out)
}
