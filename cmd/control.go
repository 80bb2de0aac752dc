package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stylus/stylus/internal/server"
	"github.com/stylus/stylus/internal/session"
)

// loveCmd represents the love command
var loveCmd = &cobra.Command{
	Use:   "love",
	Short: "Love the currently playing song",
	Long:  `Mark the currently playing song as loved on every provider that supports it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLove(true)
	},
}

// unloveCmd represents the unlove command
var unloveCmd = &cobra.Command{
	Use:   "unlove",
	Short: "Remove the love mark from the currently playing song",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLove(false)
	},
}

// skipCmd represents the skip command
var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Skip the currently playing song",
	Long: `Mark the currently playing song as skipped.

A skipped song is never scrobbled, no matter how long it keeps playing.`,
	RunE: runSkip,
}

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Correct the metadata of the currently playing song",
	Long: `Override the artist, track or album of the currently playing song.

The correction is applied immediately and remembered, so future plays
of the same song pick it up automatically.`,
	RunE: runEdit,
}

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop saved corrections for the currently playing song",
	Long: `Restore the connector-reported metadata of the currently playing song,
dropping any saved correction for it.`,
	RunE: runReset,
}

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active playback sessions",
	RunE:  runSessions,
}

var (
	editArtist string
	editTrack  string
	editAlbum  string
)

func init() {
	rootCmd.AddCommand(loveCmd)
	rootCmd.AddCommand(unloveCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(sessionsCmd)

	editCmd.Flags().StringVar(&editArtist, "artist", "", "Corrected artist name")
	editCmd.Flags().StringVar(&editTrack, "track", "", "Corrected track title")
	editCmd.Flags().StringVar(&editAlbum, "album", "", "Corrected album name")
}

func runLove(loved bool) error {
	// Loving fans out to the providers, so allow for a network round trip
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var view session.SongView
	if err := client.post(ctx, "/api/v1/song/love", map[string]bool{"loved": loved}, &view); err != nil {
		return err
	}

	if loved {
		fmt.Printf("Loved: %s - %s\n", view.Artist, view.Track)
	} else {
		fmt.Printf("Unloved: %s - %s\n", view.Artist, view.Track)
	}
	return nil
}

func runSkip(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var view session.SongView
	if err := client.post(ctx, "/api/v1/song/skip", nil, &view); err != nil {
		return err
	}

	fmt.Printf("Skipped: %s - %s\n", view.Artist, view.Track)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	edit := session.EditFields{
		Artist: editArtist,
		Track:  editTrack,
		Album:  editAlbum,
	}
	if edit.Empty() {
		return fmt.Errorf("nothing to edit: pass at least one of --artist, --track, --album")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var view session.SongView
	if err := client.post(ctx, "/api/v1/song/edit", edit, &view); err != nil {
		return err
	}

	fmt.Printf("Updated: %s - %s\n", view.Artist, view.Track)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var view session.SongView
	if err := client.post(ctx, "/api/v1/song/reset-data", nil, &view); err != nil {
		return err
	}

	fmt.Printf("Restored: %s - %s\n", view.Artist, view.Track)
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	var infos []server.SessionInfo
	if err := client.get(ctx, "/api/v1/sessions", &infos); err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Println("No active sessions")
		return nil
	}

	fmt.Printf("%-24s %-16s %-8s %s\n", "SESSION", "CONNECTOR", "ENABLED", "SONG")
	for _, info := range infos {
		song := "-"
		if info.Song != nil {
			song = fmt.Sprintf("%s - %s", info.Song.Artist, info.Song.Track)
			if !info.Song.IsPlaying {
				song += " (paused)"
			}
		}
		enabled := "yes"
		if !info.Enabled {
			enabled = "no"
		}
		fmt.Printf("%-24s %-16s %-8s %s\n", info.ID, info.Connector.Label, enabled, song)
	}
	return nil
}
