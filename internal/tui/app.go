// Package tui renders a full-screen terminal monitor over the daemon's
// HTTP API: the playing song, the live sessions, recent scrobbles and
// the daemon's counters.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/stylus/stylus/internal/session"
)

const maxRecentScrobbles = 5

// Config holds TUI configuration options
type Config struct {
	BaseURL     string        // Daemon API base, e.g. http://127.0.0.1:7734
	RefreshRate time.Duration // How often to poll the daemon
}

// App is the terminal monitor application
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	sessions   *tview.TextView
	recent     *tview.TextView
	statusBar  *tview.TextView

	cfg Config
	api *client

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastSessions   string
	lastRecent     string
	lastStatus     string

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	cancelFunc context.CancelFunc
}

// New creates a monitor talking to the daemon at cfg.BaseURL
func New(cfg Config) *App {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = time.Second
	}
	a := &App{
		app: tview.NewApplication(),
		cfg: cfg,
		api: newClient(cfg.BaseURL),
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	// Now playing panel
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	// Progress bar
	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	// Session list
	a.sessions = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.sessions.SetBorder(true).
		SetTitle(" Sessions ").
		SetTitleAlign(tview.AlignLeft)

	// Recent scrobbles
	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Scrobbled ").
		SetTitleAlign(tview.AlignLeft)

	// Status bar
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit[-]")

	// Layout:
	// Top row: now playing (takes most space)
	// Middle row: progress bar
	// Bottom row: sessions | recent scrobbles
	// Footer: status bar

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.sessions, 0, 1, false).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 3, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, 7, 1, false).
		AddItem(a.statusBar, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		a.app.Stop()
		return nil
	}
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	}
	return event
}

// Run polls the daemon and renders until the user quits
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelFunc = cancel
	defer cancel()

	go a.poll(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// poll drives all redraws from a single ticker to prevent queued redraw
// buildup.
func (a *App) poll(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.RefreshRate)
	defer ticker.Stop()

	a.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

func (a *App) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	snap := a.api.snapshot(ctx)

	a.app.QueueUpdateDraw(func() {
		a.updateNowPlaying(snap)
		a.updateProgress(snap)
		a.updateSessions(snap)
		a.updateRecent(snap)
		a.updateStatusBar(snap)
	})
}

// updateNowPlaying updates the now playing panel
func (a *App) updateNowPlaying(snap snapshot) {
	var text string

	switch {
	case snap.err != nil:
		text = "\n\n[red]Daemon unreachable[-]\n[gray]start it with 'stylus daemon'[-]"
	case snap.song == nil:
		text = "\n\n[gray]No song playing[-]"
	default:
		var sb strings.Builder
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(snap.song.Track)))
		sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(snap.song.Artist)))
		sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(snap.song.Album)))

		// Play state indicator plus song flags
		stateIcon := "[green]▶[-]" // Play triangle
		if !snap.song.IsPlaying {
			stateIcon = "[yellow]⏸[-]" // Pause icon
		}
		sb.WriteString(fmt.Sprintf("\n\n%s", stateIcon))
		if snap.song.Loved {
			sb.WriteString("  [red]♥[-]")
		}
		if snap.song.Flags.IsScrobbled {
			sb.WriteString("  [green]✓ scrobbled[-]")
		}
		if snap.song.Flags.IsSkipped {
			sb.WriteString("  [gray]skipped[-]")
		}
		text = sb.String()
	}

	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

// updateProgress updates the progress bar
func (a *App) updateProgress(snap snapshot) {
	var text string

	if snap.err == nil && snap.song != nil {
		position := time.Duration(snap.song.CurrentTime * float64(time.Second))
		duration := time.Duration(snap.song.Duration * float64(time.Second))

		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 14 // Account for time display
		// Only update cached width when GetInnerRect returns a positive
		// value, avoiding flicker from transient zero-width during layout.
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}

		bar := buildProgressBar(position, duration, a.lastBarWidth)
		text = fmt.Sprintf("%s %s %s", formatDuration(position), bar, formatDuration(duration))
	}

	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

// updateSessions updates the session list panel
func (a *App) updateSessions(snap snapshot) {
	var sb strings.Builder

	if len(snap.sessions) == 0 {
		sb.WriteString("[gray]No sessions[-]")
	} else {
		for i, info := range snap.sessions {
			if i > 0 {
				sb.WriteString("\n")
			}

			marker := "[green]●[-]"
			if !info.Enabled {
				marker = "[gray]○[-]"
			}
			label := info.Connector.Label
			if label == "" {
				label = info.Connector.ID
			}
			sb.WriteString(fmt.Sprintf("%s [white]%s[-]", marker, tview.Escape(label)))

			if info.Song != nil {
				sb.WriteString(fmt.Sprintf("  [gray]%s[-] %s",
					tview.Escape(truncate(info.Song.Track, 24)), sessionSongState(info.Song)))
			}
		}
	}

	text := sb.String()
	if text != a.lastSessions {
		a.lastSessions = text
		a.sessions.SetText(text)
	}
}

// updateRecent updates the recent scrobbles panel
func (a *App) updateRecent(snap snapshot) {
	var sb strings.Builder

	if len(snap.recent) == 0 {
		sb.WriteString("[gray]No scrobbles yet[-]")
	} else {
		for i, e := range snap.recent {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("[green]✓[-] [white]%s[-] [gray]%s[-]",
				tview.Escape(truncate(e.Track, 20)), tview.Escape(e.Artist)))
		}
	}

	text := sb.String()
	if text != a.lastRecent {
		a.lastRecent = text
		a.recent.SetText(text)
	}
}

// updateStatusBar updates the footer line
func (a *App) updateStatusBar(snap snapshot) {
	text := "[gray]q:quit[-]"
	if snap.status != nil {
		providers := strings.Join(snap.status.Providers, ", ")
		if providers == "" {
			providers = "none"
		}
		text = fmt.Sprintf("[gray]q:quit | stylus %s | providers: %s | scrobbles: %d (%d failed)[-]",
			snap.status.Version, providers, snap.status.Scrobbles, snap.status.Errors)
	}

	if text != a.lastStatus {
		a.lastStatus = text
		a.statusBar.SetText(text)
	}
}

// sessionSongState renders the one-word state of a session's song
func sessionSongState(song *session.SongView) string {
	switch {
	case song.Flags.IsScrobbled:
		return "[green]scrobbled[-]"
	case song.Flags.IsSkipped:
		return "[gray]skipped[-]"
	case !song.IsPlaying:
		return "[yellow]paused[-]"
	default:
		return "[green]playing[-]"
	}
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", width)
	}

	progress := float64(position) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	bar := "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"

	return bar
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// truncate shortens s to at most n runes, appending "..." when cut
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
