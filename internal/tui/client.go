package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stylus/stylus/internal/server"
	"github.com/stylus/stylus/internal/session"
)

var errNotFound = errors.New("not found")

// daemonStatus mirrors the daemon's /api/v1/status response.
type daemonStatus struct {
	Version   string   `json:"version"`
	Providers []string `json:"providers"`
	Sessions  int      `json:"sessions"`
	Scrobbles uint64   `json:"scrobbles"`
	Errors    uint64   `json:"errors"`
}

// journalEntry mirrors one /api/v1/history element.
type journalEntry struct {
	Artist      string    `json:"artist"`
	Track       string    `json:"track"`
	Album       string    `json:"album"`
	ScrobbledAt time.Time `json:"scrobbledAt"`
}

// snapshot is one poll's worth of daemon state. err is set when the
// daemon could not be reached; the remaining fields are then stale.
type snapshot struct {
	err      error
	status   *daemonStatus
	song     *session.SongView
	sessions []server.SessionInfo
	recent   []journalEntry
}

// client fetches monitor snapshots from the daemon API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 2 * time.Second},
	}
}

// snapshot polls every endpoint the monitor renders. It stops at the
// first failure; a half-polled daemon would paint inconsistent panels.
func (c *client) snapshot(ctx context.Context) snapshot {
	var snap snapshot

	status, err := c.getStatus(ctx)
	if err != nil {
		snap.err = err
		return snap
	}
	snap.status = status

	if snap.song, err = c.getActiveSong(ctx); err != nil {
		snap.err = err
		return snap
	}
	if snap.sessions, err = c.getSessions(ctx); err != nil {
		snap.err = err
		return snap
	}
	if snap.recent, err = c.getHistory(ctx, maxRecentScrobbles); err != nil {
		snap.err = err
	}
	return snap
}

func (c *client) getStatus(ctx context.Context) (*daemonStatus, error) {
	var status daemonStatus
	if err := c.getJSON(ctx, "/api/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// getActiveSong returns nil without error when no session has a song;
// the daemon answers 404 for that.
func (c *client) getActiveSong(ctx context.Context) (*session.SongView, error) {
	var view session.SongView
	err := c.getJSON(ctx, "/api/v1/song", &view)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *client) getSessions(ctx context.Context) ([]server.SessionInfo, error) {
	var infos []server.SessionInfo
	if err := c.getJSON(ctx, "/api/v1/sessions", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *client) getHistory(ctx context.Context, limit int) ([]journalEntry, error) {
	var entries []journalEntry
	path := fmt.Sprintf("/api/v1/history?limit=%d", limit)
	if err := c.getJSON(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
