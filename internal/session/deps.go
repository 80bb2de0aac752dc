package session

import (
	"context"
	"errors"

	"github.com/stylus/stylus/internal/scrobbler"
)

// ErrNoActiveSong is returned by operations that require an owned song
// when the session has none.
var ErrNoActiveSong = errors.New("no active song")

// ErrSubmissionFailed is returned when every configured provider rejected
// a submission.
var ErrSubmissionFailed = errors.New("all providers failed")

// ConnectorInfo describes the site adapter feeding a session.
type ConnectorInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Outcome is the pipeline's verdict on a song: corrected submission fields
// and whether the song is scrobble-eligible.
type Outcome struct {
	Artist string
	Track  string
	Album  string
	Valid  bool
}

// Processor runs the metadata pipeline over a song snapshot. Calls run off
// the controller's logical thread; implementations must not retain the
// view.
type Processor interface {
	ProcessSong(ctx context.Context, song SongView) Outcome
}

// Service submits now-playing, scrobble and love events to the configured
// providers and reports per-provider results.
type Service interface {
	SendNowPlaying(ctx context.Context, song SongView) []scrobbler.Result
	Scrobble(ctx context.Context, song SongView) []scrobbler.Result
	ToggleLove(ctx context.Context, song SongView, loved bool) []scrobbler.Result
}

// Cache drops the stored per-song user overrides for a song.
type Cache interface {
	RemoveSongFromStorage(ctx context.Context, song SongView) error
}

// UI receives discrete session-state calls. Implementations must be
// non-blocking; no return value is consumed.
type UI interface {
	Loading(song SongView)
	Recognized(song SongView)
	NotRecognized(song SongView)
	Scrobbled(song SongView)
	Skipped(song SongView)
	Error(song SongView)
	SiteSupported()
	SiteDisabled()
}

// Notifier shows and removes desktop notifications. The returned ID is the
// notification server's handle, kept on the song so the notice can be
// withdrawn when the song goes away.
type Notifier interface {
	ShowNowPlaying(ctx context.Context, song SongView) (uint32, error)
	ShowNotRecognized(ctx context.Context, song SongView) (uint32, error)
	Remove(ctx context.Context, id uint32) error
}

// Broadcaster fans a "song updated" event out to other surfaces whenever
// flags or metadata meaningfully change. Must be non-blocking.
type Broadcaster interface {
	SongUpdated(song SongView)
}

// Deps wires the external collaborators of a session controller. All
// fields are required.
type Deps struct {
	Pipeline  Processor
	Service   Service
	Cache     Cache
	UI        UI
	Notify    Notifier
	Broadcast Broadcaster
}
