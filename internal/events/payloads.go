package events

import "github.com/stylus/stylus/internal/session"

// Session display states carried by TypeSessionState events.
const (
	StateLoading       = "loading"
	StateRecognized    = "recognized"
	StateNotRecognized = "not-recognized"
	StateScrobbled     = "scrobbled"
	StateSkipped       = "skipped"
	StateError         = "error"
	StateSiteSupported = "site-supported"
	StateSiteDisabled  = "site-disabled"
)

// SessionState is the payload of TypeSessionState events: the display
// state name plus the song it applies to. Song is nil for the states
// that concern the session rather than a particular song.
type SessionState struct {
	State string            `json:"state"`
	Song  *session.SongView `json:"song,omitempty"`
}
