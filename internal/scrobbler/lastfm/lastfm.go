// Package lastfm is the Last.fm provider: scrobbling, now-playing and
// love submissions plus the desktop authentication flow used by the auth
// command.
package lastfm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shkh/lastfm-go/lastfm"

	"github.com/stylus/stylus/internal/scrobbler"
)

// ErrNotAuthenticated is returned when an operation requires a session
// key and none is set.
var ErrNotAuthenticated = errors.New("lastfm: not authenticated")

// Provider implements scrobbler.Provider against the Last.fm API.
type Provider struct {
	api        *lastfm.Api
	apiKey     string
	sessionKey string
	log        zerolog.Logger
}

// New creates a Last.fm provider with the given API credentials. The
// provider stays disabled until a session key is set.
func New(apiKey, apiSecret string, log zerolog.Logger) *Provider {
	return &Provider{
		api:    lastfm.New(apiKey, apiSecret),
		apiKey: apiKey,
		log:    log.With().Str("component", "lastfm").Logger(),
	}
}

// SetSessionKey installs an authenticated session key.
func (p *Provider) SetSessionKey(key string) {
	p.sessionKey = key
	if key != "" {
		p.api.SetSession(key)
	}
}

// SessionKey returns the current session key.
func (p *Provider) SessionKey() string {
	return p.sessionKey
}

// ID implements scrobbler.Provider.
func (p *Provider) ID() string { return "lastfm" }

// Name implements scrobbler.Provider.
func (p *Provider) Name() string { return "Last.fm" }

// Enabled reports whether credentials and a session key are configured.
func (p *Provider) Enabled() bool {
	return p.apiKey != "" && p.sessionKey != ""
}

// GetToken requests an authentication token, step one of the desktop
// auth flow.
func (p *Provider) GetToken() (string, error) {
	token, err := p.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// AuthURL returns the page where the user authorizes the token.
func (p *Provider) AuthURL(token string) string {
	return fmt.Sprintf("https://www.last.fm/api/auth/?api_key=%s&token=%s", p.apiKey, token)
}

// GetSession exchanges an authorized token for a session key and the
// account's username.
func (p *Provider) GetSession(token string) (username, sessionKey string, err error) {
	if err := p.api.LoginWithToken(token); err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}

	sessionKey = p.api.GetSessionKey()
	p.sessionKey = sessionKey

	userInfo, err := p.api.User.GetInfo(nil)
	if err != nil {
		// The session is valid even when the username lookup fails.
		return "", sessionKey, nil
	}
	return userInfo.Name, sessionKey, nil
}

// UpdateNowPlaying implements scrobbler.Provider.
func (p *Provider) UpdateNowPlaying(ctx context.Context, track scrobbler.Track) error {
	if !p.Enabled() {
		return ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.api.Track.UpdateNowPlaying(p.params(track))
	if err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

// Scrobble implements scrobbler.Provider.
func (p *Provider) Scrobble(ctx context.Context, track scrobbler.Track) error {
	if !p.Enabled() {
		return ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := p.params(track)
	params["timestamp"] = track.StartedAt.Unix()

	_, err := p.api.Track.Scrobble(params)
	if err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

// LoveTrack implements scrobbler.Provider.
func (p *Provider) LoveTrack(ctx context.Context, track scrobbler.Track, loved bool) error {
	if !p.Enabled() {
		return ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Track,
	}

	if loved {
		if err := p.api.Track.Love(params); err != nil {
			return fmt.Errorf("love: %w", err)
		}
		return nil
	}
	if err := p.api.Track.UnLove(params); err != nil {
		return fmt.Errorf("unlove: %w", err)
	}
	return nil
}

func (p *Provider) params(track scrobbler.Track) lastfm.P {
	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Track,
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}
	return params
}
