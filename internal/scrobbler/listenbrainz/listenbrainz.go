// Package listenbrainz is the ListenBrainz provider, a JSON client for
// the listen submission API.
package listenbrainz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/scrobbler"
)

// DefaultAPIURL is the public ListenBrainz API root.
const DefaultAPIURL = "https://api.listenbrainz.org"

// Config holds ListenBrainz provider configuration.
type Config struct {
	// APIURL overrides the API root, mainly for tests and self-hosted
	// instances. Empty means DefaultAPIURL.
	APIURL string
	// Token is the user token from listenbrainz.org/profile.
	Token string
}

// Provider implements scrobbler.Provider against the ListenBrainz API.
type Provider struct {
	apiURL string
	token  string
	client *http.Client
	log    zerolog.Logger
}

// New creates a ListenBrainz provider.
func New(cfg Config, log zerolog.Logger) *Provider {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Provider{
		apiURL: apiURL,
		token:  cfg.Token,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "listenbrainz").Logger(),
	}
}

// ID implements scrobbler.Provider.
func (p *Provider) ID() string { return "listenbrainz" }

// Name implements scrobbler.Provider.
func (p *Provider) Name() string { return "ListenBrainz" }

// Enabled reports whether a user token is configured.
func (p *Provider) Enabled() bool { return p.token != "" }

// trackMetadata matches the ListenBrainz track_metadata schema.
type trackMetadata struct {
	ArtistName     string         `json:"artist_name"`
	TrackName      string         `json:"track_name"`
	ReleaseName    string         `json:"release_name,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

type listen struct {
	ListenedAt    int64         `json:"listened_at,omitempty"`
	TrackMetadata trackMetadata `json:"track_metadata"`
}

type submitRequest struct {
	ListenType string   `json:"listen_type"`
	Payload    []listen `json:"payload"`
}

// UpdateNowPlaying implements scrobbler.Provider.
func (p *Provider) UpdateNowPlaying(ctx context.Context, track scrobbler.Track) error {
	return p.submit(ctx, "playing_now", listen{
		TrackMetadata: p.metadata(track),
	})
}

// Scrobble implements scrobbler.Provider.
func (p *Provider) Scrobble(ctx context.Context, track scrobbler.Track) error {
	return p.submit(ctx, "single", listen{
		ListenedAt:    track.StartedAt.Unix(),
		TrackMetadata: p.metadata(track),
	})
}

// LoveTrack implements scrobbler.Provider. ListenBrainz feedback needs a
// MessyBrainz/MusicBrainz ID that connector snapshots do not carry.
func (p *Provider) LoveTrack(context.Context, scrobbler.Track, bool) error {
	return scrobbler.ErrLoveUnsupported
}

// ValidateToken checks the configured token and returns the account name
// it belongs to.
func (p *Provider) ValidateToken(ctx context.Context) (string, error) {
	if !p.Enabled() {
		return "", scrobbler.ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/1/validate-token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, resp.Status); err != nil {
		return "", err
	}

	var body struct {
		Valid    bool   `json:"valid"`
		UserName string `json:"user_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode validate-token response: %w", err)
	}
	if !body.Valid {
		return "", scrobbler.ErrUnauthorized
	}
	return body.UserName, nil
}

func (p *Provider) metadata(track scrobbler.Track) trackMetadata {
	info := map[string]any{
		"submission_client": "stylus",
	}
	if track.Duration > 0 {
		info["duration_ms"] = track.Duration.Milliseconds()
	}
	return trackMetadata{
		ArtistName:     track.Artist,
		TrackName:      track.Track,
		ReleaseName:    track.Album,
		AdditionalInfo: info,
	}
}

func (p *Provider) submit(ctx context.Context, listenType string, l listen) error {
	if !p.Enabled() {
		return scrobbler.ErrNotConfigured
	}

	body, err := json.Marshal(submitRequest{
		ListenType: listenType,
		Payload:    []listen{l},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/1/submit-listens", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return statusError(resp.StatusCode, resp.Status)
}

func statusError(code int, status string) error {
	switch {
	case code == http.StatusUnauthorized:
		return scrobbler.ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return scrobbler.ErrRateLimited
	case code >= 400:
		return fmt.Errorf("listenbrainz error: %s", status)
	}
	return nil
}
