package discord

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// negativeCacheTTL is how long a failed artwork lookup is remembered
// before the album is queried again.
const negativeCacheTTL = 15 * time.Minute

// artworkLookup fetches album artwork URLs from the iTunes Search API for
// songs whose connector supplied none. Hits cache forever, misses cache
// for negativeCacheTTL so a dead lookup is not retried per snapshot.
type artworkLookup struct {
	mu       sync.Mutex
	cache    map[string]artworkEntry
	client   *http.Client
	endpoint string
	now      func() time.Time
}

type artworkEntry struct {
	url     string
	fetched time.Time
}

func newArtworkLookup() *artworkLookup {
	return &artworkLookup{
		cache: make(map[string]artworkEntry),
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		endpoint: "https://itunes.apple.com/search",
		now:      time.Now,
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Lookup returns an artwork URL for the given artist and album, or the
// empty string. Artwork is optional; no failure is reported.
func (a *artworkLookup) Lookup(artist, album string) string {
	if artist == "" {
		return ""
	}

	key := artist + "|" + album
	a.mu.Lock()
	if entry, ok := a.cache[key]; ok {
		if entry.url != "" || a.now().Sub(entry.fetched) < negativeCacheTTL {
			a.mu.Unlock()
			return entry.url
		}
	}
	a.mu.Unlock()

	artURL := a.fetch(artist, album)

	a.mu.Lock()
	a.cache[key] = artworkEntry{url: artURL, fetched: a.now()}
	a.mu.Unlock()

	return artURL
}

func (a *artworkLookup) fetch(artist, album string) string {
	term := strings.TrimSpace(artist + " " + album)
	if artURL := a.search(term, "album"); artURL != "" {
		return artURL
	}
	// Singles often have no album entry; the song entity still carries
	// its cover.
	return a.search(term, "song")
}

func (a *artworkLookup) search(term, entity string) string {
	query := url.Values{
		"term":   {term},
		"entity": {entity},
		"limit":  {"1"},
	}
	resp, err := a.client.Get(fmt.Sprintf("%s?%s", a.endpoint, query.Encode()))
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// Upscale from the 100x100 thumbnail the API returns.
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
