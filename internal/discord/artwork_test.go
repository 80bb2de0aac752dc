package discord

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func artServer(t *testing.T, handler http.HandlerFunc) *artworkLookup {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := newArtworkLookup()
	a.endpoint = srv.URL
	return a
}

func TestArtworkLookupReturnsUpscaledURL(t *testing.T) {
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(itunesResponse{
			Results: []itunesResult{
				{ArtworkURL100: "https://example.com/art/100x100bb.jpg"},
			},
		})
	})

	got := a.Lookup("Queen", "A Night at the Opera")
	want := "https://example.com/art/600x600bb.jpg"
	if got != want {
		t.Errorf("Lookup() = %q, want %q", got, want)
	}
}

func TestArtworkLookupCachesHits(t *testing.T) {
	var hits atomic.Int32
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(itunesResponse{
			Results: []itunesResult{
				{ArtworkURL100: "https://example.com/art/100x100bb.jpg"},
			},
		})
	})

	a.Lookup("Queen", "A Night at the Opera")
	a.Lookup("Queen", "A Night at the Opera")
	a.Lookup("Queen", "A Night at the Opera")

	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 HTTP request, got %d", n)
	}
}

func TestArtworkLookupFallsBackToSongEntity(t *testing.T) {
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("entity") == "album" {
			_ = json.NewEncoder(w).Encode(itunesResponse{Results: nil})
			return
		}
		_ = json.NewEncoder(w).Encode(itunesResponse{
			Results: []itunesResult{
				{ArtworkURL100: "https://example.com/art/100x100bb.jpg"},
			},
		})
	})

	got := a.Lookup("Ninajirachi", "I Love My Computer")
	want := "https://example.com/art/600x600bb.jpg"
	if got != want {
		t.Errorf("Lookup() = %q, want %q", got, want)
	}
}

func TestArtworkLookupEmptyOnNoResults(t *testing.T) {
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(itunesResponse{Results: nil})
	})

	if got := a.Lookup("Unknown", "Album"); got != "" {
		t.Errorf("expected empty string for no results, got %q", got)
	}
}

func TestArtworkLookupEmptyOnHTTPError(t *testing.T) {
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if got := a.Lookup("Artist", "Album"); got != "" {
		t.Errorf("expected empty string on HTTP error, got %q", got)
	}
}

func TestArtworkLookupEmptyOnUnreachable(t *testing.T) {
	a := newArtworkLookup()
	a.endpoint = "http://127.0.0.1:1" // nothing listening

	if got := a.Lookup("Artist", "Album"); got != "" {
		t.Errorf("expected empty string on connection error, got %q", got)
	}
}

func TestArtworkLookupSkipsEmptyArtist(t *testing.T) {
	var hits atomic.Int32
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	if got := a.Lookup("", "Album"); got != "" {
		t.Errorf("expected empty string for empty artist, got %q", got)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("expected no HTTP requests, got %d", n)
	}
}

func TestArtworkLookupNegativeCacheExpires(t *testing.T) {
	var hits atomic.Int32
	a := artServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(itunesResponse{Results: nil})
	})

	now := time.Now()
	a.now = func() time.Time { return now }

	// First lookup misses on both entities and caches the failure.
	if got := a.Lookup("Unknown", "Album"); got != "" {
		t.Errorf("first lookup: expected empty, got %q", got)
	}
	firstHits := hits.Load()

	// Within the TTL the failure is served from cache.
	if got := a.Lookup("Unknown", "Album"); got != "" {
		t.Errorf("within TTL: expected empty, got %q", got)
	}
	if n := hits.Load(); n != firstHits {
		t.Errorf("expected no new requests within TTL, got %d more", n-firstHits)
	}

	// Past the TTL the album is queried again.
	now = now.Add(negativeCacheTTL + time.Second)
	a.Lookup("Unknown", "Album")
	if n := hits.Load(); n == firstHits {
		t.Error("expected new requests after TTL expiry, got none")
	}
}
