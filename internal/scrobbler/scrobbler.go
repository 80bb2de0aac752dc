package scrobbler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors shared by provider implementations.
var (
	// ErrLoveUnsupported is returned by providers that have no love/unlove
	// endpoint. The manager skips them when aggregating love results.
	ErrLoveUnsupported = errors.New("love is not supported by this provider")

	// ErrNotConfigured is returned when a provider is called without the
	// credentials it needs.
	ErrNotConfigured = errors.New("provider is not configured")

	// ErrUnauthorized is returned when the backend rejects the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the backend asks us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// Track is the submission payload handed to providers.
type Track struct {
	Artist   string
	Track    string
	Album    string
	Duration time.Duration // 0 when unknown
	// StartedAt is when playback of the track began; scrobble timestamps
	// use it per the Last.fm submission rules.
	StartedAt time.Time
}

// Provider is the interface implemented by all scrobbling backends.
type Provider interface {
	// ID returns a unique identifier for this provider instance.
	ID() string
	// Name returns a human-readable name for the provider.
	Name() string
	// Enabled returns true if this provider is configured and ready.
	Enabled() bool

	// UpdateNowPlaying reports the currently playing track.
	UpdateNowPlaying(ctx context.Context, track Track) error
	// Scrobble reports a completed track play.
	Scrobble(ctx context.Context, track Track) error
	// LoveTrack marks or unmarks the track as loved. Providers without a
	// love endpoint return ErrLoveUnsupported.
	LoveTrack(ctx context.Context, track Track, loved bool) error
}

// Result is one provider's outcome for a fanned-out call.
type Result struct {
	Provider string
	Err      error
}

// OK reports whether the provider call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// AnyOK reduces a result set with logical OR: the call counts as
// successful when at least one provider succeeded.
func AnyOK(results []Result) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}

// Manager fans submission calls out to all enabled providers concurrently
// and collects per-provider results. A failing provider never prevents the
// others from being tried.
type Manager struct {
	mu        sync.RWMutex
	providers []Provider
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewManager creates an empty provider manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("component", "scrobbler").Logger(),
	}
}

// Register adds a provider to the manager.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
}

// Providers returns all registered providers.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Provider, len(m.providers))
	copy(result, m.providers)
	return result
}

// EnabledNames returns the names of providers that are configured and
// ready, for status reporting.
func (m *Manager) EnabledNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, p := range m.providers {
		if p.Enabled() {
			names = append(names, p.Name())
		}
	}
	return names
}

// NowPlaying reports the track to all enabled providers and returns their
// results once every call has resolved.
func (m *Manager) NowPlaying(ctx context.Context, track Track) []Result {
	return m.fanOut(ctx, "now playing", func(ctx context.Context, p Provider) error {
		return p.UpdateNowPlaying(ctx, track)
	})
}

// Scrobble reports a completed play to all enabled providers and returns
// their results once every call has resolved.
func (m *Manager) Scrobble(ctx context.Context, track Track) []Result {
	return m.fanOut(ctx, "scrobble", func(ctx context.Context, p Provider) error {
		return p.Scrobble(ctx, track)
	})
}

// Love marks or unmarks the track as loved on all enabled providers that
// support it.
func (m *Manager) Love(ctx context.Context, track Track, loved bool) []Result {
	return m.fanOut(ctx, "love", func(ctx context.Context, p Provider) error {
		return p.LoveTrack(ctx, track, loved)
	})
}

// fanOut runs one call per enabled provider concurrently and joins the
// results in registration order.
func (m *Manager) fanOut(ctx context.Context, op string, call func(context.Context, Provider) error) []Result {
	m.mu.RLock()
	providers := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if p.Enabled() {
			providers = append(providers, p)
		}
	}
	m.mu.RUnlock()

	results := make([]Result, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		m.wg.Add(1)
		wg.Add(1)
		go func(i int, p Provider) {
			defer m.wg.Done()
			defer wg.Done()
			err := call(ctx, p)
			results[i] = Result{Provider: p.ID(), Err: err}
			if err != nil && !errors.Is(err, ErrLoveUnsupported) {
				m.log.Warn().
					Err(err).
					Str("provider", p.ID()).
					Str("op", op).
					Msg("Provider call failed")
			}
		}(i, p)
	}
	wg.Wait()
	return results
}

// Wait blocks until all in-flight provider calls complete or the context
// is cancelled. Used for drain on shutdown.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
