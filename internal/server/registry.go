package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/session"
)

// ControllerFactory builds the session controller for a newly seen session
// ID. The daemon supplies one that wires per-session collaborators.
type ControllerFactory func(id string, conn session.ConnectorInfo) *session.Controller

// RegistryConfig holds the registry parameters.
type RegistryConfig struct {
	// Factory creates controllers for new sessions. Required.
	Factory ControllerFactory

	// IdleTimeout is how long a session may go without a snapshot before
	// the reaper closes it. Zero or negative disables the reaper.
	IdleTimeout time.Duration

	// OnClosed, when set, is called after a session is removed, either
	// explicitly or by the reaper. It is not called during Close.
	OnClosed func(id string)

	// Log is the base logger.
	Log zerolog.Logger
}

// SessionInfo is the API-facing summary of one live session.
type SessionInfo struct {
	ID        string                `json:"id"`
	Connector session.ConnectorInfo `json:"connector"`
	Enabled   bool                  `json:"enabled"`
	LastSeen  time.Time             `json:"lastSeen"`
	Song      *session.SongView     `json:"song,omitempty"`
}

type registryEntry struct {
	controller *session.Controller
	lastSeen   time.Time
}

// Registry maps session IDs to controllers. Sessions are created on first
// use and swept by an idle reaper; the registry also tracks which session
// is "active", the most recently updated one that owns a song, so the
// aggregate endpoints and the CLI have a single obvious target.
type Registry struct {
	mu       sync.Mutex
	log      zerolog.Logger
	factory  ControllerFactory
	idle     time.Duration
	onClosed func(id string)

	sessions map[string]*registryEntry

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRegistry creates a registry and starts its idle reaper when an idle
// timeout is configured.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		log:      cfg.Log.With().Str("component", "registry").Logger(),
		factory:  cfg.Factory,
		idle:     cfg.IdleTimeout,
		onClosed: cfg.OnClosed,
		sessions: make(map[string]*registryEntry),
		done:     make(chan struct{}),
	}
	if r.idle > 0 {
		r.wg.Add(1)
		go r.reap()
	}
	return r
}

// GetOrCreate returns the controller for the given session ID, creating it
// on first use. An empty ID gets a server-generated one. The session's
// last-seen time is refreshed either way.
func (r *Registry) GetOrCreate(id string, conn session.ConnectorInfo) (string, *session.Controller) {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		entry = &registryEntry{controller: r.factory(id, conn)}
		r.sessions[id] = entry
		r.log.Info().
			Str("session", id).
			Str("connector", conn.ID).
			Msg("Session created")
	}
	entry.lastSeen = time.Now()
	return id, entry.controller
}

// Get returns the controller for an existing session.
func (r *Registry) Get(id string) (*session.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return entry.controller, true
}

// Touch refreshes the session's last-seen time. Unknown IDs are ignored.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.sessions[id]; ok {
		entry.lastSeen = time.Now()
	}
}

// Active returns the most recently updated session that owns a song.
func (r *Registry) Active() (string, *session.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestID   string
		bestCtrl *session.Controller
		bestSeen time.Time
	)
	for id, entry := range r.sessions {
		if _, ok := entry.controller.CurrentSong(); !ok {
			continue
		}
		if bestCtrl == nil || entry.lastSeen.After(bestSeen) {
			bestID, bestCtrl, bestSeen = id, entry.controller, entry.lastSeen
		}
	}
	if bestCtrl == nil {
		return "", nil, false
	}
	return bestID, bestCtrl, true
}

// Info returns the API summary for one session.
func (r *Registry) Info(id string) (SessionInfo, bool) {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return SessionInfo{}, false
	}
	ctrl := entry.controller
	lastSeen := entry.lastSeen
	r.mu.Unlock()

	return sessionInfo(id, ctrl, lastSeen), true
}

// List returns summaries of all live sessions, most recently seen first.
func (r *Registry) List() []SessionInfo {
	type pair struct {
		id       string
		ctrl     *session.Controller
		lastSeen time.Time
	}

	r.mu.Lock()
	pairs := make([]pair, 0, len(r.sessions))
	for id, entry := range r.sessions {
		pairs = append(pairs, pair{id, entry.controller, entry.lastSeen})
	}
	r.mu.Unlock()

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].lastSeen.After(pairs[j].lastSeen)
	})

	infos := make([]SessionInfo, 0, len(pairs))
	for _, p := range pairs {
		infos = append(infos, sessionInfo(p.id, p.ctrl, p.lastSeen))
	}
	return infos
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Remove closes and forgets a session. It reports whether the session
// existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	entry.controller.Close()
	r.log.Info().Str("session", id).Msg("Session removed")
	if r.onClosed != nil {
		r.onClosed(id)
	}
	return true
}

// Close stops the reaper and closes every session. Safe to call more than
// once.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		r.mu.Lock()
		sessions := r.sessions
		r.sessions = make(map[string]*registryEntry)
		r.mu.Unlock()

		for _, entry := range sessions {
			entry.controller.Close()
		}
	})
}

// reap periodically closes sessions whose last snapshot is older than the
// idle timeout. Browser tabs go away without a goodbye; this is the only
// way those sessions ever get cleaned up.
func (r *Registry) reap() {
	defer r.wg.Done()

	interval := r.idle / 4
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			for _, id := range r.expired(now) {
				r.log.Info().Str("session", id).Msg("Session idle, reaping")
				r.Remove(id)
			}
		}
	}
}

func (r *Registry) expired(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, entry := range r.sessions {
		if now.Sub(entry.lastSeen) > r.idle {
			ids = append(ids, id)
		}
	}
	return ids
}

func sessionInfo(id string, ctrl *session.Controller, lastSeen time.Time) SessionInfo {
	info := SessionInfo{
		ID:        id,
		Connector: ctrl.Connector(),
		Enabled:   ctrl.IsEnabled(),
		LastSeen:  lastSeen,
	}
	if view, ok := ctrl.CurrentSong(); ok {
		info.Song = &view
	}
	return info
}
