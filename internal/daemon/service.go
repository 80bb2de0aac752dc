package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/events"
	"github.com/stylus/stylus/internal/scrobbler"
	"github.com/stylus/stylus/internal/server"
	"github.com/stylus/stylus/internal/session"
	"github.com/stylus/stylus/internal/store"
)

// scrobbleRecord is the payload of scrobble.recorded events.
type scrobbleRecord struct {
	Artist      string    `json:"artist"`
	Track       string    `json:"track"`
	Album       string    `json:"album,omitempty"`
	Duration    float64   `json:"duration"`
	ScrobbledAt time.Time `json:"scrobbledAt"`
	Providers   []string  `json:"providers"`
}

// recordingService fans submissions out to the providers and records
// accepted scrobbles in the journal. Sessions see a plain submission
// service; journaling, counters and bus announcements stay up here.
type recordingService struct {
	providers *scrobbler.Manager
	store     *store.Store
	bus       *events.Bus
	counters  *server.Counters
	log       zerolog.Logger
}

func newRecordingService(providers *scrobbler.Manager, st *store.Store, bus *events.Bus, counters *server.Counters, logger zerolog.Logger) *recordingService {
	return &recordingService{
		providers: providers,
		store:     st,
		bus:       bus,
		counters:  counters,
		log:       logger.With().Str("component", "service").Logger(),
	}
}

func (s *recordingService) SendNowPlaying(ctx context.Context, view session.SongView) []scrobbler.Result {
	return s.providers.NowPlaying(ctx, trackFromView(view))
}

func (s *recordingService) Scrobble(ctx context.Context, view session.SongView) []scrobbler.Result {
	results := s.providers.Scrobble(ctx, trackFromView(view))
	if !scrobbler.AnyOK(results) {
		s.counters.AddError()
		return results
	}

	s.counters.AddScrobble()
	s.record(ctx, view, results)
	return results
}

func (s *recordingService) ToggleLove(ctx context.Context, view session.SongView, loved bool) []scrobbler.Result {
	return s.providers.Love(ctx, trackFromView(view), loved)
}

// record appends the accepted scrobble to the journal and announces it
// on the bus. Journal failures are logged, not propagated: the scrobble
// already went out.
func (s *recordingService) record(ctx context.Context, view session.SongView, results []scrobbler.Result) {
	var accepted []string
	for _, r := range results {
		if r.OK() {
			accepted = append(accepted, r.Provider)
		}
	}

	entry := store.JournalEntry{
		Artist:      view.Artist,
		Track:       view.Track,
		Album:       view.Album,
		Duration:    time.Duration(view.Duration * float64(time.Second)),
		ScrobbledAt: time.Now(),
		Providers:   accepted,
	}
	if _, err := s.store.AddJournalEntry(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record scrobble in journal")
	}

	s.bus.Publish(events.Event{
		Type: events.TypeScrobbled,
		Payload: scrobbleRecord{
			Artist:      entry.Artist,
			Track:       entry.Track,
			Album:       entry.Album,
			Duration:    view.Duration,
			ScrobbledAt: entry.ScrobbledAt,
			Providers:   accepted,
		},
	})
}

// trackFromView converts a song view into the provider submission payload.
func trackFromView(view session.SongView) scrobbler.Track {
	return scrobbler.Track{
		Artist:    view.Artist,
		Track:     view.Track,
		Album:     view.Album,
		Duration:  time.Duration(view.Duration * float64(time.Second)),
		StartedAt: view.StartTimestamp,
	}
}

// storeEdits serves the pipeline's user-edit stage from the edits table.
type storeEdits struct {
	st *store.Store
}

func (e storeEdits) LookupEdit(ctx context.Context, key string) (session.EditFields, bool, error) {
	edit, ok, err := e.st.GetEdit(ctx, key)
	if err != nil || !ok {
		return session.EditFields{}, false, err
	}
	return session.EditFields{Artist: edit.Artist, Track: edit.Track, Album: edit.Album}, true, nil
}

// storeCache drops a song's stored edit when the user resets its data.
type storeCache struct {
	st *store.Store
}

func (c storeCache) RemoveSongFromStorage(ctx context.Context, view session.SongView) error {
	return c.st.DeleteEdit(ctx, view.Parsed.Key())
}
