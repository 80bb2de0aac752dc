package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the (artist, track, album, uniqueID) tuple that determines
// whether two snapshots describe the same song. Absent fields are empty
// strings and compare as equal only when both sides lack them.
type Identity struct {
	Artist   string `json:"artist"`
	Track    string `json:"track"`
	Album    string `json:"album,omitempty"`
	UniqueID string `json:"uniqueID,omitempty"`
}

// Equal reports whether both identities match exactly, field by field.
func (id Identity) Equal(other Identity) bool {
	return id == other
}

// Key returns a stable storage key for the identity, used by the edits
// cache. The unique ID wins when the connector supplies one.
func (id Identity) Key() string {
	if id.UniqueID != "" {
		return "uid\x1f" + id.UniqueID
	}
	return strings.Join([]string{id.Artist, id.Track, id.Album}, "\x1f")
}

// PlaybackState is the mutable playback position data, updated in place on
// every same-song snapshot.
type PlaybackState struct {
	CurrentTime time.Duration
	IsPlaying   bool
	Duration    time.Duration // 0 until the connector reports one
	TrackArt    string
}

// Metadata holds session-derived values and user overrides. None of it
// participates in identity comparison.
type Metadata struct {
	StartTimestamp time.Time
	NotificationID uint32
	UserArtist     string
	UserTrack      string
	UserAlbum      string
	UserLoved      bool
}

// Flags gate the idempotent side effects of a session. All are monotonic
// within a song's lifetime except IsProcessed, which drops back to false
// while a re-validation is in flight.
type Flags struct {
	IsProcessed       bool `json:"isProcessed"`
	IsMarkedAsPlaying bool `json:"isMarkedAsPlaying"`
	IsScrobbled       bool `json:"isScrobbled"`
	IsSkipped         bool `json:"isSkipped"`
	IsReplaying       bool `json:"isReplaying"`
}

// PlaybackChange describes what a snapshot merge actually changed, so the
// controller reacts only to real transitions.
type PlaybackChange struct {
	PlayingChanged   bool
	DurationAppeared bool
}

// Song is the mutable, observable record of the current playback
// candidate. A controller owns at most one Song at a time; every read and
// write happens on that controller's logical thread, so Song carries no
// locking of its own.
//
// Listeners fire synchronously from the setter that caused the change.
// They are bound while the controller owns the Song and must be cleared
// before the Song is dropped; a detached Song keeps accepting harmless
// mutations from late asynchronous continuations but no longer triggers
// controller side effects.
type Song struct {
	ID       string
	Identity Identity
	Playback PlaybackState
	Metadata Metadata
	Flags    Flags

	// pipeline verdict and corrections
	valid           bool
	correctedArtist string
	correctedTrack  string
	correctedAlbum  string

	playbackListeners  []func(PlaybackChange)
	processedListeners []func(processed bool)
}

func newSong(snap Snapshot) *Song {
	return &Song{
		ID:       uuid.NewString(),
		Identity: snap.Identity(),
		Playback: PlaybackState{
			CurrentTime: secondsToDuration(snap.CurrentTime),
			IsPlaying:   snap.IsPlaying,
			Duration:    secondsToDuration(snap.Duration),
			TrackArt:    snap.TrackArt,
		},
		Metadata: Metadata{
			StartTimestamp: time.Now(),
		},
	}
}

// EffectiveArtist returns the artist to submit: the user override when one
// exists, then the pipeline correction, then the connector value.
func (s *Song) EffectiveArtist() string {
	if s.Metadata.UserArtist != "" {
		return s.Metadata.UserArtist
	}
	if s.correctedArtist != "" {
		return s.correctedArtist
	}
	return s.Identity.Artist
}

// EffectiveTrack returns the track title to submit.
func (s *Song) EffectiveTrack() string {
	if s.Metadata.UserTrack != "" {
		return s.Metadata.UserTrack
	}
	if s.correctedTrack != "" {
		return s.correctedTrack
	}
	return s.Identity.Track
}

// EffectiveAlbum returns the album to submit.
func (s *Song) EffectiveAlbum() string {
	if s.Metadata.UserAlbum != "" {
		return s.Metadata.UserAlbum
	}
	if s.correctedAlbum != "" {
		return s.correctedAlbum
	}
	return s.Identity.Album
}

// IsValid reports whether the song is scrobble-eligible: the pipeline
// judged it valid and the required fields are present.
func (s *Song) IsValid() bool {
	return s.valid && s.EffectiveArtist() != "" && s.EffectiveTrack() != ""
}

// bindPlaybackListener registers a callback for playback-state merges.
func (s *Song) bindPlaybackListener(fn func(PlaybackChange)) {
	s.playbackListeners = append(s.playbackListeners, fn)
}

// bindProcessedListener registers a callback for processed-flag
// transitions.
func (s *Song) bindProcessedListener(fn func(processed bool)) {
	s.processedListeners = append(s.processedListeners, fn)
}

// clearListeners detaches the song from its controller. Mandatory before
// the song is replaced, reset, skipped or the session is disabled.
func (s *Song) clearListeners() {
	s.playbackListeners = nil
	s.processedListeners = nil
}

// applySnapshot merges the volatile playback fields of a same-song
// snapshot into the record. Duration is taken only when it newly became
// available; a song constructed without one must not lose credited
// playback time to a restart elsewhere, so the appearance is reported to
// the listeners for elapsed-preserving timer recomputation.
func (s *Song) applySnapshot(snap Snapshot) PlaybackChange {
	var change PlaybackChange

	s.Playback.CurrentTime = secondsToDuration(snap.CurrentTime)
	if snap.TrackArt != "" {
		s.Playback.TrackArt = snap.TrackArt
	}
	if s.Playback.Duration == 0 && snap.Duration > 0 {
		s.Playback.Duration = secondsToDuration(snap.Duration)
		change.DurationAppeared = true
	}
	if s.Playback.IsPlaying != snap.IsPlaying {
		s.Playback.IsPlaying = snap.IsPlaying
		change.PlayingChanged = true
	}

	if change.PlayingChanged || change.DurationAppeared {
		for _, fn := range s.playbackListeners {
			fn(change)
		}
	}
	return change
}

// applyOutcome copies the pipeline's corrections and verdict into the
// record without touching the processed flag.
func (s *Song) applyOutcome(o Outcome) {
	s.correctedArtist = o.Artist
	s.correctedTrack = o.Track
	s.correctedAlbum = o.Album
	s.valid = o.Valid
}

// setProcessed flips the processed flag and notifies listeners on a real
// transition.
func (s *Song) setProcessed(processed bool) {
	if s.Flags.IsProcessed == processed {
		return
	}
	s.Flags.IsProcessed = processed
	for _, fn := range s.processedListeners {
		fn(processed)
	}
}

func (s *Song) setUserFields(edit EditFields) {
	if edit.Artist != "" {
		s.Metadata.UserArtist = edit.Artist
	}
	if edit.Track != "" {
		s.Metadata.UserTrack = edit.Track
	}
	if edit.Album != "" {
		s.Metadata.UserAlbum = edit.Album
	}
}

func (s *Song) clearUserFields() {
	s.Metadata.UserArtist = ""
	s.Metadata.UserTrack = ""
	s.Metadata.UserAlbum = ""
}

// EditFields carries user metadata overrides. Empty fields are left
// unchanged.
type EditFields struct {
	Artist string `json:"artist,omitempty"`
	Track  string `json:"track,omitempty"`
	Album  string `json:"album,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (e EditFields) Empty() bool {
	return e.Artist == "" && e.Track == "" && e.Album == ""
}

// SongView is an immutable value copy of a Song, handed to collaborators
// and serialized on the API. Times are seconds on the wire.
type SongView struct {
	ID             string    `json:"id"`
	Artist         string    `json:"artist"`
	Track          string    `json:"track"`
	Album          string    `json:"album,omitempty"`
	TrackArt       string    `json:"trackArt,omitempty"`
	CurrentTime    float64   `json:"currentTime"`
	Duration       float64   `json:"duration"`
	IsPlaying      bool      `json:"isPlaying"`
	Valid          bool      `json:"valid"`
	Loved          bool      `json:"loved"`
	StartTimestamp time.Time `json:"startTimestamp"`
	Parsed         Identity  `json:"parsed"`
	UserArtist     string    `json:"userArtist,omitempty"`
	UserTrack      string    `json:"userTrack,omitempty"`
	UserAlbum      string    `json:"userAlbum,omitempty"`
	Flags          Flags     `json:"flags"`
}

// View snapshots the song into a detached value.
func (s *Song) View() SongView {
	return SongView{
		ID:             s.ID,
		Artist:         s.EffectiveArtist(),
		Track:          s.EffectiveTrack(),
		Album:          s.EffectiveAlbum(),
		TrackArt:       s.Playback.TrackArt,
		CurrentTime:    s.Playback.CurrentTime.Seconds(),
		Duration:       s.Playback.Duration.Seconds(),
		IsPlaying:      s.Playback.IsPlaying,
		Valid:          s.IsValid(),
		Loved:          s.Metadata.UserLoved,
		StartTimestamp: s.Metadata.StartTimestamp,
		Parsed:         s.Identity,
		UserArtist:     s.Metadata.UserArtist,
		UserTrack:      s.Metadata.UserTrack,
		UserAlbum:      s.Metadata.UserAlbum,
		Flags:          s.Flags,
	}
}

func secondsToDuration(secs float64) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
