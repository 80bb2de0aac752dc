package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/scrobbler"
)

// Config holds the per-session parameters of a controller.
type Config struct {
	// Connector describes the site adapter feeding this session.
	Connector ConnectorInfo

	// Rules are the scrobble eligibility rules. Zero value means
	// scrobbler.DefaultRules.
	Rules scrobbler.Rules

	// Log is the base logger; the controller derives a tagged child.
	Log zerolog.Logger
}

// Controller owns the tracking state of one connector session: at most one
// song, the scrobble timer, the replay-detection timer and the
// enabled/disabled mode. Snapshots, user operations, timer fires and
// asynchronous continuations are all serialized on one mutex, so every
// transition observes a consistent state, exactly one step at a time.
//
// Collaborator calls that do I/O (pipeline, providers, notifications,
// cache) run on their own goroutines outside the lock; their continuations
// re-enter through the mutex and close over the specific *Song they were
// started for, never over whatever the controller happens to own by then.
type Controller struct {
	mu   sync.Mutex
	log  zerolog.Logger
	conn ConnectorInfo
	rule scrobbler.Rules
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	song          *Song
	playbackTimer *Timer
	replayTimer   *Timer
	enabled       bool

	// replaying is set by the replay-detection timer and consumed by the
	// next classification pass.
	replaying bool

	// procGen invalidates superseded pipeline runs for the current song.
	procGen uint64
}

// NewController creates an enabled controller for one connector session.
// The context bounds all collaborator calls the controller starts; cancel
// it (or call Close) at session teardown.
func NewController(ctx context.Context, cfg Config, deps Deps) *Controller {
	rules := cfg.Rules
	if rules == (scrobbler.Rules{}) {
		rules = scrobbler.DefaultRules()
	}
	cctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		log: cfg.Log.With().
			Str("component", "session").
			Str("connector", cfg.Connector.ID).
			Logger(),
		conn:          cfg.Connector,
		rule:          rules,
		deps:          deps,
		ctx:           cctx,
		cancel:        cancel,
		playbackTimer: NewTimer(),
		replayTimer:   NewTimer(),
		enabled:       true,
	}
	c.deps.UI.SiteSupported()
	return c
}

// OnStateChanged is the primary driver: it classifies the incoming
// snapshot against the owned song and applies the resulting transition.
// Snapshots are processed one at a time in arrival order.
func (c *Controller) OnStateChanged(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		c.log.Debug().Msg("Session disabled, ignoring snapshot")
		return
	}

	// One-shot: the replay flag covers exactly this pass.
	replaying := c.replaying
	c.replaying = false

	var current *Identity
	if c.song != nil {
		id := c.song.Identity
		current = &id
	}

	class := Classify(snap, current)
	c.log.Debug().
		Stringer("classification", class).
		Str("artist", snap.Artist).
		Str("track", snap.Track).
		Bool("isPlaying", snap.IsPlaying).
		Msg("Snapshot classified")

	switch class {
	case ClassEmpty:
		if snap.IsPlaying {
			c.log.Warn().Msg("Snapshot claims active playback but carries no identifiable fields")
		}
		if c.song != nil {
			c.disposeSongLocked("empty snapshot")
			c.deps.UI.SiteSupported()
		}

	case ClassSameSong:
		if c.song.Flags.IsSkipped {
			c.log.Debug().Msg("Song is skipped, ignoring snapshot")
			return
		}
		if replaying {
			c.log.Info().
				Str("artist", snap.Artist).
				Str("track", snap.Track).
				Msg("Replay detected, restarting song")
			c.startSongLocked(snap, true)
			return
		}
		c.song.applySnapshot(snap)

	case ClassNewSong:
		c.startSongLocked(snap, false)

	case ClassIgnoredTransient:
		c.log.Debug().Msg("Identity changed while not playing, ignoring")
	}
}

// SetUserSongData overrides identity-adjacent fields on the current song
// and re-submits it to the pipeline. It is a no-op when the song is
// already scrobbled.
func (c *Controller) SetUserSongData(edit EditFields) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.song == nil {
		return ErrNoActiveSong
	}
	if c.song.Flags.IsScrobbled {
		c.log.Debug().Msg("Song already scrobbled, ignoring edit")
		return nil
	}
	if edit.Empty() {
		return nil
	}

	c.song.setUserFields(edit)
	c.reprocessLocked(c.song)
	return nil
}

// ResetSongData clears user overrides, purges the stored edit through the
// cache collaborator, and re-validates the song.
func (c *Controller) ResetSongData() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.song == nil {
		return ErrNoActiveSong
	}

	song := c.song
	song.clearUserFields()
	view := song.View()
	go func() {
		if err := c.deps.Cache.RemoveSongFromStorage(c.ctx, view); err != nil {
			c.log.Warn().Err(err).Msg("Failed to remove stored song edit")
		}
	}()
	c.reprocessLocked(song)
	return nil
}

// ToggleLove marks or unmarks the current song as loved on the configured
// providers. It blocks for the provider round-trip and fails when no
// provider accepted the call.
func (c *Controller) ToggleLove(ctx context.Context, loved bool) error {
	c.mu.Lock()
	if c.song == nil {
		c.mu.Unlock()
		return ErrNoActiveSong
	}
	song := c.song
	view := song.View()
	c.mu.Unlock()

	results := c.deps.Service.ToggleLove(ctx, view, loved)
	if !scrobbler.AnyOK(results) {
		return fmt.Errorf("toggle love: %w", ErrSubmissionFailed)
	}

	c.mu.Lock()
	song.Metadata.UserLoved = loved
	owned := c.song == song
	updated := song.View()
	c.mu.Unlock()

	if owned {
		c.deps.Broadcast.SongUpdated(updated)
	}
	return nil
}

// SkipCurrentSong marks the song as skipped: timers are reset, listeners
// unbound and no further submission happens for it. The song stays owned
// so follow-up snapshots of the same identity are ignored.
func (c *Controller) SkipCurrentSong() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.song == nil {
		return ErrNoActiveSong
	}

	song := c.song
	song.Flags.IsSkipped = true
	song.clearListeners()
	c.playbackTimer.Reset()
	c.replayTimer.Reset()
	c.removeNotificationLocked(song)

	c.log.Info().
		Str("artist", song.EffectiveArtist()).
		Str("track", song.EffectiveTrack()).
		Msg("Song skipped")

	view := song.View()
	c.deps.UI.Skipped(view)
	c.deps.Broadcast.SongUpdated(view)
	return nil
}

// SetEnabled switches scrobbling for this session on or off. Disabling
// fully resets the session; snapshots are ignored until re-enabled.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if enabled {
		c.log.Info().Msg("Session enabled")
		c.deps.UI.SiteSupported()
		return
	}
	c.log.Info().Msg("Session disabled")
	c.disposeSongLocked("session disabled")
	c.deps.UI.SiteDisabled()
}

// ResetState drops the owned song and resets both timers.
func (c *Controller) ResetState() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposeSongLocked("explicit reset")
	if c.enabled {
		c.deps.UI.SiteSupported()
	}
}

// CurrentSong returns a snapshot of the owned song. The second return is
// false when none is owned.
func (c *Controller) CurrentSong() (SongView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.song == nil {
		return SongView{}, false
	}
	return c.song.View(), true
}

// IsEnabled reports whether the session is scrobbling.
func (c *Controller) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Connector returns the connector descriptor for this session.
func (c *Controller) Connector() ConnectorInfo {
	return c.conn
}

// Close tears the session down: the song is dropped, timers cancelled and
// in-flight collaborator calls released via context cancellation.
func (c *Controller) Close() {
	c.mu.Lock()
	c.disposeSongLocked("session closed")
	c.mu.Unlock()
	c.cancel()
}

// startSongLocked replaces any owned song with a fresh one built from the
// snapshot, binds the reactive listeners, starts both timers and hands the
// song to the pipeline. replay suppresses the now-playing notification for
// this reconstruction only.
func (c *Controller) startSongLocked(snap Snapshot, replay bool) {
	c.disposeSongLocked("replaced by new song")

	song := newSong(snap)
	song.Flags.IsReplaying = replay
	c.song = song

	song.bindPlaybackListener(func(change PlaybackChange) {
		c.onPlaybackChangeLocked(song, change)
	})
	song.bindProcessedListener(func(processed bool) {
		c.onProcessedChangeLocked(song, processed)
	})

	c.playbackTimer.Start(func() { c.onScrobbleTimerFired(song) })
	c.replayTimer.Start(func() { c.onReplayTimerFired(song) })
	if !snap.IsPlaying {
		c.playbackTimer.Pause()
		c.replayTimer.Pause()
	}

	c.log.Info().
		Str("artist", song.Identity.Artist).
		Str("track", song.Identity.Track).
		Bool("replay", replay).
		Msg("Tracking new song")

	view := song.View()
	c.deps.UI.Loading(view)
	c.deps.Broadcast.SongUpdated(view)
	c.submitForProcessingLocked(song)
}

// disposeSongLocked unbinds the owned song, withdraws its notification and
// resets both timers. A disposed song can no longer trigger controller
// side effects, even when late continuations mutate it.
func (c *Controller) disposeSongLocked(reason string) {
	c.replaying = false
	if c.song == nil {
		return
	}

	song := c.song
	song.clearListeners()
	c.removeNotificationLocked(song)
	c.playbackTimer.Reset()
	c.replayTimer.Reset()
	c.song = nil

	c.log.Debug().
		Str("artist", song.Identity.Artist).
		Str("track", song.Identity.Track).
		Str("reason", reason).
		Msg("Song disposed")
}

func (c *Controller) removeNotificationLocked(song *Song) {
	id := song.Metadata.NotificationID
	if id == 0 {
		return
	}
	song.Metadata.NotificationID = 0
	go func() {
		if err := c.deps.Notify.Remove(c.ctx, id); err != nil {
			c.log.Debug().Err(err).Uint32("id", id).Msg("Failed to remove notification")
		}
	}()
}

// reprocessLocked drops the song back to unprocessed (clearing both timer
// deadlines through the processed listener) and schedules a fresh pipeline
// run.
func (c *Controller) reprocessLocked(song *Song) {
	song.setProcessed(false)
	c.submitForProcessingLocked(song)

	view := song.View()
	c.deps.Broadcast.SongUpdated(view)
}

// submitForProcessingLocked hands the song to the pipeline on its own
// goroutine. The continuation applies the outcome to this specific song;
// a run superseded by a newer submission is dropped.
func (c *Controller) submitForProcessingLocked(song *Song) {
	c.procGen++
	gen := c.procGen
	view := song.View()
	go func() {
		outcome := c.deps.Pipeline.ProcessSong(c.ctx, view)
		c.applyOutcome(song, gen, outcome)
	}()
}

// applyOutcome is the pipeline continuation. It runs on the logical
// thread, copies the corrections into the song it was started for and
// flips the processed flag; the bound listener reacts. On a song the
// controller no longer owns the mutation lands harmlessly: the listeners
// are gone and no timer is re-armed.
func (c *Controller) applyOutcome(song *Song, gen uint64, outcome Outcome) {
	c.mu.Lock()

	if c.song == song && gen != c.procGen {
		c.mu.Unlock()
		c.log.Debug().Msg("Pipeline outcome superseded, dropping")
		return
	}

	song.applyOutcome(outcome)
	song.setProcessed(true)

	owned := c.song == song
	view := song.View()
	c.mu.Unlock()

	if owned {
		c.deps.Broadcast.SongUpdated(view)
	}
}

// onPlaybackChangeLocked reacts to merged playback-state transitions.
// Runs on the logical thread via the song's playback listener.
func (c *Controller) onPlaybackChangeLocked(song *Song, change PlaybackChange) {
	if change.PlayingChanged {
		if song.Playback.IsPlaying {
			c.playbackTimer.Resume()
			c.replayTimer.Resume()
			c.maybeNowPlayingLocked(song)
		} else {
			c.playbackTimer.Pause()
			c.replayTimer.Pause()
		}
	}

	if change.DurationAppeared {
		c.log.Debug().
			Dur("duration", song.Playback.Duration).
			Msg("Duration became known")
		if song.Flags.IsProcessed && song.IsValid() {
			c.armDeadlinesLocked(song)
		}
	}
}

// onProcessedChangeLocked reacts to the pipeline's processed-flag
// transitions. Runs on the logical thread via the song's processed
// listener.
func (c *Controller) onProcessedChangeLocked(song *Song, processed bool) {
	if !processed {
		// Re-validation in flight: drop the deadlines but keep the clocks,
		// so playback time credited so far survives the reprocess.
		c.playbackTimer.Clear()
		c.replayTimer.Clear()
		return
	}

	if !song.IsValid() {
		c.log.Info().
			Str("artist", song.Identity.Artist).
			Str("track", song.Identity.Track).
			Msg("Song not recognized")
		view := song.View()
		c.deps.UI.NotRecognized(view)
		go c.showNotRecognized(song, view)
		return
	}

	c.armDeadlinesLocked(song)
	if song.Playback.IsPlaying {
		c.maybeNowPlayingLocked(song)
	}
}

// armDeadlinesLocked recomputes both timer deadlines from the song's
// duration. Elapsed playback time is preserved: a deadline at or below the
// elapsed count fires immediately.
func (c *Controller) armDeadlinesLocked(song *Song) {
	duration := song.Playback.Duration

	threshold := c.rule.Threshold(duration)
	if threshold >= 0 {
		c.playbackTimer.Update(threshold)
	} else {
		// Track too short to ever scrobble.
		c.playbackTimer.Clear()
	}

	if duration > 0 {
		c.replayTimer.Update(duration)
	} else {
		c.replayTimer.Clear()
	}

	c.log.Debug().
		Dur("scrobbleThreshold", threshold).
		Dur("duration", duration).
		Msg("Timer deadlines configured")
}

// maybeNowPlayingLocked submits now-playing at most once per song. The
// flag is set on the attempt, not the result, so a second qualifying
// transition cannot race a submission in before the first resolves.
func (c *Controller) maybeNowPlayingLocked(song *Song) {
	if !song.IsValid() || song.Flags.IsMarkedAsPlaying || song.Flags.IsSkipped {
		return
	}
	song.Flags.IsMarkedAsPlaying = true

	view := song.View()
	suppress := song.Flags.IsReplaying
	go c.submitNowPlaying(song, view, suppress)
}

// submitNowPlaying raises the notification and fans the now-playing call
// out to the providers. Runs off the logical thread.
func (c *Controller) submitNowPlaying(song *Song, view SongView, suppressNotification bool) {
	if !suppressNotification {
		id, err := c.deps.Notify.ShowNowPlaying(c.ctx, view)
		if err != nil {
			c.log.Debug().Err(err).Msg("Failed to show now-playing notification")
		} else if id != 0 {
			c.mu.Lock()
			song.Metadata.NotificationID = id
			detached := c.song != song
			c.mu.Unlock()
			// The song went away while the notification was being raised.
			if detached {
				if err := c.deps.Notify.Remove(c.ctx, id); err != nil {
					c.log.Debug().Err(err).Uint32("id", id).Msg("Failed to remove notification")
				}
			}
		}
	}

	results := c.deps.Service.SendNowPlaying(c.ctx, view)
	if scrobbler.AnyOK(results) {
		c.log.Debug().
			Str("artist", view.Artist).
			Str("track", view.Track).
			Msg("Now playing submitted")
		c.deps.UI.Recognized(view)
		return
	}

	c.log.Warn().
		Str("artist", view.Artist).
		Str("track", view.Track).
		Msg("Now playing rejected by all providers")
	c.deps.UI.Error(view)
}

// onScrobbleTimerFired is the scrobble timer callback: the only path that
// submits a scrobble. The timer guarantees one fire per armed period; the
// ownership check drops a fire that lost the race with a reset.
func (c *Controller) onScrobbleTimerFired(song *Song) {
	c.mu.Lock()
	if c.song != song {
		c.mu.Unlock()
		c.log.Debug().Msg("Scrobble timer fired for a song no longer owned, ignoring")
		return
	}
	if song.Flags.IsScrobbled || song.Flags.IsSkipped || !song.IsValid() {
		c.mu.Unlock()
		return
	}
	view := song.View()
	c.mu.Unlock()

	results := c.deps.Service.Scrobble(c.ctx, view)
	if !scrobbler.AnyOK(results) {
		c.log.Warn().
			Str("artist", view.Artist).
			Str("track", view.Track).
			Msg("Scrobble rejected by all providers, opportunity lost")
		c.deps.UI.Error(view)
		return
	}

	c.mu.Lock()
	song.Flags.IsScrobbled = true
	updated := song.View()
	c.mu.Unlock()

	c.log.Info().
		Str("artist", updated.Artist).
		Str("track", updated.Track).
		Msg("Song scrobbled")
	c.deps.UI.Scrobbled(updated)
	c.deps.Broadcast.SongUpdated(updated)
}

// onReplayTimerFired marks that a full track duration of playback has
// elapsed: if the same identity shows up again on the next pass, it is an
// intentional replay, not a duplicate snapshot.
func (c *Controller) onReplayTimerFired(song *Song) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.song != song {
		return
	}
	c.replaying = true
	c.log.Debug().
		Str("artist", song.Identity.Artist).
		Str("track", song.Identity.Track).
		Msg("Full duration elapsed, watching for replay")
}

// showNotRecognized raises the not-recognized notification and keeps its
// ID for later withdrawal. Runs off the logical thread.
func (c *Controller) showNotRecognized(song *Song, view SongView) {
	id, err := c.deps.Notify.ShowNotRecognized(c.ctx, view)
	if err != nil {
		c.log.Debug().Err(err).Msg("Failed to show not-recognized notification")
		return
	}
	if id == 0 {
		return
	}
	c.mu.Lock()
	song.Metadata.NotificationID = id
	detached := c.song != song
	c.mu.Unlock()
	if detached {
		if err := c.deps.Notify.Remove(c.ctx, id); err != nil {
			c.log.Debug().Err(err).Uint32("id", id).Msg("Failed to remove notification")
		}
	}
}
