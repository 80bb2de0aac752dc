package scrobbler

import (
	"time"
)

// Last.fm scrobbling rules constants
const (
	// MinimumTrackDuration is the minimum track length required for scrobbling (30 seconds)
	MinimumTrackDuration = 30 * time.Second

	// ScrobblePercentage is the percentage of track that must be played (50%)
	ScrobblePercentage = 0.5

	// MaxScrobbleThreshold is the maximum time that needs to be played (4 minutes)
	MaxScrobbleThreshold = 4 * time.Minute

	// DefaultScrobbleTime is the threshold used when the track duration is
	// unknown (30 seconds)
	DefaultScrobbleTime = 30 * time.Second
)

// Rules holds the eligibility parameters for scrobbling. The zero value is
// not useful; use DefaultRules. Tests substitute compressed timescales.
type Rules struct {
	// MinTrackDuration is the minimum track length; shorter tracks never
	// scrobble.
	MinTrackDuration time.Duration

	// ScrobblePercent is the fraction of the track that must be played.
	ScrobblePercent float64

	// MaxThreshold caps the required played time for long tracks.
	MaxThreshold time.Duration

	// DefaultThreshold is the required played time when the track duration
	// is unknown.
	DefaultThreshold time.Duration
}

// DefaultRules returns the standard Last.fm rules: 30 second minimum,
// 50% of duration capped at 4 minutes, 30 seconds when duration is
// unknown.
func DefaultRules() Rules {
	return Rules{
		MinTrackDuration: MinimumTrackDuration,
		ScrobblePercent:  ScrobblePercentage,
		MaxThreshold:     MaxScrobbleThreshold,
		DefaultThreshold: DefaultScrobbleTime,
	}
}

// Threshold calculates the played time at which a track becomes
// scrobble-eligible:
//   - unknown duration (zero or negative): the default threshold
//   - duration under the minimum: -1, the track never scrobbles
//   - otherwise: the configured percentage of the duration, capped at the
//     maximum threshold
func (r Rules) Threshold(trackDuration time.Duration) time.Duration {
	if trackDuration <= 0 {
		return r.DefaultThreshold
	}
	if trackDuration < r.MinTrackDuration {
		// Can never be met
		return time.Duration(-1)
	}

	threshold := time.Duration(float64(trackDuration) * r.ScrobblePercent)
	if threshold > r.MaxThreshold {
		threshold = r.MaxThreshold
	}
	return threshold
}

// ShouldScrobble reports whether a track with the given duration has been
// played long enough to scrobble. Unknown durations use the default
// threshold.
func (r Rules) ShouldScrobble(trackDuration, playedDuration time.Duration) bool {
	threshold := r.Threshold(trackDuration)
	if threshold < 0 {
		return false
	}
	return playedDuration >= threshold
}

// Eligible reports whether a track of the given duration can ever
// scrobble. Unknown durations are eligible via the default threshold.
func (r Rules) Eligible(trackDuration time.Duration) bool {
	return trackDuration <= 0 || trackDuration >= r.MinTrackDuration
}
