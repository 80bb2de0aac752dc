// Package pipeline validates and corrects songs before they are tracked.
// It is the processing collaborator the session controller submits every
// new or edited song to: normalization first, then stored user edits,
// then the validity judgment.
package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/session"
)

// EditSource looks up a stored user edit for an identity key. Lookups
// that find nothing return ok=false with a nil error.
type EditSource interface {
	LookupEdit(ctx context.Context, key string) (session.EditFields, bool, error)
}

// Pipeline implements session.Processor.
type Pipeline struct {
	edits EditSource
	log   zerolog.Logger
}

// New creates a pipeline. edits may be nil when no edit storage is
// configured; stage two is skipped then.
func New(edits EditSource, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		edits: edits,
		log:   log.With().Str("component", "pipeline").Logger(),
	}
}

// ProcessSong runs the stages over an immutable view of the song and
// returns the corrected fields plus the validity verdict. It never
// fails: a broken edit lookup degrades to the normalized fields.
func (p *Pipeline) ProcessSong(ctx context.Context, song session.SongView) session.Outcome {
	artist := normalizeField(song.Parsed.Artist)
	track := normalizeField(song.Parsed.Track)
	album := normalizeField(song.Parsed.Album)

	if p.edits != nil {
		key := song.Parsed.Key()
		edit, ok, err := p.edits.LookupEdit(ctx, key)
		switch {
		case err != nil:
			p.log.Warn().Err(err).Str("key", key).Msg("Stored edit lookup failed")
		case ok:
			if edit.Artist != "" {
				artist = edit.Artist
			}
			if edit.Track != "" {
				track = edit.Track
			}
			if edit.Album != "" {
				album = edit.Album
			}
			p.log.Debug().Str("key", key).Msg("Stored edit applied")
		}
	}

	// User overrides on the song itself outrank anything the pipeline
	// computed, so they count toward validity.
	effectiveArtist := artist
	if song.UserArtist != "" {
		effectiveArtist = song.UserArtist
	}
	effectiveTrack := track
	if song.UserTrack != "" {
		effectiveTrack = song.UserTrack
	}

	outcome := session.Outcome{
		Artist: artist,
		Track:  track,
		Album:  album,
		Valid:  effectiveArtist != "" && effectiveTrack != "",
	}

	p.log.Debug().
		Str("artist", effectiveArtist).
		Str("track", effectiveTrack).
		Bool("valid", outcome.Valid).
		Msg("Song processed")
	return outcome
}

// normalizeField strips zero-width characters and collapses all
// whitespace runs to single spaces, trimming the ends.
func normalizeField(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
