package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/session"
)

type fakeEditSource struct {
	edits map[string]session.EditFields
	err   error
	keys  []string
}

func (f *fakeEditSource) LookupEdit(_ context.Context, key string) (session.EditFields, bool, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return session.EditFields{}, false, f.err
	}
	edit, ok := f.edits[key]
	return edit, ok, nil
}

func viewFor(artist, track, album string) session.SongView {
	return session.SongView{
		Parsed: session.Identity{Artist: artist, Track: track, Album: album},
	}
}

func TestProcessSongNormalizesFields(t *testing.T) {
	tests := []struct {
		name string
		in   session.SongView
		want session.Outcome
	}{
		{
			name: "whitespace collapsed and trimmed",
			in:   viewFor("  The \t Artist ", "Track\n Name", " Album "),
			want: session.Outcome{Artist: "The Artist", Track: "Track Name", Album: "Album", Valid: true},
		},
		{
			name: "zero-width characters stripped",
			in:   viewFor("Art\u200bist", "Tra\ufeffck", ""),
			want: session.Outcome{Artist: "Artist", Track: "Track", Valid: true},
		},
		{
			name: "whitespace-only artist is not an artist",
			in:   viewFor("   ", "Track", ""),
			want: session.Outcome{Track: "Track", Valid: false},
		},
		{
			name: "missing track is invalid",
			in:   viewFor("Artist", "", ""),
			want: session.Outcome{Artist: "Artist", Valid: false},
		},
	}

	p := New(nil, zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ProcessSong(context.Background(), tt.in)
			if got != tt.want {
				t.Errorf("ProcessSong() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProcessSongAppliesStoredEdit(t *testing.T) {
	view := viewFor("wrng artst", "trck", "")
	key := view.Parsed.Key()
	edits := &fakeEditSource{edits: map[string]session.EditFields{
		key: {Artist: "Right Artist", Track: "Track"},
	}}

	p := New(edits, zerolog.Nop())
	got := p.ProcessSong(context.Background(), view)

	want := session.Outcome{Artist: "Right Artist", Track: "Track", Valid: true}
	if got != want {
		t.Errorf("ProcessSong() = %+v, want %+v", got, want)
	}
	if len(edits.keys) != 1 || edits.keys[0] != key {
		t.Errorf("lookup keys = %v, want the identity key %q", edits.keys, key)
	}
}

func TestProcessSongPartialEditKeepsNormalized(t *testing.T) {
	view := viewFor(" Artist ", "Track", "Album")
	edits := &fakeEditSource{edits: map[string]session.EditFields{
		view.Parsed.Key(): {Album: "Deluxe Edition"},
	}}

	p := New(edits, zerolog.Nop())
	got := p.ProcessSong(context.Background(), view)

	want := session.Outcome{Artist: "Artist", Track: "Track", Album: "Deluxe Edition", Valid: true}
	if got != want {
		t.Errorf("ProcessSong() = %+v, want %+v", got, want)
	}
}

func TestProcessSongEditLookupFailureDegrades(t *testing.T) {
	edits := &fakeEditSource{err: errors.New("database is locked")}

	p := New(edits, zerolog.Nop())
	got := p.ProcessSong(context.Background(), viewFor("Artist", "Track", ""))

	want := session.Outcome{Artist: "Artist", Track: "Track", Valid: true}
	if got != want {
		t.Errorf("ProcessSong() = %+v, want the normalized fields, got %+v", want, got)
	}
}

func TestProcessSongUserFieldsCountTowardValidity(t *testing.T) {
	view := viewFor("Artist", "", "")
	view.UserTrack = "Filled In By Hand"

	p := New(nil, zerolog.Nop())
	got := p.ProcessSong(context.Background(), view)

	// The corrected track stays empty; the user field carries validity.
	want := session.Outcome{Artist: "Artist", Valid: true}
	if got != want {
		t.Errorf("ProcessSong() = %+v, want %+v", got, want)
	}
}
