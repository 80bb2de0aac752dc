package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/events"
	"github.com/stylus/stylus/internal/notify"
	"github.com/stylus/stylus/internal/scrobbler"
	"github.com/stylus/stylus/internal/server"
	"github.com/stylus/stylus/internal/session"
	"github.com/stylus/stylus/internal/store"
)

type fakeProvider struct {
	id   string
	fail error
}

func (f *fakeProvider) ID() string    { return f.id }
func (f *fakeProvider) Name() string  { return f.id }
func (f *fakeProvider) Enabled() bool { return true }

func (f *fakeProvider) UpdateNowPlaying(context.Context, scrobbler.Track) error { return f.fail }
func (f *fakeProvider) Scrobble(context.Context, scrobbler.Track) error         { return f.fail }
func (f *fakeProvider) LoveTrack(context.Context, scrobbler.Track, bool) error  { return f.fail }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// waitForEvent drains the subscription until an event of the wanted type
// arrives.
func waitForEvent(t *testing.T, sub *events.Subscription, want events.Type) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event arrived", want)
		}
	}
}

func TestRecordingServiceJournalsAcceptedScrobbles(t *testing.T) {
	st := openTestStore(t)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	sub := bus.Subscribe()

	mgr := scrobbler.NewManager(zerolog.Nop())
	mgr.Register(&fakeProvider{id: "good"})
	mgr.Register(&fakeProvider{id: "bad", fail: errors.New("boom")})

	counters := &server.Counters{}
	svc := newRecordingService(mgr, st, bus, counters, zerolog.Nop())

	view := session.SongView{
		Artist:         "Artist",
		Track:          "Song",
		Album:          "Album",
		Duration:       180,
		StartTimestamp: time.Now(),
	}
	results := svc.Scrobble(context.Background(), view)

	if !scrobbler.AnyOK(results) {
		t.Fatal("expected at least one accepted scrobble")
	}
	if got := counters.Scrobbles(); got != 1 {
		t.Errorf("scrobble counter = %d, want 1", got)
	}
	if got := counters.Errors(); got != 0 {
		t.Errorf("error counter = %d, want 0", got)
	}

	entries, err := st.RecentJournalEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Artist != "Artist" || entry.Track != "Song" || entry.Album != "Album" {
		t.Errorf("journal entry = %+v, want the scrobbled song", entry)
	}
	if entry.Duration != 3*time.Minute {
		t.Errorf("journal duration = %v, want 3m", entry.Duration)
	}
	if len(entry.Providers) != 1 || entry.Providers[0] != "good" {
		t.Errorf("journal providers = %v, want [good]", entry.Providers)
	}

	ev := waitForEvent(t, sub, events.TypeScrobbled)
	rec, ok := ev.Payload.(scrobbleRecord)
	if !ok {
		t.Fatalf("payload type = %T, want scrobbleRecord", ev.Payload)
	}
	if rec.Track != "Song" || rec.Artist != "Artist" {
		t.Errorf("scrobble record = %+v, want the scrobbled song", rec)
	}
	if len(rec.Providers) != 1 || rec.Providers[0] != "good" {
		t.Errorf("record providers = %v, want [good]", rec.Providers)
	}
}

func TestRecordingServiceCountsFailedRounds(t *testing.T) {
	st := openTestStore(t)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	sub := bus.Subscribe()

	mgr := scrobbler.NewManager(zerolog.Nop())
	mgr.Register(&fakeProvider{id: "bad", fail: errors.New("boom")})

	counters := &server.Counters{}
	svc := newRecordingService(mgr, st, bus, counters, zerolog.Nop())

	results := svc.Scrobble(context.Background(), session.SongView{Artist: "A", Track: "T"})
	if scrobbler.AnyOK(results) {
		t.Fatal("expected every provider to fail")
	}
	if got := counters.Errors(); got != 1 {
		t.Errorf("error counter = %d, want 1", got)
	}
	if got := counters.Scrobbles(); got != 0 {
		t.Errorf("scrobble counter = %d, want 0", got)
	}

	entries, err := st.RecentJournalEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("journal entries = %d, want none for a failed round", len(entries))
	}

	select {
	case ev := <-sub.C:
		t.Errorf("unexpected event %s after failed round", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStoreEditsLookup(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	err := st.SaveEdit(ctx, store.Edit{Key: "k1", Artist: "Fixed Artist", Track: "Fixed Track"})
	if err != nil {
		t.Fatalf("failed to save edit: %v", err)
	}

	edits := storeEdits{st: st}
	fields, ok, err := edits.LookupEdit(ctx, "k1")
	if err != nil {
		t.Fatalf("LookupEdit failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored edit")
	}
	if fields.Artist != "Fixed Artist" || fields.Track != "Fixed Track" {
		t.Errorf("fields = %+v, want the stored edit", fields)
	}

	_, ok, err = edits.LookupEdit(ctx, "missing")
	if err != nil {
		t.Fatalf("LookupEdit failed: %v", err)
	}
	if ok {
		t.Error("expected no edit for an unknown key")
	}
}

func TestStoreCacheRemovesEdit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	view := session.SongView{Parsed: session.Identity{Artist: "a", Track: "t"}}
	key := view.Parsed.Key()
	if err := st.SaveEdit(ctx, store.Edit{Key: key, Artist: "Fixed"}); err != nil {
		t.Fatalf("failed to save edit: %v", err)
	}

	cache := storeCache{st: st}
	if err := cache.RemoveSongFromStorage(ctx, view); err != nil {
		t.Fatalf("RemoveSongFromStorage failed: %v", err)
	}

	_, ok, err := st.GetEdit(ctx, key)
	if err != nil {
		t.Fatalf("GetEdit failed: %v", err)
	}
	if ok {
		t.Error("edit should be gone after removal")
	}
}

func TestUISinkPublishesStateEvents(t *testing.T) {
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	sub := bus.Subscribe()

	sink := uiSink{session: "tab-1", connector: "YouTube", bus: bus}

	sink.Recognized(session.SongView{Artist: "A", Track: "T"})
	ev := waitForEvent(t, sub, events.TypeSessionState)
	if ev.Session != "tab-1" || ev.Connector != "YouTube" {
		t.Errorf("event envelope = %+v, want session and connector set", ev)
	}
	state, ok := ev.Payload.(events.SessionState)
	if !ok {
		t.Fatalf("payload type = %T, want events.SessionState", ev.Payload)
	}
	if state.State != events.StateRecognized {
		t.Errorf("state = %q, want %q", state.State, events.StateRecognized)
	}
	if state.Song == nil || state.Song.Track != "T" {
		t.Errorf("state song = %+v, want the recognized song", state.Song)
	}

	sink.SiteDisabled()
	ev = waitForEvent(t, sub, events.TypeSessionState)
	state = ev.Payload.(events.SessionState)
	if state.State != events.StateSiteDisabled {
		t.Errorf("state = %q, want %q", state.State, events.StateSiteDisabled)
	}
	if state.Song != nil {
		t.Errorf("site state should carry no song, got %+v", state.Song)
	}
}

func TestBroadcasterPublishesSongUpdates(t *testing.T) {
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	sub := bus.Subscribe()

	b := broadcaster{session: "tab-1", connector: "YouTube", bus: bus}
	b.SongUpdated(session.SongView{Artist: "A", Track: "T"})

	ev := waitForEvent(t, sub, events.TypeSongUpdated)
	if ev.Session != "tab-1" || ev.Connector != "YouTube" {
		t.Errorf("event envelope = %+v, want session and connector set", ev)
	}
	view, ok := ev.Payload.(session.SongView)
	if !ok {
		t.Fatalf("payload type = %T, want session.SongView", ev.Payload)
	}
	if view.Track != "T" {
		t.Errorf("view track = %q, want %q", view.Track, "T")
	}
}

type fakeDesktopNotifier struct {
	notifications []notify.Notification
	closed        []uint32
	nextID        uint32
}

func (f *fakeDesktopNotifier) Notify(_ context.Context, n notify.Notification) (uint32, error) {
	f.notifications = append(f.notifications, n)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeDesktopNotifier) Close(_ context.Context, id uint32) error {
	f.closed = append(f.closed, id)
	return nil
}

func TestDeskNotifierDisabledSwallowsCalls(t *testing.T) {
	fake := &fakeDesktopNotifier{}
	n := deskNotifier{notifier: fake, enabled: false}
	ctx := context.Background()

	id, err := n.ShowNowPlaying(ctx, session.SongView{Artist: "A", Track: "T"})
	if err != nil || id != 0 {
		t.Errorf("ShowNowPlaying = (%d, %v), want (0, nil)", id, err)
	}
	if _, err := n.ShowNotRecognized(ctx, session.SongView{}); err != nil {
		t.Errorf("ShowNotRecognized failed: %v", err)
	}
	if err := n.Remove(ctx, 7); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
	if len(fake.notifications) != 0 || len(fake.closed) != 0 {
		t.Error("disabled notifier must not reach the desktop")
	}
}

func TestDeskNotifierShowsAndRemoves(t *testing.T) {
	fake := &fakeDesktopNotifier{}
	n := deskNotifier{notifier: fake, enabled: true}
	ctx := context.Background()

	view := session.SongView{Artist: "Artist", Track: "Song", Album: "Album"}
	id, err := n.ShowNowPlaying(ctx, view)
	if err != nil {
		t.Fatalf("ShowNowPlaying failed: %v", err)
	}
	if id != 1 {
		t.Errorf("notification id = %d, want 1", id)
	}
	if len(fake.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(fake.notifications))
	}
	sent := fake.notifications[0]
	if sent.Title != "Song" {
		t.Errorf("title = %q, want the track name", sent.Title)
	}
	if !strings.Contains(sent.Body, "Artist") || !strings.Contains(sent.Body, "Album") {
		t.Errorf("body = %q, want artist and album", sent.Body)
	}

	if err := n.Remove(ctx, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(fake.closed) != 1 || fake.closed[0] != id {
		t.Errorf("closed = %v, want [%d]", fake.closed, id)
	}

	// Zero means no notification was shown for the song.
	if err := n.Remove(ctx, 0); err != nil {
		t.Fatalf("Remove(0) failed: %v", err)
	}
	if len(fake.closed) != 1 {
		t.Error("Remove(0) must not reach the desktop")
	}
}

func TestDaemonWiringPublishesSessionEvents(t *testing.T) {
	mgr := scrobbler.NewManager(zerolog.Nop())
	d, err := New(Config{
		ListenAddr:  "127.0.0.1:0",
		DBPath:      filepath.Join(t.TempDir(), "stylus.db"),
		Version:     "test",
		IdleTimeout: 0,
	}, mgr, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build daemon: %v", err)
	}
	t.Cleanup(func() {
		d.drain()
		_ = d.Shutdown()
	})

	sub := d.bus.Subscribe()

	_, ctrl := d.registry.GetOrCreate("tab-1", session.ConnectorInfo{ID: "youtube", Label: "YouTube"})
	ctrl.OnStateChanged(session.Snapshot{
		Artist:      "Artist",
		Track:       "Song",
		Duration:    300,
		CurrentTime: 5,
		IsPlaying:   true,
	})

	ev := waitForEvent(t, sub, events.TypeSongUpdated)
	if ev.Session != "tab-1" || ev.Connector != "YouTube" {
		t.Errorf("event envelope = %+v, want the session and connector", ev)
	}
	view, ok := ev.Payload.(session.SongView)
	if !ok {
		t.Fatalf("payload type = %T, want session.SongView", ev.Payload)
	}
	if view.Track != "Song" {
		t.Errorf("view track = %q, want %q", view.Track, "Song")
	}

	if removed := d.registry.Remove("tab-1"); !removed {
		t.Fatal("expected the session to exist")
	}
	ev = waitForEvent(t, sub, events.TypeSessionClosed)
	if ev.Session != "tab-1" {
		t.Errorf("closed session = %q, want tab-1", ev.Session)
	}
}
