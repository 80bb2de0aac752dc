package daemon

import (
	"context"
	"fmt"

	"github.com/stylus/stylus/internal/events"
	"github.com/stylus/stylus/internal/notify"
	"github.com/stylus/stylus/internal/session"
)

// uiSink turns the controller's discrete UI calls into bus events so the
// SSE stream, presence bridge and TUI can render session status.
type uiSink struct {
	session   string
	connector string
	bus       *events.Bus
}

func (u uiSink) publish(state string, song *session.SongView) {
	u.bus.Publish(events.Event{
		Type:      events.TypeSessionState,
		Session:   u.session,
		Connector: u.connector,
		Payload:   events.SessionState{State: state, Song: song},
	})
}

func (u uiSink) Loading(v session.SongView)       { u.publish(events.StateLoading, &v) }
func (u uiSink) Recognized(v session.SongView)    { u.publish(events.StateRecognized, &v) }
func (u uiSink) NotRecognized(v session.SongView) { u.publish(events.StateNotRecognized, &v) }
func (u uiSink) Scrobbled(v session.SongView)     { u.publish(events.StateScrobbled, &v) }
func (u uiSink) Skipped(v session.SongView)       { u.publish(events.StateSkipped, &v) }
func (u uiSink) Error(v session.SongView)         { u.publish(events.StateError, &v) }
func (u uiSink) SiteSupported()                   { u.publish(events.StateSiteSupported, nil) }
func (u uiSink) SiteDisabled()                    { u.publish(events.StateSiteDisabled, nil) }

// broadcaster publishes song updates on the bus.
type broadcaster struct {
	session   string
	connector string
	bus       *events.Bus
}

func (b broadcaster) SongUpdated(v session.SongView) {
	b.bus.Publish(events.Event{
		Type:      events.TypeSongUpdated,
		Session:   b.session,
		Connector: b.connector,
		Payload:   v,
	})
}

// deskNotifier adapts desktop notifications to the controller's notifier
// collaborator, honoring the global notifications switch.
type deskNotifier struct {
	notifier notify.Notifier
	enabled  bool
}

func (n deskNotifier) ShowNowPlaying(ctx context.Context, v session.SongView) (uint32, error) {
	if !n.enabled {
		return 0, nil
	}
	body := v.Artist
	if v.Album != "" {
		body = fmt.Sprintf("%s\n%s", v.Artist, v.Album)
	}
	return n.notifier.Notify(ctx, notify.Notification{
		Title:   v.Track,
		Body:    body,
		Icon:    "media-playback-start",
		Timeout: 5000,
		Urgency: notify.UrgencyLow,
	})
}

func (n deskNotifier) ShowNotRecognized(ctx context.Context, v session.SongView) (uint32, error) {
	if !n.enabled {
		return 0, nil
	}
	return n.notifier.Notify(ctx, notify.Notification{
		Title:   "Song not recognized",
		Body:    "Edit the song info to submit it",
		Icon:    "dialog-question",
		Timeout: 5000,
		Urgency: notify.UrgencyLow,
	})
}

func (n deskNotifier) Remove(ctx context.Context, id uint32) error {
	if !n.enabled || id == 0 {
		return nil
	}
	return n.notifier.Close(ctx, id)
}
