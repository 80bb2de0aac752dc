// Package discord mirrors the playing song to Discord Rich Presence over
// the local IPC socket.
package discord

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/events"
	"github.com/stylus/stylus/internal/session"
)

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Presence follows the event bus and keeps Discord showing the most
// recently playing song across all sessions. The display clears when the
// shown session's song goes away or the session closes.
type Presence struct {
	appID   string
	log     zerolog.Logger
	client  rpcClient
	connect func(string) (rpcClient, error)
	last    lastActivity
	artwork *artworkLookup
}

type lastActivity struct {
	session, artist, track, album string
	playing                       bool
}

func New(appID string, logger zerolog.Logger) *Presence {
	return &Presence{
		appID: appID,
		log:   logger.With().Str("component", "discord").Logger(),
		connect: func(appID string) (rpcClient, error) {
			return ipcConnect(appID)
		},
		artwork: newArtworkLookup(),
	}
}

// Run consumes bus events until the context or the subscription ends.
// The Discord connection is lazy: an unreachable socket is logged and
// retried on the next song.
func (p *Presence) Run(ctx context.Context, sub *events.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			p.close()
			return
		case <-sub.Done():
			p.close()
			return
		case ev := <-sub.C:
			p.handleEvent(ev)
		}
	}
}

func (p *Presence) handleEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeSongUpdated:
		view, ok := ev.Payload.(session.SongView)
		if !ok {
			return
		}
		p.handleSong(ev, view)

	case events.TypeSessionState:
		st, ok := ev.Payload.(events.SessionState)
		if !ok {
			return
		}
		// A song-less state means the shown song was disposed.
		if st.Song == nil && p.shownSession(ev.Session) {
			p.clear()
		}

	case events.TypeSessionClosed:
		if p.shownSession(ev.Session) {
			p.clear()
		}
	}
}

func (p *Presence) shownSession(id string) bool {
	return p.last.playing && p.last.session == id
}

func (p *Presence) handleSong(ev events.Event, view session.SongView) {
	if !view.IsPlaying || view.Track == "" {
		if p.shownSession(ev.Session) {
			p.clear()
		}
		return
	}

	cur := lastActivity{
		session: ev.Session,
		artist:  view.Artist,
		track:   view.Track,
		album:   view.Album,
		playing: true,
	}
	if cur == p.last {
		return
	}

	if err := p.ensureConnected(); err != nil {
		p.log.Warn().Err(err).Msg("Discord not available")
		return
	}

	name := ev.Connector
	if name == "" {
		name = "music"
	}

	start := time.Now().Add(-time.Duration(view.CurrentTime * float64(time.Second)))
	startUnix := start.Unix()
	stamps := &Timestamps{Start: &startUnix}
	if view.Duration > 0 {
		endUnix := start.Add(time.Duration(view.Duration * float64(time.Second))).Unix()
		stamps.End = &endUnix
	}

	largeImage := view.TrackArt
	if largeImage == "" && p.artwork != nil {
		largeImage = p.artwork.Lookup(view.Artist, view.Album)
	}

	err := p.client.SetActivity(Activity{
		Type:       activityListening,
		Name:       name,
		Details:    view.Track,
		State:      "by " + view.Artist,
		Timestamps: stamps,
		Assets: &Assets{
			LargeImage: largeImage,
			LargeText:  view.Album,
			SmallImage: "stylus",
			SmallText:  "stylus",
		},
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.last = cur
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.appID)
	if err != nil {
		return err
	}
	p.log.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clear() {
	p.last = lastActivity{}
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.log.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
