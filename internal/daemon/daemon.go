// Package daemon assembles the stylus process: the sqlite store, the
// provider manager, the event bus, desktop notifications, the session
// registry and the HTTP API that connectors report into.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/discord"
	"github.com/stylus/stylus/internal/events"
	"github.com/stylus/stylus/internal/notify"
	"github.com/stylus/stylus/internal/pipeline"
	"github.com/stylus/stylus/internal/scrobbler"
	"github.com/stylus/stylus/internal/server"
	"github.com/stylus/stylus/internal/session"
	"github.com/stylus/stylus/internal/store"
)

// shutdownTimeout bounds the drain of in-flight requests and provider
// calls once a stop signal arrives.
const shutdownTimeout = 10 * time.Second

// Config holds daemon configuration
type Config struct {
	ListenAddr    string        // HTTP API listen address
	DBPath        string        // Path to the sqlite store
	Version       string        // Reported by the status endpoint
	IdleTimeout   time.Duration // Reap sessions silent for this long
	Notifications bool          // Show desktop notifications
	DiscordAppID  string        // Discord rich presence app ID, "" disables
}

// Daemon coordinates the session registry, scrobble providers, local
// store, event bus and HTTP API as one process.
type Daemon struct {
	cfg     Config
	log     zerolog.Logger
	baseLog zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	store     *store.Store
	bus       *events.Bus
	notifier  notify.Notifier
	providers *scrobbler.Manager
	pipeline  *pipeline.Pipeline
	service   *recordingService
	counters  *server.Counters
	registry  *server.Registry
	api       *server.Server
	presence  *discord.Presence
}

// New creates a new Daemon instance
func New(cfg Config, providers *scrobbler.Manager, logger zerolog.Logger) (*Daemon, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	notifier, err := notify.New()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:       cfg,
		log:       logger.With().Str("component", "daemon").Logger(),
		baseLog:   logger,
		ctx:       ctx,
		cancel:    cancel,
		store:     st,
		bus:       events.NewBus(),
		notifier:  notifier,
		providers: providers,
		counters:  &server.Counters{},
	}

	d.pipeline = pipeline.New(storeEdits{st: st}, logger)
	d.service = newRecordingService(providers, st, d.bus, d.counters, logger)
	d.registry = server.NewRegistry(server.RegistryConfig{
		Factory:     d.newController,
		IdleTimeout: cfg.IdleTimeout,
		OnClosed: func(id string) {
			d.bus.Publish(events.Event{Type: events.TypeSessionClosed, Session: id})
		},
		Log: logger,
	})
	d.api = server.New(server.Config{
		Addr:    cfg.ListenAddr,
		Version: cfg.Version,
		Log:     logger,
	}, server.Deps{
		Registry:   d.registry,
		Store:      st,
		Bus:        d.bus,
		Scrobblers: providers,
		Counters:   d.counters,
	})
	if cfg.DiscordAppID != "" {
		d.presence = discord.New(cfg.DiscordAppID, logger)
	}

	return d, nil
}

// newController wires the per-session collaborators for a fresh session.
func (d *Daemon) newController(id string, conn session.ConnectorInfo) *session.Controller {
	return session.NewController(d.ctx, session.Config{
		Connector: conn,
		Log:       d.baseLog.With().Str("session", id).Logger(),
	}, session.Deps{
		Pipeline:  d.pipeline,
		Service:   d.service,
		Cache:     storeCache{st: d.store},
		UI:        uiSink{session: id, connector: conn.Label, bus: d.bus},
		Notify:    deskNotifier{notifier: d.notifier, enabled: d.cfg.Notifications},
		Broadcast: broadcaster{session: id, connector: conn.Label, bus: d.bus},
	})
}

// Run starts the HTTP API and blocks until a shutdown signal arrives or
// the listener fails. A second signal forces exit.
func (d *Daemon) Run() error {
	d.log.Info().
		Str("addr", d.cfg.ListenAddr).
		Strs("providers", d.providers.EnabledNames()).
		Msg("Starting daemon")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if d.presence != nil {
		go d.presence.Run(d.ctx, d.bus.Subscribe())
	}

	errCh := make(chan error, 1)
	go func() {
		if err := d.api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case err := <-errCh:
		d.log.Error().Err(err).Msg("HTTP server failed")
		runErr = err
	case sig := <-sigChan:
		d.log.Info().Str("signal", sig.String()).Msg("Shutdown signal received, initiating graceful shutdown")
		go func() {
			<-sigChan
			d.log.Warn().Msg("Second shutdown signal received, forcing exit")
			os.Exit(1)
		}()
	}

	d.drain()
	return runErr
}

// drain stops the daemon in dependency order: event streams first so the
// HTTP server can empty, then in-flight provider calls, then the sessions
// themselves.
func (d *Daemon) drain() {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	d.bus.Close()

	if err := d.api.Shutdown(drainCtx); err != nil {
		d.log.Warn().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := d.providers.Wait(drainCtx); err != nil {
		d.log.Warn().Err(err).Msg("Provider drain timed out")
	}

	d.registry.Close()
	d.cancel()

	d.log.Info().Msg("Daemon stopped")
}

// Shutdown releases the daemon's resources after Run returns.
func (d *Daemon) Shutdown() error {
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
