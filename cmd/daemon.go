package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stylus/stylus/internal/config"
	"github.com/stylus/stylus/internal/daemon"
	"github.com/stylus/stylus/internal/scrobbler"
	"github.com/stylus/stylus/internal/scrobbler/lastfm"
	"github.com/stylus/stylus/internal/scrobbler/listenbrainz"
)

var (
	daemonListenAddr string
	daemonDataDir    string
	daemonLogLevel   string
	daemonLogFile    string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scrobbling daemon",
	Long: `Run the scrobbling daemon.

The daemon will:
- Accept playback snapshots from connectors on a local HTTP API
- Track each playback session and detect song changes, pauses and replays
- Submit now-playing updates once a song is recognized
- Scrobble songs after half their duration has played, capped at 4 minutes
- Record scrobbles in a local journal and show desktop notifications

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for systemd).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	// Command-line flags; each overrides its config file counterpart
	daemonCmd.Flags().StringVar(&daemonListenAddr, "listen", "", "HTTP API listen address (default: 127.0.0.1:7734)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for the scrobble store (default: ~/.local/share/stylus)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if daemonListenAddr != "" {
		cfg.Server.ListenAddr = daemonListenAddr
	}
	if daemonDataDir != "" {
		cfg.DataDir = daemonDataDir
	}
	if daemonLogLevel != "" {
		cfg.Log.Level = daemonLogLevel
	}
	if daemonLogFile != "" {
		cfg.Log.File = daemonLogFile
	}

	// Set up logging
	logger := setupLogger(cfg.Log.File, cfg.Log.Level)

	logger.Info().
		Str("version", version).
		Msg("Starting stylus daemon")

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	providers := buildProviders(cfg, logger)
	if enabled := providers.EnabledNames(); len(enabled) == 0 {
		logger.Warn().Msg("No scrobble provider configured; songs are tracked but not submitted. Run 'stylus auth' to set up Last.fm")
	} else {
		logger.Info().Strs("providers", enabled).Msg("Scrobble providers ready")
	}

	// Create daemon config
	daemonCfg := daemon.Config{
		ListenAddr:    cfg.Server.ListenAddr,
		DBPath:        cfg.DBPath(),
		Version:       version,
		IdleTimeout:   cfg.Session.IdleTimeout,
		Notifications: cfg.Notifications.Enabled,
		DiscordAppID:  discordAppID(cfg, logger),
	}

	// Create daemon
	d, err := daemon.New(daemonCfg, providers, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	// Run daemon (blocks until shutdown signal)
	if err := d.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	// Graceful shutdown
	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// buildProviders registers every provider the config knows about. A
// provider without credentials stays registered but disabled, so the
// manager skips it until the user runs auth.
func buildProviders(cfg *config.Config, logger zerolog.Logger) *scrobbler.Manager {
	mgr := scrobbler.NewManager(logger)

	lf := lastfm.New(cfg.LastFM.APIKey, cfg.LastFM.APISecret, logger)
	lf.SetSessionKey(cfg.LastFM.SessionKey)
	mgr.Register(lf)

	mgr.Register(listenbrainz.New(listenbrainz.Config{
		APIURL: cfg.ListenBrainz.APIURL,
		Token:  cfg.ListenBrainz.Token,
	}, logger))

	return mgr
}

// discordAppID resolves the rich presence application ID, returning ""
// when presence is disabled or misconfigured.
func discordAppID(cfg *config.Config, logger zerolog.Logger) string {
	if !cfg.Discord.Enabled {
		return ""
	}
	if cfg.Discord.AppID == "" {
		logger.Warn().Msg("discord.enabled is set but discord.app_id is empty; rich presence stays off")
		return ""
	}
	return cfg.Discord.AppID
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
