package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server holds the daemon's HTTP API settings
	Server ServerConfig

	// LastFM holds Last.fm provider credentials
	LastFM LastFMConfig

	// ListenBrainz holds ListenBrainz provider settings
	ListenBrainz ListenBrainzConfig

	// Notifications controls desktop notifications
	Notifications NotificationsConfig

	// Discord holds Discord rich presence settings
	Discord DiscordConfig

	// Session holds per-session tracking settings
	Session SessionConfig

	// Log holds logging settings
	Log LogConfig

	// DataDir is where the sqlite store lives
	// Default: ~/.local/share/stylus
	DataDir string

	// NowFormat is the output template for the now command
	// Default: "{{.Artist}} - {{.Track}}"
	NowFormat string
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	// ListenAddr is the daemon listen address. The API is
	// unauthenticated; keep it on loopback.
	ListenAddr string
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
	Username   string
}

// ListenBrainzConfig holds ListenBrainz specific configuration
type ListenBrainzConfig struct {
	Token  string
	APIURL string
}

// NotificationsConfig controls desktop notifications
type NotificationsConfig struct {
	Enabled bool
}

// DiscordConfig holds Discord rich presence settings
type DiscordConfig struct {
	Enabled bool

	// AppID is the Discord application ID the presence connects as
	AppID string
}

// SessionConfig holds session tracking settings
type SessionConfig struct {
	// IdleTimeout is how long a session may go without a snapshot
	// before the daemon reaps it
	IdleTimeout time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	// Level is the zerolog level name (trace, debug, info, warn, error)
	Level string

	// File is the log destination; empty means stderr
	File string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("server.listen_addr", "127.0.0.1:7734")
	v.SetDefault("listenbrainz.api_url", "https://api.listenbrainz.org")
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("discord.enabled", false)
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("log.level", "info")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("now_format", "{{.Artist}} - {{.Track}}")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	v.SetEnvPrefix("STYLUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr: v.GetString("server.listen_addr"),
		},
		LastFM: LastFMConfig{
			APIKey:     v.GetString("lastfm.api_key"),
			APISecret:  v.GetString("lastfm.api_secret"),
			SessionKey: v.GetString("lastfm.session_key"),
			Username:   v.GetString("lastfm.username"),
		},
		ListenBrainz: ListenBrainzConfig{
			Token:  v.GetString("listenbrainz.token"),
			APIURL: v.GetString("listenbrainz.api_url"),
		},
		Notifications: NotificationsConfig{
			Enabled: v.GetBool("notifications.enabled"),
		},
		Discord: DiscordConfig{
			Enabled: v.GetBool("discord.enabled"),
			AppID:   v.GetString("discord.app_id"),
		},
		Session: SessionConfig{
			IdleTimeout: v.GetDuration("session.idle_timeout"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		DataDir:   v.GetString("data_dir"),
		NowFormat: v.GetString("now_format"),
	}

	return cfg, nil
}

// DBPath returns the sqlite database path under the data directory
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "stylus.db")
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "stylus")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "stylus")
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	// Set config file path
	configDir := getConfigDir()
	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("server.listen_addr", c.Server.ListenAddr)
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.session_key", c.LastFM.SessionKey)
	v.Set("lastfm.username", c.LastFM.Username)
	v.Set("listenbrainz.token", c.ListenBrainz.Token)
	v.Set("listenbrainz.api_url", c.ListenBrainz.APIURL)
	v.Set("notifications.enabled", c.Notifications.Enabled)
	v.Set("discord.enabled", c.Discord.Enabled)
	v.Set("discord.app_id", c.Discord.AppID)
	v.Set("session.idle_timeout", c.Session.IdleTimeout.String())
	v.Set("log.level", c.Log.Level)
	v.Set("log.file", c.Log.File)
	v.Set("data_dir", c.DataDir)
	v.Set("now_format", c.NowFormat)

	// Write to file
	return v.WriteConfigAs(configFile)
}
