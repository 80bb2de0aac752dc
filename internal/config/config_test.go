package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:7734" {
		t.Errorf("listen addr = %q, want default loopback port", cfg.Server.ListenAddr)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("idle timeout = %v, want 30m", cfg.Session.IdleTimeout)
	}
	if !cfg.Notifications.Enabled {
		t.Error("notifications should default to enabled")
	}
	if cfg.Discord.Enabled || cfg.Discord.AppID != "" {
		t.Error("discord presence should default to disabled")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
	if cfg.ListenBrainz.APIURL != "https://api.listenbrainz.org" {
		t.Errorf("listenbrainz url = %q, want public API", cfg.ListenBrainz.APIURL)
	}
	if cfg.DataDir == "" {
		t.Error("data dir should have a default")
	}
	if cfg.NowFormat == "" {
		t.Error("now format should have a default")
	}
	if cfg.LastFM.APIKey != "" || cfg.LastFM.SessionKey != "" {
		t.Error("credentials should default to empty")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STYLUS_SERVER_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("STYLUS_LASTFM_API_KEY", "key-from-env")
	t.Setenv("STYLUS_SESSION_IDLE_TIMEOUT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("listen addr = %q, want env override", cfg.Server.ListenAddr)
	}
	if cfg.LastFM.APIKey != "key-from-env" {
		t.Errorf("api key = %q, want env override", cfg.LastFM.APIKey)
	}
	if cfg.Session.IdleTimeout != 5*time.Minute {
		t.Errorf("idle timeout = %v, want 5m", cfg.Session.IdleTimeout)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &Config{
		Server:        ServerConfig{ListenAddr: "127.0.0.1:7001"},
		LastFM:        LastFMConfig{APIKey: "k", APISecret: "s", SessionKey: "sk", Username: "alice"},
		ListenBrainz:  ListenBrainzConfig{Token: "tok", APIURL: "https://lb.example"},
		Notifications: NotificationsConfig{Enabled: false},
		Discord:       DiscordConfig{Enabled: true, AppID: "1234567890"},
		Session:       SessionConfig{IdleTimeout: 12 * time.Minute},
		Log:           LogConfig{Level: "debug", File: "/tmp/stylus.log"},
		DataDir:       filepath.Join(home, "data"),
		NowFormat:     "{{.Track}}",
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".config", "stylus", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if loaded.Server.ListenAddr != cfg.Server.ListenAddr {
		t.Errorf("listen addr = %q, want %q", loaded.Server.ListenAddr, cfg.Server.ListenAddr)
	}
	if loaded.LastFM != cfg.LastFM {
		t.Errorf("lastfm = %+v, want %+v", loaded.LastFM, cfg.LastFM)
	}
	if loaded.ListenBrainz != cfg.ListenBrainz {
		t.Errorf("listenbrainz = %+v, want %+v", loaded.ListenBrainz, cfg.ListenBrainz)
	}
	if loaded.Notifications.Enabled {
		t.Error("notifications should stay disabled after round trip")
	}
	if loaded.Discord != cfg.Discord {
		t.Errorf("discord = %+v, want %+v", loaded.Discord, cfg.Discord)
	}
	if loaded.Session.IdleTimeout != cfg.Session.IdleTimeout {
		t.Errorf("idle timeout = %v, want %v", loaded.Session.IdleTimeout, cfg.Session.IdleTimeout)
	}
	if loaded.Log != cfg.Log {
		t.Errorf("log = %+v, want %+v", loaded.Log, cfg.Log)
	}
	if loaded.DataDir != cfg.DataDir {
		t.Errorf("data dir = %q, want %q", loaded.DataDir, cfg.DataDir)
	}
	if loaded.NowFormat != cfg.NowFormat {
		t.Errorf("now format = %q, want %q", loaded.NowFormat, cfg.NowFormat)
	}
}

func TestDBPath(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join("some", "dir")}
	want := filepath.Join("some", "dir", "stylus.db")
	if got := cfg.DBPath(); got != want {
		t.Errorf("DBPath() = %q, want %q", got, want)
	}
}
