package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

const testWebhook = "https://discord.com/api/webhooks/123456/tok-en_1"

func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"MODE", "TZ", "DISCORD_WEBHOOK_URL", "TRACKER_RUN_MODE", "TRACKER_RUN_TIMEZONE", "TRACKER_DISCORD_WEBHOOK_URL"} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearLegacyEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Site.URL != "https://pr-underworld.com/website/" {
		t.Fatalf("unexpected url %q", cfg.Site.URL)
	}
	if cfg.Site.Guild != "beQuiet" || cfg.Site.ServerLabel != "Netherworld" {
		t.Fatalf("unexpected site config %+v", cfg.Site)
	}
	if cfg.Mode() != tracker.ModeAuto {
		t.Fatalf("expected auto mode, got %q", cfg.Mode())
	}
	if cfg.Files.State != "state_last_seen.json" || cfg.Files.Members != "bequiet_members.txt" {
		t.Fatalf("unexpected files %+v", cfg.Files)
	}
	if cfg.Window() != tracker.DefaultDailyWindow {
		t.Fatalf("unexpected window %+v", cfg.Window())
	}
	if cfg.FetchTimeout() != 20*time.Second || cfg.DiscordTimeout() != 15*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.FetchTimeout(), cfg.DiscordTimeout())
	}
	if cfg.FetchInterval() != 30*time.Second {
		t.Fatalf("unexpected fetch interval %v", cfg.FetchInterval())
	}
	if cfg.Discord.MaxLength != 2000 || cfg.Discord.ChunkLimit != 1900 {
		t.Fatalf("unexpected discord limits %+v", cfg.Discord)
	}
	if cfg.Discord.WebhookURL != "" {
		t.Fatalf("expected no webhook by default")
	}
	if cfg.Scheduler.Schedule != "0 * * * *" {
		t.Fatalf("unexpected schedule %q", cfg.Scheduler.Schedule)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("Location() = %v, %v", loc, err)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	clearLegacyEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  guild: otherGuild
  server_label: Underworld
run:
  mode: hourly
  timezone: UTC
  notify_transitions: true
  daily_window:
    hour: 22
    start_minute: 0
    end_minute: 30
files:
  state: /tmp/state.json
fetch:
  timeout_seconds: 5
discord:
  chunk_limit: 1000
  counters: false
db:
  dsn: postgres://localhost/tracker
  max_conn_lifetime_minutes: 5
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Site.Guild != "otherGuild" || cfg.Site.ServerLabel != "Underworld" {
		t.Fatalf("expected site overrides, got %+v", cfg.Site)
	}
	if cfg.Mode() != tracker.ModeHourly || !cfg.Run.NotifyTransitions {
		t.Fatalf("expected run overrides, got %+v", cfg.Run)
	}
	if got := cfg.Window(); got != (tracker.DailyWindow{Hour: 22, StartMinute: 0, EndMinute: 30}) {
		t.Fatalf("unexpected window %+v", got)
	}
	if cfg.Files.State != "/tmp/state.json" || cfg.Files.Members != "bequiet_members.txt" {
		t.Fatalf("unexpected files %+v", cfg.Files)
	}
	if cfg.FetchTimeout() != 5*time.Second {
		t.Fatalf("unexpected fetch timeout %v", cfg.FetchTimeout())
	}
	if cfg.Discord.ChunkLimit != 1000 || cfg.Discord.Counters {
		t.Fatalf("unexpected discord config %+v", cfg.Discord)
	}
	if cfg.DB.Table != "member_observations" || cfg.ConnLifetime() != 5*time.Minute {
		t.Fatalf("unexpected db config %+v", cfg.DB)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoadWorkflowEnvironment(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("MODE", "Daily")
	t.Setenv("TZ", "UTC")
	t.Setenv("DISCORD_WEBHOOK_URL", testWebhook)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode() != tracker.ModeDaily {
		t.Fatalf("expected daily mode from MODE, got %q", cfg.Run.Mode)
	}
	if cfg.Run.Timezone != "UTC" {
		t.Fatalf("expected timezone from TZ, got %q", cfg.Run.Timezone)
	}
	if cfg.Discord.WebhookURL != testWebhook {
		t.Fatalf("expected webhook from DISCORD_WEBHOOK_URL, got %q", cfg.Discord.WebhookURL)
	}
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("MODE", "daily")
	t.Setenv("TRACKER_RUN_MODE", "hourly")
	t.Setenv("TRACKER_SITE_GUILD", "envGuild")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode() != tracker.ModeHourly {
		t.Fatalf("expected TRACKER_RUN_MODE to win, got %q", cfg.Run.Mode)
	}
	if cfg.Site.Guild != "envGuild" {
		t.Fatalf("expected guild from env, got %q", cfg.Site.Guild)
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("MODE", "weekly")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "run.mode") {
		t.Fatalf("expected run.mode error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearLegacyEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	if err := LoadDotEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
	if err := LoadDotEnv(""); err != nil {
		t.Fatalf("empty path should be ignored, got %v", err)
	}

	const key = "TRACKER_DOTENV_TEST_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Fatalf("expected variable from .env, got %q", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Site:    SiteConfig{URL: "https://example.com", Guild: "g", ServerLabel: "s"},
		Run:     RunConfig{Mode: "auto", Timezone: "UTC", DailyWindow: WindowConfig{Hour: 23, StartMinute: 20, EndMinute: 59}},
		Files:   FilesConfig{State: "s.json", Members: "m.txt"},
		Fetch:   FetchConfig{TimeoutSeconds: 1},
		Discord: DiscordConfig{TimeoutSeconds: 1, MaxLength: 2000, ChunkLimit: 1900},
		Server:  ServerConfig{Port: 8080},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing url", mutate: func(c *Config) { c.Site.URL = " " }, want: "site.url"},
		{name: "missing guild", mutate: func(c *Config) { c.Site.Guild = "" }, want: "site.guild"},
		{name: "missing label", mutate: func(c *Config) { c.Site.ServerLabel = "" }, want: "site.server_label"},
		{name: "bad mode", mutate: func(c *Config) { c.Run.Mode = "weekly" }, want: "run.mode"},
		{name: "bad timezone", mutate: func(c *Config) { c.Run.Timezone = "Mars/Olympus" }, want: "run.timezone"},
		{name: "bad window", mutate: func(c *Config) { c.Run.DailyWindow.StartMinute = 60 }, want: "run.daily_window"},
		{name: "missing files", mutate: func(c *Config) { c.Files.Members = "" }, want: "files.state"},
		{name: "fetch timeout", mutate: func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, want: "fetch.timeout_seconds"},
		{name: "fetch interval", mutate: func(c *Config) { c.Fetch.MinIntervalSeconds = -1 }, want: "fetch.min_interval_seconds"},
		{name: "discord timeout", mutate: func(c *Config) { c.Discord.TimeoutSeconds = 0 }, want: "discord.timeout_seconds"},
		{name: "chunk above max", mutate: func(c *Config) { c.Discord.ChunkLimit = 2001 }, want: "discord.chunk_limit"},
		{name: "http webhook", mutate: func(c *Config) { c.Discord.WebhookURL = "http://discord.com/api/webhooks/1/t" }, want: "https"},
		{name: "bad webhook path", mutate: func(c *Config) { c.Discord.WebhookURL = "https://discord.com/hooks/1" }, want: "discord.webhook_url"},
		{name: "db pool", mutate: func(c *Config) { c.DB.DSN = "postgres://x" }, want: "db.max_conns"},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidWebhookAccepted(t *testing.T) {
	t.Parallel()

	if err := validateWebhook(testWebhook); err != nil {
		t.Fatalf("validateWebhook() error = %v", err)
	}
}
