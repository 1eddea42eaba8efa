// Package config loads and validates tracker configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/bequiet-tracker/internal/notify/discord"
	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Run       RunConfig       `mapstructure:"run"`
	Files     FilesConfig     `mapstructure:"files"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig identifies the homepage table to scrape.
type SiteConfig struct {
	URL         string `mapstructure:"url"`
	Guild       string `mapstructure:"guild"`
	ServerLabel string `mapstructure:"server_label"`
}

// RunConfig controls how a pass picks its mode.
type RunConfig struct {
	Mode              string       `mapstructure:"mode"`
	Timezone          string       `mapstructure:"timezone"`
	NotifyTransitions bool         `mapstructure:"notify_transitions"`
	DailyWindow       WindowConfig `mapstructure:"daily_window"`
}

// WindowConfig is the local time span in which auto mode emits the summary.
type WindowConfig struct {
	Hour        int `mapstructure:"hour"`
	StartMinute int `mapstructure:"start_minute"`
	EndMinute   int `mapstructure:"end_minute"`
}

// FilesConfig points at the persisted state.
type FilesConfig struct {
	State   string `mapstructure:"state"`
	Members string `mapstructure:"members"`
}

// FetchConfig configures the homepage collector.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// MinIntervalSeconds spaces out fetches of the homepage. Zero disables it.
	MinIntervalSeconds int `mapstructure:"min_interval_seconds"`
}

// DiscordConfig configures webhook delivery.
type DiscordConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxLength      int    `mapstructure:"max_length"`
	ChunkLimit     int    `mapstructure:"chunk_limit"`
	Counters       bool   `mapstructure:"counters"`
}

// StorageConfig sets where fetched pages are archived. Empty disables it.
type StorageConfig struct {
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// DBConfig controls the optional observation history database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SchedulerConfig holds the cron expressions used by serve mode.
type SchedulerConfig struct {
	Schedule      string `mapstructure:"schedule"`
	DailySchedule string `mapstructure:"daily_schedule"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// APIKey guards the /v1 routes when set.
	APIKey                string `mapstructure:"api_key"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Run.Mode = strings.ToLower(strings.TrimSpace(cfg.Run.Mode))
	cfg.Discord.WebhookURL = strings.TrimSpace(cfg.Discord.WebhookURL)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadDotEnv exports variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// bindLegacyEnv maps the bare variables the scheduled workflow exports.
// The prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"run.mode":            {"TRACKER_RUN_MODE", "MODE"},
		"run.timezone":        {"TRACKER_RUN_TIMEZONE", "TZ"},
		"discord.webhook_url": {"TRACKER_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.url", "https://pr-underworld.com/website/")
	v.SetDefault("site.guild", "beQuiet")
	v.SetDefault("site.server_label", "Netherworld")
	v.SetDefault("run.mode", string(tracker.ModeAuto))
	v.SetDefault("run.timezone", "Europe/Berlin")
	v.SetDefault("run.notify_transitions", false)
	v.SetDefault("run.daily_window.hour", tracker.DefaultDailyWindow.Hour)
	v.SetDefault("run.daily_window.start_minute", tracker.DefaultDailyWindow.StartMinute)
	v.SetDefault("run.daily_window.end_minute", tracker.DefaultDailyWindow.EndMinute)
	v.SetDefault("files.state", "state_last_seen.json")
	v.SetDefault("files.members", "bequiet_members.txt")
	v.SetDefault("fetch.user_agent", "beQuiet last-seen tracker")
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.min_interval_seconds", 30)
	v.SetDefault("discord.timeout_seconds", 15)
	v.SetDefault("discord.max_length", discord.DefaultMaxLength)
	v.SetDefault("discord.chunk_limit", discord.DefaultChunkLimit)
	v.SetDefault("discord.counters", true)
	v.SetDefault("storage.snapshot_dir", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "member_observations")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("scheduler.schedule", "0 * * * *")
	v.SetDefault("scheduler.daily_schedule", "CRON_TZ=Europe/Berlin 30 23 * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.URL) == "" {
		return fmt.Errorf("site.url is required")
	}
	if strings.TrimSpace(c.Site.Guild) == "" {
		return fmt.Errorf("site.guild is required")
	}
	if strings.TrimSpace(c.Site.ServerLabel) == "" {
		return fmt.Errorf("site.server_label is required")
	}
	if _, err := tracker.ParseMode(c.Run.Mode); err != nil {
		return fmt.Errorf("run.mode: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	w := c.Run.DailyWindow
	if w.Hour < 0 || w.Hour > 23 || w.StartMinute < 0 || w.EndMinute > 59 || w.StartMinute > w.EndMinute {
		return fmt.Errorf("run.daily_window %02d:%02d-%02d:%02d is invalid", w.Hour, w.StartMinute, w.Hour, w.EndMinute)
	}
	if c.Files.State == "" || c.Files.Members == "" {
		return fmt.Errorf("files.state and files.members are required")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MinIntervalSeconds < 0 {
		return fmt.Errorf("fetch.min_interval_seconds must be >= 0")
	}
	if c.Discord.TimeoutSeconds <= 0 {
		return fmt.Errorf("discord.timeout_seconds must be > 0")
	}
	if c.Discord.MaxLength <= 0 || c.Discord.ChunkLimit <= 0 {
		return fmt.Errorf("discord.max_length and discord.chunk_limit must be > 0")
	}
	if c.Discord.ChunkLimit > c.Discord.MaxLength {
		return fmt.Errorf("discord.chunk_limit must not exceed discord.max_length")
	}
	if c.Discord.WebhookURL != "" {
		if err := validateWebhook(c.Discord.WebhookURL); err != nil {
			return fmt.Errorf("discord.webhook_url: %w", err)
		}
	}
	if c.DB.DSN != "" && c.DB.MaxConns <= 0 {
		return fmt.Errorf("db.max_conns must be > 0 when db.dsn is set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("server.request_timeout_seconds must be >= 0")
	}
	return nil
}

func validateWebhook(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" {
		return fmt.Errorf("scheme must be https")
	}
	_, _, err = discord.ParseWebhookURL(raw)
	return err
}

// Location resolves run.timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Run.Timezone)
	if err != nil {
		return nil, fmt.Errorf("run.timezone %q: %w", c.Run.Timezone, err)
	}
	return loc, nil
}

// Mode returns the parsed run.mode.
func (c Config) Mode() tracker.Mode {
	mode, err := tracker.ParseMode(c.Run.Mode)
	if err != nil {
		return tracker.ModeAuto
	}
	return mode
}

// Window converts run.daily_window.
func (c Config) Window() tracker.DailyWindow {
	w := c.Run.DailyWindow
	return tracker.DailyWindow{Hour: w.Hour, StartMinute: w.StartMinute, EndMinute: w.EndMinute}
}

// FetchTimeout converts fetch.timeout_seconds.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// FetchInterval converts fetch.min_interval_seconds.
func (c Config) FetchInterval() time.Duration {
	return time.Duration(c.Fetch.MinIntervalSeconds) * time.Second
}

// DiscordTimeout converts discord.timeout_seconds.
func (c Config) DiscordTimeout() time.Duration {
	return time.Duration(c.Discord.TimeoutSeconds) * time.Second
}

// RequestTimeout converts server.request_timeout_seconds.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ConnLifetime converts db.max_conn_lifetime_minutes.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeMinutes) * time.Minute
}
