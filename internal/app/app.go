// Package app builds the tracker and its collaborators from configuration
// and serializes passes so manual and scheduled runs never overlap.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/clock"
	"github.com/JakeFAU/bequiet-tracker/internal/config"
	collyfetcher "github.com/JakeFAU/bequiet-tracker/internal/fetcher/colly"
	"github.com/JakeFAU/bequiet-tracker/internal/notify/discord"
	"github.com/JakeFAU/bequiet-tracker/internal/policy/ratelimit"
	"github.com/JakeFAU/bequiet-tracker/internal/runid"
	"github.com/JakeFAU/bequiet-tracker/internal/storage/file"
	"github.com/JakeFAU/bequiet-tracker/internal/storage/local"
	"github.com/JakeFAU/bequiet-tracker/internal/storage/postgres"
	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

// ErrRunInProgress is returned when a pass is requested while another runs.
var ErrRunInProgress = errors.New("a tracking pass is already running")

type passRunner interface {
	Run(ctx context.Context, mode tracker.Mode) (tracker.RunResult, error)
	Members(ctx context.Context) ([]tracker.MemberView, error)
}

// App holds the long-lived services shared by the CLI commands.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	tracker passRunner
	history *postgres.HistoryStore

	mu sync.Mutex
}

// New wires the tracker. Optional sinks (snapshot archive, Postgres history)
// are enabled only when configured; a missing webhook only disables posting.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	states, err := file.NewStateStore(cfg.Files.State, logger.Named("state"))
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}
	members, err := file.NewMemberStore(cfg.Files.Members)
	if err != nil {
		return nil, fmt.Errorf("init member store: %w", err)
	}

	notifier, err := discord.New(discord.Config{
		WebhookURL: cfg.Discord.WebhookURL,
		Timeout:    cfg.DiscordTimeout(),
		MaxLength:  cfg.Discord.MaxLength,
		ChunkLimit: cfg.Discord.ChunkLimit,
		Counters:   cfg.Discord.Counters,
	}, logger.Named("discord"))
	if err != nil {
		return nil, fmt.Errorf("init discord notifier: %w", err)
	}
	if !notifier.Enabled() {
		logger.Warn("DISCORD_WEBHOOK_URL not set; messages will be skipped")
	}

	var fetcher tracker.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	if interval := cfg.FetchInterval(); interval > 0 {
		fetcher = ratelimit.NewFetcher(fetcher, ratelimit.New(ratelimit.Config{MinInterval: interval}))
	}

	deps := tracker.Dependencies{
		Fetcher:  fetcher,
		State:    states,
		Members:  members,
		Notifier: notifier,
		Clock:    clock.New(),
		IDs:      runid.New(),
	}

	if cfg.Storage.SnapshotDir != "" {
		snapshots, err := local.New(local.Config{BaseDir: cfg.Storage.SnapshotDir})
		if err != nil {
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		deps.Snapshots = snapshots
		logger.Info("Archiving fetched pages", zap.String("dir", cfg.Storage.SnapshotDir))
	}

	a := &App{cfg: cfg, logger: logger}
	if cfg.DB.DSN != "" {
		history, err := postgres.NewHistoryStore(ctx, postgres.HistoryStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MaxConnLifetime: cfg.ConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("init history store: %w", err)
		}
		deps.History = history
		a.history = history
		logger.Info("Recording observation history", zap.String("table", cfg.DB.Table))
	}

	t, err := tracker.New(tracker.Config{
		URL:               cfg.Site.URL,
		GuildName:         cfg.Site.Guild,
		ServerLabel:       cfg.Site.ServerLabel,
		Location:          loc,
		Window:            cfg.Window(),
		NotifyTransitions: cfg.Run.NotifyTransitions,
	}, deps, logger.Named("tracker"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init tracker: %w", err)
	}
	a.tracker = t
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// RunOnce executes a single pass, or fails fast with ErrRunInProgress.
func (a *App) RunOnce(ctx context.Context, mode tracker.Mode) (tracker.RunResult, error) {
	if !a.mu.TryLock() {
		a.logger.Warn("Skipping pass; another one is running", zap.String("mode", string(mode)))
		return tracker.RunResult{}, ErrRunInProgress
	}
	defer a.mu.Unlock()
	return a.tracker.Run(ctx, mode)
}

// Members returns the tracked roster in summary order.
func (a *App) Members(ctx context.Context) ([]tracker.MemberView, error) {
	return a.tracker.Members(ctx)
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.history != nil {
		a.history.Close()
		a.history = nil
	}
}
