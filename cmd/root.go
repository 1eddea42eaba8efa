// Package cmd defines and implements the CLI commands for the tracker executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/app"
	"github.com/JakeFAU/bequiet-tracker/internal/config"
	"github.com/JakeFAU/bequiet-tracker/internal/logging"
	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

// App defines the application interface that commands use. Tests inject a
// fake through newApp.
type App interface {
	RunOnce(ctx context.Context, mode tracker.Mode) (tracker.RunResult, error)
	Members(ctx context.Context) ([]tracker.MemberView, error)
	Close()
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

type runtimeKey struct{}

// runtime is what PersistentPreRunE hands to subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	app    App
}

type rootOptions struct {
	configFile string
	envFile    string
	dev        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Tracks when guild members were last seen online.",
		Long: `tracker scrapes the game server homepage, records which members of the
configured guild are online and keeps a last-seen timestamp per member.
Once a day it posts a summary to a Discord webhook.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.dev {
				cfg.Logging.Development = true
			}
			logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey{}, &runtime{cfg: cfg, logger: logger, app: appInstance}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML, optional)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "human-friendly development logging")

	cmd.AddCommand(newRunCmd(), newServeCmd(), newMembersCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		return nil, errors.New("application services not initialized")
	}
	rt, ok := ctx.Value(runtimeKey{}).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

// executeRoot runs root and releases the runtime of the executed command.
// Cleanup happens here because cobra skips post-run hooks when RunE fails.
func executeRoot(ctx context.Context, root *cobra.Command) error {
	executed, err := root.ExecuteContextC(ctx)
	if executed != nil {
		if rt, rtErr := resolveRuntime(executed.Context()); rtErr == nil {
			rt.app.Close()
			_ = rt.logger.Sync()
		}
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := executeRoot(ctx, newRootCmd())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracker: %v\n", err)
		os.Exit(1)
	}
}
