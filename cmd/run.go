package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

func newRunCmd() *cobra.Command {
	var modeFlag string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a single tracking pass",
		Long: `Fetches the homepage once, updates the last-seen state and, in daily
mode, posts the summary. The mode comes from --mode, else MODE, else auto.
A missing server table is logged and is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			mode := rt.cfg.Mode()
			if cmd.Flags().Changed("mode") {
				if mode, err = tracker.ParseMode(modeFlag); err != nil {
					return err
				}
			}

			result, err := rt.app.RunOnce(cmd.Context(), mode)
			if err != nil {
				return fmt.Errorf("tracking pass failed: %w", err)
			}
			rt.logger.Info("Pass finished",
				zap.String("run_id", result.RunID),
				zap.String("mode", string(result.Mode)),
				zap.Bool("table_found", result.TableFound),
				zap.Strings("online", result.Online),
				zap.Strings("new_members", result.NewMembers),
				zap.Int("tracked", result.Tracked),
				zap.Bool("summary_sent", result.SummarySent),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", "", "auto, hourly or daily (overrides MODE)")
	return cmd
}
