package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

func newMembersCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Prints the tracked roster with last-seen times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			members, err := rt.app.Members(cmd.Context())
			if err != nil {
				return fmt.Errorf("load members: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(members)
			}
			loc, err := rt.cfg.Location()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATUS\tLAST SEEN")
			for _, m := range members {
				seen := "never"
				if m.LastSeen > 0 {
					seen = tracker.FormatTimestamp(m.LastSeen, loc)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.Status, seen)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
