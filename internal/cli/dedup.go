package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/impactrefresh/pkg/merge"
)

// dedupCommand creates the dedup command.
func (c *CLI) dedupCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Find artifacts that share an alias",
		Long: `Dedup scans the store and groups artifacts that share an alias, directly
or through other members. The earliest created member of each group is
canonical; the rest should redirect to it. The store is not modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			prog := newProgress(loggerFromContext(ctx))
			groups, err := merge.Dedup(ctx, ap.Store)
			if err != nil {
				return err
			}
			prog.done("store scanned")

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(merge.Redirects(groups))
			}
			if len(groups) == 0 {
				printSuccess("No duplicates")
				return nil
			}

			t := newTable("Canonical", "Duplicates")
			for _, g := range groups {
				t.Row(g.Canonical, strings.Join(g.Duplicates, "\n"))
			}
			fmt.Fprintln(out, t.Render())
			printWarning("%d groups, %d redirects", len(groups), len(merge.Redirects(groups)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the duplicate-to-canonical redirects as JSON")
	return cmd
}
