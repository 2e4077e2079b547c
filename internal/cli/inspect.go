package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/matzehuels/impactrefresh/pkg/artifact"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
)

// statusCommand creates the status command.
func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <artifact-id>",
		Short: "Report whether an artifact is being refreshed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			if _, err := ap.Store.Get(ctx, id); err != nil {
				return notFound(err, id)
			}
			n, err := ap.Tracker.Outstanding(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				printWarning("Updating: %d jobs outstanding", n)
				return nil
			}
			printSuccess("Up to date")
			return nil
		},
	}
}

// showCommand creates the show command.
func (c *CLI) showCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <artifact-id>",
		Short: "Print the stored record of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			art, err := ap.Store.Get(ctx, id)
			if err != nil {
				return notFound(err, id)
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(art)
			}
			updating, err := ap.Tracker.IsUpdating(ctx, id)
			if err != nil {
				return err
			}
			printArtifact(art, updating)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full record, every observation included, as JSON")
	return cmd
}

func notFound(err error, id string) error {
	if errors.Is(err, artifact.ErrNotFound) {
		return apperr.Wrap(apperr.ErrCodeNotFound, err, "artifact %s", id)
	}
	return err
}
