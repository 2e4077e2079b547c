package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/impactrefresh/internal/app"
	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/cache"
	"github.com/matzehuels/impactrefresh/pkg/classify"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// classifyCommand creates the classify command. It plans without touching
// the store, so it works offline.
func (c *CLI) classifyCommand() *cobra.Command {
	var (
		hasTitle bool
		dotPath  string
		svgPath  string
	)

	cmd := &cobra.Command{
		Use:   "classify <namespace:identifier>...",
		Short: "Show the refresh plan for a set of aliases",
		Example: `  impactrefresh classify doi:10.5061/dryad.8515 url:http://datadryad.org/x
  impactrefresh classify url:https://github.com/owner/repo --svg plan.svg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := alias.NewSet()
			for _, arg := range args {
				a, err := alias.Parse(arg)
				if err != nil {
					return err
				}
				set.Add(a)
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			reg := provider.Build(cfg.Specs(), app.Factories(cache.NewNullCache(), 0), c.Logger)
			plan := classify.NewPlanner(reg).Plan(set, hasTitle)

			printPlan(plan)

			if dotPath == "" && svgPath == "" {
				return nil
			}
			dot := classify.ToDOT(plan)
			printNewline()
			if dotPath != "" {
				if err := os.WriteFile(dotPath, []byte(dot), 0o644); err != nil {
					return err
				}
				printFile(dotPath)
			}
			if svgPath != "" {
				svg, err := classify.RenderSVG(cmd.Context(), dot)
				if err != nil {
					return err
				}
				if err := os.WriteFile(svgPath, svg, 0o644); err != nil {
					return err
				}
				printFile(svgPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hasTitle, "title", false, "plan as if a title were already known")
	cmd.Flags().StringVar(&dotPath, "dot", "", "write the plan as Graphviz DOT to this file")
	cmd.Flags().StringVar(&svgPath, "svg", "", "render the plan as SVG to this file")
	return cmd
}

func printPlan(p classify.Plan) {
	printKeyValue("genre", string(p.Genre))
	printKeyValue("host", p.Host)
	printKeyValue("jobs", fmt.Sprint(p.Jobs()))
	if len(p.Stages) == 0 {
		printNewline()
		printInfo("Nothing to refresh")
		return
	}

	t := newTable("Stage", "Operation", "Providers")
	for _, s := range p.Stages {
		names := make([]string, len(s.Tasks))
		for i, task := range s.Tasks {
			names[i] = task.Provider
		}
		t.Row(fmt.Sprint(s.Index+1), s.Operation.String(), strings.Join(names, ", "))
	}
	printNewline()
	fmt.Fprintln(out, t.Render())
}
