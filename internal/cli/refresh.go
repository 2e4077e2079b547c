package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/impactrefresh/internal/app"
	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/pipeline"
)

// refreshFlags holds the flags shared by register and refresh.
type refreshFlags struct {
	local bool
	wait  bool
}

func (f *refreshFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.local, "local", false, "run the refresh in this process instead of handing it to workers")
	cmd.Flags().BoolVarP(&f.wait, "wait", "w", false, "watch the refresh until every job finishes")
}

// service picks where runs go. Without Redis the queue lives in this
// process and no worker would ever see it, so the refresh runs locally.
func (f *refreshFlags) service(a *app.App) *pipeline.Service {
	if f.local || a.Redis == nil {
		return a.Local
	}
	return a.Service
}

// registerCommand creates the register command.
func (c *CLI) registerCommand() *cobra.Command {
	var flags refreshFlags

	cmd := &cobra.Command{
		Use:   "register <namespace:identifier>",
		Short: "Register an artifact by alias and refresh it",
		Long: `Register finds the artifact holding the alias, creating it when there is
none, and starts a high-priority refresh.`,
		Example: `  impactrefresh register doi:10.1371/journal.pcbi.1000361
  impactrefresh register url:https://github.com/owner/repo --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := alias.Parse(args[0])
			if err != nil {
				return err
			}

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			svc := flags.service(ap)
			var (
				art *artifact.Artifact
				run *jobqueue.Run
			)
			err = c.spin(ctx, svc == ap.Local, "Refreshing "+a.String()+"...", nil, func() error {
				art, run, err = svc.Register(ctx, a)
				return err
			})
			if err != nil {
				return err
			}

			printSuccess("Registered %s", StyleNumber.Render(art.ID))
			return c.finish(ctx, ap, &flags, svc, art.ID, run)
		},
	}

	flags.register(cmd)
	return cmd
}

// refreshCommand creates the refresh command.
func (c *CLI) refreshCommand() *cobra.Command {
	var flags refreshFlags

	cmd := &cobra.Command{
		Use:   "refresh <artifact-id>",
		Short: "Refresh a registered artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			svc := flags.service(ap)
			var run *jobqueue.Run
			remaining := func(ctx context.Context) (int, error) { return ap.Tracker.Outstanding(ctx, id) }
			err = c.spin(ctx, svc == ap.Local, "Refreshing "+id+"...", remaining, func() error {
				run, err = svc.Refresh(ctx, id)
				return err
			})
			if err != nil {
				return err
			}
			return c.finish(ctx, ap, &flags, svc, id, run)
		},
	}

	flags.register(cmd)
	return cmd
}

// spin runs fn behind a spinner when show is set. With remaining set, the
// spinner counts down the outstanding jobs.
func (c *CLI) spin(ctx context.Context, show bool, message string, remaining func(context.Context) (int, error), fn func() error) error {
	if !show {
		return fn()
	}
	prog := newProgress(loggerFromContext(ctx))
	s := newSpinnerWithContext(ctx, message)
	s.Start()
	stop := make(chan struct{})
	if remaining != nil {
		go func() {
			t := time.NewTicker(watchInterval)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					if n, err := remaining(ctx); err == nil && n > 0 {
						s.SetMessage(fmt.Sprintf("%s %d jobs left", message, n))
					}
				}
			}
		}()
	}
	err := fn()
	close(stop)
	s.Stop()
	if err == nil {
		prog.done("refresh finished")
	}
	return err
}

// finish reports a started run. Local runs are already complete and show
// the stored record; queued runs are watched when asked to.
func (c *CLI) finish(ctx context.Context, ap *app.App, flags *refreshFlags, svc *pipeline.Service, id string, run *jobqueue.Run) error {
	printRun(run)
	if run.Jobs() == 0 {
		return nil
	}

	if svc == ap.Local {
		art, err := ap.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		printNewline()
		printArtifact(art, false)
		return nil
	}

	if flags.wait {
		return c.watch(ctx, ap, id, run.Jobs())
	}
	printNewline()
	printNextStep("Check progress", fmt.Sprintf("%s status %s", appName, id))
	return nil
}

// watch shows a live view of the refresh of id until it drains.
func (c *CLI) watch(ctx context.Context, ap *app.App, id string, total int) error {
	m := NewWatchModel(ctx, ap.Tracker, ap.Store, id, total)
	final, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return err
	}

	w := final.(WatchModel)
	switch {
	case w.Err != nil:
		return w.Err
	case w.Aborted:
		printWarning("Stopped watching; the refresh continues in the workers")
		return nil
	}
	printNewline()
	printArtifact(w.Artifact, false)
	return nil
}

func printRun(run *jobqueue.Run) {
	if run.Jobs() == 0 {
		printInfo("Nothing to refresh")
		return
	}
	printKeyValue("run", run.ID)
	printKeyValue("stages", fmt.Sprint(len(run.Stages)))
	printKeyValue("jobs", fmt.Sprint(run.Jobs()))
}
