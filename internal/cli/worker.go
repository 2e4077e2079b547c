package cli

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/impactrefresh/internal/server"
)

// workerCommand creates the worker command.
func (c *CLI) workerCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process refresh jobs from the shared queue",
		Long: `Worker pops jobs from the Redis queue, calls the providers and merges
their results. Run as many workers as the providers' rate limits allow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			if ap.Redis == nil {
				printWarning("No redis.addr configured: this worker only sees jobs queued by its own process")
			}
			if concurrency > 0 {
				ap.Config.Worker.Concurrency = concurrency
			}
			return ap.NewWorker().Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "jobs processed at once (default from config)")
	return cmd
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		withWorker bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve exposes registration, refresh and status over HTTP, plus /metrics
for Prometheus. Without Redis the queue is in process, so a worker always
runs alongside the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ap, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer ap.Close()

			if addr == "" {
				addr = ap.Config.Server.Addr
			}
			srv := server.New(ap.Store, ap.Tracker, ap.Service, server.Options{
				Metrics: promhttp.HandlerFor(ap.Metrics, promhttp.HandlerOpts{}),
				Logger:  c.Logger,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, addr, ap.Config.Server.ShutdownTimeout)
			})
			if withWorker || ap.Redis == nil {
				w := ap.NewWorker()
				g.Go(func() error { return w.Run(gctx) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&withWorker, "worker", false, "also run a worker in this process")
	return cmd
}
