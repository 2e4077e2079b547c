package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/impactrefresh/internal/app"
	"github.com/matzehuels/impactrefresh/pkg/buildinfo"
	"github.com/matzehuels/impactrefresh/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "impactrefresh"

	// configEnv names the variable read when --config is not given.
	configEnv = "IMPACT_CONFIG"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Impactrefresh collects impact metrics for research outputs",
		Long: `Impactrefresh keeps canonical records of research outputs up to date.
Each refresh discovers identifiers, fills in bibliographic metadata and
records a new reading of every metric the configured providers report.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (TOML or YAML; default $"+configEnv+")")
	_ = root.MarkPersistentFlagFilename("config", "toml", "yaml", "yml")

	root.AddCommand(c.registerCommand())
	root.AddCommand(c.refreshCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.classifyCommand())
	root.AddCommand(c.dedupCommand())
	root.AddCommand(c.workerCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// App Factory
// =============================================================================

// loadConfig reads the configuration named by --config or $IMPACT_CONFIG.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("config loaded", "path", path, "config", cfg)
	return cfg, nil
}

// newApp loads the configuration and wires the application. The caller
// closes it.
func (c *CLI) newApp(ctx context.Context) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, c.Logger)
}
