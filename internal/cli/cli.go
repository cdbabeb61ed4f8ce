package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/famtree/pkg/buildinfo"
	"github.com/matzehuels/famtree/pkg/cache"
	"github.com/matzehuels/famtree/pkg/config"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/pipeline"
	"github.com/matzehuels/famtree/pkg/source"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "famtree"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        config.Config

	// engine replaces the configured layout engine when set.
	engine layout.Engine
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "famtree draws interactive pedigree charts",
		Long:         `famtree lays out family trees fetched from a genealogy service as interactive SVG pedigree charts that grow one family at a time.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.DefaultFile+")")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.expandCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

// newEngine returns the configured layout engine, or name when set.
func (c *CLI) newEngine(name string) (layout.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	if name == "" {
		name = c.cfg.Layout.Engine
	}
	e, err := layout.New(name, c.cfg.Layout.DotPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "unknown layout engine %q", name)
	}
	if x, ok := e.(*layout.Exec); ok && !x.Available() {
		return nil, errors.New(errors.ErrCodeEngine, "%s not found; install Graphviz or use --engine graphviz", x.Name())
	}
	return e, nil
}

// newCache opens the configured cache backend.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.cfg.Cache.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, c.cfg.Cache.Redis, "", 0, appName+":")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnavailable, err, "cannot reach the cache at %s", c.cfg.Cache.Redis)
		}
		return rc, nil
	}
	dir := c.cfg.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// newRunner creates a pipeline runner whose engine output is cached.
func (c *CLI) newRunner(engineName string, ch cache.Cache) (*pipeline.Runner, error) {
	engine, err := c.newEngine(engineName)
	if err != nil {
		return nil, err
	}
	cached := layout.NewCached(engine, ch, nil, c.Logger)
	cached.TTL = c.cfg.Cache.TTL.Duration
	r := pipeline.NewRunner(cached, c.Logger)
	r.Adapter.NoRetry = !c.cfg.Layout.RetryRelaxed
	return r, nil
}

// newSource returns the archive at path, the configured archive, or the
// family tree service, in that order.
func (c *CLI) newSource(path string, ch cache.Cache) (source.Source, error) {
	if path == "" {
		path = c.cfg.Source.Archive
	}
	if path != "" {
		a, err := source.OpenArchive(path)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using archive", "path", path, "nodes", a.Len())
		return a, nil
	}
	if c.cfg.Source.URL == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no payload source: set source.url in %s, %s, or pass --archive", config.DefaultFile, config.EnvAPIURL)
	}
	h, err := source.NewHTTP(c.cfg.Source.URL,
		source.WithToken(c.cfg.Source.Token),
		source.WithTimeout(c.cfg.Source.Timeout.Duration),
		source.WithRetry(c.cfg.RetryPolicy()),
		source.WithCache(ch),
		source.WithLogger(c.Logger),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/famtree/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// outputPath returns out, or input with its extension replaced by ext.
func outputPath(input, out, ext string) string {
	if out != "" {
		return out
	}
	return input[:len(input)-len(filepath.Ext(input))] + ext
}
