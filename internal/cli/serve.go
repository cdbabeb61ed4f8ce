package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/famtree/internal/server"
	"github.com/matzehuels/famtree/pkg/chart"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/session"
)

type serveOpts struct {
	addr    string
	archive string
	engine  string
	noCache bool
}

// serveCommand creates the serve command for hosting chart sessions.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve interactive charts over HTTP",
		Long: `Serve chart sessions over HTTP. Each session holds one growing chart; clients
post interaction events and fetch the redrawn SVG. Sessions are kept in the
configured session backend (memory, redis or mongo).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "answer from an exported tree file instead of the service")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "layout engine: graphviz (embedded), exec (dot binary)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout and payload cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	ch, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer ch.Close()
	src, err := c.newSource(opts.archive, ch)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(opts.engine, ch)
	if err != nil {
		return err
	}
	store, err := c.newSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	d := chart.NewDispatcher(runner, src, c.cfg.PipelineOptions(), logger)
	d.AnchorPasses = c.cfg.View.AnchorPasses
	d.AnchorTolerance = c.cfg.View.AnchorTolerance

	var metrics http.Handler
	if c.cfg.Server.Metrics {
		collector := observability.NewCollector(appName)
		collector.Register()
		defer observability.Reset()
		metrics = collector.Handler()
	}

	addr := opts.addr
	if addr == "" {
		addr = c.cfg.Server.Addr
	}
	srv := server.New(d, store, server.Config{
		Addr:    addr,
		TTL:     c.cfg.Session.TTL.Duration,
		Metrics: metrics,
		Logger:  logger,
	})
	printInfo("Serving charts on http://%s", addr)
	return srv.ListenAndServe(ctx)
}

// newSessionStore opens the configured session backend.
func (c *CLI) newSessionStore(ctx context.Context) (session.Store, error) {
	cfg := c.cfg.Session
	switch cfg.Backend {
	case "redis":
		s, err := session.NewRedisStore(ctx, cfg.Redis, "", 0)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnavailable, err, "cannot reach the session store at %s", cfg.Redis)
		}
		return s, nil
	case "mongo":
		s, err := session.NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnavailable, err, "cannot reach the session database")
		}
		return s, nil
	}
	return session.NewMemoryStore(), nil
}
