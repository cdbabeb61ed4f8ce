package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
)

type fetchOpts struct {
	person   string
	depth    int
	maxNodes int
	archive  string
	output   string
	noCache  bool
}

// fetchCommand creates the fetch command for downloading a neighborhood.
func (c *CLI) fetchCommand() *cobra.Command {
	var opts fetchOpts

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the neighborhood around a person as a payload file",
		Long: `Fetch the persons within --depth generations of --person, their spouses
and the families linking them. The payload is written as JSON and can be
passed to render and expand.`,
		Example: `  famtree fetch --person I0001 --depth 3
  famtree fetch --person I0001 --archive export.json -o chart.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.person, "person", "p", "", "seed person id")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", -1, "generations in each direction (default from config)")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", 0, "stop after this many persons (default from config)")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "answer from an exported tree file instead of the service")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <person>.json)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the payload cache")
	_ = cmd.MarkFlagRequired("person")

	return cmd
}

func (c *CLI) runFetch(ctx context.Context, opts *fetchOpts) error {
	logger := loggerFromContext(ctx)
	if err := errors.ValidateID("person", opts.person); err != nil {
		return err
	}
	depth, maxNodes := opts.depth, opts.maxNodes
	if depth < 0 {
		depth = c.cfg.Source.Depth
	}
	if maxNodes <= 0 {
		maxNodes = c.cfg.Source.MaxNodes
	}

	ch, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer ch.Close()
	src, err := c.newSource(opts.archive, ch)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Fetching "+opts.person+"...")
	spinner.Start()
	p, err := src.Neighborhood(ctx, opts.person, depth, maxNodes)
	spinner.Stop()
	if err != nil {
		return err
	}
	if p.Empty() {
		return errors.New(errors.ErrCodeNotFound, "nothing is known about %s", opts.person)
	}

	out := outputPath(opts.person+".json", opts.output, ".json")
	if err := payload.WriteFile(p, out); err != nil {
		return err
	}
	prog.done("Fetched neighborhood")

	printSuccess("Fetched %s (depth %d)", opts.person, depth)
	printPayload(p)
	printFile(out)
	printNextStep("Render it", "famtree render "+out)
	return nil
}
