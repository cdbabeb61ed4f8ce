package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string  // output file path
	selection string  // selected person or family id
	engine    string  // layout engine: graphviz or exec
	title     string  // document title
	width     float64 // client viewport width in pixels
	height    float64 // client viewport height in pixels
	noCache   bool    // bypass the layout cache
	noScript  bool    // omit the interaction script
}

// renderCommand creates the render command for drawing a payload file.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [payload.json]",
		Short: "Render a pedigree payload to an interactive SVG chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: input with .svg extension)")
	cmd.Flags().StringVarP(&opts.selection, "select", "s", "", "person or family id to select")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "layout engine: graphviz (embedded), exec (dot binary)")
	cmd.Flags().StringVar(&opts.title, "title", "", "document title (default: root person)")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "viewport width in pixels")
	cmd.Flags().Float64Var(&opts.height, "height", 0, "viewport height in pixels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout cache")
	cmd.Flags().BoolVar(&opts.noScript, "no-script", false, "write a static chart without the interaction script")

	return cmd
}

// pipelineOptions merges the flags over the configured options.
func (c *CLI) pipelineOptions(opts *renderOpts) pipeline.Options {
	po := c.cfg.PipelineOptions()
	po.Selection = opts.selection
	po.Title = opts.title
	po.NoScript = opts.noScript
	if opts.width > 0 {
		po.Width = opts.width
	}
	if opts.height > 0 {
		po.Height = opts.height
	}
	return po
}

// runRender loads input, lays it out and writes the chart.
func (c *CLI) runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	p, err := pipeline.Load(input)
	if err != nil {
		return err
	}
	ch, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer ch.Close()
	runner, err := c.newRunner(opts.engine, ch)
	if err != nil {
		return err
	}

	po := c.pipelineOptions(opts)
	if po.Title == "" {
		po.Title = chartTitle(p, input)
	}

	spinner := newSpinnerWithContext(ctx, "Laying out "+filepath.Base(input)+"...")
	spinner.Start()
	res, err := runner.Execute(ctx, p, po)
	spinner.Stop()
	if err != nil {
		return err
	}

	out := outputPath(input, opts.output, ".svg")
	if err := os.WriteFile(out, res.SVG, 0o644); err != nil {
		return err
	}
	prog.done("Rendered chart")

	printSuccess("Rendered %s", filepath.Base(input))
	printStats(res.Stats)
	printFile(out)
	if partial := res.Index.Partial(); len(partial) > 0 {
		printDetail("%d families can be expanded further", len(partial))
		printNextStep("Expand one", "famtree expand "+input+" --family "+partial[0].Family+" --kind parents")
	}
	return nil
}

// chartTitle names a chart after its root person, falling back to the file
// name.
func chartTitle(p payload.Payload, input string) string {
	if root, ok := p.Meta["root"].(string); ok {
		for _, n := range p.Nodes {
			if n.ID == root {
				return n.Name()
			}
		}
	}
	for _, n := range p.Nodes {
		if n.IsPerson() && n.Distance != nil && *n.Distance == 0 {
			return n.Name()
		}
	}
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}
