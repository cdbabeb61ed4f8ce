package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/source"
)

type expandOpts struct {
	family  string
	kind    string
	child   string
	archive string
	output  string
	noCache bool
}

// expandCommand creates the expand command, which merges one family's
// parents or children into a payload file.
func (c *CLI) expandCommand() *cobra.Command {
	var opts expandOpts

	cmd := &cobra.Command{
		Use:   "expand [payload.json]",
		Short: "Merge a family's parents or children into a payload file",
		Example: `  famtree expand chart.json --family F0003 --kind parents --child I0001
  famtree expand chart.json --family F0007 --kind children`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExpand(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.family, "family", "f", "", "family id to expand")
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", string(source.Parents), "expansion kind: parents, children")
	cmd.Flags().StringVar(&opts.child, "child", "", "child the parents expansion was requested from")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "answer from an exported tree file instead of the service")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: overwrite the input)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the payload cache")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

func (c *CLI) runExpand(ctx context.Context, input string, opts *expandOpts) error {
	dir, err := source.ParseDirection(opts.kind)
	if err != nil {
		return err
	}
	if opts.child != "" {
		if err := errors.ValidateID("person", opts.child); err != nil {
			return err
		}
	}
	existing, err := payload.ReadFile(input)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPayload, err, "read %s", input)
	}
	if n, ok := payload.NewIndex(existing).Node(opts.family); !ok || !n.IsFamily() {
		return errors.New(errors.ErrCodeNotFound, "family %s is not in %s", opts.family, input)
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

	spinner := newSpinnerWithContext(ctx, "Expanding "+opts.family+"...")
	spinner.Start()
	delta, err := source.Expand(ctx, src, opts.family, dir, opts.child)
	spinner.Stop()
	if err != nil {
		return err
	}

	merged := payload.Merge(existing, delta)
	stats := payload.Diff(existing, merged)
	if stats.NodesAdded == 0 && stats.EdgesAdded == 0 {
		printInfo("Nothing new to show for %s %s", opts.family, dir)
		return nil
	}

	out := outputPath(input, opts.output, ".json")
	if err := payload.WriteFile(merged, out); err != nil {
		return err
	}
	printSuccess("Expanded %s %s: %d nodes, %d links added", opts.family, dir, stats.NodesAdded, stats.EdgesAdded)
	printPayload(merged)
	printFile(out)
	return nil
}
