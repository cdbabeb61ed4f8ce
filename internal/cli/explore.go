package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/famtree/pkg/chart"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/session"
	"github.com/matzehuels/famtree/pkg/source"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	statusErrorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	statusBusyStyle   = lipgloss.NewStyle().Foreground(colorYellow)
)

// resumeTTL is how long an explored chart can be resumed.
const resumeTTL = 30 * 24 * time.Hour

type exploreOpts struct {
	person   string
	depth    int
	maxNodes int
	archive  string
	output   string
	engine   string
	resume   bool
	noCache  bool
}

// exploreCommand creates the explore command, a terminal front end that grows
// a chart one family at a time and rewrites the SVG after every step.
func (c *CLI) exploreCommand() *cobra.Command {
	var opts exploreOpts

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Grow a chart interactively from the terminal",
		Long: `Open a chart around --person and list the families that can be expanded.
Press p or c to fetch a family's parents or children; the chart is laid out
again and written to the output file after every expansion. The chart is
saved on exit and can be continued with --resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.person, "person", "p", "", "seed person id")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", -1, "generations in each direction (default from config)")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", 0, "stop after this many persons (default from config)")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "answer from an exported tree file instead of the service")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "chart.svg", "chart file rewritten after every step")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "layout engine: graphviz (embedded), exec (dot binary)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "continue the last explored chart")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout and payload cache")

	return cmd
}

func (c *CLI) runExplore(ctx context.Context, opts *exploreOpts) error {
	logger := loggerFromContext(ctx)
	if !opts.resume && opts.person == "" {
		return errors.New(errors.ErrCodeInvalidInput, "pass --person to open a chart or --resume to continue one")
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
	runner, err := c.newRunner(opts.engine, ch)
	if err != nil {
		return err
	}
	store, err := session.NewCLIStore("")
	if err != nil {
		return err
	}

	// The TUI owns the terminal; only warnings reach the log.
	quiet := logger.With()
	quiet.SetLevel(LogWarn)
	d := chart.NewDispatcher(runner, src, c.cfg.PipelineOptions(), quiet)
	d.AnchorPasses = c.cfg.View.AnchorPasses
	d.AnchorTolerance = c.cfg.View.AnchorTolerance

	st, err := c.openChart(ctx, d, store, opts)
	if err != nil {
		return err
	}

	m := newExploreModel(ctx, d, st, store, opts.output)
	if err := m.save(); err != nil {
		return err
	}
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	fm := final.(exploreModel)
	printSuccess("Explored %s: %d nodes", fm.root, fm.nodes)
	printFile(opts.output)
	printNextStep("Continue later", "famtree explore --resume")
	return fm.err
}

// openChart opens a fresh chart or reloads the last one.
func (c *CLI) openChart(ctx context.Context, d *chart.Dispatcher, store *session.CLIStore, opts *exploreOpts) (*chart.State, error) {
	if opts.resume {
		sess, err := store.Current(ctx)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, errors.New(errors.ErrCodeSessionNotFound, "no chart to resume in %s", store.Path())
		}
		if _, err := d.Render(ctx, sess.Chart); err != nil {
			return nil, err
		}
		return sess.Chart, nil
	}

	depth, maxNodes := opts.depth, opts.maxNodes
	if depth < 0 {
		depth = c.cfg.Source.Depth
	}
	if maxNodes <= 0 {
		maxNodes = c.cfg.Source.MaxNodes
	}
	spinner := newSpinnerWithContext(ctx, "Opening chart for "+opts.person+"...")
	spinner.Start()
	defer spinner.Stop()
	return d.Open(ctx, opts.person, depth, maxNodes)
}

// =============================================================================
// exploreModel - bubbletea model
// =============================================================================

// expandedMsg reports the end of an expansion.
type expandedMsg struct {
	family string
	update *chart.Update
	err    error
}

// familyRow is one expandable family as listed.
type familyRow struct {
	payload.Expansion
	parents string
}

type exploreModel struct {
	ctx   context.Context
	d     *chart.Dispatcher
	st    *chart.State
	store *session.CLIStore
	out   string

	root   string
	nodes  int
	rows   []familyRow
	cursor int
	offset int
	height int

	// st is handed to the expansion command while busy and must not be
	// read until expandedMsg arrives.
	busy   bool
	status string
	failed bool
	err    error
}

func newExploreModel(ctx context.Context, d *chart.Dispatcher, st *chart.State, store *session.CLIStore, out string) exploreModel {
	m := exploreModel{ctx: ctx, d: d, st: st, store: store, out: out, height: 12}
	m.refresh()
	m.status = fmt.Sprintf("opened %s with %d nodes", m.root, m.nodes)
	return m
}

// refresh rebuilds the family list from the chart.
func (m *exploreModel) refresh() {
	x := payload.NewIndex(m.st.Payload)
	m.root, m.nodes = m.st.Root, x.Len()
	m.rows = nil
	for _, e := range x.Partial() {
		var names []string
		for _, p := range x.Parents(e.Family) {
			if n, ok := x.Node(p); ok {
				names = append(names, n.Name())
			}
		}
		m.rows = append(m.rows, familyRow{Expansion: e, parents: strings.Join(names, " & ")})
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(0, len(m.rows)-1)
	}
	m.scroll()
}

func (m *exploreModel) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

// save writes the chart document and remembers the chart for --resume.
func (m *exploreModel) save() error {
	if err := os.WriteFile(m.out, m.st.SVG(), 0o644); err != nil {
		return err
	}
	return m.store.SaveCurrent(m.ctx, session.New(m.st, resumeTTL))
}

func (m exploreModel) Init() tea.Cmd { return nil }

func (m exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg.String())
	case tea.WindowSizeMsg:
		m.height = max(5, msg.Height-8)
		m.scroll()
	case expandedMsg:
		m.busy = false
		m.failed = msg.err != nil
		if msg.err != nil {
			m.status = errors.UserMessage(msg.err)
			return m, nil
		}
		m.status = m.st.Status
		if msg.update.Relayout {
			m.refresh()
			if err := m.save(); err != nil {
				m.status, m.failed = "could not save chart: "+err.Error(), true
			}
		}
	}
	return m, nil
}

func (m exploreModel) key(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "q", "ctrl+c", "esc":
		if m.busy {
			m.status = "still updating; wait for the expansion to finish"
			return m, nil
		}
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.scroll()
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.scroll()
		}
	case "p":
		return m.expand(source.Parents)
	case "c":
		return m.expand(source.Children)
	}
	return m, nil
}

func (m exploreModel) expand(dir source.Direction) (tea.Model, tea.Cmd) {
	if m.busy {
		m.status, m.failed = errors.UserMessage(chart.ErrBusy), true
		return m, nil
	}
	if len(m.rows) == 0 {
		m.status = "every family on the chart is complete"
		return m, nil
	}
	row := m.rows[m.cursor]
	ev := chart.ExpandRequested{FamilyID: row.Family, Kind: string(dir)}
	if dir == source.Parents {
		ev.ChildID = m.childOf(row.Family)
	}

	m.busy, m.failed = true, false
	m.status = fmt.Sprintf("expanding %s of %s...", dir, row.Family)
	ctx, d, st := m.ctx, m.d, m.st
	return m, func() tea.Msg {
		up, err := d.Dispatch(ctx, st, ev)
		return expandedMsg{family: ev.FamilyID, update: up, err: err}
	}
}

// childOf returns a child of family shown on the chart.
func (m exploreModel) childOf(family string) string {
	x := payload.NewIndex(m.st.Payload)
	if kids := x.Children(family); len(kids) > 0 {
		return kids[0]
	}
	return ""
}

func (m exploreModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("famtree · " + m.root))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  p parents  c children  q quit"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(listNormalStyle.Render("  Every family on the chart is complete."))
		b.WriteString("\n")
	} else {
		end := min(m.offset+m.height, len(m.rows))
		rows := make([][]string, 0, end-m.offset)
		for i := m.offset; i < end; i++ {
			r := m.rows[i]
			cursor := "  "
			if i == m.cursor {
				cursor = "▸ "
			}
			rows = append(rows, []string{cursor, r.Family, r.parents, count(r.MissingParents()), count(r.MissingChildren())})
		}
		headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
			Headers("", "Family", "Parents", "+Parents", "+Children").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == -1 {
					return headerStyle
				}
				if m.offset+row == m.cursor {
					return listSelectedStyle
				}
				return listNormalStyle
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.rows))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString(statusBusyStyle.Render(m.status))
	case m.failed:
		b.WriteString(statusErrorStyle.Render(m.status))
	default:
		b.WriteString(listDimStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%d nodes · %s", m.nodes, m.out)))
	return b.String()
}

func count(n int) string {
	if n == 0 {
		return "—"
	}
	return fmt.Sprint(n)
}
