package dot

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/matzehuels/famtree/pkg/payload"
)

// Colors used by the generated program. The SVG sink restyles cards, so these
// only matter when the raw engine output is viewed directly.
const (
	colorMale    = "#dbe8f6"
	colorFemale  = "#f6dde6"
	colorOther   = "#ececec"
	colorPrivate = "#f4f4f4"
	colorHub     = "#5f5f5f"
	colorEdge    = "#8c8c8c"
)

type generator struct {
	x    *payload.Index
	opts Options
	prog *Program

	rows     []row
	triples  []Couple
	siblings []siblingGroup

	// position of each node inside the accepted ordering sequence that holds
	// a given family
	positions map[string]map[string]int
}

type siblingGroup struct {
	family string
	kids   []string
}

type row struct {
	person   string
	families []string
	seq      []string
}

// Generate builds the constraint program for the payload indexed by x.
// Records Sanitize dropped are reported in Diagnostics and never reach the
// program text.
func Generate(x *payload.Index, opts Options) *Program {
	opts = opts.withDefaults()
	g := &generator{
		x:    x,
		opts: opts,
		prog: &Program{
			Special: make(map[string]bool),
			Relaxed: opts.Relaxed(),
			nodes:   make(map[string]payload.Kind, x.Len()),
		},
		positions: make(map[string]map[string]int),
	}
	for _, n := range x.Nodes() {
		g.prog.nodes[n.ID] = n.Type
	}
	for _, d := range x.Dropped() {
		g.diag("dropped %s", d)
	}

	g.collectCouples()
	g.markSpecial()
	g.plan()
	g.prog.DOT = g.write()
	return g.prog
}

func (g *generator) diag(format string, args ...any) {
	g.prog.Diagnostics = append(g.prog.Diagnostics, fmt.Sprintf(format, args...))
}

func (g *generator) collectCouples() {
	for _, f := range g.x.Families() {
		parents := g.x.Parents(f.ID)
		switch len(parents) {
		case 0:
			continue
		case 1:
			g.prog.Couples = append(g.prog.Couples, Couple{Family: f.ID, Left: parents[0]})
		default:
			g.prog.Couples = append(g.prog.Couples, Couple{Family: f.ID, Left: parents[0], Right: parents[1]})
		}
	}
}

func (g *generator) markSpecial() {
	soleParent := make(map[string]bool)
	for _, c := range g.prog.Couples {
		if c.Single() {
			soleParent[c.Left] = true
		}
	}
	for _, c := range g.prog.Couples {
		if !c.Single() && (soleParent[c.Left] || soleParent[c.Right]) {
			g.prog.Special[c.Family] = true
		}
	}
}

// childCount is the sort key for multi-spouse rows: the larger of the known
// total and what is rendered.
func (g *generator) childCount(family string) int {
	n, _ := g.x.Node(family)
	return max(n.ChildrenTotal, len(g.x.Children(family)))
}

func (g *generator) coupleOf(family string) Couple {
	c, _ := g.prog.Couple(family)
	return c
}

func coupleSeq(c Couple) []string {
	if c.Single() {
		return []string{c.Left, c.Family}
	}
	return []string{c.Left, c.Family, c.Right}
}

// rowCandidates groups the families of every person who heads more than one
// family into a single row, most children nearest to the person.
func (g *generator) rowCandidates() []row {
	assigned := make(map[string]bool)
	var rows []row
	for _, p := range g.x.Persons() {
		var fams []string
		for _, f := range g.x.SpouseFamilies(p.ID) {
			if !assigned[f] {
				fams = append(fams, f)
			}
		}
		if len(fams) < 2 {
			continue
		}
		sort.SliceStable(fams, func(i, j int) bool { return g.childCount(fams[i]) > g.childCount(fams[j]) })
		for _, f := range fams {
			assigned[f] = true
		}
		rows = append(rows, row{person: p.ID, families: fams, seq: g.buildRow(p.ID, fams)})
	}
	return rows
}

func (g *generator) buildRow(person string, fams []string) []string {
	main := g.coupleOf(fams[0])
	mainSeq := coupleSeq(main)
	others := fams[1:]

	if main.Left == person {
		// Further families stack outward on the left: [S3 F3 S2 F2 P F1 S1].
		var seq []string
		for i := len(others) - 1; i >= 0; i-- {
			c := g.coupleOf(others[i])
			if sp := otherParent(c, person); sp != "" {
				seq = append(seq, sp)
			}
			seq = append(seq, others[i])
		}
		return append(seq, mainSeq...)
	}

	seq := append([]string(nil), mainSeq...)
	for _, f := range others {
		seq = append(seq, f)
		if sp := otherParent(g.coupleOf(f), person); sp != "" {
			seq = append(seq, sp)
		}
	}
	return seq
}

func otherParent(c Couple, person string) string {
	if c.Left == person {
		return c.Right
	}
	return c.Left
}

func (g *generator) place(seq []string, families ...string) {
	pos := make(map[string]int, len(seq))
	for i, id := range seq {
		pos[id] = i
	}
	for _, f := range families {
		g.positions[f] = pos
	}
}

// plan decides which grouping constraints the program carries.
func (g *generator) plan() {
	oc := newOrderChecker()

	var rows []row
	inRow := make(map[string]bool)
	if g.opts.MultiSpouseRows {
		rows = g.rowCandidates()
		for _, r := range rows {
			for _, f := range r.families {
				inRow[f] = true
			}
		}
	}

	for _, c := range g.prog.Couples {
		if inRow[c.Family] {
			continue
		}
		if err := oc.chain(coupleSeq(c)); err != nil {
			g.fallback("couple %s: %v", c.Family, err)
			return
		}
		g.triples = append(g.triples, c)
		g.place(coupleSeq(c), c.Family)
	}

	for _, r := range rows {
		err := oc.chain(r.seq)
		if err == nil {
			g.rows = append(g.rows, r)
			g.prog.Rows = append(g.prog.Rows, r.seq)
			g.place(r.seq, r.families...)
			continue
		}
		g.diag("multi-spouse row for %s dropped: %v", r.person, err)
		for _, f := range r.families {
			c := g.coupleOf(f)
			if err := oc.chain(coupleSeq(c)); err != nil {
				g.fallback("couple %s: %v", f, err)
				return
			}
			g.triples = append(g.triples, c)
			g.place(coupleSeq(c), f)
		}
	}

	if g.opts.SiblingGroups {
		for _, f := range g.x.Families() {
			kids := g.x.Children(f.ID)
			if len(kids) < 2 {
				continue
			}
			if err := oc.chain(kids); err != nil {
				g.diag("sibling group of %s dropped: %v", f.ID, err)
				continue
			}
			g.siblings = append(g.siblings, siblingGroup{family: f.ID, kids: kids})
		}
	}

	if err := g.checkRanks(true); err != nil && len(g.siblings) > 0 {
		g.diag("sibling grouping disabled: %v", err)
		g.siblings = nil
	}
	if err := g.checkRanks(false); err != nil {
		g.fallback("%v", err)
	}
}

func (g *generator) fallback(format string, args ...any) {
	g.diag("falling back to unconstrained ordering: "+format, args...)
	g.prog.Unconstrained = true
	g.prog.Rows = nil
	g.rows, g.triples, g.siblings = nil, nil, nil
	g.positions = make(map[string]map[string]int)
}

func (g *generator) sameRankGroups(withSiblings bool) [][]string {
	var groups [][]string
	for _, r := range g.rows {
		groups = append(groups, r.seq)
	}
	for _, c := range g.triples {
		groups = append(groups, coupleSeq(c))
	}
	if withSiblings {
		for _, s := range g.siblings {
			groups = append(groups, s.kids)
		}
	}
	return groups
}

func (g *generator) checkRanks(withSiblings bool) error {
	var childEdges [][2]string
	for _, e := range g.x.Edges() {
		if e.Kind == payload.EdgeChild {
			childEdges = append(childEdges, [2]string{e.From, e.To})
		}
	}
	return checkRanks(g.sameRankGroups(withSiblings), childEdges)
}

// =============================================================================
// Program Text
// =============================================================================

func (g *generator) write() string {
	var buf bytes.Buffer
	o := g.opts

	buf.WriteString("digraph pedigree {\n")
	fmt.Fprintf(&buf, "  graph [%s];\n", formatAttrs(map[string]string{
		"rankdir":     "TB",
		"newrank":     "true",
		"splines":     "true",
		"outputorder": "edgesfirst",
		"nodesep":     num(o.NodeSep),
		"ranksep":     num(o.RankSep),
		"bgcolor":     "transparent",
	}))
	fmt.Fprintf(&buf, "  node [%s];\n", formatAttrs(map[string]string{
		"fontname": o.FontName,
		"fontsize": num(o.FontSize),
	}))
	fmt.Fprintf(&buf, "  edge [%s];\n\n", formatAttrs(map[string]string{
		"arrowhead": "none",
		"color":     colorEdge,
		"penwidth":  "1.2",
	}))

	for _, n := range g.x.Nodes() {
		if n.IsPerson() {
			fmt.Fprintf(&buf, "  %s [%s];\n", quoteID(n.ID), formatAttrs(g.personAttrs(n)))
		} else {
			fmt.Fprintf(&buf, "  %s [%s];\n", quoteID(n.ID), formatAttrs(g.hubAttrs(n)))
		}
	}

	if !g.prog.Unconstrained {
		buf.WriteString("\n")
		for i, r := range g.rows {
			writeRank(&buf, fmt.Sprintf("row_%d", i), r.seq)
		}
		for _, c := range g.triples {
			writeRank(&buf, "couple_"+c.Family, coupleSeq(c))
		}
		for _, s := range g.siblings {
			writeRank(&buf, "siblings_"+s.family, s.kids)
		}

		buf.WriteString("\n")
		for _, r := range g.rows {
			writeChain(&buf, r.seq, o.CoupleWeight)
		}
		for _, c := range g.triples {
			writeChain(&buf, coupleSeq(c), o.CoupleWeight)
		}
		for _, s := range g.siblings {
			writeChain(&buf, s.kids, o.SiblingWeight)
		}
	}

	buf.WriteString("\n")
	for _, e := range g.x.Edges() {
		if e.Kind == payload.EdgeParent {
			g.writeEdge(&buf, g.parentEdge(e))
		}
	}
	for _, e := range g.x.Edges() {
		if e.Kind == payload.EdgeChild {
			g.writeEdge(&buf, edgeSpec{ref: EdgeRef{Edge: e, Tail: e.From, Head: e.To}})
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

type edgeSpec struct {
	ref   EdgeRef
	attrs map[string]string
}

// parentEdge orients a parent edge left to right inside its ordering sequence.
// Two-parent edges follow the invisible chain and stay out of ranking; the
// lone edge of a single-parent family is the hub's rank anchor and keeps
// constraint participation with a heavy weight.
func (g *generator) parentEdge(e payload.Edge) edgeSpec {
	spec := edgeSpec{ref: EdgeRef{Edge: e, Tail: e.From, Head: e.To}, attrs: map[string]string{}}
	if g.prog.Unconstrained {
		return spec
	}
	c, ok := g.prog.Couple(e.To)
	if !ok {
		return spec
	}
	if pos, ok := g.positions[e.To]; ok && pos[e.From] > pos[e.To] {
		spec.ref.Tail, spec.ref.Head = e.To, e.From
		spec.attrs["dir"] = "back"
	}
	if c.Single() {
		spec.attrs["weight"] = fmt.Sprint(g.opts.CoupleWeight)
	} else {
		spec.attrs["constraint"] = "false"
	}
	return spec
}

func (g *generator) writeEdge(buf *bytes.Buffer, s edgeSpec) {
	if s.attrs == nil {
		s.attrs = map[string]string{}
	}
	s.attrs["id"] = fmt.Sprintf("%s%d", EdgePrefix, len(g.prog.Edges))
	g.prog.Edges = append(g.prog.Edges, s.ref)
	fmt.Fprintf(buf, "  %s -> %s [%s];\n", quoteID(s.ref.Tail), quoteID(s.ref.Head), formatAttrs(s.attrs))
}

func (g *generator) personAttrs(n payload.Node) map[string]string {
	width := g.opts.PersonWidth
	if n.Portrait != "" && !n.Private {
		width = g.opts.PortraitWidth
	}
	label := n.Name()
	if span := n.Lifespan(); span != "" {
		label += "\n" + span
	}
	return map[string]string{
		"id":        NodeID(n.ID, payload.KindPerson),
		"label":     label,
		"shape":     "box",
		"style":     "rounded,filled",
		"fillcolor": personColor(n),
		"fixedsize": "true",
		"width":     num(width),
		"height":    num(g.opts.PersonHeight),
	}
}

func (g *generator) hubAttrs(n payload.Node) map[string]string {
	return map[string]string{
		"id":        NodeID(n.ID, payload.KindFamily),
		"label":     "",
		"shape":     "circle",
		"style":     "filled",
		"fillcolor": colorHub,
		"color":     colorHub,
		"fixedsize": "true",
		"width":     num(g.opts.HubSize),
		"height":    num(g.opts.HubSize),
	}
}

func personColor(n payload.Node) string {
	switch {
	case n.Private:
		return colorPrivate
	case n.Gender == "M":
		return colorMale
	case n.Gender == "F":
		return colorFemale
	}
	return colorOther
}

func writeRank(buf *bytes.Buffer, name string, members []string) {
	fmt.Fprintf(buf, "  subgraph %s { rank=same;", quoteID(name))
	for _, m := range members {
		fmt.Fprintf(buf, " %s;", quoteID(m))
	}
	buf.WriteString(" }\n")
}

func writeChain(buf *bytes.Buffer, seq []string, weight int) {
	for i := 0; i+1 < len(seq); i++ {
		fmt.Fprintf(buf, "  %s -> %s [style=invis, weight=%d];\n", quoteID(seq[i]), quoteID(seq[i+1]), weight)
	}
}
