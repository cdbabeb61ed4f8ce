// Package charttest provides a stand-in layout engine and the sample tree for
// tests that drive the whole pipeline.
package charttest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/source"
)

var (
	nodeLine = regexp.MustCompile(`^\s*"([^"]+)" \[.*\bid="?([pf]_[^",\]\s]+)"?`)
	edgeLine = regexp.MustCompile(`^\s*"([^"]+)" -> "([^"]+)" \[.*\bid="?(e_\d+)"?`)
)

// RowEngine lays every node out in a single row in program order and writes
// the result the way Graphviz does: persons are 100x40 boxes, hubs r=5
// circles, 20 points apart. Each call increments calls when it is non-nil.
func RowEngine(calls *atomic.Int32) layout.Engine {
	return layout.EngineFunc(func(ctx context.Context, program string) ([]byte, error) {
		if calls != nil {
			calls.Add(1)
		}
		type placed struct {
			name, id string
			hub      bool
			x        float64
		}
		var nodes []placed
		var edges [][3]string
		at := make(map[string]float64)
		x := 0.0
		for _, line := range strings.Split(program, "\n") {
			if m := edgeLine.FindStringSubmatch(line); m != nil {
				edges = append(edges, [3]string{m[1], m[2], m[3]})
				continue
			}
			if m := nodeLine.FindStringSubmatch(line); m != nil {
				n := placed{name: m[1], id: m[2], hub: strings.HasPrefix(m[2], "f_"), x: x}
				if n.hub {
					at[n.name] = x + 5
					x += 10 + 20
				} else {
					at[n.name] = x + 50
					x += 100 + 20
				}
				nodes = append(nodes, n)
			}
		}

		var b strings.Builder
		fmt.Fprintf(&b, `<svg width="%gpt" height="48pt" viewBox="0.00 0.00 %g 48.00" xmlns="http://www.w3.org/2000/svg">`+"\n", x+8, x+8)
		b.WriteString(`<g id="graph0" class="graph" transform="translate(4 44)">` + "\n")
		for _, n := range nodes {
			fmt.Fprintf(&b, `<g id="%s" class="node"><title>%s</title>`, n.id, n.name)
			if n.hub {
				fmt.Fprintf(&b, `<ellipse fill="#5f5f5f" stroke="#5f5f5f" cx="%g" cy="-20" rx="5" ry="5"/>`, n.x+5)
			} else {
				fmt.Fprintf(&b, `<polygon fill="#dbe8f6" stroke="black" points="%g,-40 %g,-40 %g,0 %g,0 %g,-40"/>`, n.x, n.x+100, n.x+100, n.x, n.x)
				fmt.Fprintf(&b, `<text text-anchor="middle" x="%g" y="-16" font-size="10.00">%s</text>`, n.x+50, n.name)
			}
			b.WriteString("</g>\n")
		}
		for _, e := range edges {
			x1, x2 := at[e[0]], at[e[1]]
			fmt.Fprintf(&b, `<g id="%s" class="edge"><title>%s&#45;&gt;%s</title><path fill="none" stroke="#5f5f5f" d="M%g,-20C%g,-20 %g,-20 %g,-20"/></g>`+"\n",
				e[2], e[0], e[1], x1, x1, x2, x2)
		}
		b.WriteString("</g>\n</svg>\n")
		return []byte(b.String()), nil
	})
}

// TreePath returns the path of the sample tree export. Its persons are
// G1 G2 (parents of A and A2 in F0), A B (parents of C and D in F1), A alone
// (parent of E in F2), C S (parents of K in F3), BB1 (parent of B in FB) and
// FG, a family with D as its only child and no parents.
func TreePath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "pkg", "source", "testdata", "tree.json")
}

// Tree opens the sample tree as an archive source.
func Tree(t testing.TB) *source.Archive {
	t.Helper()
	a, err := source.OpenArchive(TreePath())
	if err != nil {
		t.Fatal(err)
	}
	return a
}
