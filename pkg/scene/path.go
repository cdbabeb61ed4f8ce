package scene

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/famtree/pkg/geom"
)

// Segment is one absolute path command and its points.
type Segment struct {
	Op  byte // 'M', 'L', 'C' or 'Z'
	Pts []geom.Point
}

// Path is parsed SVG path data restricted to absolute move, line, cubic and
// close commands, which is everything the layout engine emits.
type Path struct {
	Segments []Segment
}

// ParsePath parses SVG path data. Relative commands and arcs are rejected.
func ParsePath(d string) (*Path, error) {
	p := &Path{}
	var op byte
	var nums []float64
	flush := func() error {
		if op == 0 {
			if len(nums) > 0 {
				return fmt.Errorf("path %q: coordinates before first command", d)
			}
			return nil
		}
		per := map[byte]int{'M': 1, 'L': 1, 'C': 3, 'Z': 0}[op]
		if per == 0 {
			if len(nums) > 0 {
				return fmt.Errorf("path %q: Z takes no coordinates", d)
			}
			p.Segments = append(p.Segments, Segment{Op: 'Z'})
			return nil
		}
		if len(nums) == 0 || len(nums)%(2*per) != 0 {
			return fmt.Errorf("path %q: %c needs coordinates in groups of %d", d, op, 2*per)
		}
		for i := 0; i < len(nums); i += 2 * per {
			seg := Segment{Op: op}
			for j := 0; j < per; j++ {
				seg.Pts = append(seg.Pts, geom.Pt(nums[i+2*j], nums[i+2*j+1]))
			}
			p.Segments = append(p.Segments, seg)
			// Implicit repeats after M are line-tos.
			if op == 'M' {
				op = 'L'
			}
		}
		nums = nums[:0]
		return nil
	}

	i := 0
	for i < len(d) {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.IndexByte("MLCZ", c) >= 0:
			if err := flush(); err != nil {
				return nil, err
			}
			op = c
			i++
		case c == 'z':
			if err := flush(); err != nil {
				return nil, err
			}
			op = 'Z'
			i++
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			j := scanNumber(d, i)
			v, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("path %q: invalid number %q", d, d[i:j])
			}
			nums = append(nums, v)
			i = j
		default:
			return nil, fmt.Errorf("path %q: unsupported command %q", d, c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(p.Segments) == 0 || p.Segments[0].Op != 'M' {
		return nil, fmt.Errorf("path %q: must start with M", d)
	}
	return p, nil
}

// scanNumber returns the end of the number starting at i.
func scanNumber(s string, i int) int {
	j := i
	if j < len(s) && (s[j] == '-' || s[j] == '+') {
		j++
	}
	dot := false
	for j < len(s) {
		c := s[j]
		switch {
		case c >= '0' && c <= '9':
			j++
		case c == '.' && !dot:
			dot = true
			j++
		case (c == 'e' || c == 'E') && j > i:
			j++
			if j < len(s) && (s[j] == '-' || s[j] == '+') {
				j++
			}
		default:
			return j
		}
	}
	return j
}

// Points returns every point of the path in order, control points included.
func (p *Path) Points() []geom.Point {
	var out []geom.Point
	for _, s := range p.Segments {
		out = append(out, s.Pts...)
	}
	return out
}

// Bounds returns the bounding box of the path's points. Cubic curves lie
// inside the hull of their control points, so this never underestimates.
func (p *Path) Bounds() geom.Rect { return geom.RectFromPoints(p.Points()...) }

// Transform maps every point through m.
func (p *Path) Transform(m geom.Matrix) {
	for _, s := range p.Segments {
		for i := range s.Pts {
			s.Pts[i] = m.Apply(s.Pts[i])
		}
	}
}

// Start returns the first point.
func (p *Path) Start() geom.Point { return p.Segments[0].Pts[0] }

// End returns the last drawn point.
func (p *Path) End() geom.Point {
	for i := len(p.Segments) - 1; i >= 0; i-- {
		if pts := p.Segments[i].Pts; len(pts) > 0 {
			return pts[len(pts)-1]
		}
	}
	return p.Start()
}

// MoveStart translates the start point and the control point leaving it, so
// the curve keeps its tangent at the moved end.
func (p *Path) MoveStart(d geom.Point) {
	p.Segments[0].Pts[0] = p.Segments[0].Pts[0].Add(d)
	if len(p.Segments) > 1 && p.Segments[1].Op == 'C' {
		p.Segments[1].Pts[0] = p.Segments[1].Pts[0].Add(d)
	}
}

// MoveEnd translates the end point and the control point entering it.
func (p *Path) MoveEnd(d geom.Point) {
	for i := len(p.Segments) - 1; i >= 0; i-- {
		s := p.Segments[i]
		if len(s.Pts) == 0 {
			continue
		}
		s.Pts[len(s.Pts)-1] = s.Pts[len(s.Pts)-1].Add(d)
		if s.Op == 'C' {
			s.Pts[1] = s.Pts[1].Add(d)
		}
		return
	}
}

// String formats the path as SVG path data.
func (p *Path) String() string {
	var b strings.Builder
	for _, s := range p.Segments {
		b.WriteByte(s.Op)
		for i, pt := range s.Pts {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s,%s", fmtNum(pt.X), fmtNum(pt.Y))
		}
	}
	return b.String()
}

func fmtNum(v float64) string { return strconv.FormatFloat(geom.Round(v, 2), 'f', -1, 64) }
