package geom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Matrix is an SVG affine transform [a c e; b d f; 0 0 1].
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the identity transform.
var Identity = Matrix{A: 1, D: 1}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{A: 1, D: 1, E: tx, F: ty} }

// Scale returns a scaling by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{A: sx, D: sy} }

// Rotate returns a rotation by deg degrees around the origin.
func Rotate(deg float64) Matrix {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Matrix{A: c, B: s, C: -s, D: c}
}

// Mul returns m·n: the transform that applies n first, then m. This matches
// how nested SVG groups compose, parent·child.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Apply maps p through m.
func (m Matrix) Apply(p Point) Point {
	return Point{m.A*p.X + m.C*p.Y + m.E, m.B*p.X + m.D*p.Y + m.F}
}

// ApplyVector maps a displacement through m, ignoring translation.
func (m Matrix) ApplyVector(v Point) Point {
	return Point{m.A*v.X + m.C*v.Y, m.B*v.X + m.D*v.Y}
}

// ApplyRect returns the bounding box of r's corners mapped through m.
func (m Matrix) ApplyRect(r Rect) Rect {
	c := r.Corners()
	return RectFromPoints(m.Apply(c[0]), m.Apply(c[1]), m.Apply(c[2]), m.Apply(c[3]))
}

// Inverse returns the inverse transform. ok is false for singular matrices.
func (m Matrix) Inverse() (inv Matrix, ok bool) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-12 {
		return Matrix{}, false
	}
	return Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}, true
}

// IsIdentity reports whether m is the identity within a small tolerance.
func (m Matrix) IsIdentity() bool {
	const eps = 1e-9
	return math.Abs(m.A-1) < eps && math.Abs(m.B) < eps && math.Abs(m.C) < eps &&
		math.Abs(m.D-1) < eps && math.Abs(m.E) < eps && math.Abs(m.F) < eps
}

// String formats m as an SVG transform attribute value.
func (m Matrix) String() string {
	if m.A == 1 && m.B == 0 && m.C == 0 && m.D == 1 {
		return fmt.Sprintf("translate(%s %s)", num(m.E), num(m.F))
	}
	return fmt.Sprintf("matrix(%s %s %s %s %s %s)", num(m.A), num(m.B), num(m.C), num(m.D), num(m.E), num(m.F))
}

func num(v float64) string { return strconv.FormatFloat(Round(v, 3), 'f', -1, 64) }

// ParseTransform parses an SVG transform list such as
// "scale(1 1) rotate(0) translate(4 112)". The functions compose left to
// right, each one nested inside the previous. An empty string is the identity.
func ParseTransform(s string) (Matrix, error) {
	m := Identity
	rest := strings.TrimSpace(s)
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		end := strings.IndexByte(rest, ')')
		if open < 0 || end < open {
			return Matrix{}, fmt.Errorf("transform %q: unbalanced parentheses", s)
		}
		name := strings.TrimSpace(strings.Trim(rest[:open], ", "))
		args, err := parseNumbers(rest[open+1 : end])
		if err != nil {
			return Matrix{}, fmt.Errorf("transform %q: %w", s, err)
		}
		t, err := transformFunc(name, args)
		if err != nil {
			return Matrix{}, fmt.Errorf("transform %q: %w", s, err)
		}
		m = m.Mul(t)
		rest = strings.TrimSpace(rest[end+1:])
	}
	return m, nil
}

func transformFunc(name string, a []float64) (Matrix, error) {
	switch {
	case name == "matrix" && len(a) == 6:
		return Matrix{a[0], a[1], a[2], a[3], a[4], a[5]}, nil
	case name == "translate" && len(a) == 1:
		return Translate(a[0], 0), nil
	case name == "translate" && len(a) == 2:
		return Translate(a[0], a[1]), nil
	case name == "scale" && len(a) == 1:
		return Scale(a[0], a[0]), nil
	case name == "scale" && len(a) == 2:
		return Scale(a[0], a[1]), nil
	case name == "rotate" && len(a) == 1:
		return Rotate(a[0]), nil
	case name == "rotate" && len(a) == 3:
		return Translate(a[1], a[2]).Mul(Rotate(a[0])).Mul(Translate(-a[1], -a[2])), nil
	case name == "skewX" && len(a) == 1:
		return Matrix{A: 1, C: math.Tan(a[0] * math.Pi / 180), D: 1}, nil
	case name == "skewY" && len(a) == 1:
		return Matrix{A: 1, B: math.Tan(a[0] * math.Pi / 180), D: 1}, nil
	}
	return Matrix{}, fmt.Errorf("unsupported function %s with %d arguments", name, len(a))
}

// ParsePoints parses an SVG points list ("x1,y1 x2,y2 ...").
func ParsePoints(s string) ([]Point, error) {
	nums, err := parseNumbers(s)
	if err != nil {
		return nil, err
	}
	if len(nums)%2 != 0 {
		return nil, fmt.Errorf("points %q: odd number of coordinates", s)
	}
	pts := make([]Point, 0, len(nums)/2)
	for i := 0; i < len(nums); i += 2 {
		pts = append(pts, Point{nums[i], nums[i+1]})
	}
	return pts, nil
}

// ParseFloat parses a numeric SVG attribute, treating "" as 0.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "pt")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
