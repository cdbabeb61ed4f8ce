package viewport

import "github.com/matzehuels/famtree/pkg/geom"

// DefaultPasses is the number of correction passes Restore makes.
const DefaultPasses = 3

// Locator finds an element's center in viewBox coordinates.
type Locator interface {
	Center(id string) (geom.Point, bool)
}

// Anchor is the screen position of a point of interest captured before a
// re-layout.
type Anchor struct {
	ElementID string     `json:"element_id"`
	Box       geom.Rect  `json:"box"`
	Screen    geom.Point `json:"screen"`

	// Offset is the captured point relative to the element center, in
	// viewBox units. It is zero unless an exact click point was given.
	Offset geom.Point `json:"offset"`
}

// Capture records where element id currently appears on screen. With a
// click point the anchor tracks that exact point instead of the center.
func Capture(v View, loc Locator, id string, click *geom.Point) (Anchor, bool) {
	c, ok := loc.Center(id)
	if !ok {
		return Anchor{}, false
	}
	a := Anchor{ElementID: id, Box: v.Box, Screen: v.ToScreen(c)}
	if click != nil {
		a.Screen = *click
		a.Offset = v.ToUser(*click).Sub(c)
	}
	return a, true
}

// Restore puts the anchored element back at its captured screen position.
// It restores the captured viewBox, then pans by the remaining screen delta
// for up to passes rounds, re-locating the element each round and stopping
// once the drift is within tol pixels. When the element cannot be found the
// view is returned unchanged and ok is false.
func Restore(v View, loc Locator, a Anchor, passes int, tol float64) (View, bool) {
	if _, ok := loc.Center(a.ElementID); !ok {
		return v, false
	}
	if passes <= 0 {
		passes = DefaultPasses
	}
	if !a.Box.Empty() {
		v.Box = a.Box
	}
	for i := 0; i < passes; i++ {
		c, ok := loc.Center(a.ElementID)
		if !ok {
			break
		}
		d := a.Screen.Sub(v.ToScreen(c.Add(a.Offset)))
		if d.Dist(geom.Point{}) <= tol {
			break
		}
		v = v.Pan(d)
	}
	return v, true
}

// Drift returns how far the anchored point currently is from its captured
// screen position, in pixels.
func Drift(v View, loc Locator, a Anchor) (float64, bool) {
	c, ok := loc.Center(a.ElementID)
	if !ok {
		return 0, false
	}
	return v.ToScreen(c.Add(a.Offset)).Dist(a.Screen), true
}
