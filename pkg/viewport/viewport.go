// Package viewport implements the chart's view controllers: viewBox based
// pan and zoom, and anchor capture and restore across re-layouts.
//
// A [View] pairs the SVG viewBox with the client viewport it is drawn into.
// The root element preserves aspect ratio (xMidYMid meet), so the screen
// transform includes a letterbox offset; every screen-to-viewBox conversion
// goes through the inverse of [View.ScreenCTM] so pan and zoom stay exact
// regardless of letterboxing.
package viewport

import (
	"math"

	"github.com/matzehuels/famtree/pkg/geom"
)

// Zoom bounds relative to the home box.
const (
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 8.0
)

// View is the current viewBox drawn into a Width x Height client viewport.
type View struct {
	Box    geom.Rect `json:"box"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`

	// Home is the box that shows the whole chart; zoom levels are relative
	// to it.
	Home geom.Rect `json:"home"`

	MinZoom float64 `json:"min_zoom,omitempty"`
	MaxZoom float64 `json:"max_zoom,omitempty"`
}

// Fit returns a view of content padded by pad on every side.
func Fit(content geom.Rect, width, height, pad float64) View {
	box := geom.Rect{X: content.X - pad, Y: content.Y - pad, W: content.W + 2*pad, H: content.H + 2*pad}
	return View{Box: box, Width: width, Height: height, Home: box}
}

// scale is the user-to-screen scale factor.
func (v View) scale() float64 {
	if v.Box.W <= 0 || v.Box.H <= 0 || v.Width <= 0 || v.Height <= 0 {
		return 1
	}
	return math.Min(v.Width/v.Box.W, v.Height/v.Box.H)
}

// ScreenCTM maps viewBox coordinates to client pixels.
func (v View) ScreenCTM() geom.Matrix {
	s := v.scale()
	ox := (v.Width - v.Box.W*s) / 2
	oy := (v.Height - v.Box.H*s) / 2
	if v.Width <= 0 || v.Height <= 0 {
		ox, oy = 0, 0
	}
	return geom.Matrix{A: s, D: s, E: ox - v.Box.X*s, F: oy - v.Box.Y*s}
}

// ToScreen maps a viewBox point to client pixels.
func (v View) ToScreen(p geom.Point) geom.Point { return v.ScreenCTM().Apply(p) }

// ToUser maps a client pixel to the viewBox.
func (v View) ToUser(p geom.Point) geom.Point {
	inv, _ := v.ScreenCTM().Inverse()
	return inv.Apply(p)
}

// Zoom returns the zoom level relative to the home box.
func (v View) Zoom() float64 {
	if v.Home.W <= 0 || v.Box.W <= 0 {
		return 1
	}
	return v.Home.W / v.Box.W
}

// Pan moves the content by d client pixels. A drag of n pixels moves the
// content exactly n pixels at any zoom level.
func (v View) Pan(d geom.Point) View {
	inv, ok := v.ScreenCTM().Inverse()
	if !ok {
		return v
	}
	u := inv.ApplyVector(d)
	v.Box.X -= u.X
	v.Box.Y -= u.Y
	return v
}

// ZoomAt scales the view by factor (>1 zooms in) keeping the viewBox point
// under the screen point focal fixed. The resulting zoom is clamped to the
// view's bounds.
func (v View) ZoomAt(focal geom.Point, factor float64) View {
	if factor <= 0 || v.Box.W <= 0 || v.Box.H <= 0 {
		return v
	}
	minZ, maxZ := v.MinZoom, v.MaxZoom
	if minZ <= 0 {
		minZ = DefaultMinZoom
	}
	if maxZ <= 0 {
		maxZ = DefaultMaxZoom
	}
	if v.Home.W > 0 {
		z := v.Zoom() * factor
		z = math.Max(minZ, math.Min(maxZ, z))
		factor = z / v.Zoom()
	}
	u := v.ToUser(focal)
	v.Box = geom.Rect{
		X: u.X - (u.X-v.Box.X)/factor,
		Y: u.Y - (u.Y-v.Box.Y)/factor,
		W: v.Box.W / factor,
		H: v.Box.H / factor,
	}
	return v
}

// Reset returns to the home box.
func (v View) Reset() View {
	if !v.Home.Empty() {
		v.Box = v.Home
	}
	return v
}
