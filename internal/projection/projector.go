// Package projection converts game map coordinates into surface coordinates
// so that a map and any extra points fit a bounded drawing surface while
// keeping their aspect ratio.
package projection

import (
	"math"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

// MarginPercent is the share of each surface dimension reserved as a margin
// on both edges.
const MarginPercent = 5.0

// Surface is a drawing area whose X grows rightward and whose Y grows
// downward from the top-left origin.
type Surface struct {
	Width  float64
	Height float64
}

// Center returns the exact center of the surface.
func (s Surface) Center() (x, y float64) {
	return s.Width / 2, s.Height / 2
}

// Projector maps game coordinates of one map onto one surface.
//
// Invariant: ConvertMapToCanvas is only meaningful after Init returned true.
type Projector struct {
	rec     *mapdata.Record
	surface Surface
	extra   []mapdata.Coord3

	// MarginX and MarginY are available whether or not Init succeeds.
	MarginX float64
	MarginY float64

	orient  mapdata.Orientation
	anchorX float64
	anchorY float64
	scale   float64
}

// New creates a Projector for rec on surface. extra points (typically the
// player location) widen the projected bounds so they always fit.
//
// Postcondition: margins are computed; the projection itself is not.
func New(rec *mapdata.Record, surface Surface, extra ...mapdata.Coord3) *Projector {
	return &Projector{
		rec:     rec,
		surface: surface,
		extra:   append([]mapdata.Coord3(nil), extra...),
		MarginX: surface.Width * (MarginPercent / 100.0),
		MarginY: surface.Height * (MarginPercent / 100.0),
	}
}

// Init computes the scale and anchor corner.
//
// Postcondition: Returns false when there is no map, the map has no extents,
// or the surface has no area. A map with zero width or height is accepted and
// projects every point to the surface center.
func (p *Projector) Init() bool {
	if p.rec == nil {
		return false
	}
	if _, _, ok := p.rec.Bounds(); !ok {
		return false
	}
	if !(p.surface.Width > 0) || !(p.surface.Height > 0) {
		return false
	}

	ext := p.rec.Extent()
	for _, pt := range p.extra {
		ext.Add(pt)
	}

	p.orient = p.rec.CoordSystem.Orientation()
	across := ext.Axis(p.orient.Across)
	down := ext.Axis(p.orient.Down)

	renderWidth := p.surface.Width - 2*p.MarginX
	renderHeight := p.surface.Height - 2*p.MarginY

	p.scale = math.Min(scaleFor(renderWidth, across.Span()), scaleFor(renderHeight, down.Span()))
	p.anchorX = anchor(across, p.orient.AcrossSign)
	p.anchorY = anchor(down, p.orient.DownSign)
	return true
}

// Scale returns the surface units per game unit computed by Init.
func (p *Projector) Scale() float64 {
	return p.scale
}

// ConvertMapToCanvas projects pt onto the surface.
//
// Precondition: Init returned true.
func (p *Projector) ConvertMapToCanvas(pt mapdata.Coord3) (x, y float64) {
	if p.scale == 0 {
		return p.surface.Center()
	}
	x = p.orient.AcrossSign*(p.orient.Across.Of(pt)-p.anchorX)*p.scale + p.MarginX
	y = p.orient.DownSign*(p.orient.Down.Of(pt)-p.anchorY)*p.scale + p.MarginY
	return x, y
}

func scaleFor(render, span float64) float64 {
	if span == 0 {
		return 0
	}
	return render / span
}

// anchor picks the extreme of e that lands on the surface origin: the minimum
// for an axis growing away from the origin, the maximum otherwise.
func anchor(e mapdata.Extent, sign float64) float64 {
	lo, hi, _ := e.Bounds()
	if sign > 0 {
		return lo
	}
	return hi
}
