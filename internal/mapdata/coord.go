// Package mapdata provides the map model: coordinates, axis conventions,
// extents, map records, the map file parser and the map store.
package mapdata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coord3 is a game-space position. X is north, Y is up and Z is west in the
// game's native orientation.
type Coord3 struct {
	X float64
	Y float64
	Z float64
}

// String renders the coordinate as "x, y, z", the same form map files use.
func (c Coord3) String() string {
	return fmt.Sprintf("%s, %s, %s", formatFloat(c.X), formatFloat(c.Y), formatFloat(c.Z))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Axis selects one component of a Coord3.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Of returns the component of c selected by a.
func (a Axis) Of(c Coord3) float64 {
	switch a {
	case AxisX:
		return c.X
	case AxisY:
		return c.Y
	default:
		return c.Z
	}
}

// String returns the axis letter.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	default:
		return "Z"
	}
}

// CoordSystem is the axis convention a map declares. The zero value is the
// default convention.
type CoordSystem int

// The four supported conventions. The name lists the axis pointing up the
// surface first, then the axis pointing across it, then the quadrant the
// positive directions face.
const (
	// XZNorthWest: X+ points up (north), Z+ points left (west).
	XZNorthWest CoordSystem = iota
	// ZXNorthEast: Z+ points up (north), X+ points right (east).
	ZXNorthEast
	// XZSouthEast: X+ points down (south), Z+ points right (east).
	XZSouthEast
	// ZXSouthWest: Z+ points down (south), X+ points left (west).
	ZXSouthWest
)

// Orientation describes how a CoordSystem lays the horizontal plane onto a
// surface whose X grows rightward and whose Y grows downward.
type Orientation struct {
	// Across is the game axis feeding surface X.
	Across Axis
	// Down is the game axis feeding surface Y.
	Down Axis
	// AcrossSign is +1 when the Across axis grows rightward, -1 otherwise.
	AcrossSign float64
	// DownSign is +1 when the Down axis grows downward, -1 otherwise.
	DownSign float64
}

type coordSystemDef struct {
	name   string
	orient Orientation
}

var coordSystems = [...]coordSystemDef{
	XZNorthWest: {name: "XZ_NorthWest", orient: Orientation{Across: AxisZ, Down: AxisX, AcrossSign: -1, DownSign: -1}},
	ZXNorthEast: {name: "ZX_NorthEast", orient: Orientation{Across: AxisX, Down: AxisZ, AcrossSign: 1, DownSign: -1}},
	XZSouthEast: {name: "XZ_SouthEast", orient: Orientation{Across: AxisZ, Down: AxisX, AcrossSign: 1, DownSign: 1}},
	ZXSouthWest: {name: "ZX_SouthWest", orient: Orientation{Across: AxisX, Down: AxisZ, AcrossSign: -1, DownSign: 1}},
}

// CoordSystems lists every supported convention in declaration order.
var CoordSystems = []CoordSystem{XZNorthWest, ZXNorthEast, XZSouthEast, ZXSouthWest}

// Valid reports whether cs is one of the four supported conventions.
func (cs CoordSystem) Valid() bool {
	return cs >= XZNorthWest && int(cs) < len(coordSystems)
}

// String returns the name used for cs in map files.
func (cs CoordSystem) String() string {
	if !cs.Valid() {
		return fmt.Sprintf("CoordSystem(%d)", int(cs))
	}
	return coordSystems[cs].name
}

// Orientation returns the surface layout for cs. Invalid values fall back to
// the default convention.
func (cs CoordSystem) Orientation() Orientation {
	if !cs.Valid() {
		return coordSystems[XZNorthWest].orient
	}
	return coordSystems[cs].orient
}

// ParseCoordSystem matches name against the convention names, ignoring case,
// surrounding whitespace and surrounding double quotes.
//
// Postcondition: Returns (cs, true) on a match, or (XZNorthWest, false).
func ParseCoordSystem(name string) (CoordSystem, bool) {
	name = unquote(name)
	for i, def := range coordSystems {
		if strings.EqualFold(def.name, name) {
			return CoordSystem(i), true
		}
	}
	return XZNorthWest, false
}

// MarshalText implements encoding.TextMarshaler.
func (cs CoordSystem) MarshalText() ([]byte, error) {
	return []byte(cs.String()), nil
}

// unquote trims whitespace and surrounding double quotes from a map file field.
func unquote(field string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(field), `"`))
}

// ParseCoordinate parses one coordinate component. NaN and infinities are
// rejected: they never compare equal and would poison extents.
func ParseCoordinate(field string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
