// Package view composes what a renderer draws for a player State: either the
// reasons nothing can be drawn, or every map item and the player projected
// onto the drawing surface.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/player"
	"github.com/cory-johannsen/sotamapper/internal/projection"
)

// PlayerMarkerName labels the player's own position.
const PlayerMarkerName = "Player Position"

// Problems reported when a frame cannot be drawn.
const (
	ProblemNoPlayerData = "no player data, try using /loc"
	ProblemNoMapName    = "unable to determine player map, try using /loc"
	ProblemNoLocation   = "unable to determine player position, try using /loc"
	ProblemNoMapFile    = "no .csv file for current map, compare /loc output to data/maps files"
	ProblemEmptyMap     = "empty map .csv file, please add some entries"
	ProblemNoSurface    = "drawing surface has no area"
)

// HelpText is shown alongside the problems of an invalid frame.
const HelpText = `* * * NO DATA * * *
Type /loc in game and verify reported map name matches a file in the maps directory

For example, if /loc outputs the below:
Area: Soltown (Novia_R1_City_Soltown) Loc: (-15.7, 28.0, 23.2)
there should be a file "Novia_R1_City_Soltown.csv" with map data

Player location on map will update automatically, however it is necessary to
manually use the /loc command once each time when entering a map to sync current map.

The /loctrack command shows location on screen and makes it easier to build map files`

// MapLookup finds a map by the name the game reports.
type MapLookup interface {
	GetMap(name string) (*mapdata.Record, bool)
}

// Marker is a named point and its surface position.
type Marker struct {
	Name  string
	Coord mapdata.Coord3
	X, Y  float64
}

// Frame is one renderable view of the player on their map.
//
// Invariant: Valid is true iff Problems is empty and projection succeeded;
// Items and Player are only meaningful when Valid.
type Frame struct {
	Surface  projection.Surface
	MapName  string
	Problems []string
	Items    []Marker
	Player   Marker
	Valid    bool
}

// Build composes the Frame for state on surface. An absent state means no
// player data has been received yet.
//
// Postcondition: Returns a Frame; never fails. Problems lists every reason
// the frame is not drawable, in a fixed order.
func Build(state player.Opt[player.State], maps MapLookup, surface projection.Surface) Frame {
	f := Frame{Surface: surface}

	st, hasState := state.Get()
	if !hasState {
		f.Problems = append(f.Problems, ProblemNoPlayerData)
	}
	mapName := st.MapName.OrElse("")
	if hasState && mapName == "" {
		f.Problems = append(f.Problems, ProblemNoMapName)
	}
	loc, hasLoc := st.Loc.Get()
	if hasState && !hasLoc {
		f.Problems = append(f.Problems, ProblemNoLocation)
	}

	var rec *mapdata.Record
	if mapName != "" {
		var ok bool
		if rec, ok = maps.GetMap(mapName); !ok {
			f.Problems = append(f.Problems, ProblemNoMapFile)
		} else if _, _, hasExtent := rec.Bounds(); !hasExtent {
			f.Problems = append(f.Problems, ProblemEmptyMap)
		}
	}
	if rec != nil {
		f.MapName = rec.Name
	}
	if len(f.Problems) > 0 {
		return f
	}

	proj := projection.New(rec, surface, loc)
	if !proj.Init() {
		f.Problems = append(f.Problems, ProblemNoSurface)
		return f
	}
	for _, it := range rec.Items() {
		x, y := proj.ConvertMapToCanvas(it.Coord)
		f.Items = append(f.Items, Marker{Name: it.Name, Coord: it.Coord, X: x, Y: y})
	}
	x, y := proj.ConvertMapToCanvas(loc)
	f.Player = Marker{Name: PlayerMarkerName, Coord: loc, X: x, Y: y}
	f.Valid = true
	return f
}

// WriteText writes a plain-text rendition of f: the help text and problems
// for an invalid frame, otherwise one line per marker.
func (f Frame) WriteText(w io.Writer) error {
	var b strings.Builder
	if !f.Valid {
		b.WriteString(HelpText)
		b.WriteString("\n\n")
		for _, p := range f.Problems {
			b.WriteString(p)
			b.WriteByte('\n')
		}
	} else {
		fmt.Fprintf(&b, "%s (%gx%g)\n", f.MapName, f.Surface.Width, f.Surface.Height)
		for _, m := range f.Items {
			writeMarker(&b, m)
		}
		writeMarker(&b, f.Player)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarker(b *strings.Builder, m Marker) {
	fmt.Fprintf(b, "  %-24s %8.1f %8.1f   (%s)\n", m.Name, m.X, m.Y, m.Coord)
}
