// Package player reconciles the player's area, map and location from the
// game's rotating chat logs and its snapshot file.
package player

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

// State is the best current knowledge of where the player is. Every field
// may be absent.
type State struct {
	AreaName Opt[string]
	MapName  Opt[string]
	Loc      Opt[mapdata.Coord3]
}

// Equal reports structural equality, treating two absent fields as equal.
func (s State) Equal(o State) bool {
	return s == o
}

// Empty reports whether no field is known.
func (s State) Empty() bool {
	return s == State{}
}

// String renders the state with "null" for absent fields.
func (s State) String() string {
	var b strings.Builder
	b.WriteString("Area=")
	writeOpt(&b, s.AreaName)
	b.WriteString(", Map=")
	writeOpt(&b, s.MapName)
	b.WriteString(", Loc=")
	if loc, ok := s.Loc.Get(); ok {
		b.WriteString(loc.String())
	} else {
		b.WriteString("null")
	}
	return b.String()
}

func writeOpt(b *strings.Builder, o Opt[string]) {
	if v, ok := o.Get(); ok {
		b.WriteString(v)
		return
	}
	b.WriteString("null")
}

// Field identifies one State field. Fields combine as a bit set.
type Field uint8

const (
	FieldArea Field = 1 << iota
	FieldMap
	FieldLoc

	FieldNone Field = 0
	FieldAll        = FieldArea | FieldMap | FieldLoc
)

// Has reports whether f includes every field in g.
func (f Field) Has(g Field) bool {
	return f&g == g && g != 0
}

// String lists the fields in f, for logs.
func (f Field) String() string {
	var parts []string
	if f.Has(FieldArea) {
		parts = append(parts, "area")
	}
	if f.Has(FieldMap) {
		parts = append(parts, "map")
	}
	if f.Has(FieldLoc) {
		parts = append(parts, "loc")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Fields lists the individual fields in merge order.
var Fields = []Field{FieldArea, FieldMap, FieldLoc}

// fieldName returns the metric label for a single field.
func fieldName(f Field) string {
	switch f {
	case FieldArea:
		return "area"
	case FieldMap:
		return "map"
	case FieldLoc:
		return "loc"
	default:
		panic(fmt.Sprintf("player: not a single field: %d", f))
	}
}
