package mapdata

import (
	"fmt"
	"strings"
)

// Item is a named point on a map. Names are free text and need not be unique.
type Item struct {
	Name  string
	Coord Coord3
}

// String returns "Name=<name>, Coord=<x, y, z>".
func (i Item) String() string {
	return fmt.Sprintf("Name=%s, Coord=%s", i.Name, i.Coord)
}

// Record is a single map loaded from a map file. A Record is never mutated
// once it has been handed out; appending produces a new Record.
type Record struct {
	// Name is the map name reported by the game, taken from the file name.
	Name string
	// Path is the backing map file.
	Path string
	// CoordSystem is the axis convention declared by the file.
	CoordSystem CoordSystem

	items  []Item
	extent Extent3
}

// NewRecord builds a Record and computes its extents.
//
// Postcondition: Bounds reports ok iff items is non-empty.
func NewRecord(name, path string, cs CoordSystem, items []Item) *Record {
	r := &Record{
		Name:        name,
		Path:        path,
		CoordSystem: cs,
		items:       append([]Item(nil), items...),
	}
	for _, it := range r.items {
		r.extent.Add(it.Coord)
	}
	return r
}

// Items returns a copy of the map items in file order.
func (r *Record) Items() []Item {
	return append([]Item(nil), r.items...)
}

// Len returns the number of items.
func (r *Record) Len() int {
	return len(r.items)
}

// Bounds returns the componentwise extents of all items.
//
// Postcondition: ok is false for an empty map; min and max are then zero.
func (r *Record) Bounds() (lo, hi Coord3, ok bool) {
	return r.extent.Bounds()
}

// Extent returns the running extent of all items.
func (r *Record) Extent() Extent3 {
	return r.extent
}

// WithItem returns a copy of r with it appended. Extents are folded
// incrementally rather than recomputed from scratch.
func (r *Record) WithItem(it Item) *Record {
	items := make([]Item, len(r.items), len(r.items)+1)
	copy(items, r.items)
	next := &Record{
		Name:        r.Name,
		Path:        r.Path,
		CoordSystem: r.CoordSystem,
		items:       append(items, it),
		extent:      r.extent,
	}
	next.extent.Add(it.Coord)
	return next
}

// key returns the collection key for a map name.
func key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
