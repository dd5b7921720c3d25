package player

import (
	"time"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

// Update is a candidate change to some State fields, claimed at a point in
// time by one source.
//
// A claimed field with an absent value clears that field; entering a new
// area, for instance, claims MapName as absent.
type Update struct {
	// At is the event time the claim is made for.
	At time.Time
	// Source names where the claim came from, for logs.
	Source string
	// Fields lists the fields this update claims.
	Fields Field

	AreaName Opt[string]
	MapName  Opt[string]
	Loc      Opt[mapdata.Coord3]
}

// fieldStamps records when each field was last applied.
type fieldStamps struct {
	area Opt[time.Time]
	mapN Opt[time.Time]
	loc  Opt[time.Time]
}

func (fs *fieldStamps) slot(f Field) *Opt[time.Time] {
	switch f {
	case FieldArea:
		return &fs.area
	case FieldMap:
		return &fs.mapN
	default:
		return &fs.loc
	}
}

// Merger folds Updates into a State using per-field timestamp precedence: a
// field is overwritten only by a claim strictly newer than the one that last
// set it, whatever the source or arrival order.
//
// Merger is not safe for concurrent use; the Watcher is its only writer.
type Merger struct {
	state  State
	stamps fieldStamps
}

// NewMerger returns a Merger with every field absent.
func NewMerger() *Merger {
	return &Merger{}
}

// Apply merges u and returns the fields it changed ownership of.
//
// Postcondition: for each claimed field F, F is applied iff F has never been
// applied or u.At is strictly after F's stamp.
func (m *Merger) Apply(u Update) (applied Field) {
	for _, f := range Fields {
		if !u.Fields.Has(f) {
			continue
		}
		stamp := m.stamps.slot(f)
		if prev, ok := stamp.Get(); ok && !u.At.After(prev) {
			continue
		}
		*stamp = Some(u.At)
		switch f {
		case FieldArea:
			m.state.AreaName = u.AreaName
		case FieldMap:
			m.state.MapName = u.MapName
		case FieldLoc:
			m.state.Loc = u.Loc
		}
		applied |= f
	}
	return applied
}

// State returns a copy of the merged state.
func (m *Merger) State() State {
	return m.state
}
