package player

import (
	"regexp"
	"strings"
	"time"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

// DefaultTimestampLayouts are tried in order against the bracketed chat log
// timestamp.
var DefaultTimestampLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006.01.02 15:04:05",
	time.RFC3339,
}

var (
	// [ts] Area: <area> (<map>) Loc: (<x>, <y>, <z>)
	// The area is greedy so an area name containing parentheses keeps them;
	// the map is the last parenthesised group before Loc.
	locationRE = regexp.MustCompile(`^\[([^\]]+)\]\s+Area:\s+(.+)\s+\(([^()]+)\)\s+Loc:\s+\(([^,]+),([^,]+),([^)]+)\)`)
	// [ts] Entering <new> from <old>
	areaChangeRE = regexp.MustCompile(`^\[([^\]]+)\]\s+Entering\s+(.+?)\s+from\s+(.+?)\s*$`)
	// PlayerLoc: <x>, <y>, <z>
	snapshotLocRE = regexp.MustCompile(`PlayerLoc:\s*([^,\r\n]+),([^,\r\n]+),([^,\r\n]+)`)
)

// LineKind classifies a chat log line.
type LineKind int

const (
	LineOther LineKind = iota
	LineAreaChange
	LineLocation
)

// LineParser extracts Updates from chat log lines.
type LineParser struct {
	layouts  []string
	location *time.Location
}

// NewLineParser returns a parser trying layouts in order, interpreting
// timestamps in loc. Empty layouts use DefaultTimestampLayouts; nil loc uses
// time.Local.
func NewLineParser(layouts []string, loc *time.Location) *LineParser {
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	if loc == nil {
		loc = time.Local
	}
	return &LineParser{layouts: append([]string(nil), layouts...), location: loc}
}

// ParseLine classifies line and extracts its Update.
//
// Postcondition: ok is true only for a recognised line whose timestamp and
// numbers all parse; kind is still reported for malformed matches.
func (p *LineParser) ParseLine(line, source string) (u Update, kind LineKind, ok bool) {
	if m := locationRE.FindStringSubmatch(line); m != nil {
		at, tsOK := p.parseTime(m[1])
		loc, locOK := parseCoord(m[4], m[5], m[6])
		if !tsOK || !locOK {
			return Update{}, LineLocation, false
		}
		return Update{
			At:       at,
			Source:   source,
			Fields:   FieldAll,
			AreaName: Some(strings.TrimSpace(m[2])),
			MapName:  Some(strings.TrimSpace(m[3])),
			Loc:      Some(loc),
		}, LineLocation, true
	}

	if m := areaChangeRE.FindStringSubmatch(line); m != nil {
		at, tsOK := p.parseTime(m[1])
		if !tsOK {
			return Update{}, LineAreaChange, false
		}
		return Update{
			At:       at,
			Source:   source,
			Fields:   FieldArea | FieldMap,
			AreaName: Some(strings.TrimSpace(m[2])),
			MapName:  None[string](),
		}, LineAreaChange, true
	}

	return Update{}, LineOther, false
}

func (p *LineParser) parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range p.layouts {
		if t, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSnapshot extracts the PlayerLoc coordinate from a snapshot file body.
func ParseSnapshot(body string) (mapdata.Coord3, bool) {
	m := snapshotLocRE.FindStringSubmatch(body)
	if m == nil {
		return mapdata.Coord3{}, false
	}
	return parseCoord(m[1], m[2], m[3])
}

func parseCoord(xs, ys, zs string) (mapdata.Coord3, bool) {
	var vals [3]float64
	for i, s := range []string{xs, ys, zs} {
		v, ok := mapdata.ParseCoordinate(s)
		if !ok {
			return mapdata.Coord3{}, false
		}
		vals[i] = v
	}
	return mapdata.Coord3{X: vals[0], Y: vals[1], Z: vals[2]}, true
}
