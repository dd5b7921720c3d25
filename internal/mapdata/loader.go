package mapdata

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// CoordSysDirective is the first field of the line selecting a map's
// CoordSystem.
const CoordSysDirective = "MapCoordSys"

// maxLoggedItems caps per-file item logging during a load.
const maxLoggedItems = 3

// ParseMapFile reads and parses a single map file. The map name is the base
// file name without its extension.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a Record (possibly with no items) or a non-nil error
// when the file cannot be read.
func ParseMapFile(path string, logger *zap.Logger) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening map file %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec, err := ParseMap(name, path, f, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing map file %s: %w", path, err)
	}
	return rec, nil
}

// ParseMap parses map lines from r. Malformed lines are skipped; only a read
// failure is an error.
//
// Postcondition: Returns a Record whose extents cover every parsed item.
func ParseMap(name, path string, r io.Reader, logger *zap.Logger) (*Record, error) {
	log := logger.With(zap.String("map", name))
	cs := XZNorthWest
	var items []Item

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")

		switch len(fields) {
		case 2:
			if !strings.EqualFold(strings.TrimSpace(fields[0]), CoordSysDirective) {
				continue
			}
			if parsed, ok := ParseCoordSystem(fields[1]); ok {
				cs = parsed
				log.Debug("coord system specified", zap.Stringer("coord_system", cs))
			} else {
				log.Debug("ignoring unknown coord system",
					zap.Int("line", lineNo),
					zap.String("value", strings.TrimSpace(fields[1])),
				)
			}
		case 4:
			it, ok := parseItem(fields)
			if !ok {
				log.Debug("skipping malformed item line", zap.Int("line", lineNo))
				continue
			}
			items = append(items, it)
			switch {
			case len(items) <= maxLoggedItems:
				log.Debug("loaded map item", zap.Stringer("item", it))
			case len(items) == maxLoggedItems+1:
				log.Debug("remaining items not logged")
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading map lines: %w", err)
	}

	rec := NewRecord(name, path, cs, items)
	if lo, hi, ok := rec.Bounds(); ok {
		log.Debug("map loaded",
			zap.Int("items", rec.Len()),
			zap.Stringer("min", lo),
			zap.Stringer("max", hi),
		)
	} else {
		log.Debug("map loaded without extents", zap.Int("items", rec.Len()))
	}
	return rec, nil
}

func parseItem(fields []string) (Item, bool) {
	name := unquote(fields[0])
	if name == "" {
		return Item{}, false
	}
	var vals [3]float64
	for i := range vals {
		v, ok := ParseCoordinate(fields[i+1])
		if !ok {
			return Item{}, false
		}
		vals[i] = v
	}
	return Item{Name: name, Coord: Coord3{X: vals[0], Y: vals[1], Z: vals[2]}}, true
}

// FormatItemLine renders it as a map file item line.
func FormatItemLine(it Item) string {
	return it.Name + ", " + it.Coord.String()
}

// appendItemLine appends it to the map file at path.
func appendItemLine(path string, it Item) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", path, err)
	}
	line := FormatItemLine(it) + "\n"
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			line = "\n" + line
		}
	}
	if _, err := io.WriteString(f, line); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
