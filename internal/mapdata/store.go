package mapdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultPattern matches map files inside the map directory.
const DefaultPattern = "*.csv"

// ErrMapNotFound is returned when a map name has no loaded record.
var ErrMapNotFound = errors.New("map not found")

// ErrInvalidItem is returned when an item cannot be written as a map line.
var ErrInvalidItem = errors.New("invalid map item")

// StoreConfig locates the map files.
type StoreConfig struct {
	// Dir is the directory holding one file per map.
	Dir string
	// Pattern is the glob matched against file names in Dir.
	Pattern string
}

// Collection maps upper-cased map names to records.
type Collection map[string]*Record

// Store holds the loaded maps. Readers always observe a complete collection:
// Load and AppendItem build new collections and swap them in atomically.
type Store struct {
	cfg    StoreConfig
	logger *zap.Logger

	// writeMu serializes Load and AppendItem; readers never take it.
	writeMu sync.Mutex
	maps    atomic.Pointer[Collection]
}

// NewStore creates an empty Store.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a Store with no maps; call Load to populate it.
func NewStore(cfg StoreConfig, logger *zap.Logger) *Store {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	s := &Store{cfg: cfg, logger: logger}
	empty := Collection{}
	s.maps.Store(&empty)
	return s
}

// Load replaces the collection with every parsable map file in the configured
// directory. A file that fails to parse is logged and skipped.
//
// Postcondition: the previous collection is replaced even when an error is
// returned; an unreadable directory yields an empty collection.
func (s *Store) Load() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := Collection{}
	defer func() { s.maps.Store(&next) }()

	if _, err := os.Stat(s.cfg.Dir); err != nil {
		return fmt.Errorf("reading map directory %s: %w", s.cfg.Dir, err)
	}
	paths, err := filepath.Glob(filepath.Join(s.cfg.Dir, s.cfg.Pattern))
	if err != nil {
		return fmt.Errorf("listing map files in %s: %w", s.cfg.Dir, err)
	}

	for _, path := range paths {
		s.logger.Debug("loading map file", zap.String("path", path))
		rec, err := ParseMapFile(path, s.logger)
		if err != nil {
			s.logger.Warn("skipping map file", zap.String("path", path), zap.Error(err))
			continue
		}
		next[key(rec.Name)] = rec
	}

	s.logger.Info("maps loaded",
		zap.String("dir", s.cfg.Dir),
		zap.Int("files", len(paths)),
		zap.Int("maps", len(next)),
	)
	return nil
}

// GetMap returns the map with the given name, ignoring case.
//
// Postcondition: Returns (rec, true) if found, or (nil, false) for an empty or
// unknown name.
func (s *Store) GetMap(name string) (*Record, bool) {
	k := key(name)
	if k == "" {
		return nil, false
	}
	rec, ok := (*s.maps.Load())[k]
	return rec, ok
}

// Count returns the number of loaded maps.
func (s *Store) Count() int {
	return len(*s.maps.Load())
}

// Maps returns every loaded record sorted by name.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (s *Store) Maps() []*Record {
	c := *s.maps.Load()
	out := make([]*Record, 0, len(c))
	for _, rec := range c {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AppendItem writes it to the backing file of the named map and publishes a
// record with the item appended. The in-memory record changes only after the
// file write succeeds.
//
// Postcondition: Returns the new record, or an error with the previous record
// still published.
func (s *Store) AppendItem(mapName string, it Item) (*Record, error) {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" || strings.ContainsAny(it.Name, ",\r\n") {
		return nil, fmt.Errorf("%w: name %q", ErrInvalidItem, it.Name)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := *s.maps.Load()
	k := key(mapName)
	rec, ok := cur[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMapNotFound, mapName)
	}

	s.logger.Info("adding map item", zap.String("map", rec.Name), zap.Stringer("item", it))
	if err := appendItemLine(rec.Path, it); err != nil {
		s.logger.Error("adding map item", zap.String("map", rec.Name), zap.Error(err))
		return nil, err
	}

	next := make(Collection, len(cur))
	for name, r := range cur {
		next[name] = r
	}
	updated := rec.WithItem(it)
	next[k] = updated
	s.maps.Store(&next)
	return updated, nil
}
