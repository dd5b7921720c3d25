package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Source produces candidate Updates from one external input.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Poll returns the Updates found since the previous call, in the order
	// they must be applied. A source with nothing new returns no Updates.
	Poll(ctx context.Context) ([]Update, error)
}

// fileMark identifies the version of a file last consumed.
type fileMark struct {
	path string
	mod  time.Time
}

// newerThan reports whether m should be processed after prev.
func (m fileMark) newerThan(prev Opt[fileMark]) bool {
	p, ok := prev.Get()
	if !ok {
		return true
	}
	return m.path != p.path || m.mod.After(p.mod)
}

// newestFile returns the most recently modified regular file among paths.
// Ties keep the first path encountered. Missing paths are ignored.
func newestFile(paths []string) (fileMark, bool) {
	var best fileMark
	found := false
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !found || info.ModTime().After(best.mod) {
			best = fileMark{path: path, mod: info.ModTime()}
			found = true
		}
	}
	return best, found
}

// withTempCopy copies src into a private temporary file in tempDir, calls fn
// with the copy, and always removes the copy before returning.
func withTempCopy(src, tempDir string, fn func(path string) error) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(tempDir, "sotamapper-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp copy of %s: %w", src, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp copy of %s: %w", src, err)
	}
	return fn(tmp.Name())
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// LogSourceConfig locates the rotating chat logs.
type LogSourceConfig struct {
	Dir     string
	Pattern string
	TempDir string
}

// LogSource reads the newest chat log and scans it backward for area-change
// and location-report lines.
type LogSource struct {
	cfg    LogSourceConfig
	parser *LineParser
	logger *zap.Logger
	last   Opt[fileMark]
}

// NewLogSource creates a LogSource.
//
// Precondition: parser and logger must be non-nil.
func NewLogSource(cfg LogSourceConfig, parser *LineParser, logger *zap.Logger) *LogSource {
	return &LogSource{cfg: cfg, parser: parser, logger: logger.Named("chatlog")}
}

// Name implements Source.
func (s *LogSource) Name() string { return "chatlog" }

// Poll implements Source. Lines are visited from last to first; the scan
// stops after the first valid location report, which is the most complete
// record in the file.
func (s *LogSource) Poll(ctx context.Context) ([]Update, error) {
	paths, err := filepath.Glob(filepath.Join(s.cfg.Dir, s.cfg.Pattern))
	if err != nil {
		return nil, fmt.Errorf("listing chat logs: %w", err)
	}
	mark, ok := newestFile(paths)
	if !ok || !mark.newerThan(s.last) {
		return nil, nil
	}

	var lines []string
	err = withTempCopy(mark.path, s.cfg.TempDir, func(tmp string) error {
		var readErr error
		lines, readErr = readLines(tmp)
		return readErr
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	s.last = Some(mark)

	s.logger.Debug("scanning chat log",
		zap.String("path", mark.path),
		zap.Time("modified", mark.mod),
		zap.Int("lines", len(lines)),
	)

	var updates []Update
	for i := len(lines) - 1; i >= 0; i-- {
		if i%1024 == 0 && ctx.Err() != nil {
			return updates, ctx.Err()
		}
		u, kind, ok := s.parser.ParseLine(lines[i], s.Name())
		if kind == LineOther {
			continue
		}
		if !ok {
			s.logger.Debug("skipping malformed line", zap.Int("line", i+1))
			continue
		}
		updates = append(updates, u)
		if kind == LineLocation {
			break
		}
	}
	return updates, nil
}

// SnapshotSourceConfig locates the snapshot file in each install directory.
type SnapshotSourceConfig struct {
	InstallDirs []string
	FileName    string
	TempDir     string
}

// SnapshotSource reads the newest snapshot file across all install
// directories. The snapshot carries no timestamp of its own, so its location
// is claimed at the file's modification time.
type SnapshotSource struct {
	cfg    SnapshotSourceConfig
	logger *zap.Logger
	last   Opt[fileMark]
}

// NewSnapshotSource creates a SnapshotSource.
//
// Precondition: logger must be non-nil.
func NewSnapshotSource(cfg SnapshotSourceConfig, logger *zap.Logger) *SnapshotSource {
	return &SnapshotSource{cfg: cfg, logger: logger.Named("snapshot")}
}

// Name implements Source.
func (s *SnapshotSource) Name() string { return "snapshot" }

// Poll implements Source.
func (s *SnapshotSource) Poll(_ context.Context) ([]Update, error) {
	if s.cfg.FileName == "" {
		return nil, nil
	}
	paths := make([]string, 0, len(s.cfg.InstallDirs))
	for _, dir := range s.cfg.InstallDirs {
		paths = append(paths, filepath.Join(dir, s.cfg.FileName))
	}
	mark, ok := newestFile(paths)
	if !ok || !mark.newerThan(s.last) {
		return nil, nil
	}

	var body []byte
	err := withTempCopy(mark.path, s.cfg.TempDir, func(tmp string) error {
		var readErr error
		body, readErr = os.ReadFile(tmp)
		return readErr
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	s.last = Some(mark)

	loc, ok := ParseSnapshot(string(body))
	if !ok {
		s.logger.Debug("snapshot has no player location", zap.String("path", mark.path))
		return nil, nil
	}
	return []Update{{
		At:     mark.mod,
		Source: s.Name(),
		Fields: FieldLoc,
		Loc:    Some(loc),
	}}, nil
}
