package mapdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeMap(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestStore_LoadAndGetMapIgnoresCase(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "Novia_R1_City_Soltown.csv", "Bank,1,2,3\nInn,4,5,6\n")
	writeMap(t, dir, "Empty.csv", "MapCoordSys,ZX_NorthEast\n")
	writeMap(t, dir, "notes.txt", "Ignored,1,2,3\n")

	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	assert.Equal(t, 2, s.Count())

	rec, ok := s.GetMap("novia_r1_city_soltown")
	require.True(t, ok)
	assert.Equal(t, "Novia_R1_City_Soltown", rec.Name)
	assert.Equal(t, 2, rec.Len())

	empty, ok := s.GetMap("EMPTY")
	require.True(t, ok)
	assert.Equal(t, ZXNorthEast, empty.CoordSystem)
	_, _, hasBounds := empty.Bounds()
	assert.False(t, hasBounds)
}

func TestStore_GetMapAbsent(t *testing.T) {
	s := NewStore(StoreConfig{Dir: t.TempDir()}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	for _, name := range []string{"", "   ", "Unknown"} {
		_, ok := s.GetMap(name)
		assert.False(t, ok, "name %q", name)
	}
}

func TestStore_BadFileDoesNotAbortLoad(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "Good.csv", "A,1,2,3\n")
	// A directory matching the pattern cannot be opened as a map file.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Broken.csv"), 0o755))

	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	_, ok := s.GetMap("Good")
	assert.True(t, ok)
	_, ok = s.GetMap("Broken")
	assert.False(t, ok)
}

func TestStore_ReloadReplacesCollection(t *testing.T) {
	dir := t.TempDir()
	old := writeMap(t, dir, "Old.csv", "A,1,2,3\n")
	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())

	held, ok := s.GetMap("Old")
	require.True(t, ok)

	require.NoError(t, os.Remove(old))
	writeMap(t, dir, "New.csv", "B,1,2,3\n")
	require.NoError(t, s.Load())

	_, ok = s.GetMap("Old")
	assert.False(t, ok)
	_, ok = s.GetMap("New")
	assert.True(t, ok)
	// Records handed out earlier stay intact.
	assert.Equal(t, 1, held.Len())
}

func TestStore_LoadMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "A.csv", "A,1,2,3\n")
	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	require.Equal(t, 1, s.Count())

	s.cfg.Dir = filepath.Join(dir, "missing")
	assert.Error(t, s.Load())
	assert.Equal(t, 0, s.Count())
	assert.NotNil(t, s.Maps())
}

func TestStore_AppendItemPersistsAndUpdates(t *testing.T) {
	dir := t.TempDir()
	path := writeMap(t, dir, "Town.csv", "Gate,10,0,-5")
	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	before, _ := s.GetMap("town")

	rec, err := s.AppendItem("TOWN", Item{Name: " Shrine ", Coord: Coord3{X: -10, Y: 0, Z: 5}})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Len())
	lo, hi, _ := rec.Bounds()
	assert.Equal(t, Coord3{X: -10, Y: 0, Z: -5}, lo)
	assert.Equal(t, Coord3{X: 10, Y: 0, Z: 5}, hi)

	got, _ := s.GetMap("Town")
	assert.Same(t, rec, got)
	assert.Equal(t, 1, before.Len())

	// The file round-trips through a fresh load.
	require.NoError(t, s.Load())
	reloaded, _ := s.GetMap("Town")
	assert.Equal(t, rec.Items(), reloaded.Items())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Gate,10,0,-5\nShrine, -10, 0, 5\n", string(data))
}

func TestStore_AppendItemFailureLeavesRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeMap(t, dir, "Town.csv", "Gate,10,0,-5\n")
	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	before, _ := s.GetMap("Town")

	require.NoError(t, os.Remove(path))
	_, err := s.AppendItem("Town", Item{Name: "Shrine", Coord: Coord3{X: 1}})
	require.Error(t, err)

	after, _ := s.GetMap("Town")
	assert.Same(t, before, after)
	assert.Equal(t, 1, after.Len())
}

func TestStore_AppendItemValidation(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "Town.csv", "Gate,10,0,-5\n")
	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())

	_, err := s.AppendItem("Town", Item{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = s.AppendItem("Town", Item{Name: "a,b"})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = s.AppendItem("Elsewhere", Item{Name: "ok"})
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestStore_MapsSorted(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, "b.csv", "")
	writeMap(t, dir, "a.csv", "")
	s := NewStore(StoreConfig{Dir: dir}, zaptest.NewLogger(t))
	require.NoError(t, s.Load())
	maps := s.Maps()
	require.Len(t, maps, 2)
	assert.Equal(t, "a", maps[0].Name)
	assert.Equal(t, "b", maps[1].Name)
}
