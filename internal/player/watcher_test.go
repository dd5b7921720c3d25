package player

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/observability"
)

// scriptedSource returns one batch of updates per Poll.
type scriptedSource struct {
	batches [][]Update
	err     error
	panics  bool
	polls   int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Poll(context.Context) ([]Update, error) {
	s.polls++
	if s.panics {
		panic("source exploded")
	}
	if len(s.batches) == 0 {
		return nil, s.err
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, s.err
}

type recordingNotifier struct {
	states []State
}

func (r *recordingNotifier) OnPlayerStateChanged(s State) {
	r.states = append(r.states, s)
}

func TestWatcher_IdenticalTicksNotifyOnce(t *testing.T) {
	u := locationUpdate(t0, "Novia", "A", mapdata.Coord3{X: 1})
	later := u
	later.At = t0.Add(time.Second)
	src := &scriptedSource{batches: [][]Update{{u}, {later}}}
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zaptest.NewLogger(t), nil, src)

	assert.True(t, w.Tick(context.Background()))
	assert.False(t, w.Tick(context.Background()), "structurally identical state must not notify")
	require.Len(t, rec.states, 1)
	assert.Equal(t, Some("A"), rec.states[0].MapName)
}

func TestWatcher_FirstTickReportsEmptyState(t *testing.T) {
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zaptest.NewLogger(t), nil)

	assert.True(t, w.Tick(context.Background()))
	assert.False(t, w.Tick(context.Background()))
	require.Len(t, rec.states, 1)
	assert.True(t, rec.states[0].Empty())
}

func TestWatcher_MissingLogDirLeavesStateUnchanged(t *testing.T) {
	logs := NewLogSource(LogSourceConfig{
		Dir:     filepath.Join(t.TempDir(), "missing"),
		Pattern: logPattern,
		TempDir: t.TempDir(),
	}, newTestParser(), zaptest.NewLogger(t))
	seed := &scriptedSource{batches: [][]Update{{locationUpdate(t0, "Novia", "A", mapdata.Coord3{})}}}
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zaptest.NewLogger(t), nil, seed, logs)

	require.NotPanics(t, func() { w.Tick(context.Background()) })
	before := w.State()
	require.NotPanics(t, func() { w.Tick(context.Background()) })
	assert.Equal(t, before, w.State())
	assert.Len(t, rec.states, 1)
}

func TestWatcher_SourceErrorIsLoggedNotPropagated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := &scriptedSource{err: errors.New("disk on fire")}
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zap.New(core), nil, src)

	w.Tick(context.Background())
	entries := logs.FilterMessage("polling source").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "scripted", entries[0].ContextMap()["source"])
}

func TestWatcher_RecoversFromPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	src := &scriptedSource{panics: true}
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zaptest.NewLogger(t), metrics, src)

	var notified bool
	require.NotPanics(t, func() { notified = w.Tick(context.Background()) })
	assert.False(t, notified)

	src.panics = false
	assert.True(t, w.Tick(context.Background()), "the loop keeps working after a failed tick")
}

func TestWatcher_AppliesInOrderAcrossSources(t *testing.T) {
	loc := locationUpdate(t0.Add(time.Minute), "Novia", "A", mapdata.Coord3{X: 1})
	snap := Update{At: t0.Add(2 * time.Minute), Source: "snapshot", Fields: FieldLoc, Loc: Some(mapdata.Coord3{X: 5})}
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zaptest.NewLogger(t), nil,
		&scriptedSource{batches: [][]Update{{loc}}},
		&scriptedSource{batches: [][]Update{{snap}}},
	)

	w.Tick(context.Background())
	st := w.State()
	assert.Equal(t, Some("A"), st.MapName)
	assert.Equal(t, Some(mapdata.Coord3{X: 5}), st.Loc)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	notified := make(chan State, 4)
	src := &scriptedSource{batches: [][]Update{{locationUpdate(t0, "Novia", "A", mapdata.Coord3{})}}}
	w := NewWatcher(10*time.Millisecond, NotifierFunc(func(s State) { notified <- s }), zaptest.NewLogger(t), nil, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case s := <-notified:
		assert.Equal(t, Some("A"), s.MapName)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification from the first tick")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNotifiers_FanOutInOrder(t *testing.T) {
	var order []string
	ns := Notifiers{
		NotifierFunc(func(State) { order = append(order, "first") }),
		NotifierFunc(func(State) { order = append(order, "second") }),
	}
	ns.OnPlayerStateChanged(State{})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestWatcher_NonFiniteLocationDoesNotRenotify(t *testing.T) {
	dir := t.TempDir()
	writeFileAt(t, filepath.Join(dir, "SotAChatLog_2026-03-01.txt"),
		"[2026-03-01 20:15:00] Area: Novia (A) Loc: (1, 2, 3)\n"+
			"[2026-03-01 20:16:00] Area: Novia (A) Loc: (NaN, 0, 0)\n",
		t0)
	logs, _ := newTestLogSource(t, dir)
	rec := &recordingNotifier{}
	w := NewWatcher(time.Second, rec, zaptest.NewLogger(t), nil, logs)

	for i := 0; i < 4; i++ {
		w.Tick(context.Background())
	}
	require.Len(t, rec.states, 1)
	assert.Equal(t, Some(mapdata.Coord3{X: 1, Y: 2, Z: 3}), rec.states[0].Loc)
}
