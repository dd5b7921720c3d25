package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/player"
)

type testFeed struct {
	hub    *Hub
	store  *mapdata.Store
	mapDir string
	client *Client
	addr   string
}

func startTestFeed(t *testing.T) *testFeed {
	t.Helper()
	logger := zaptest.NewLogger(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Novia.csv"), []byte("Gate, 10, 0, -5\n"), 0644))
	store := mapdata.NewStore(mapdata.StoreConfig{Dir: dir}, logger)
	require.NoError(t, store.Load())

	hub := NewHub(logger, nil)
	srv, err := Listen("127.0.0.1:0", NewService(hub, store, logger), logger)
	require.NoError(t, err)

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()

	client, err := Dial(srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, client.Close())
		runCancel()
		select {
		case serveErr := <-serveDone:
			assert.NoError(t, serveErr)
		case <-time.After(10 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	return &testFeed{hub: hub, store: store, mapDir: dir, client: client, addr: srv.Addr()}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFeed_CurrentBeforeAnyState(t *testing.T) {
	f := startTestFeed(t)
	s, err := f.client.Current(testCtx(t))
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestFeed_CurrentReturnsLatest(t *testing.T) {
	f := startTestFeed(t)
	want := player.State{
		AreaName: player.Some("Novia"),
		MapName:  player.Some("Novia"),
		Loc:      player.Some(mapdata.Coord3{X: 1.5, Y: 2, Z: -3}),
	}
	f.hub.OnPlayerStateChanged(want)

	got, err := f.client.Current(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFeed_WatchDeliversLatestThenUpdates(t *testing.T) {
	f := startTestFeed(t)
	f.hub.OnPlayerStateChanged(stateOnMap("A"))

	ctx, cancel := context.WithCancel(testCtx(t))
	defer cancel()

	received := make(chan player.State, 4)
	done := make(chan error, 1)
	go func() {
		done <- f.client.Watch(ctx, func(s player.State) error {
			received <- s
			return nil
		})
	}()

	select {
	case s := <-received:
		assert.Equal(t, player.Some("A"), s.MapName)
	case <-time.After(5 * time.Second):
		t.Fatal("new subscriber did not receive the latest state")
	}

	f.hub.OnPlayerStateChanged(stateOnMap("B"))
	select {
	case s := <-received:
		assert.Equal(t, player.Some("B"), s.MapName)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not receive the update")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not end after cancel")
	}
}

func TestFeed_AddItemAtPlayerLocation(t *testing.T) {
	f := startTestFeed(t)
	f.hub.OnPlayerStateChanged(player.State{
		AreaName: player.Some("Novia"),
		MapName:  player.Some("novia"),
		Loc:      player.Some(mapdata.Coord3{X: -10, Y: 0, Z: 5}),
	})

	added, err := f.client.AddItem(testCtx(t), "Shrine")
	require.NoError(t, err)
	assert.Equal(t, "Novia", added.Map)
	assert.Equal(t, mapdata.Item{Name: "Shrine", Coord: mapdata.Coord3{X: -10, Y: 0, Z: 5}}, added.Item)
	assert.Equal(t, 2, added.Items)

	rec, ok := f.store.GetMap("Novia")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Len())

	data, err := os.ReadFile(filepath.Join(f.mapDir, "Novia.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Gate, 10, 0, -5\nShrine, -10, 0, 5\n", string(data))
}

func TestFeed_AddItemErrors(t *testing.T) {
	cases := []struct {
		name  string
		state *player.State
		item  string
		code  codes.Code
	}{
		{name: "empty name", state: nil, item: "  ", code: codes.InvalidArgument},
		{name: "no state", state: nil, item: "Shrine", code: codes.FailedPrecondition},
		{name: "no location", state: &player.State{MapName: player.Some("Novia")}, item: "Shrine", code: codes.FailedPrecondition},
		{name: "unknown map", state: &player.State{MapName: player.Some("Elsewhere"), Loc: player.Some(mapdata.Coord3{})}, item: "Shrine", code: codes.NotFound},
		{name: "comma in name", state: &player.State{MapName: player.Some("Novia"), Loc: player.Some(mapdata.Coord3{})}, item: "a,b", code: codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := startTestFeed(t)
			if tc.state != nil {
				f.hub.OnPlayerStateChanged(*tc.state)
			}
			_, err := f.client.AddItem(testCtx(t), tc.item)
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
}

func TestFeed_HealthServing(t *testing.T) {
	f := startTestFeed(t)
	conn, err := grpc.NewClient(f.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(testCtx(t), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}
