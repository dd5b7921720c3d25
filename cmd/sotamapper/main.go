// Package main provides the sotamapper daemon: it follows the game's chat
// logs and location snapshots, publishes the merged player state over gRPC,
// and optionally records location history and runs Lua hooks.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/config"
	"github.com/cory-johannsen/sotamapper/internal/feed"
	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/observability"
	"github.com/cory-johannsen/sotamapper/internal/player"
	"github.com/cory-johannsen/sotamapper/internal/scripting"
	"github.com/cory-johannsen/sotamapper/internal/server"
	"github.com/cory-johannsen/sotamapper/internal/storage/postgres"
	"github.com/cory-johannsen/sotamapper/internal/track"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()
	defer observability.InstallGlobals(logger)()

	logger.Info("starting sotamapper",
		zap.String("feed_addr", cfg.Feed.Addr()),
		zap.String("maps_dir", cfg.Maps.Dir),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// Load maps
	mapStart := time.Now()
	store := mapdata.NewStore(mapdata.StoreConfig{Dir: cfg.Maps.Dir, Pattern: cfg.Maps.Pattern}, logger.Named("maps"))
	if err := store.Load(); err != nil {
		logger.Warn("loading maps", zap.Error(err))
	}
	metrics.SetMapsLoaded(store.Count())
	logger.Info("maps loaded",
		zap.Int("maps", store.Count()),
		zap.Duration("elapsed", time.Since(mapStart)),
	)

	// Player state sources
	var sources []player.Source
	if cfg.Watcher.LogDir != "" {
		parser := player.NewLineParser(cfg.Watcher.TimestampLayouts, time.Local)
		sources = append(sources, player.NewLogSource(player.LogSourceConfig{
			Dir:     cfg.Watcher.LogDir,
			Pattern: cfg.Watcher.LogPattern,
			TempDir: cfg.Watcher.TempDir,
		}, parser, logger))
	}
	if len(cfg.Watcher.SnapshotDirs) > 0 {
		sources = append(sources, player.NewSnapshotSource(player.SnapshotSourceConfig{
			InstallDirs: cfg.Watcher.SnapshotDirs,
			FileName:    cfg.Watcher.SnapshotName,
			TempDir:     cfg.Watcher.TempDir,
		}, logger))
	}

	hub := feed.NewHub(logger.Named("hub"), metrics)
	notifiers := player.Notifiers{hub}

	// Lua hooks
	var scriptMgr *scripting.Manager
	if cfg.Scripting.Dir != "" {
		scriptMgr = scripting.NewManager(logger.Named("scripting"), cfg.Scripting.InstructionLimit)
		scriptMgr.LookupMap = store.GetMap
		if err := scriptMgr.LoadDir(cfg.Scripting.Dir); err != nil {
			logger.Fatal("loading scripts", zap.String("dir", cfg.Scripting.Dir), zap.Error(err))
		}
		defer scriptMgr.Close()
		notifiers = append(notifiers, scriptMgr)
		logger.Info("scripting enabled", zap.String("dir", cfg.Scripting.Dir))
	}

	// Location history
	var pool *postgres.Pool
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err = postgres.Open(ctx, cfg.Database, logger.Named("postgres"), postgres.OpenOptions{})
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		recorder := track.NewRecorder(pool.Locations(), cfg.Database.WriteTimeout, logger.Named("track"))
		notifiers = append(notifiers, recorder)
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Stringer("session", recorder.Session()),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	watcher := player.NewWatcher(cfg.Watcher.Interval, notifiers, logger.Named("watcher"), metrics, sources...)

	feedSrv, err := feed.Listen(cfg.Feed.Addr(), feed.NewService(hub, store, logger.Named("feed")), logger.Named("feed"))
	if err != nil {
		logger.Fatal("starting feed", zap.Error(err))
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("feed", feedSrv)
	if cfg.Metrics.Enabled {
		lifecycle.Add("metrics", observability.NewMetricsServer(cfg.Metrics.Addr, reg, logger.Named("metrics")))
	}
	if pool != nil {
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func(ctx context.Context) error {
				return pool.MonitorHealth(ctx, 30*time.Second)
			},
			StopFn: pool.Close,
		})
	}
	// Added last so it is stopped before the pool.
	lifecycle.Add("watcher", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			watcher.Run(ctx)
			return ctx.Err()
		},
	})

	logger.Info("sotamapper initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Int("sources", len(sources)),
		zap.String("feed_addr", feedSrv.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
