// Package main provides a terminal viewer for the sotamapper feed. It
// prints the player's map projected onto a fixed surface every time the
// player state changes, or appends a map item at the player's location.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/config"
	"github.com/cory-johannsen/sotamapper/internal/feed"
	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/observability"
	"github.com/cory-johannsen/sotamapper/internal/player"
	"github.com/cory-johannsen/sotamapper/internal/projection"
	"github.com/cory-johannsen/sotamapper/internal/view"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:50061", "feed address")
	mapsDir := flag.String("maps", "maps", "directory of map files")
	width := flag.Float64("width", 800, "surface width")
	height := flag.Float64("height", 600, "surface height")
	addItem := flag.String("add", "", "append an item with this name at the player's location and exit")
	once := flag.Bool("once", false, "print the current frame and exit")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	logger, err := observability.NewLogger(config.LoggingConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()
	defer observability.InstallGlobals(logger)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := feed.Dial(*addr)
	if err != nil {
		logger.Fatal("dialing feed", zap.String("addr", *addr), zap.Error(err))
	}
	defer client.Close()

	if *addItem != "" {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		added, err := client.AddItem(callCtx, *addItem)
		if err != nil {
			logger.Fatal("adding map item", zap.String("name", *addItem), zap.Error(err))
		}
		fmt.Printf("added %s to %s (%d items)\n", added.Item, added.Map, added.Items)
		return
	}

	store := mapdata.NewStore(mapdata.StoreConfig{Dir: *mapsDir}, logger.Named("maps"))
	surface := projection.Surface{Width: *width, Height: *height}

	render := func(st player.State) error {
		// Items may have been appended through the feed since the last frame.
		if err := store.Load(); err != nil {
			logger.Warn("loading maps", zap.Error(err))
		}
		frame := view.Build(player.Some(st), store, surface)
		fmt.Fprintf(os.Stdout, "--- %s\n", time.Now().Format(time.TimeOnly))
		return frame.WriteText(os.Stdout)
	}

	if *once {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		st, err := client.Current(callCtx)
		if err != nil {
			logger.Fatal("reading current state", zap.Error(err))
		}
		if err := render(st); err != nil {
			logger.Fatal("rendering frame", zap.Error(err))
		}
		return
	}

	err = client.Watch(ctx, render)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("watching feed", zap.Error(err))
	}
}
