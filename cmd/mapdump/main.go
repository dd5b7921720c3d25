// Package main loads a map directory the way the daemon does and dumps the
// parsed maps, extents included, as YAML.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

func main() {
	dir := flag.String("maps", "maps", "directory of map files")
	pattern := flag.String("pattern", mapdata.DefaultPattern, "glob matched against map file names")
	name := flag.String("name", "", "dump only the map with this name")
	verbose := flag.Bool("v", false, "log each parsed file")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	start := time.Now()
	store := mapdata.NewStore(mapdata.StoreConfig{Dir: *dir, Pattern: *pattern}, logger)
	if err := store.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	records := store.Maps()
	if *name != "" {
		rec, ok := store.GetMap(*name)
		if !ok {
			fmt.Fprintf(os.Stderr, "error: map %q not found in %s\n", *name, *dir)
			os.Exit(1)
		}
		records = []*mapdata.Record{rec}
	}

	if err := mapdata.Dump(os.Stdout, records); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "dumped %d maps in %s\n", len(records), time.Since(start).Round(time.Millisecond))
}
