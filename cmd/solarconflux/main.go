package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/internal/config"
	"github.com/EmmaVellard/SolarConflux/internal/export"
	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/internal/observability"
	"github.com/EmmaVellard/SolarConflux/internal/storage"
	"github.com/EmmaVellard/SolarConflux/kb"
	"github.com/EmmaVellard/SolarConflux/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "solarconflux:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("solarconflux", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML or JSON scan configuration file")
	listBodies := fs.Bool("list-bodies", false, "print the bodies available for retrieval and exit")
	bodies := fs.String("bodies", "", "comma-separated bodies to analyse, e.g. BepiColombo,Solar Orbiter,Earth")
	start := fs.String("start", "", "start time, e.g. 2025-01-01")
	end := fs.String("end", "", "end time, e.g. 2025-12-31")
	step := fs.String("step", "", "time step, e.g. 60m (default 60m)")
	modes := fs.String("modes", "", "comma-separated alignments: opposition,cone,quadrature,arbitrary,parker,coneparker")
	arbitrary := fs.Float64("arbitrary-angle", 0, "target separation in degrees for the arbitrary alignment")
	windSpeed := fs.Float64("wind-speed", 0, "solar wind speed in km/s for the Parker spiral (default 400)")
	coneWidth := fs.Float64("cone-width", 0, "cone half-width in degrees (default 10)")
	tolerance := fs.Float64("tolerance", 0, "angular tolerance in degrees (default 10)")
	toleranceParker := fs.Float64("tolerance-parker", 0, "Parker footpoint tolerance in degrees (default 5)")
	outDir := fs.String("out", "", "output directory (default results)")
	noPlots := fs.Bool("no-plots", false, "skip SVG plot generation")
	cachePath := fs.String("cache", "", "SQLite file caching fetched trajectories")
	archivePath := fs.String("archive", "", "SQLite file archiving scan results")
	horizonsURL := fs.String("horizons-url", "", "Horizons API endpoint")
	workers := fs.Int("workers", 0, "goroutines building groups per mode (default GOMAXPROCS)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		Output: stderr,
	})

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Component = "cli"
	tracingCfg.Sync = true
	tracingCfg.Writer = stderr
	shutdown, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	catalog := ephem.DefaultCatalog()
	if *listBodies {
		printCatalog(stdout, catalog)
		return nil
	}

	cfg := &config.ScanConfig{}
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bodies":
			cfg.Bodies = config.SplitList(*bodies)
		case "start":
			cfg.Start = *start
		case "end":
			cfg.End = *end
		case "step":
			cfg.Step = *step
		case "modes":
			cfg.Modes = config.SplitList(*modes)
		case "arbitrary-angle":
			cfg.ArbitraryAngleDeg = config.Float(*arbitrary)
		case "wind-speed":
			cfg.SolarWindSpeedKmS = config.Float(*windSpeed)
		case "cone-width":
			cfg.ConeWidthDeg = config.Float(*coneWidth)
		case "tolerance":
			cfg.ToleranceDeg = config.Float(*tolerance)
		case "tolerance-parker":
			cfg.ToleranceParkerDeg = config.Float(*toleranceParker)
		case "out":
			cfg.OutputDir = *outDir
		case "no-plots":
			plots := !*noPlots
			cfg.Plots = &plots
		case "cache":
			cfg.CachePath = *cachePath
		case "archive":
			cfg.ArchivePath = *archivePath
		case "horizons-url":
			cfg.HorizonsURL = *horizonsURL
		case "workers":
			cfg.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	grid, err := cfg.Grid()
	if err != nil {
		return err
	}

	provider, tleBodies, closeCache, err := buildProvider(cfg, catalog, log)
	if err != nil {
		return err
	}
	defer closeCache()

	log.Info(ctx, "fetching trajectories",
		logging.Strings("bodies", cfg.Bodies),
		logging.String("window", cfg.Window()),
		logging.Int("tle_bodies", len(tleBodies)),
	)
	fetcher := &ephem.Fetcher{Provider: provider, Catalog: catalog, Log: log}
	fetched, _, err := fetcher.Fetch(ctx, cfg.Bodies, grid)
	if err != nil {
		return err
	}

	store := kb.NewKnowledgeBase()
	unsubscribe := store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventTrajectoryLoaded {
			log.Info(ctx, "trajectory loaded", logging.String("body", ev.Body), logging.Int("samples", ev.Samples))
		}
	})
	defer unsubscribe()
	for _, body := range cfg.Bodies {
		if traj, ok := fetched[body]; ok {
			if err := store.AddTrajectory(body, traj); err != nil {
				return err
			}
		}
	}
	if err := store.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Looking for matching dates...")
	scanner := core.NewScanner(cfg.Params(), core.WithLogger(log), core.WithWorkers(cfg.Workers))
	ctx, scanID := logging.EnsureScanID(ctx)
	result, err := scanner.Scan(ctx, store.Snapshot(), cfg.Modes)
	if err != nil {
		return err
	}
	printSummary(stdout, cfg.Modes, result)

	records := result.Sorted()
	csvPath, err := export.WriteCSV(cfg.Output(), records)
	switch {
	case errors.Is(err, export.ErrNoRecords):
		fmt.Fprintln(stdout, "No entries to save.")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(stdout, "Matching entries saved to %s\n", csvPath)

	if cfg.PlotsEnabled() {
		plotter := export.NewPlotter(store.Snapshot(), fetchedOrder(cfg.Bodies, fetched))
		paths, err := plotter.WriteAll(cfg.Output(), result.Records)
		if err != nil && !errors.Is(err, export.ErrNoRecords) {
			return err
		}
		fmt.Fprintf(stdout, "%d plot files saved.\n", len(paths))
	}

	if cfg.ArchivePath != "" {
		if err := archive(ctx, cfg.ArchivePath, scanID, result, cfg.Modes, records); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Scan archived as %s\n", scanID)
	}
	return nil
}

// buildProvider returns the standard router, behind the SQLite cache when
// one is configured.
func buildProvider(cfg *config.ScanConfig, catalog ephem.Catalog, log logging.Logger) (ephem.Provider, []string, func(), error) {
	router, tleBodies, err := ephem.NewStandardRouter(cfg.HorizonsURL, catalog, cfg.TLE)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.CachePath == "" {
		return router, tleBodies, func() {}, nil
	}
	cache, err := storage.New(cfg.CachePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return ephem.NewCachedProvider(router, cache, log), tleBodies, func() { _ = cache.Close() }, nil
}

func archive(ctx context.Context, path, scanID string, result *core.Result, modes []string, records []model.AlignmentRecord) error {
	store, err := storage.New(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()
	return store.ArchiveScan(ctx, scanID, result.Bodies, modes, records)
}

func printCatalog(w io.Writer, catalog ephem.Catalog) {
	fmt.Fprintln(w, "Spacecraft: (yyyy-mm-dd hh:mm)")
	fmt.Fprintln(w)
	for _, b := range catalog.Bodies() {
		fmt.Fprintf(w, "- %s: %s\n", b.Name, b.CoverageString())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Spacecraft on Earth orbits can be added with TLE entries in the configuration file.")
}

// printSummary reports each requested mode once, in request order.
func printSummary(w io.Writer, requested []string, result *core.Result) {
	seen := make(map[string]bool, len(requested))
	for _, raw := range requested {
		key := raw
		if mode, ok := model.ParseMode(raw); ok {
			key = string(mode)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if err, failed := result.Failures[key]; failed {
			fmt.Fprintf(w, "%s: skipped (%v)\n", key, err)
			continue
		}
		if n := len(result.Records[model.AlignmentMode(key)]); n > 0 {
			fmt.Fprintf(w, "%s: %d matches found.\n", key, n)
		} else {
			fmt.Fprintf(w, "%s: no matches.\n", key)
		}
	}
}

// fetchedOrder keeps the request order for bodies that were retrieved, which
// fixes their plot colours.
func fetchedOrder(requested []string, fetched map[string]model.Trajectory) []string {
	var out []string
	for _, b := range requested {
		if _, ok := fetched[b]; ok {
			out = append(out, b)
		}
	}
	return out
}
