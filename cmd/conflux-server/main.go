package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/internal/config"
	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/internal/observability"
	"github.com/EmmaVellard/SolarConflux/internal/server"
	"github.com/EmmaVellard/SolarConflux/internal/storage"
)

// Config holds the server settings.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	LogLevel       string
	LogFormat      string
	HorizonsURL    string
	TLEPath        string
	CachePath      string
	ArchivePath    string
	Workers        int
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the alignment gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics; empty disables it")
	flag.StringVar(&cfg.LogLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug, info, warn or error")
	flag.StringVar(&cfg.LogFormat, "log-format", os.Getenv("LOG_FORMAT"), "json or text")
	flag.StringVar(&cfg.HorizonsURL, "horizons-url", "", "Horizons API endpoint")
	flag.StringVar(&cfg.TLEPath, "tle", "", "YAML or JSON file of TLE entries for Earth-orbiting spacecraft")
	flag.StringVar(&cfg.CachePath, "cache", "", "SQLite file caching fetched trajectories")
	flag.StringVar(&cfg.ArchivePath, "archive", "", "SQLite file archiving scan results")
	flag.IntVar(&cfg.Workers, "workers", 0, "goroutines building groups per mode (default GOMAXPROCS)")
	flag.Parse()

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the alignment service on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Component = "server"
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	registry := prometheus.NewRegistry()
	rpcMetrics, err := observability.NewRPCCollector(registry)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}
	scanMetrics, err := observability.NewScanCollector(registry)
	if err != nil {
		return fmt.Errorf("scan metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddress, registry, log)

	var tles []ephem.TLE
	if cfg.TLEPath != "" {
		if tles, err = config.LoadTLEs(cfg.TLEPath); err != nil {
			return err
		}
	}
	catalog := ephem.DefaultCatalog()
	router, tleBodies, err := ephem.NewStandardRouter(cfg.HorizonsURL, catalog, tles)
	if err != nil {
		return err
	}

	var provider ephem.Provider = router
	if cfg.CachePath != "" {
		cache, err := storage.New(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer cache.Close()
		provider = ephem.NewCachedProvider(router, cache, log)
	}

	opts := []server.ServiceOption{
		server.WithFetcher(&ephem.Fetcher{Provider: provider, Catalog: catalog, Log: log}),
		server.WithExtraBodies(tleBodies...),
		server.WithMetricsRecorder(scanMetrics),
		server.WithWorkers(cfg.Workers),
	}
	if cfg.ArchivePath != "" {
		archive, err := storage.New(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		opts = append(opts, server.WithArchive(archive))
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			server.RequestIDUnaryServerInterceptor(log),
			server.TracingUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
	)
	server.RegisterAlignmentServer(srv, server.NewAlignmentService(log, opts...))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()
	log.Info(ctx, "starting alignment gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.Int("tle_bodies", len(tleBodies)),
	)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down alignment server")
	srv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(gatherer))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
