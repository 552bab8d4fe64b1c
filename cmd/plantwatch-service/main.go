// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/config"
	"github.com/plantwatch/plantwatch/lib/feed"
	"github.com/plantwatch/plantwatch/lib/httpapi"
	"github.com/plantwatch/plantwatch/lib/ingest"
	"github.com/plantwatch/plantwatch/lib/lateststate"
	"github.com/plantwatch/plantwatch/lib/netutil"
	"github.com/plantwatch/plantwatch/lib/process"
	"github.com/plantwatch/plantwatch/lib/readingstore"
	"github.com/plantwatch/plantwatch/lib/service"
	"github.com/plantwatch/plantwatch/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("plantwatch-service", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (default: $PLANTWATCH_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("plantwatch-service")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, clock.Real(), logger)
}

// loadConfig loads from --config when given, otherwise from
// PLANTWATCH_CONFIG, and validates the result.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}

// serve runs every component until ctx is cancelled, then shuts them
// down in dependency order: ingestion first, then the feed it fills,
// then the query surfaces, then the store they all read.
func serve(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := readingstore.OpenStore(readingstore.StoreConfig{
		Path:        cfg.Store.Path,
		PoolSize:    cfg.Store.PoolSize,
		Synchronous: cfg.Store.Synchronous,
		Location:    location,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	cache := lateststate.New()
	if cfg.Cache.WarmOnStart {
		if err := warmCache(ctx, store, cache, logger); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	listenerConfig := ingest.Config{
		BufferSize:  cfg.Ingest.BufferSize,
		MaxSessions: cfg.Ingest.MaxSessions,
		ReadTimeout: cfg.Ingest.ReadTimeout,
		Store:       store,
		Cache:       cache,
		Metrics:     ingest.NewMetrics(registry),
		Clock:       clk,
		Logger:      logger,
	}

	// The feed outlives the listener so readings stored during the
	// listener's drain are still offered to it.
	feedCtx, stopFeed := context.WithCancel(context.WithoutCancel(ctx))
	defer stopFeed()
	var feedDone chan error
	if len(cfg.Feed.Brokers) > 0 {
		publisher, err := feed.New(feed.Config{
			Writer: feed.NewKafkaWriter(cfg.Feed.Brokers, cfg.Feed.Topic),
			Buffer: cfg.Feed.Buffer,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		listenerConfig.Feed = publisher
		feedDone = make(chan error, 1)
		go func() {
			feedDone <- publisher.Run(feedCtx)
		}()
		logger.Info("reading feed enabled",
			"brokers", cfg.Feed.Brokers,
			"topic", cfg.Feed.Topic,
		)
	}

	listener, err := ingest.New(listenerConfig)
	if err != nil {
		return err
	}

	tcpListener, err := netutil.Listen(ctx, cfg.Ingest.Listen, netutil.ListenOptions{
		ReusePort: cfg.Ingest.ReusePort,
	})
	if err != nil {
		return err
	}

	queries := &queryService{
		store:     store,
		cache:     cache,
		stats:     listener.Stats(),
		location:  location,
		clock:     clk,
		startedAt: clk.Now(),
	}
	socketServer := service.NewSocketServer(cfg.Query.SocketPath, logger)
	queries.registerActions(socketServer)

	var httpServer *service.HTTPServer
	if cfg.API.Listen != "" {
		handler, err := httpapi.NewHandler(httpapi.Config{
			Store:      store,
			Cache:      cache,
			Location:   location,
			Clock:      clk,
			Registerer: registry,
			Gatherer:   registry,
			Logger:     logger,
		})
		if err != nil {
			tcpListener.Close()
			return err
		}
		httpServer = service.NewHTTPServer(service.HTTPServerConfig{
			Address: cfg.API.Listen,
			Handler: handler,
			Logger:  logger,
		})
	}

	// Query surfaces stop after ingestion has drained.
	queryCtx, stopQueries := context.WithCancel(context.WithoutCancel(ctx))
	defer stopQueries()

	var surfaces sync.WaitGroup
	surfaceErrors := make(chan error, 2)
	surfaces.Add(1)
	go func() {
		defer surfaces.Done()
		if err := socketServer.Serve(queryCtx); err != nil {
			surfaceErrors <- fmt.Errorf("query socket: %w", err)
		}
	}()
	if httpServer != nil {
		surfaces.Add(1)
		go func() {
			defer surfaces.Done()
			if err := httpServer.Serve(queryCtx); err != nil {
				surfaceErrors <- fmt.Errorf("http api: %w", err)
			}
		}()
	}

	logger.Info("plantwatch service running",
		"version", version.Short(),
		"ingest", tcpListener.Addr().String(),
		"socket", cfg.Query.SocketPath,
		"api", cfg.API.Listen,
		"store", cfg.Store.Path,
		"timezone", location.String(),
		"cached_machines", cache.Len(),
	)

	// A failing query surface takes the whole service down rather
	// than leaving ingestion running without its readers.
	ingestCtx, stopIngest := context.WithCancel(ctx)
	defer stopIngest()
	go func() {
		select {
		case err := <-surfaceErrors:
			logger.Error("query surface failed", "error", err)
			surfaceErrors <- err
			stopIngest()
		case <-ingestCtx.Done():
		}
	}()

	listenErr := listener.Serve(ingestCtx, tcpListener)
	logger.Info("shutting down")

	stopFeed()
	if feedDone != nil {
		if err := <-feedDone; err != nil {
			logger.Error("reading feed stopped with error", "error", err)
		}
	}

	stopQueries()
	surfaces.Wait()

	select {
	case err := <-surfaceErrors:
		return err
	default:
	}
	return listenErr
}

// warmCache seeds cache with each machine's newest stored reading.
func warmCache(ctx context.Context, store *readingstore.Store, cache *lateststate.Cache, logger *slog.Logger) error {
	readings, err := store.LatestPerMachine(ctx)
	if err != nil {
		return fmt.Errorf("warming latest-state cache: %w", err)
	}
	for _, reading := range readings {
		cache.Update(reading)
	}
	logger.Info("latest-state cache warmed", "machines", len(readings))
	return nil
}
