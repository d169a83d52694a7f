// Package main runs the launchpad indexer: the chain synchronizer, the
// event projector, the websocket fanout hub, and the HTTP read surface
// in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"launchpad-indexer/internal/api"
	"launchpad-indexer/internal/cache"
	"launchpad-indexer/internal/config"
	"launchpad-indexer/internal/evm"
	"launchpad-indexer/internal/fanout"
	"launchpad-indexer/internal/projector"
	"launchpad-indexer/internal/storage"
	chstore "launchpad-indexer/internal/storage/clickhouse"
	"launchpad-indexer/internal/storage/memory"
	"launchpad-indexer/internal/storage/migrations"
	pgstore "launchpad-indexer/internal/storage/postgres"
	"launchpad-indexer/internal/syncer"
)

const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to JSON config file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Chain JSON-RPC HTTP endpoint")
	factoryAddress := flag.String("factory-address", "", "Launch factory contract address")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (optional bar mirror)")
	listenAddr := flag.String("listen", "", "HTTP/websocket listen address")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Apply migrations before starting")
	resyncSource := flag.String("resync-source", "", "Reset the named source's watermark and exit")
	resyncFrom := flag.Uint64("resync-from", 0, "Block to reset the watermark to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override file and env values.
	if *rpcEndpoint != "" {
		cfg.Chain.RPCEndpoint = *rpcEndpoint
	}
	if *factoryAddress != "" {
		cfg.Chain.FactoryAddress = *factoryAddress
	}
	if *postgresDSN != "" {
		cfg.Database.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Database.ClickhouseDSN = *clickhouseDSN
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	logger := newLogger(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, barMirror, cleanup, err := createStores(ctx, cfg, *useMemory, *migrate, logger)
	if err != nil {
		logger.Error("failed to create stores", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if *resyncSource != "" {
		if err := store.Watermarks().Reset(ctx, *resyncSource, *resyncFrom); err != nil {
			logger.Error("failed to reset watermark", "source", *resyncSource, "error", err)
			os.Exit(1)
		}
		logger.Info("watermark reset", "source", *resyncSource, "block", *resyncFrom)
		return
	}

	client := evm.NewHTTPClient(cfg.Chain.RPCEndpoint,
		evm.WithTimeout(cfg.RPCTimeout()),
		evm.WithMaxRetries(cfg.Chain.RPCMaxRetries),
		evm.WithRateLimit(float64(cfg.Chain.RPCRateLimit)),
	)

	hub := fanout.NewHub(logger)
	defer hub.Close()

	readCache := cache.New(cache.Config{
		TickTTL:    time.Duration(cfg.Cache.TickTTLSeconds) * time.Second,
		ListingTTL: time.Duration(cfg.Cache.ListingTTLSeconds) * time.Second,
		StatsTTL:   time.Duration(cfg.Cache.StatsTTLSeconds) * time.Second,
	}, logger)

	proj := projector.New(projector.Options{
		Store:     store,
		Logger:    logger,
		BarMirror: barMirror,
	})

	sync := syncer.New(syncer.Options{
		Client:        client,
		Store:         store,
		Registry:      syncer.NewStoreRegistry(store.Tokens(), cfg.Chain.FactoryAddress, cfg.Chain.StartBlock),
		Applier:       proj,
		Sink:          syncer.NewDispatcher(hub, readCache, logger),
		Logger:        logger,
		TickInterval:  cfg.TickInterval(),
		BatchBlocks:   cfg.Chain.BatchBlocks,
		Confirmations: cfg.Chain.Confirmations,
		MaxConcurrent: cfg.Chain.MaxConcurrent,
	})

	pruner := syncer.NewPruner(store.PriceBars(), nil, 0, logger)

	wsServer := fanout.NewWSServer(hub, logger, fanout.WSOptions{
		PingInterval: time.Duration(cfg.Server.PingSeconds) * time.Second,
		PongTimeout:  time.Duration(cfg.Server.PongSeconds) * time.Second,
	})

	apiServer := api.NewServer(api.Options{
		Addr:   cfg.Server.ListenAddr,
		Store:  store,
		Cache:  readCache,
		WS:     wsServer,
		Logger: logger,
	})

	// Double SIGINT/SIGTERM forces an immediate exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", "signal", sig.String())
			os.Exit(1)
		case <-time.After(shutdownGrace):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	errCh := make(chan error, 4)
	go func() {
		if err := sync.Run(ctx); err != nil {
			errCh <- fmt.Errorf("syncer: %w", err)
		}
	}()
	go func() {
		if err := pruner.Run(ctx); err != nil {
			errCh <- fmt.Errorf("pruner: %w", err)
		}
	}()
	go func() {
		if err := readCache.Run(ctx); err != nil {
			errCh <- fmt.Errorf("cache sweeper: %w", err)
		}
	}()
	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}

// newLogger builds the process-wide JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// createStores wires the transactional store and the optional analytics
// bar mirror.
func createStores(ctx context.Context, cfg *config.Config, useMemory, migrate bool, logger *slog.Logger) (storage.Store, storage.PriceBarStore, func(), error) {
	if useMemory {
		return memory.NewStore(), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
	}

	store := pgstore.NewStore(pool)

	if cfg.Database.ClickhouseDSN == "" {
		return store, nil, pool.Close, nil
	}

	var chConn *chstore.Conn
	if migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.Database.ClickhouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.Database.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	logger.Info("clickhouse bar mirror enabled")

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return store, chstore.NewPriceBarStore(chConn), cleanup, nil
}
