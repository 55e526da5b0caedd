package main

import (
	"DSCEngine/internal/config"
	"DSCEngine/internal/core"
	"DSCEngine/internal/ingestion"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/oracle"
	"DSCEngine/internal/persistence"
	"DSCEngine/internal/projection"
	"DSCEngine/internal/query"
	"DSCEngine/internal/server"
	"DSCEngine/internal/token"
	"DSCEngine/migrations"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	logger := observability.NewLogger("main")
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("dscengine exited")
	}
}

func run(logger zerolog.Logger) error {
	cfg := config.FromEnv()
	logger.Info().Str("registry", cfg.RegistryFile).Bool("dev_mode", cfg.DevMode).Msg("DSCEngine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Collateral registry ---
	rf, err := config.LoadRegistryFile(cfg.RegistryFile)
	if err != nil {
		return err
	}
	reg, err := rf.Build()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	logger.Info().Int("collateral_tokens", reg.Len()).Str("dsc", reg.Dsc().Hex()).Msg("registry loaded")

	// --- Observability ---
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := observability.NewHealthChecker()

	// --- Prices ---
	var source oracle.Source
	if cfg.EthRPCURL != "" {
		chainlink, client, err := oracle.DialChainlink(ctx, cfg.EthRPCURL)
		if err != nil {
			return err
		}
		defer client.Close()
		source = chainlink
		logger.Info().Msg("reading prices from Chainlink feeds")
	} else {
		static := oracle.NewStaticSource()
		if err := rf.ApplyStaticPrices(static); err != nil {
			return err
		}
		source = static
		logger.Warn().Msg("DSC_ETH_RPC_URL not set, serving static prices from the registry file")
	}
	prices := oracle.NewCache(source, reg.PriceFeeds(), metrics, observability.NewLogger("oracle"))
	if err := prices.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial price refresh incomplete")
	}

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("postgres open: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	logger.Info().Msg("Postgres connected")

	applied, err := persistence.NewMigrator(db, migrationFiles(cfg.MigrationsDir), observability.NewLogger("migrator")).Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")

	// --- Engine ---
	// Persistence blocks; projection and publishing drop when full.
	persistChan := make(chan core.Output, cfg.PersistChanSize)
	projectionChan := make(chan core.Output, cfg.ProjectionChanSize)
	publishChan := make(chan core.Output, cfg.PublishChanSize)

	vault := token.NewVault()
	dsc := token.NewDSC()
	engine := core.NewEngine(core.Config{
		Registry:       reg,
		Prices:         prices,
		Collateral:     vault,
		Debt:           dsc,
		Custody:        rf.EngineAddress(),
		DedupCapacity:  cfg.IdempotencyLRUCapacity,
		DedupDB:        persistence.NewPostgresIdempotencyChecker(db),
		Metrics:        metrics,
		Logger:         observability.NewLogger("engine"),
		PersistChan:    persistChan,
		ProjectionChan: projectionChan,
		PublishChan:    publishChan,
	})

	// --- Recovery: snapshot + replay ---
	snapMgr := persistence.NewSnapshotManager(db)
	healthChecker.SetNotReady("replaying")
	if err := recoverEngine(ctx, engine, snapMgr, logger); err != nil {
		return err
	}
	if err := seedTokens(engine, vault, dsc); err != nil {
		return err
	}

	ids, err := snapMgr.RecentCommandIDs(ctx, cfg.IdempotencyLRUCapacity)
	if err != nil {
		return fmt.Errorf("load recent command ids: %w", err)
	}
	engine.WarmLRU(ids)
	logger.Info().Int("keys", len(ids)).Msg("dedup LRU warmed")

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, observability.NewLogger("nats"))
	if err != nil {
		return err
	}
	defer nc.Close()
	if err := ingestion.EnsureStreams(ctx, js, observability.NewLogger("nats")); err != nil {
		return err
	}

	rawChan := make(chan ingestion.RawCommand, 1024)
	subscriber := ingestion.NewNATSSubscriber(js, rawChan, observability.NewLogger("nats-subscriber"))
	processor := ingestion.NewProcessor(engine, rawChan, metrics, observability.NewLogger("processor"))
	publisher := ingestion.NewOutboundPublisher(js, publishChan, metrics, observability.NewLogger("publisher"))

	// --- API ---
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, &server.ServerDeps{
		Engine:        engine,
		QueryService:  query.NewQueryService(db),
		Vault:         vault,
		DSC:           dsc,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        observability.NewLogger("server"),
		DevMode:       cfg.DevMode,
	})

	// --- Start goroutines ---
	errChan := make(chan error, 10)
	persistDone := make(chan struct{})

	persistWorker := persistence.NewPersistenceWorker(persistence.NewOperationLogWriter(db), persistChan,
		cfg.PersistBatchSize, cfg.PersistFlushTimeout, metrics, observability.NewLogger("persistence"))
	go func() {
		defer close(persistDone)
		report(errChan, "persistence worker", persistWorker.Run(ctx))
	}()

	projWorker := projection.NewProjectionWorker(db, projectionChan, metrics, observability.NewLogger("projection"))
	go func() { report(errChan, "projection worker", projWorker.Run(ctx)) }()

	go func() { report(errChan, "publisher", publisher.Run(ctx)) }()
	go func() { report(errChan, "processor", processor.Run(ctx)) }()
	go prices.Run(ctx, cfg.PricePollInterval)
	go func() { report(errChan, "grpc server", grpcServer.StartGRPC(ctx)) }()
	go func() { report(errChan, "http gateway", grpcServer.StartHTTPGateway(ctx)) }()
	go func() { report(errChan, "metrics server", serveMetrics(ctx, cfg.MetricsAddr, logger)) }()
	go runPeriodicSnapshots(ctx, engine, snapMgr, cfg.SnapshotInterval, metrics, observability.NewLogger("snapshot"))

	if err := subscriber.Subscribe(ctx); err != nil {
		return err
	}

	go awaitReady(ctx, prices, healthChecker, grpcServer, logger)

	logger.Info().
		Int64("sequence", engine.GetSequence()).
		Str("grpc", cfg.GRPCAddr).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("DSCEngine running")

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("component failed, shutting down")
	}

	// --- Graceful shutdown ---
	healthChecker.SetNotReady("shutting down")
	grpcServer.SetServing(false)
	subscriber.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-persistDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("persistence worker did not drain in time")
	}

	if err := takeSnapshot(shutdownCtx, engine, snapMgr, metrics); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	} else if n, err := snapMgr.VerifyPending(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("verify final snapshot")
	} else {
		logger.Info().Int64("verified", n).Int64("sequence", engine.GetSequence()).Msg("final snapshot saved")
	}

	logger.Info().Msg("DSCEngine shutdown complete")
	return nil
}

// migrationFiles prefers an on-disk directory and falls back to the
// embedded migrations.
func migrationFiles(dir string) fs.FS {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func report(errChan chan<- error, name string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	errChan <- fmt.Errorf("%s: %w", name, err)
}

// awaitReady flips readiness once every price feed has an answer.
func awaitReady(ctx context.Context, prices *oracle.Cache, hc *observability.HealthChecker, srv *server.GRPCServer, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for !prices.Loaded() {
		hc.SetNotReady("prices unavailable")
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	hc.SetReady(true)
	srv.SetServing(true)
	logger.Info().Msg("ready")
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		srv.Shutdown(shutCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
