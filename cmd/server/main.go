package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/neexbeast/hotel-offers/internal/api"
	"github.com/neexbeast/hotel-offers/internal/cache"
	"github.com/neexbeast/hotel-offers/internal/config"
	"github.com/neexbeast/hotel-offers/internal/events"
	"github.com/neexbeast/hotel-offers/internal/obs"
	"github.com/neexbeast/hotel-offers/internal/orchestrator"
	"github.com/neexbeast/hotel-offers/internal/storage"
	"github.com/neexbeast/hotel-offers/internal/supplier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "err", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// stepsJournal is a Journal that can also list the steps of a run.
type stepsJournal interface {
	orchestrator.Journal
	api.RunInspector
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Connect to Redis.
	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()
	offerCache := cache.NewCache(redisClient)

	// Postgres is optional; without it run steps are journaled in memory.
	var (
		journal  stepsJournal = orchestrator.NewMemoryJournalWithRetention(cfg.JournalRetention)
		dbPinger api.Pinger
	)
	if cfg.DatabaseURL != "" {
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		if err := storage.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir), log); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied", "dir", cfg.MigrationsDir)

		pgJournal := storage.NewJournal(pool)
		pruneCtx, stopPrune := context.WithCancel(ctx)
		defer stopPrune()
		go pruneJournal(pruneCtx, pgJournal, cfg.JournalRetention, log)

		journal = pgJournal
		dbPinger = pool
	} else {
		log.Warn("DATABASE_URL not set, journaling runs in memory")
	}

	var publisher interface {
		orchestrator.Publisher
		Close() error
	} = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info("publishing offer events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("closing event publisher", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	catalog := supplier.DefaultCatalog()
	gateways := []supplier.Gateway{
		newGateway(supplier.SupplierA, cfg.SupplierAURL, cfg.SourceTimeout, catalog, log),
		newGateway(supplier.SupplierB, cfg.SupplierBURL, cfg.SourceTimeout, catalog, log),
	}

	orch := orchestrator.New(gateways, offerCache, orchestrator.Options{
		CacheTTL:      cfg.CacheTTL,
		SourceTimeout: cfg.SourceTimeout,
		RunTimeout:    cfg.RunTimeout,
		Logger:        log,
		Journal:       journal,
		Publisher:     publisher,
		Metrics:       metrics,
	})

	handlers := api.NewHandlers(orch, journal, log)
	router := api.NewRouter(handlers, api.RouterConfig{
		Token:              cfg.BearerToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Health:             api.HealthHandlerFunc(orch, offerCache, offerCache, dbPinger, log),
		Suppliers:          catalog.Handler(cfg.SupplierLatency),
		Metrics:            metrics,
		Log:                log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// newGateway returns an HTTP gateway when url is set and an in-process
// catalog gateway otherwise.
func newGateway(name, url string, timeout time.Duration, catalog *supplier.Catalog, log *slog.Logger) supplier.Gateway {
	if url == "" {
		log.Info("using in-process catalog", "source", name)
		return supplier.NewLocalGateway(name, catalog)
	}
	log.Info("using remote supplier", "source", name, "url", url)
	return supplier.NewHTTPGateway(name, url, timeout)
}

// pruneJournal deletes journal steps older than retention, once at start and
// then periodically until ctx is done.
func pruneJournal(ctx context.Context, j *storage.Journal, retention time.Duration, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("journal pruning panicked", "recover", r)
		}
	}()

	ticker := time.NewTicker(min(retention, time.Hour))
	defer ticker.Stop()

	for {
		n, err := j.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn("pruning journal failed", "err", err)
		} else if n > 0 {
			log.Info("pruned journal steps", "rows", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
