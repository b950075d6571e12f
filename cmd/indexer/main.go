// Command indexer runs the indexing front-end: it consumes wire-format
// documents from Kafka, persists them to the configured object store, runs
// schema-driven analysis, and feeds the resulting postings into the node's
// partitioned local index.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tessera-search/tessera/internal/analysis"
	"github.com/tessera-search/tessera/internal/docstore"
	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/partition"
	"github.com/tessera-search/tessera/internal/schema"
	"github.com/tessera-search/tessera/pkg/config"
	"github.com/tessera-search/tessera/pkg/health"
	"github.com/tessera-search/tessera/pkg/kafka"
	"github.com/tessera-search/tessera/pkg/logger"
	"github.com/tessera-search/tessera/pkg/metrics"
	"github.com/tessera-search/tessera/pkg/postgres"
	"github.com/tessera-search/tessera/pkg/redis"
	"github.com/tessera-search/tessera/pkg/resilience"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	healthPort := flag.Int("health-port", 8081, "port for health probe endpoints")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("indexer")
	log.Info("starting indexer",
		"node", cfg.Node.Name,
		"partitions", cfg.Index.Partitions,
		"object_store", cfg.ObjectStore.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()

	objects, cleanupObjects, err := openObjectStore(ctx, cfg, checker)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}
	defer cleanupObjects()

	var docs docstore.DocumentStore = docstore.New(objects, m)
	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer cache.Close()
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := cache.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		docs = docstore.NewCachedStore(docs, cache, cfg.Redis.CacheTTL, m)
		log.Info("document cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	registry, err := partition.StartRegistry(cfg.Index, partition.NodeID(cfg.Node.Name), m)
	if err != nil {
		return fmt.Errorf("starting partition registry: %w", err)
	}
	defer func() {
		if err := registry.Stop(); err != nil {
			log.Error("partition registry stop failed", "error", err)
		}
	}()
	checker.Register("partitions", func(ctx context.Context) health.ComponentHealth {
		if registry.NumPartitions() == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no active partitions"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	schemas := schema.NewDirRegistry(cfg.Schema.Dir)
	handler := ingest.NewHandler(registry, schemas, analysis.DefaultAnalyzers(), docs, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, handler.HandleDocument)
	defer consumer.Close()

	healthShutdown := startHealthServer(*healthPort, checker)

	errc := make(chan error, 1)
	go func() {
		errc <- consumer.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errc:
		if err != nil {
			log.Error("consumer exited", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthShutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", "error", err)
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", "error", err)
		}
	}
	log.Info("indexer stopped")
	return nil
}

// openObjectStore builds the configured document object store backend and
// registers its health check.
func openObjectStore(ctx context.Context, cfg *config.Config, checker *health.Checker) (docstore.ObjectStore, func(), error) {
	noop := func() {}
	switch cfg.ObjectStore.Backend {
	case "memory":
		return docstore.NewMemoryStore(), noop, nil
	case "postgres":
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var err error
			db, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, noop, err
		}
		store := docstore.NewPostgresStore(db)
		err = resilience.WithTimeout(ctx, 10*time.Second, "object-store-schema", func(ctx context.Context) error {
			return store.EnsureSchema(ctx)
		})
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		return store, func() { db.Close() }, nil
	case "minio":
		store, err := docstore.NewMinioStore(ctx, cfg.ObjectStore.Minio)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown object store backend %q", cfg.ObjectStore.Backend)
	}
}

// startHealthServer serves the liveness and readiness probes and returns a
// shutdown function.
func startHealthServer(port int, checker *health.Checker) func(context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", checker.LiveHandler())
	mux.HandleFunc("/health/ready", checker.ReadyHandler())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("health").Error("health server error", "error", err)
		}
	}()
	return server.Shutdown
}
