// Package main implements the motorlot API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"gopkg.in/yaml.v3"

	"github.com/motorlot/motorlot/engine/docstore"
	"github.com/motorlot/motorlot/engine/graph"
	"github.com/motorlot/motorlot/engine/sync"
	"github.com/motorlot/motorlot/pkg/eventbus"
	"github.com/motorlot/motorlot/pkg/metrics"
	"github.com/motorlot/motorlot/pkg/mid"
)

// Config holds all server configuration. Environment variables override the
// defaults; a YAML file given with -config overrides both.
type Config struct {
	Port      string `yaml:"port"`
	Neo4jURL  string `yaml:"neo4j_url"`
	Neo4jUser string `yaml:"neo4j_user"`
	Neo4jPass string `yaml:"neo4j_pass"`
	RedisURL  string `yaml:"redis_url"`
	NATSURL   string `yaml:"nats_url"` // empty disables event publishing

	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	SweepRate  float64 `yaml:"sweep_rate"`
	SweepBurst int     `yaml:"sweep_burst"`
}

func loadConfig(path string) (Config, error) {
	cfg := Config{
		Port:       envOr("PORT", "8080"),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		RedisURL:   envOr("REDIS_URL", "redis://localhost:6379"),
		NATSURL:    os.Getenv("NATS_URL"),
		CacheSize:  1024,
		CacheTTL:   time.Minute,
		SweepRate:  100,
		SweepBurst: 10,
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	graphStore := graph.New(neo4jDriver)

	// --- Connect to Redis ---
	docStore, err := docstore.New(docstore.Options{
		URL:       cfg.RedisURL,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer docStore.Close()

	// --- Connect to NATS (optional) ---
	var bus *eventbus.Bus
	if cfg.NATSURL != "" {
		bus, err = eventbus.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer bus.Close()
	}

	// --- Build sync service ---
	reg := metrics.New()
	svc := sync.New(graphStore, docStore, logger,
		sync.WithEventBus(bus),
		sync.WithMetrics(reg),
	)
	rec := sync.NewReconciler(graphStore, docStore, logger,
		sync.WithSweepRate(cfg.SweepRate, cfg.SweepBurst),
	)

	// --- Build HTTP server ---
	api := &apiServer{svc: svc, graph: graphStore, rec: rec, log: logger}
	mux := http.NewServeMux()
	api.routes(mux)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("motorlot-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
