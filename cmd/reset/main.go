// Command reset wipes both stores. Destructive; meant for local
// development and test environments only.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/motorlot/motorlot/engine/docstore"
	"github.com/motorlot/motorlot/engine/graph"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	yes := flag.Bool("yes", false, "confirm the wipe")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if !*yes {
		logger.Error("refusing to wipe without -yes")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	neo4jURL := envOr("NEO4J_URL", "neo4j://localhost:7687")
	driver, err := neo4j.NewDriverWithContext(neo4jURL,
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
	if err != nil {
		logger.Error("neo4j driver", "err", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)

	docs, err := docstore.New(docstore.Options{URL: envOr("REDIS_URL", "redis://localhost:6379")})
	if err != nil {
		logger.Error("redis connect", "err", err)
		os.Exit(1)
	}
	defer docs.Close()

	if err := graph.New(driver).DropAll(ctx); err != nil {
		logger.Error("graph wipe failed", "err", err)
		os.Exit(1)
	}
	logger.Info("graph store wiped", "url", neo4jURL)

	if err := docs.DropAll(ctx); err != nil {
		logger.Error("document wipe failed", "err", err)
		os.Exit(1)
	}
	logger.Info("document store wiped")
}
