// Command api is the reader process (C6, C9): a Gin HTTP server over the
// pool-backed OrdinalsStore/Brc20Store read paths, the websocket broadcast
// hub, and the status/admin surface. Follows the teacher's cmd/engine/main.go
// startup shape (requireEnv-backed config, fail-fast on unreachable
// dependencies) with the CoinJoin RPC/scanner stack replaced by the two
// read-only stores.
package main

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/ordinals-index/internal/api"
	"github.com/rawblock/ordinals-index/internal/chaintip"
	"github.com/rawblock/ordinals-index/internal/config"
	"github.com/rawblock/ordinals-index/internal/db"
)

const checkpointPollInterval = 5 * time.Second

func main() {
	cfg := config.LoadAPI()
	ctx := context.Background()

	store, err := db.Connect(ctx, cfg.OrdinalsDatabaseURL, cfg.Brc20DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer store.Close()

	tip := chaintip.New()
	metrics := api.NewMetrics()
	go pollCheckpoint(ctx, store, tip, metrics)

	hub := api.NewHub()
	go hub.Run()

	admin := api.NewAdminController(store)
	h := api.NewAPIHandler(store.OrdinalsStore(), store.Brc20Store(), tip, cfg, hub, metrics)

	r := api.SetupRouter(h, admin)

	log.Printf("api: listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// pollCheckpoint keeps this process's chaintip.Tracker and ingest-rate
// metric in sync with the indexer process's last committed checkpoint,
// since the two binaries share a database but not memory.
func pollCheckpoint(ctx context.Context, store *db.Store, tip *chaintip.Tracker, metrics *api.Metrics) {
	ticker := time.NewTicker(checkpointPollInterval)
	defer ticker.Stop()
	for range ticker.C {
		height, hash, err := store.GetCheckpoint(ctx, "indexer")
		if err != nil {
			log.Printf("api: checkpoint poll failed: %v", err)
			continue
		}
		if height < 0 {
			continue
		}
		tip.Set(height, hash)
		metrics.Observe(height)
	}
}
