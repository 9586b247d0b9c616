// Command indexer is the writer process (C2-C5): it consumes the
// eventsource.Source block-event stream and drives the reorg controller,
// committing every apply/rollback to the ordinals and brc20 stores. Follows
// the teacher's cmd/engine/main.go startup shape (requireEnv-backed config,
// fail-fast on unreachable dependencies, graceful shutdown on SIGINT/SIGTERM)
// with the CoinJoin RPC/scanner/mempool stack replaced by the ingest loop.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawblock/ordinals-index/internal/bitcoin"
	"github.com/rawblock/ordinals-index/internal/brc20/interpreter"
	"github.com/rawblock/ordinals-index/internal/chaintip"
	"github.com/rawblock/ordinals-index/internal/config"
	"github.com/rawblock/ordinals-index/internal/db"
	"github.com/rawblock/ordinals-index/internal/eventsource"
	"github.com/rawblock/ordinals-index/internal/reorg"
)

// adminPollInterval governs how often the indexer checks app.admin_requests
// for operator-issued reindex/rollback requests from cmd/api.
const adminPollInterval = 10 * time.Second

func main() {
	cfg := config.LoadIndexer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.OrdinalsDatabaseURL, cfg.Brc20DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	tip := chaintip.New()
	if height, hash, err := store.GetCheckpoint(ctx, "indexer"); err != nil {
		log.Fatalf("FATAL: failed to read checkpoint: %v", err)
	} else if height >= 0 {
		tip.Set(height, hash)
		log.Printf("indexer: resuming from checkpoint height=%d hash=%s", height, hash)
	} else {
		log.Println("indexer: no checkpoint found, starting from genesis")
	}

	ctrl := reorg.New(store, tip, interpreter.Config{
		GenesisBlock:             cfg.Brc20GenesisBlock,
		SelfMintActivationHeight: cfg.Brc20SelfMintActivation,
	})

	source := eventsource.NewJSONLinesSource(os.Stdin)

	var btc *bitcoin.Client
	if cfg.BitcoinRPCHost != "" {
		btc, err = bitcoin.NewClient(bitcoin.Config{Host: cfg.BitcoinRPCHost, User: cfg.BitcoinRPCUser, Pass: cfg.BitcoinRPCPass})
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		defer btc.Shutdown()
	}

	go pollAdminRequests(ctx, store)

	log.Println("indexer: reading block events from stdin")
	run(ctx, source, ctrl, btc)
	log.Println("indexer: shut down")
}

// pollAdminRequests periodically drains app.admin_requests. A reindex
// request is fully actionable here: it resets the checkpoint so the next
// indexer start reingests from genesis. A rollback request to an arbitrary
// height is logged but not auto-executed: rollbackBlock only undoes a block
// given that block's original op list, which only the upstream
// eventsource.Source holds, so an operator-requested rollback still needs
// the event source reseeked to the target height and the indexer restarted
// against it (see DESIGN.md's admin.go entry).
func pollAdminRequests(ctx context.Context, store *db.Store) {
	ticker := time.NewTicker(adminPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reqs, err := store.PollAdminRequests(ctx)
		if err != nil {
			log.Printf("indexer: admin request poll failed: %v", err)
			continue
		}
		for _, r := range reqs {
			switch r.Kind {
			case db.AdminRequestReindex:
				if err := store.ResetCheckpoint(ctx, "indexer"); err != nil {
					log.Printf("indexer: reindex request failed to reset checkpoint: %v", err)
					continue
				}
				log.Println("indexer: reindex requested, checkpoint reset -- restart the indexer against a genesis-seeked event source")
			case db.AdminRequestRollback:
				log.Printf("indexer: rollback to height %d requested -- reseek the event source to that height and restart the indexer to apply it", r.RollbackTo)
			default:
				log.Printf("indexer: ignoring unknown admin request kind %q", r.Kind)
			}
		}
	}
}

// run drives the ingest loop: decode one block event, optionally confirm it
// against a live node, apply or roll it back, repeat until the source is
// exhausted or ctx is cancelled.
func run(ctx context.Context, source eventsource.Source, ctrl *reorg.Controller, btc *bitcoin.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev, err := source.Next()
		if errors.Is(err, io.EOF) {
			log.Println("indexer: event source exhausted")
			return
		}
		if err != nil {
			log.Printf("indexer: decode error, skipping: %v", err)
			continue
		}

		if ev.Direction == eventsource.DirectionApply && btc != nil {
			if err := btc.ConfirmTip(ev.Block.Height, ev.Block.Hash); err != nil {
				log.Printf("indexer: tip confirmation failed, skipping block: %v", err)
				continue
			}
		}

		if err := ctrl.Handle(ctx, ev); err != nil {
			if errors.Is(err, reorg.ErrOutOfOrderBlock) {
				log.Printf("indexer: out-of-order block, skipping: %v", err)
				continue
			}
			log.Fatalf("FATAL: %v", err)
		}
	}
}
