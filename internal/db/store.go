// Package db is the persistence gateway (C1): two logical Postgres
// schemas -- ordinals and brc20 -- accessed either through one shared
// pool or two independent DSNs, plus a per-block transaction handle
// (BlockTx) the reorg controller commits both schemas' writes through.
// The block's writes are atomic when both schemas share one pool; with
// two DSNs the two transactions commit one after the other. Follows the
// teacher's PostgresStore shape (internal/db/postgres.go): a thin wrapper
// over pgxpool.Pool with Connect/Close/InitSchema and ON CONFLICT upserts.
// Rows are written one INSERT statement at a time.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/ordinals-index/internal/brc20/interpreter"
	"github.com/rawblock/ordinals-index/internal/ordinals/applier"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the two logical schemas' connection pools. When
// ORDINALS_DATABASE_URL and BRC20_DATABASE_URL resolve to the same DSN
// (the common single-node deployment), ordinalsPool and brc20Pool point at
// the same *pgxpool.Pool and BeginBlock opens one real transaction; when
// they differ, it opens one per pool and Commit commits them in sequence.
type Store struct {
	ordinalsPool *pgxpool.Pool
	brc20Pool    *pgxpool.Pool
}

// Connect opens (possibly shared) pools for the ordinals and brc20 logical
// schemas and verifies both are reachable.
func Connect(ctx context.Context, ordinalsDSN, brc20DSN string) (*Store, error) {
	ordPool, err := pgxpool.New(ctx, ordinalsDSN)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to ordinals database: %w", err)
	}
	if err := ordPool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ordinals ping failed: %w", err)
	}

	var brcPool *pgxpool.Pool
	if brc20DSN == ordinalsDSN {
		brcPool = ordPool
	} else {
		brcPool, err = pgxpool.New(ctx, brc20DSN)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to brc20 database: %w", err)
		}
		if err := brcPool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("brc20 ping failed: %w", err)
		}
	}

	log.Println("indexer: connected to ordinals and brc20 stores")
	return &Store{ordinalsPool: ordPool, brc20Pool: brcPool}, nil
}

// Close releases both pools (a no-op twice over when they are the same pool).
func (s *Store) Close() {
	s.ordinalsPool.Close()
	if s.brc20Pool != s.ordinalsPool {
		s.brc20Pool.Close()
	}
}

// InitSchema applies the embedded schema to both pools. Safe to run
// repeatedly: every statement is IF NOT EXISTS / CREATE SCHEMA IF NOT
// EXISTS.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.ordinalsPool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize ordinals schema: %w", err)
	}
	if s.brc20Pool != s.ordinalsPool {
		if _, err := s.brc20Pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to initialize brc20 schema: %w", err)
		}
	}
	log.Println("indexer: schema initialized")
	return nil
}

// OrdinalsStore returns a pool-backed handle scoped to the ordinals schema,
// for the read-only query layer (C6).
func (s *Store) OrdinalsStore() *OrdinalsStore {
	return &OrdinalsStore{q: poolQuerier{pool: s.ordinalsPool}}
}

// Brc20Store returns a pool-backed handle scoped to the brc20 schema, for
// the read-only query layer (C6).
func (s *Store) Brc20Store() *Brc20Store {
	return &Brc20Store{q: poolQuerier{pool: s.brc20Pool}}
}

// BlockTx is the unit of work the reorg controller (C4) commits through:
// one transaction per logical schema, scoped Ledger handles for the
// ordinals applier and the BRC-20 interpreter, and the checkpoint write.
// Defined as an interface rather than a struct so the controller can be
// driven by an in-memory fake in tests, the same seam applier.Ledger and
// interpreter.Ledger use one layer down.
type BlockTx interface {
	OrdinalsStore() applier.Ledger
	Brc20Store() interpreter.Ledger
	SetCheckpoint(ctx context.Context, serviceName string, height int64, hash string, at time.Time) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

// pgBlockTx is the pgx-backed BlockTx implementation.
type pgBlockTx struct {
	ordinals pgx.Tx
	brc20    pgx.Tx
	shared   bool
}

func (bt *pgBlockTx) OrdinalsStore() applier.Ledger { return OrdinalsStoreTx(bt.ordinals) }
func (bt *pgBlockTx) Brc20Store() interpreter.Ledger { return Brc20StoreTx(bt.brc20) }

// BeginBlock opens one transaction per logical schema (or a single shared
// transaction when both schemas share a pool), giving the reorg controller
// one atomic unit of work per block across both stores.
func (s *Store) BeginBlock(ctx context.Context) (BlockTx, error) {
	ordTx, err := s.ordinalsPool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ordinals tx: %w", err)
	}
	if s.brc20Pool == s.ordinalsPool {
		return &pgBlockTx{ordinals: ordTx, brc20: ordTx, shared: true}, nil
	}
	brcTx, err := s.brc20Pool.Begin(ctx)
	if err != nil {
		_ = ordTx.Rollback(ctx)
		return nil, fmt.Errorf("begin brc20 tx: %w", err)
	}
	return &pgBlockTx{ordinals: ordTx, brc20: brcTx, shared: false}, nil
}

// Commit commits both transactions. When they target separate databases
// ordinals commits first (it is append-first in spec's ordering, §4.3),
// and if brc20's commit then fails the ordinals side stays committed and
// the returned error says so. Nothing in this repository reconciles the
// two stores after such a failure.
func (bt *pgBlockTx) Commit(ctx context.Context) error {
	if bt.shared {
		return bt.ordinals.Commit(ctx)
	}
	if err := bt.ordinals.Commit(ctx); err != nil {
		_ = bt.brc20.Rollback(ctx)
		return fmt.Errorf("commit ordinals tx: %w", err)
	}
	if err := bt.brc20.Commit(ctx); err != nil {
		return fmt.Errorf("commit brc20 tx (ordinals already committed, store is now inconsistent and needs reconciliation): %w", err)
	}
	return nil
}

// Rollback aborts both transactions.
func (bt *pgBlockTx) Rollback(ctx context.Context) {
	_ = bt.ordinals.Rollback(ctx)
	if !bt.shared {
		_ = bt.brc20.Rollback(ctx)
	}
}

// SetCheckpoint records the last block height/hash applied for a named
// service, inside this block's transaction so the checkpoint advances
// atomically with the data it describes. Always written against the
// ordinals side, which commits first.
func (bt *pgBlockTx) SetCheckpoint(ctx context.Context, serviceName string, height int64, hash string, at time.Time) error {
	_, err := bt.ordinals.Exec(ctx, `
		INSERT INTO app.indexing_checkpoints (service_name, last_height, last_hash, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (service_name) DO UPDATE SET
			last_height = EXCLUDED.last_height, last_hash = EXCLUDED.last_hash, updated_at = EXCLUDED.updated_at`,
		serviceName, height, hash, at)
	return err
}

// GetCheckpoint returns the last applied height/hash for a named service,
// or (-1, "", nil) if indexing has never committed a block.
func (s *Store) GetCheckpoint(ctx context.Context, serviceName string) (height int64, hash string, err error) {
	row := s.ordinalsPool.QueryRow(ctx, `SELECT last_height, last_hash FROM app.indexing_checkpoints WHERE service_name = $1`, serviceName)
	err = row.Scan(&height, &hash)
	if err == pgx.ErrNoRows {
		return -1, "", nil
	}
	return height, hash, err
}

// ResetCheckpoint deletes the named service's checkpoint row, so the next
// GetCheckpoint call reports "no checkpoint" and ingestion restarts from
// genesis. Used to carry out an operator-requested reindex (AdminRequestReindex).
func (s *Store) ResetCheckpoint(ctx context.Context, serviceName string) error {
	_, err := s.ordinalsPool.Exec(ctx, `DELETE FROM app.indexing_checkpoints WHERE service_name = $1`, serviceName)
	return err
}

// AdminRequestKind enumerates the operator actions an admin endpoint can
// hand off to the indexer process across the process boundary.
type AdminRequestKind string

const (
	AdminRequestReindex  AdminRequestKind = "reindex"
	AdminRequestRollback AdminRequestKind = "rollback"
)

// AdminRequest is one pending row from app.admin_requests.
type AdminRequest struct {
	ID         int64
	Kind       AdminRequestKind
	RollbackTo int64 // only meaningful when Kind == AdminRequestRollback
}

// EnqueueAdminRequest records an operator request from the API process. The
// indexer process picks it up on its next PollAdminRequests call.
func (s *Store) EnqueueAdminRequest(ctx context.Context, kind AdminRequestKind, rollbackTo *int64) error {
	_, err := s.ordinalsPool.Exec(ctx,
		`INSERT INTO app.admin_requests (kind, rollback_to, requested_at) VALUES ($1, $2, now())`,
		string(kind), rollbackTo)
	return err
}

// PollAdminRequests returns every unconsumed admin request and marks it
// consumed in the same statement, so a request is handed to exactly one
// poller even if more than one indexer process is ever run against this
// database.
func (s *Store) PollAdminRequests(ctx context.Context) ([]AdminRequest, error) {
	rows, err := s.ordinalsPool.Query(ctx, `
		UPDATE app.admin_requests SET consumed_at = now()
		WHERE id IN (SELECT id FROM app.admin_requests WHERE consumed_at IS NULL ORDER BY id)
		RETURNING id, kind, rollback_to`)
	if err != nil {
		return nil, fmt.Errorf("poll admin requests: %w", err)
	}
	defer rows.Close()

	var out []AdminRequest
	for rows.Next() {
		var r AdminRequest
		var rollbackTo *int64
		var kind string
		if err := rows.Scan(&r.ID, &kind, &rollbackTo); err != nil {
			return nil, fmt.Errorf("scan admin request: %w", err)
		}
		r.Kind = AdminRequestKind(kind)
		if rollbackTo != nil {
			r.RollbackTo = *rollbackTo
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
