// Package chaintip maintains the single process-wide "latest applied block
// height" used by status and "as-of" queries (spec §4.7/C7). The reorg
// controller publishes to it after each block transaction commits; the
// cmd/indexer and cmd/api entrypoints also seed it from the stored
// checkpoint. It is read concurrently by the query layer — the same
// atomic-publish-after-commit shape as the teacher's BlockScanner progress
// counters (internal/scanner/block_scanner.go).
package chaintip

import "sync/atomic"

// Tracker holds the current tip height and block hash. The zero value
// represents "no block applied yet".
type Tracker struct {
	height atomic.Int64
	hash   atomic.Pointer[string]
	ready  atomic.Bool
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Set publishes a new tip. Called by the reorg controller after a block
// transaction commits, and by cmd/indexer and cmd/api with the height/hash
// read from the stored checkpoint.
func (t *Tracker) Set(height int64, hash string) {
	t.height.Store(height)
	t.hash.Store(&hash)
	t.ready.Store(true)
}

// Height returns the current tip height, or -1 if no block has been
// applied yet.
func (t *Tracker) Height() int64 {
	if !t.ready.Load() {
		return -1
	}
	return t.height.Load()
}

// Hash returns the current tip block hash, or "" if no block has been
// applied yet.
func (t *Tracker) Hash() string {
	h := t.hash.Load()
	if h == nil {
		return ""
	}
	return *h
}

// Ready reports whether at least one block has been applied.
func (t *Tracker) Ready() bool {
	return t.ready.Load()
}
