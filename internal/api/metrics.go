package api

import (
	"sync/atomic"
	"time"
)

// Metrics tracks the in-process ingest counters the status surface (C9)
// exposes, using plain atomics over the per-block progress fields the
// teacher's block scanner tracked (BlockScanner.totalScanned/currentHeight).
//
// The indexer and API run as separate processes (cmd/indexer, cmd/api), so
// RollbackCount/RejectedOpCount can only be observed directly when both
// loops share a Metrics instance in-process (e.g. tests); in the split
// deployment they stay at zero and BlocksPerSecond is instead derived from
// polling the shared checkpoint row via Observe, per DESIGN.md's Open
// Question on cross-process metrics.
type Metrics struct {
	blocksApplied atomic.Int64
	rollbacks     atomic.Int64
	rejectedOps   atomic.Int64

	lastHeight atomic.Int64
	lastSample atomic.Int64 // unix nano
	rate       atomic.Value // float64
}

// NewMetrics returns a zeroed Metrics block.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.lastHeight.Store(-1)
	m.rate.Store(float64(0))
	return m
}

// RecordApply marks one applied block.
func (m *Metrics) RecordApply() { m.blocksApplied.Add(1) }

// RecordRollback marks one rolled-back block.
func (m *Metrics) RecordRollback() { m.rollbacks.Add(1) }

// RecordRejectedOp marks one BRC-20 operation the interpreter rejected
// (invalid deploy, over-limit mint, malformed JSON, ...).
func (m *Metrics) RecordRejectedOp() { m.rejectedOps.Add(1) }

// Observe records a fresh (tip height, now) sample, updating the derived
// blocks-per-second rate against the previous sample. Called by cmd/api's
// background checkpoint poller, since that process doesn't see RecordApply
// calls directly.
func (m *Metrics) Observe(height int64) {
	now := time.Now().UnixNano()
	prevHeight := m.lastHeight.Swap(height)
	prevSample := m.lastSample.Swap(now)
	if prevHeight < 0 || prevSample == 0 {
		return
	}
	elapsed := time.Duration(now - prevSample).Seconds()
	if elapsed <= 0 {
		return
	}
	m.rate.Store(float64(height-prevHeight) / elapsed)
}

// BlocksPerSecond is the most recently observed ingest rate.
func (m *Metrics) BlocksPerSecond() float64 {
	if v, ok := m.rate.Load().(float64); ok {
		return v
	}
	return 0
}

func (m *Metrics) RollbackCount() int64   { return m.rollbacks.Load() }
func (m *Metrics) RejectedOpCount() int64 { return m.rejectedOps.Load() }
