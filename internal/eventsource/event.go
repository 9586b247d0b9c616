// Package eventsource defines the explicit sum types the ingest pipeline
// consumes, re-architecting spec §9's "duck-typed event payloads" flag:
// the upstream stream is a tagged union over {reveal, transfer} for
// ordinals and {deploy, mint, transfer, transfer_send} for BRC-20. Here
// each event kind is its own Go type implementing a small marker
// interface, rather than a single struct with optional fields.
package eventsource

import (
	"time"

	"github.com/rawblock/ordinals-index/internal/brc20/model"
	ordmodel "github.com/rawblock/ordinals-index/internal/ordinals/model"
)

// Direction is the apply/rollback directive from spec §4.4/§6.
type Direction string

const (
	DirectionApply    Direction = "apply"
	DirectionRollback Direction = "rollback"
)

// BlockIdentity is (index, hash) plus parent linkage, per spec §6.
type BlockIdentity struct {
	Height     int64
	Hash       string
	ParentHash string
	Timestamp  time.Time
}

// OrdinalsOp is implemented by RevealOp and TransferOp.
type OrdinalsOp interface{ isOrdinalsOp() }

// RevealOp carries an inscription-reveal event.
type RevealOp struct {
	Reveal ordmodel.RevealEvent
}

func (RevealOp) isOrdinalsOp() {}

// TransferOp carries an inscription-transfer event.
type TransferOp struct {
	Transfer ordmodel.TransferEvent
}

func (TransferOp) isOrdinalsOp() {}

// Brc20Op is implemented by each of the four operation input types.
type Brc20Op interface{ isBrc20Op() }

type DeployBrc20Op struct{ Deploy model.DeployOp }

func (DeployBrc20Op) isBrc20Op() {}

type MintBrc20Op struct{ Mint model.MintOp }

func (MintBrc20Op) isBrc20Op() {}

type TransferBrc20Op struct{ Transfer model.TransferInscribeOp }

func (TransferBrc20Op) isBrc20Op() {}

type TransferSendBrc20Op struct{ Send model.TransferSendOp }

func (TransferSendBrc20Op) isBrc20Op() {}

// BlockEvent is one apply/rollback directive for a full block: all of its
// ordinals operations, then all of its BRC-20 operations, processed
// strictly in the order given (spec §4.3 "Ordering").
type BlockEvent struct {
	Direction  Direction
	Block      BlockIdentity
	Ordinals   []OrdinalsOp
	Brc20      []Brc20Op
}

// Source is the minimal contract the ingest loop consumes. Production
// wires a JSON-lines decoder over a socket/file; FakeSource replays a
// fixed slice of events for tests.
type Source interface {
	Next() (BlockEvent, error)
}
