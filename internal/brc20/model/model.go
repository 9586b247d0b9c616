// Package model defines the BRC-20 entities: tokens, the append-only
// operation log, balances, and balance history snapshots.
package model

import (
	"time"

	"github.com/rawblock/ordinals-index/internal/brc20/decimal"
)

// Operation is one of the five BRC-20 operation kinds.
type Operation string

const (
	OperationDeploy          Operation = "deploy"
	OperationMint            Operation = "mint"
	OperationTransfer        Operation = "transfer"
	OperationTransferSend    Operation = "transfer_send"
	OperationTransferReceive Operation = "transfer_receive"
)

// Token is the deployed BRC-20 token record, keyed by the case-folded
// ticker.
type Token struct {
	TickerFolded      string
	DisplayTicker     string
	InscriptionID     string
	InscriptionNumber int64
	BlockHeight       int64
	BlockHash         string
	TxID              string
	TxIndex           int64
	Address           string
	Max               decimal.Amount
	Limit             decimal.Amount
	Decimals          int
	SelfMint          bool
	MintedSupply      decimal.Amount
	TxCount           int64
	Timestamp         time.Time
}

// Op is one row of the append-only operation log.
type Op struct {
	Ticker            string
	Operation         Operation
	InscriptionID     string
	InscriptionNumber int64
	OrdinalNumber     int64
	BlockHeight       int64
	BlockHash         string
	TxID              string
	TxIndex           int64
	IntraTxOrder      int64
	Output            string
	Offset            int64
	Timestamp         time.Time
	Address           string
	ToAddress         *string
	Amount            decimal.Amount
}

// Balance is the current (avail, trans, total) triple for one (ticker,
// address) pair. Total is always avail+trans — never stored independently,
// per DESIGN.md Open Question #2.
type Balance struct {
	Ticker  string
	Address string
	Avail   decimal.Amount
	Trans   decimal.Amount
}

// Total returns avail + trans.
func (b Balance) Total() decimal.Amount { return b.Avail.Add(b.Trans) }

// BalanceSnapshot is one (ticker, address, block_height) row in the
// balances_history table: the balance after all of that block's ops.
type BalanceSnapshot struct {
	Ticker      string
	Address     string
	BlockHeight int64
	Avail       decimal.Amount
	Trans       decimal.Amount
}

// PendingTransfer tracks an outstanding (ticker, amount) binding created by
// a `transfer` inscription, consumed by exactly one transfer_send.
type PendingTransfer struct {
	InscriptionID string
	Ticker        string
	Amount        decimal.Amount
	OwnerAddress  string
}

// DeployOp is the input to the interpreter's Deploy operation.
type DeployOp struct {
	Ticker        string
	InscriptionID string
	InscriptionNumber int64
	BlockHeight   int64
	BlockHash     string
	TxID          string
	TxIndex       int64
	IntraTxOrder  int64
	Address       string
	Max           string // inscribed decimal string
	Limit         string
	Decimals      int
	SelfMint      bool
	Timestamp     time.Time
}

// MintOp is the input to the interpreter's Mint operation.
type MintOp struct {
	Ticker        string
	InscriptionID string
	InscriptionNumber int64
	OrdinalNumber int64
	BlockHeight   int64
	BlockHash     string
	TxID          string
	TxIndex       int64
	IntraTxOrder  int64
	Output        string
	Offset        int64
	Address       string
	Amount        string
	Timestamp     time.Time
}

// TransferInscribeOp is the input to the interpreter's Transfer (inscribe)
// operation: it locks `Amount` from avail into trans and binds it to the
// inscription, awaiting a later TransferSendOp.
type TransferInscribeOp struct {
	Ticker        string
	InscriptionID string
	InscriptionNumber int64
	OrdinalNumber int64
	BlockHeight   int64
	BlockHash     string
	TxID          string
	TxIndex       int64
	IntraTxOrder  int64
	Output        string
	Offset        int64
	Address       string
	Amount        string
	Timestamp     time.Time
}

// TransferSendOp is the input to the interpreter's transfer_send/
// transfer_receive pair: the transferable inscription moves to a new sat
// owner, completing the two-phase transfer flow.
type TransferSendOp struct {
	InscriptionID   string
	BlockHeight     int64
	BlockHash       string
	TxID            string
	TxIndex         int64
	IntraTxOrder    int64
	Output          string
	Offset          int64
	FromAddress     string
	ToAddress       string
	Timestamp       time.Time
}
