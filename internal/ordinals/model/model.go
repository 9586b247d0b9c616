// Package model defines the ordinals entities from the data model: sats,
// inscriptions, locations, transfers, and the denormalised count tables.
// These are semantic Go structs; internal/db maps them to SQL rows.
package model

import "time"

// TransferType classifies how a sat left its previous location.
type TransferType string

const (
	TransferTypeTransferred TransferType = "transferred"
	TransferTypeSpentInFees TransferType = "spent_in_fees"
	TransferTypeBurnt       TransferType = "burnt"
)

// Satoshi is the redundant-but-verified rarity/coinbase-height record for
// an ordinal number, keyed uniquely by OrdinalNumber.
type Satoshi struct {
	OrdinalNumber  int64  `json:"ordinalNumber"`
	Rarity         string `json:"rarity"`
	CoinbaseHeight int64  `json:"coinbaseHeight"`
}

// Charms is a bitfield of decorative flags on an inscription; see
// internal/ordinals/charms for the decode table.
type Charms uint16

// Inscription is immutable once created; it is only ever destroyed by
// rolling back the reveal event that created it.
type Inscription struct {
	InscriptionID   string    `json:"id"`
	OrdinalNumber   int64     `json:"satOrdinal"`
	Number          int64     `json:"number"`
	ClassicNumber   int64     `json:"classicNumber"`
	BlockHeight     int64     `json:"genesisBlockHeight"`
	BlockHash       string    `json:"genesisBlockHash"`
	TxID            string    `json:"genesisTxId"`
	TxIndex         int64     `json:"txIndex"`
	Address         *string   `json:"address"`
	MimeType        string    `json:"mimeType"`
	ContentType     string    `json:"contentType"`
	ContentLength   int64     `json:"contentLength"`
	Content         []byte    `json:"-"`
	Fee             int64     `json:"genesisFee"`
	CurseType       *string   `json:"curseType,omitempty"`
	Recursive       bool      `json:"recursive"`
	InputIndex      int64     `json:"inputIndex"`
	Pointer         *int64    `json:"pointer,omitempty"`
	Metadata        *string   `json:"metadata,omitempty"`
	Metaprotocol    *string   `json:"metaprotocol,omitempty"`
	Delegate        *string   `json:"delegate,omitempty"`
	Timestamp       time.Time `json:"genesisTimestamp"`
	Charms          Charms    `json:"-"`
}

// Cursed reports whether the inscription carries a negative number.
func (i Inscription) Cursed() bool { return i.Number < 0 }

// Blessed reports whether the classic number is non-negative, per spec §3
// ("blessed iff classic_number >= 0"). It reads ClassicNumber while Cursed
// reads Number, so the two are not always opposites.
func (i Inscription) Blessed() bool { return i.ClassicNumber >= 0 }

// Location is the historical per-(sat, block, tx) location record.
// Primary key (OrdinalNumber, BlockHeight, TxIndex).
type Location struct {
	OrdinalNumber int64        `json:"satOrdinal"`
	BlockHeight   int64        `json:"blockHeight"`
	TxIndex       int64        `json:"txIndex"`
	TxID          string       `json:"txId"`
	BlockHash     string       `json:"blockHash"`
	Address       *string      `json:"address"`
	Output        string       `json:"output"`
	Offset        *int64       `json:"offset,omitempty"`
	PrevOutput    *string      `json:"prevOutput,omitempty"`
	PrevOffset    *int64       `json:"prevOffset,omitempty"`
	Value         *int64       `json:"value,omitempty"`
	TransferType  TransferType `json:"transferType"`
	Timestamp     time.Time    `json:"timestamp"`
}

// CurrentLocation is the single-row-per-sat projection, overwritten on
// every apply and reverted to the prior Location row on rollback.
type CurrentLocation struct {
	OrdinalNumber int64        `json:"satOrdinal"`
	BlockHeight   int64        `json:"blockHeight"`
	TxIndex       int64        `json:"txIndex"`
	TxID          string       `json:"txId"`
	BlockHash     string       `json:"blockHash"`
	Address       *string      `json:"address"`
	Output        string       `json:"output"`
	Offset        *int64       `json:"offset,omitempty"`
	Value         *int64       `json:"value,omitempty"`
	TransferType  TransferType `json:"transferType"`
	Timestamp     time.Time    `json:"timestamp"`
}

// InscriptionTransfer is one row of the append-only post-genesis move log.
type InscriptionTransfer struct {
	InscriptionID      string `json:"id"`
	Number             int64  `json:"number"`
	OrdinalNumber      int64  `json:"satOrdinal"`
	BlockHeight        int64  `json:"blockHeight"`
	TxIndex            int64  `json:"txIndex"`
	FromBlockHeight    int64  `json:"fromBlockHeight"`
	FromTxIndex        int64  `json:"fromTxIndex"`
	BlockTransferIndex int64  `json:"blockTransferIndex"`
}

// InscriptionParent is one row of the many-to-many parent/child set.
type InscriptionParent struct {
	InscriptionID       string `json:"id"`
	ParentInscriptionID string `json:"parentId"`
}

// InscriptionRecursion is one row of the many-to-many content-reference set.
type InscriptionRecursion struct {
	InscriptionID    string `json:"id"`
	RefInscriptionID string `json:"refId"`
}

// CountsByBlock is the per-block denormalised aggregate row.
type CountsByBlock struct {
	BlockHeight          int64     `json:"blockHeight"`
	InscriptionCount     int64     `json:"inscriptionCount"`
	InscriptionCountAccum int64    `json:"inscriptionCountAccum"`
	BlockHash            string    `json:"blockHash"`
	Timestamp            time.Time `json:"timestamp"`
}

// RevealEvent is the input to the ordinals applier's reveal operation.
type RevealEvent struct {
	Inscription Inscription
	ParentRefs  []string
	GenesisLoc  Location
}

// TransferEvent is the input to the ordinals applier's transfer operation.
type TransferEvent struct {
	OrdinalNumber      int64
	FromBlockHeight     int64
	FromTxIndex         int64
	BlockTransferIndex  int64
	Location            Location
}
