package eventsource

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	brc20model "github.com/rawblock/ordinals-index/internal/brc20/model"
	ordmodel "github.com/rawblock/ordinals-index/internal/ordinals/model"
)

// wireOp is the on-the-wire shape of a single operation: a tagged union
// decoded here and converted into the explicit sum types in event.go.
// This struct — and only this struct — is allowed to be duck-typed, since
// it exists purely to mirror the upstream stream's JSON framing; every
// consumer downstream of JSONLinesSource.Next sees the explicit Go types
// instead.
type wireOp struct {
	Kind string `json:"kind"`

	// Ordinals reveal fields.
	InscriptionID     string   `json:"inscriptionId"`
	OrdinalNumber     int64    `json:"ordinalNumber"`
	Number            int64    `json:"number"`
	ClassicNumber     int64    `json:"classicNumber"`
	Address           string   `json:"address"`
	MimeType          string   `json:"mimeType"`
	ContentType       string   `json:"contentType"`
	ContentLength     int64    `json:"contentLength"`
	Fee               int64    `json:"fee"`
	CurseType         string   `json:"curseType"`
	InputIndex        int64    `json:"inputIndex"`
	Pointer           *int64   `json:"pointer"`
	Metadata          string   `json:"metadata"`
	Metaprotocol      string   `json:"metaprotocol"`
	Delegate          string   `json:"delegate"`
	ParentRefs        []string `json:"parentRefs"`
	RecursionRefs     []string `json:"recursionRefs"`
	Rarity            string   `json:"rarity"`
	CoinbaseHeight    int64    `json:"coinbaseHeight"`

	// Location fields shared by reveal/transfer.
	Output       string `json:"output"`
	Offset       *int64 `json:"offset"`
	PrevOutput   string `json:"prevOutput"`
	PrevOffset   *int64 `json:"prevOffset"`
	Value        *int64 `json:"value"`
	TransferType string `json:"transferType"`

	// Transfer-specific fields.
	FromBlockHeight    int64 `json:"fromBlockHeight"`
	FromTxIndex        int64 `json:"fromTxIndex"`
	BlockTransferIndex int64 `json:"blockTransferIndex"`

	// BRC-20 fields.
	Ticker            string `json:"ticker"`
	InscriptionNumber int64  `json:"inscriptionNumber"`
	Max               string `json:"max"`
	Limit             string `json:"limit"`
	Decimals          int    `json:"decimals"`
	SelfMint          bool   `json:"selfMint"`
	Amount            string `json:"amount"`
	ToAddress         string `json:"toAddress"`

	// Common to every op.
	TxID         string `json:"txId"`
	TxIndex      int64  `json:"txIndex"`
	IntraTxOrder int64  `json:"intraTxOrder"`
}

type wireBlock struct {
	Direction  string    `json:"direction"`
	Height     int64     `json:"height"`
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parentHash"`
	Timestamp  time.Time `json:"timestamp"`
	Ordinals   []wireOp  `json:"ordinals"`
	Brc20      []wireOp  `json:"brc20"`
}

// JSONLinesSource reads one JSON object per line from r, matching the
// upstream block-event stream framing described in spec §6.
type JSONLinesSource struct {
	scanner *bufio.Scanner
}

// NewJSONLinesSource wraps r in a line-oriented JSON decoder. Decoding
// mints no idempotency keys; NewIdempotencyKey has no caller in this
// repository.
func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &JSONLinesSource{scanner: sc}
}

// Next decodes the next block event. Returns io.EOF when the stream is
// exhausted.
func (s *JSONLinesSource) Next() (BlockEvent, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wb wireBlock
		if err := json.Unmarshal(line, &wb); err != nil {
			return BlockEvent{}, fmt.Errorf("decode block event: %w", err)
		}
		return decodeBlock(wb)
	}
	if err := s.scanner.Err(); err != nil {
		return BlockEvent{}, err
	}
	return BlockEvent{}, io.EOF
}

func decodeBlock(wb wireBlock) (BlockEvent, error) {
	direction := Direction(wb.Direction)
	if direction != DirectionApply && direction != DirectionRollback {
		return BlockEvent{}, fmt.Errorf("unknown direction %q", wb.Direction)
	}

	ev := BlockEvent{
		Direction: direction,
		Block: BlockIdentity{
			Height:     wb.Height,
			Hash:       wb.Hash,
			ParentHash: wb.ParentHash,
			Timestamp:  wb.Timestamp,
		},
	}

	for _, op := range wb.Ordinals {
		decoded, err := decodeOrdinalsOp(wb, op)
		if err != nil {
			return BlockEvent{}, err
		}
		ev.Ordinals = append(ev.Ordinals, decoded)
	}
	for _, op := range wb.Brc20 {
		decoded, err := decodeBrc20Op(wb, op)
		if err != nil {
			return BlockEvent{}, err
		}
		ev.Brc20 = append(ev.Brc20, decoded)
	}
	return ev, nil
}

func decodeOrdinalsOp(wb wireBlock, op wireOp) (OrdinalsOp, error) {
	switch op.Kind {
	case "inscription_revealed":
		var address *string
		if op.Address != "" {
			address = &op.Address
		}
		var curse *string
		if op.CurseType != "" {
			curse = &op.CurseType
		}
		var delegate *string
		if op.Delegate != "" {
			delegate = &op.Delegate
		}
		var metadata *string
		if op.Metadata != "" {
			metadata = &op.Metadata
		}
		var metaprotocol *string
		if op.Metaprotocol != "" {
			metaprotocol = &op.Metaprotocol
		}

		insc := ordmodel.Inscription{
			InscriptionID: op.InscriptionID,
			OrdinalNumber: op.OrdinalNumber,
			Number:        op.Number,
			ClassicNumber: op.ClassicNumber,
			BlockHeight:   wb.Height,
			BlockHash:     wb.Hash,
			TxID:          op.TxID,
			TxIndex:       op.TxIndex,
			Address:       address,
			MimeType:      op.MimeType,
			ContentType:   op.ContentType,
			ContentLength: op.ContentLength,
			Fee:           op.Fee,
			CurseType:     curse,
			InputIndex:    op.InputIndex,
			Pointer:       op.Pointer,
			Metadata:      metadata,
			Metaprotocol:  metaprotocol,
			Delegate:      delegate,
			Timestamp:     wb.Timestamp,
		}

		loc := ordmodel.Location{
			OrdinalNumber: op.OrdinalNumber,
			BlockHeight:   wb.Height,
			TxIndex:       op.TxIndex,
			TxID:          op.TxID,
			BlockHash:     wb.Hash,
			Address:       address,
			Output:        op.Output,
			Offset:        op.Offset,
			Value:         op.Value,
			TransferType:  ordmodel.TransferType(orDefault(op.TransferType, string(ordmodel.TransferTypeTransferred))),
			Timestamp:     wb.Timestamp,
		}

		return RevealOp{Reveal: ordmodel.RevealEvent{
			Inscription: insc,
			ParentRefs:  op.ParentRefs,
			GenesisLoc:  loc,
		}}, nil

	case "inscription_transferred":
		var address *string
		if op.Address != "" {
			address = &op.Address
		}
		var prevOutput *string
		if op.PrevOutput != "" {
			prevOutput = &op.PrevOutput
		}
		loc := ordmodel.Location{
			OrdinalNumber: op.OrdinalNumber,
			BlockHeight:   wb.Height,
			TxIndex:       op.TxIndex,
			TxID:          op.TxID,
			BlockHash:     wb.Hash,
			Address:       address,
			Output:        op.Output,
			Offset:        op.Offset,
			PrevOutput:    prevOutput,
			PrevOffset:    op.PrevOffset,
			Value:         op.Value,
			TransferType:  ordmodel.TransferType(orDefault(op.TransferType, string(ordmodel.TransferTypeTransferred))),
			Timestamp:     wb.Timestamp,
		}
		return TransferOp{Transfer: ordmodel.TransferEvent{
			OrdinalNumber:      op.OrdinalNumber,
			FromBlockHeight:    op.FromBlockHeight,
			FromTxIndex:        op.FromTxIndex,
			BlockTransferIndex: op.BlockTransferIndex,
			Location:           loc,
		}}, nil

	default:
		return nil, fmt.Errorf("unknown ordinals op kind %q", op.Kind)
	}
}

func decodeBrc20Op(wb wireBlock, op wireOp) (Brc20Op, error) {
	switch op.Kind {
	case "deploy":
		return DeployBrc20Op{Deploy: brc20model.DeployOp{
			Ticker: op.Ticker, InscriptionID: op.InscriptionID, InscriptionNumber: op.InscriptionNumber,
			BlockHeight: wb.Height, BlockHash: wb.Hash, TxID: op.TxID, TxIndex: op.TxIndex,
			IntraTxOrder: op.IntraTxOrder, Address: op.Address, Max: op.Max, Limit: op.Limit,
			Decimals: op.Decimals, SelfMint: op.SelfMint, Timestamp: wb.Timestamp,
		}}, nil
	case "mint":
		return MintBrc20Op{Mint: brc20model.MintOp{
			Ticker: op.Ticker, InscriptionID: op.InscriptionID, InscriptionNumber: op.InscriptionNumber,
			OrdinalNumber: op.OrdinalNumber, BlockHeight: wb.Height, BlockHash: wb.Hash, TxID: op.TxID,
			TxIndex: op.TxIndex, IntraTxOrder: op.IntraTxOrder, Output: op.Output, Offset: derefOffset(op.Offset),
			Address: op.Address, Amount: op.Amount, Timestamp: wb.Timestamp,
		}}, nil
	case "transfer":
		return TransferBrc20Op{Transfer: brc20model.TransferInscribeOp{
			Ticker: op.Ticker, InscriptionID: op.InscriptionID, InscriptionNumber: op.InscriptionNumber,
			OrdinalNumber: op.OrdinalNumber, BlockHeight: wb.Height, BlockHash: wb.Hash, TxID: op.TxID,
			TxIndex: op.TxIndex, IntraTxOrder: op.IntraTxOrder, Output: op.Output, Offset: derefOffset(op.Offset),
			Address: op.Address, Amount: op.Amount, Timestamp: wb.Timestamp,
		}}, nil
	case "transfer_send":
		return TransferSendBrc20Op{Send: brc20model.TransferSendOp{
			InscriptionID: op.InscriptionID, BlockHeight: wb.Height, BlockHash: wb.Hash, TxID: op.TxID,
			TxIndex: op.TxIndex, IntraTxOrder: op.IntraTxOrder, Output: op.Output, Offset: derefOffset(op.Offset),
			FromAddress: op.Address, ToAddress: op.ToAddress, Timestamp: wb.Timestamp,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown brc20 op kind %q", op.Kind)
	}
}

func derefOffset(o *int64) int64 {
	if o == nil {
		return 0
	}
	return *o
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// NewIdempotencyKey mints a fresh key for a retried ingest batch.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
