// Package interpreter validates and applies BRC-20 protocol operations
// (deploy/mint/transfer/transfer_send/transfer_receive) against the ledger
// invariants from spec §4.3, producing the balance history used by
// "as-of block height" queries.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rawblock/ordinals-index/internal/brc20/decimal"
	"github.com/rawblock/ordinals-index/internal/brc20/model"
)

// ValidationError marks a rejected BRC-20 operation: normal protocol
// behavior per spec §7 kind 1. The operation is not written to the log and
// counters are left untouched; callers should log and continue, never
// treat this as fatal.
type ValidationError struct {
	Op     model.Operation
	Ticker string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("brc20: %s %s rejected: %s", e.Op, e.Ticker, e.Reason)
}

// ErrDoubleSend is returned when a transfer inscription's outstanding
// binding has already been consumed by a prior send.
var ErrDoubleSend = errors.New("brc20: transfer inscription already sent")

// Ledger is the persistence seam the interpreter mutates through. It is
// implemented by the pgx-based production store (internal/db.Brc20Store)
// and by an in-memory fake used by tests.
type Ledger interface {
	GetToken(ctx context.Context, tickerFolded string) (*model.Token, error)
	PutToken(ctx context.Context, t model.Token) error
	DeleteToken(ctx context.Context, tickerFolded string) error
	CreditMint(ctx context.Context, tickerFolded string, mintedDelta decimal.Amount) error
	IncrTxCount(ctx context.Context, tickerFolded string, delta int64) error

	GetBalance(ctx context.Context, tickerFolded, address string) (model.Balance, error)
	PutBalance(ctx context.Context, b model.Balance) error

	AppendOp(ctx context.Context, op model.Op) error
	GetOp(ctx context.Context, inscriptionID string, operation model.Operation) (*model.Op, error)
	DeleteOp(ctx context.Context, inscriptionID string, operation model.Operation) error

	PutBalanceSnapshot(ctx context.Context, s model.BalanceSnapshot) error

	GetPendingTransfer(ctx context.Context, inscriptionID string) (*model.PendingTransfer, error)
	PutPendingTransfer(ctx context.Context, p model.PendingTransfer) error
	DeletePendingTransfer(ctx context.Context, inscriptionID string) error
}

// Config holds the chain-height gated protocol parameters from spec §6.
type Config struct {
	GenesisBlock             int64
	SelfMintActivationHeight int64
}

// Interpreter applies BRC-20 operations against a Ledger.
type Interpreter struct {
	ledger  Ledger
	cfg     Config
	touched map[tickerAddr]struct{}
}

type tickerAddr struct {
	ticker  string
	address string
}

// New constructs an Interpreter bound to the given ledger and config.
func New(ledger Ledger, cfg Config) *Interpreter {
	return &Interpreter{ledger: ledger, cfg: cfg, touched: map[tickerAddr]struct{}{}}
}

// FoldTicker is the identity used for uniqueness and lookups everywhere
// except response rendering, which uses the original DisplayTicker.
func FoldTicker(ticker string) string {
	return strings.ToLower(ticker)
}

// validTickerLength enforces the 4-byte legacy / 5-byte self-mint ticker
// length rule from spec §4.3, gated on the self-mint activation height.
func (i *Interpreter) validTickerLength(ticker string, blockHeight int64) bool {
	n := len([]byte(ticker))
	if n == 4 {
		return true
	}
	if n == 5 {
		return blockHeight >= i.cfg.SelfMintActivationHeight
	}
	return false
}

func (i *Interpreter) markTouched(ticker, address string) {
	i.touched[tickerAddr{ticker, address}] = struct{}{}
}

// Deploy validates and, on success, records a new token deploy.
func (i *Interpreter) Deploy(ctx context.Context, in model.DeployOp) (*model.Op, error) {
	if in.BlockHeight < i.cfg.GenesisBlock {
		return nil, &ValidationError{model.OperationDeploy, in.Ticker, "block below BRC-20 genesis height"}
	}
	folded := FoldTicker(in.Ticker)
	if !i.validTickerLength(folded, in.BlockHeight) {
		return nil, &ValidationError{model.OperationDeploy, folded, "invalid ticker length"}
	}
	if in.Decimals < 0 || in.Decimals > decimal.MaxDecimals {
		return nil, &ValidationError{model.OperationDeploy, folded, "decimals out of range"}
	}

	existing, err := i.ledger.GetToken(ctx, folded)
	if err != nil {
		return nil, fmt.Errorf("lookup token %s: %w", folded, err)
	}
	if existing != nil {
		return nil, &ValidationError{model.OperationDeploy, folded, "ticker already deployed"}
	}

	max, err := decimal.FromDecimalString(in.Max, in.Decimals)
	if err != nil || max.Sign() <= 0 {
		return nil, &ValidationError{model.OperationDeploy, folded, "max must be a positive decimal"}
	}
	limit, err := decimal.FromDecimalString(in.Limit, in.Decimals)
	if err != nil || limit.Sign() <= 0 {
		return nil, &ValidationError{model.OperationDeploy, folded, "limit must be a positive decimal"}
	}
	if limit.Cmp(max) > 0 {
		return nil, &ValidationError{model.OperationDeploy, folded, "limit must not exceed max"}
	}

	token := model.Token{
		TickerFolded:      folded,
		DisplayTicker:     in.Ticker,
		InscriptionID:     in.InscriptionID,
		InscriptionNumber: in.InscriptionNumber,
		BlockHeight:       in.BlockHeight,
		BlockHash:         in.BlockHash,
		TxID:              in.TxID,
		TxIndex:           in.TxIndex,
		Address:           in.Address,
		Max:               max,
		Limit:             limit,
		Decimals:          in.Decimals,
		SelfMint:          in.SelfMint,
		MintedSupply:      decimal.Zero(in.Decimals),
		TxCount:           1,
		Timestamp:         in.Timestamp,
	}
	if err := i.ledger.PutToken(ctx, token); err != nil {
		return nil, fmt.Errorf("put token %s: %w", folded, err)
	}

	op := model.Op{
		Ticker: folded, Operation: model.OperationDeploy, InscriptionID: in.InscriptionID,
		InscriptionNumber: in.InscriptionNumber, BlockHeight: in.BlockHeight, BlockHash: in.BlockHash,
		TxID: in.TxID, TxIndex: in.TxIndex, IntraTxOrder: in.IntraTxOrder,
		Timestamp: in.Timestamp, Address: in.Address, Amount: max,
	}
	if err := i.ledger.AppendOp(ctx, op); err != nil {
		return nil, fmt.Errorf("append deploy op: %w", err)
	}
	return &op, nil
}

// Mint validates and, on success, credits the minter's available balance.
// Amounts are clamped to the remaining supply per spec §4.3; a mint that
// clamps to zero is rejected outright.
func (i *Interpreter) Mint(ctx context.Context, in model.MintOp) (*model.Op, error) {
	folded := FoldTicker(in.Ticker)
	token, err := i.ledger.GetToken(ctx, folded)
	if err != nil {
		return nil, fmt.Errorf("lookup token %s: %w", folded, err)
	}
	if token == nil {
		return nil, &ValidationError{model.OperationMint, folded, "token not deployed"}
	}

	amount, err := decimal.FromDecimalString(in.Amount, token.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return nil, &ValidationError{model.OperationMint, folded, "amount must be a positive decimal"}
	}
	if amount.Cmp(token.Limit) > 0 {
		return nil, &ValidationError{model.OperationMint, folded, "amount exceeds per-mint limit"}
	}

	remaining := token.Max.Sub(token.MintedSupply)
	effective := decimal.Min(amount, remaining)
	if effective.Sign() <= 0 {
		return nil, &ValidationError{model.OperationMint, folded, "mint clamps to zero remaining supply"}
	}

	bal, err := i.ledger.GetBalance(ctx, folded, in.Address)
	if err != nil {
		return nil, fmt.Errorf("lookup balance %s/%s: %w", folded, in.Address, err)
	}
	bal.Ticker, bal.Address = folded, in.Address
	bal.Avail = bal.Avail.Add(effective)
	if err := i.ledger.PutBalance(ctx, bal); err != nil {
		return nil, fmt.Errorf("put balance %s/%s: %w", folded, in.Address, err)
	}

	if err := i.ledger.CreditMint(ctx, folded, effective); err != nil {
		return nil, fmt.Errorf("credit mint %s: %w", folded, err)
	}
	if err := i.ledger.IncrTxCount(ctx, folded, 1); err != nil {
		return nil, fmt.Errorf("incr tx_count %s: %w", folded, err)
	}

	op := model.Op{
		Ticker: folded, Operation: model.OperationMint, InscriptionID: in.InscriptionID,
		InscriptionNumber: in.InscriptionNumber, OrdinalNumber: in.OrdinalNumber,
		BlockHeight: in.BlockHeight, BlockHash: in.BlockHash, TxID: in.TxID, TxIndex: in.TxIndex,
		IntraTxOrder: in.IntraTxOrder, Output: in.Output, Offset: in.Offset,
		Timestamp: in.Timestamp, Address: in.Address, Amount: effective,
	}
	if err := i.ledger.AppendOp(ctx, op); err != nil {
		return nil, fmt.Errorf("append mint op: %w", err)
	}
	i.markTouched(folded, in.Address)
	return &op, nil
}

// TransferInscribe locks `amount` out of avail into trans and binds it to
// the inscription, making it eligible for exactly one later TransferSend.
func (i *Interpreter) TransferInscribe(ctx context.Context, in model.TransferInscribeOp) (*model.Op, error) {
	folded := FoldTicker(in.Ticker)
	token, err := i.ledger.GetToken(ctx, folded)
	if err != nil {
		return nil, fmt.Errorf("lookup token %s: %w", folded, err)
	}
	if token == nil {
		return nil, &ValidationError{model.OperationTransfer, folded, "token not deployed"}
	}

	amount, err := decimal.FromDecimalString(in.Amount, token.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return nil, &ValidationError{model.OperationTransfer, folded, "amount must be a positive decimal"}
	}

	bal, err := i.ledger.GetBalance(ctx, folded, in.Address)
	if err != nil {
		return nil, fmt.Errorf("lookup balance %s/%s: %w", folded, in.Address, err)
	}
	if bal.Avail.Cmp(amount) < 0 {
		return nil, &ValidationError{model.OperationTransfer, folded, "insufficient available balance"}
	}

	bal.Ticker, bal.Address = folded, in.Address
	bal.Avail = bal.Avail.Sub(amount)
	bal.Trans = bal.Trans.Add(amount)
	if err := i.ledger.PutBalance(ctx, bal); err != nil {
		return nil, fmt.Errorf("put balance %s/%s: %w", folded, in.Address, err)
	}

	if err := i.ledger.PutPendingTransfer(ctx, model.PendingTransfer{
		InscriptionID: in.InscriptionID, Ticker: folded, Amount: amount, OwnerAddress: in.Address,
	}); err != nil {
		return nil, fmt.Errorf("put pending transfer %s: %w", in.InscriptionID, err)
	}

	op := model.Op{
		Ticker: folded, Operation: model.OperationTransfer, InscriptionID: in.InscriptionID,
		InscriptionNumber: in.InscriptionNumber, OrdinalNumber: in.OrdinalNumber,
		BlockHeight: in.BlockHeight, BlockHash: in.BlockHash, TxID: in.TxID, TxIndex: in.TxIndex,
		IntraTxOrder: in.IntraTxOrder, Output: in.Output, Offset: in.Offset,
		Timestamp: in.Timestamp, Address: in.Address, Amount: amount,
	}
	if err := i.ledger.AppendOp(ctx, op); err != nil {
		return nil, fmt.Errorf("append transfer op: %w", err)
	}
	i.markTouched(folded, in.Address)
	return &op, nil
}

// TransferSend moves a previously inscribed transferable amount to a new
// sat owner, emitting the paired transfer_send/transfer_receive operations
// in one call per spec §4.3. A transfer inscription can be sent at most
// once: the second send is rejected via ErrDoubleSend-backed ValidationError.
func (i *Interpreter) TransferSend(ctx context.Context, in model.TransferSendOp) (sendOp, receiveOp *model.Op, err error) {
	pending, err := i.ledger.GetPendingTransfer(ctx, in.InscriptionID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup pending transfer %s: %w", in.InscriptionID, err)
	}
	if pending == nil {
		return nil, nil, &ValidationError{model.OperationTransferSend, "", ErrDoubleSend.Error()}
	}
	folded := pending.Ticker
	amount := pending.Amount

	senderBal, err := i.ledger.GetBalance(ctx, folded, in.FromAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup sender balance %s/%s: %w", folded, in.FromAddress, err)
	}
	senderBal.Ticker, senderBal.Address = folded, in.FromAddress
	senderBal.Trans = senderBal.Trans.Sub(amount)

	if in.FromAddress == in.ToAddress {
		// Net effect when recipient == sender: trans -= amount, avail += amount.
		senderBal.Avail = senderBal.Avail.Add(amount)
		if err := i.ledger.PutBalance(ctx, senderBal); err != nil {
			return nil, nil, fmt.Errorf("put balance %s/%s: %w", folded, in.FromAddress, err)
		}
	} else {
		if err := i.ledger.PutBalance(ctx, senderBal); err != nil {
			return nil, nil, fmt.Errorf("put sender balance %s/%s: %w", folded, in.FromAddress, err)
		}
		recvBal, err := i.ledger.GetBalance(ctx, folded, in.ToAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup recipient balance %s/%s: %w", folded, in.ToAddress, err)
		}
		recvBal.Ticker, recvBal.Address = folded, in.ToAddress
		recvBal.Avail = recvBal.Avail.Add(amount)
		if err := i.ledger.PutBalance(ctx, recvBal); err != nil {
			return nil, nil, fmt.Errorf("put recipient balance %s/%s: %w", folded, in.ToAddress, err)
		}
		i.markTouched(folded, in.ToAddress)
	}
	i.markTouched(folded, in.FromAddress)

	if err := i.ledger.DeletePendingTransfer(ctx, in.InscriptionID); err != nil {
		return nil, nil, fmt.Errorf("delete pending transfer %s: %w", in.InscriptionID, err)
	}
	if err := i.ledger.IncrTxCount(ctx, folded, 1); err != nil {
		return nil, nil, fmt.Errorf("incr tx_count %s: %w", folded, err)
	}

	toAddr := in.ToAddress
	send := model.Op{
		Ticker: folded, Operation: model.OperationTransferSend, InscriptionID: in.InscriptionID,
		BlockHeight: in.BlockHeight, BlockHash: in.BlockHash, TxID: in.TxID, TxIndex: in.TxIndex,
		IntraTxOrder: in.IntraTxOrder, Output: in.Output, Offset: in.Offset,
		Timestamp: in.Timestamp, Address: in.FromAddress, ToAddress: &toAddr, Amount: amount,
	}
	if err := i.ledger.AppendOp(ctx, send); err != nil {
		return nil, nil, fmt.Errorf("append transfer_send op: %w", err)
	}

	fromAddr := in.FromAddress
	receive := model.Op{
		Ticker: folded, Operation: model.OperationTransferReceive, InscriptionID: in.InscriptionID,
		BlockHeight: in.BlockHeight, BlockHash: in.BlockHash, TxID: in.TxID, TxIndex: in.TxIndex,
		IntraTxOrder: in.IntraTxOrder + 1, Output: in.Output, Offset: in.Offset,
		Timestamp: in.Timestamp, Address: in.ToAddress, ToAddress: &fromAddr, Amount: amount,
	}
	if err := i.ledger.AppendOp(ctx, receive); err != nil {
		return nil, nil, fmt.Errorf("append transfer_receive op: %w", err)
	}

	return &send, &receive, nil
}

// FlushBalanceHistory writes one balances_history snapshot per (ticker,
// address) touched since the interpreter was constructed or since the last
// flush, then clears the touched set. Call once at the end of every block,
// inside the same transaction as the block's operations.
func (i *Interpreter) FlushBalanceHistory(ctx context.Context, blockHeight int64) error {
	for ta := range i.touched {
		bal, err := i.ledger.GetBalance(ctx, ta.ticker, ta.address)
		if err != nil {
			return fmt.Errorf("lookup balance for snapshot %s/%s: %w", ta.ticker, ta.address, err)
		}
		if err := i.ledger.PutBalanceSnapshot(ctx, model.BalanceSnapshot{
			Ticker: ta.ticker, Address: ta.address, BlockHeight: blockHeight,
			Avail: bal.Avail, Trans: bal.Trans,
		}); err != nil {
			return fmt.Errorf("put snapshot %s/%s: %w", ta.ticker, ta.address, err)
		}
	}
	i.touched = map[tickerAddr]struct{}{}
	return nil
}
