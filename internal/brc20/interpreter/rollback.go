package interpreter

import (
	"context"
	"fmt"

	"github.com/rawblock/ordinals-index/internal/brc20/decimal"
	"github.com/rawblock/ordinals-index/internal/brc20/model"
)

// Rollback functions invert each apply method exactly, reading back the
// logged Op row rather than re-deriving amounts from the original wire
// operation -- Mint clamps its requested amount to remaining supply, so
// the amount that must be subtracted on rollback is the logged (possibly
// clamped) amount, not whatever the caller originally asked for.

// UndoDeploy removes a token deployed by a since-rolled-back block. Only
// valid when nothing has minted against it yet; the reorg controller
// processes a block's ops in strict reverse order, so by the time a
// deploy's rollback runs, every mint/transfer that depended on it has
// already been undone.
func (i *Interpreter) UndoDeploy(ctx context.Context, inscriptionID string) error {
	op, err := i.ledger.GetOp(ctx, inscriptionID, model.OperationDeploy)
	if err != nil {
		return fmt.Errorf("lookup deploy op %s: %w", inscriptionID, err)
	}
	if op == nil {
		return nil // deploy was rejected at apply time; nothing to undo.
	}
	// The deploy's ops row references the token, so it goes first.
	if err := i.ledger.DeleteOp(ctx, inscriptionID, model.OperationDeploy); err != nil {
		return fmt.Errorf("delete deploy op %s: %w", inscriptionID, err)
	}
	if err := i.ledger.DeleteToken(ctx, op.Ticker); err != nil {
		return fmt.Errorf("delete token %s: %w", op.Ticker, err)
	}
	return nil
}

// UndoMint reverses a mint's balance credit and minted_supply increment.
func (i *Interpreter) UndoMint(ctx context.Context, inscriptionID string) error {
	op, err := i.ledger.GetOp(ctx, inscriptionID, model.OperationMint)
	if err != nil {
		return fmt.Errorf("lookup mint op %s: %w", inscriptionID, err)
	}
	if op == nil {
		return nil // mint was rejected at apply time; nothing to undo.
	}

	bal, err := i.ledger.GetBalance(ctx, op.Ticker, op.Address)
	if err != nil {
		return fmt.Errorf("lookup balance %s/%s: %w", op.Ticker, op.Address, err)
	}
	bal.Avail = bal.Avail.Sub(op.Amount)
	if err := i.ledger.PutBalance(ctx, bal); err != nil {
		return fmt.Errorf("put balance %s/%s: %w", op.Ticker, op.Address, err)
	}
	negAmount := decimal.Zero(op.Amount.Decimals()).Sub(op.Amount)
	if err := i.ledger.CreditMint(ctx, op.Ticker, negAmount); err != nil {
		return fmt.Errorf("debit minted_supply %s: %w", op.Ticker, err)
	}
	if err := i.ledger.IncrTxCount(ctx, op.Ticker, -1); err != nil {
		return fmt.Errorf("decr tx_count %s: %w", op.Ticker, err)
	}
	i.markTouched(op.Ticker, op.Address)
	return i.ledger.DeleteOp(ctx, inscriptionID, model.OperationMint)
}

// UndoTransferInscribe reverses the avail->trans lock and removes the
// pending-transfer binding, returning the inscription to "never created
// a transfer intent" as far as the ledger is concerned.
func (i *Interpreter) UndoTransferInscribe(ctx context.Context, inscriptionID string) error {
	op, err := i.ledger.GetOp(ctx, inscriptionID, model.OperationTransfer)
	if err != nil {
		return fmt.Errorf("lookup transfer op %s: %w", inscriptionID, err)
	}
	if op == nil {
		return nil // transfer-inscribe was rejected at apply time; nothing to undo.
	}

	bal, err := i.ledger.GetBalance(ctx, op.Ticker, op.Address)
	if err != nil {
		return fmt.Errorf("lookup balance %s/%s: %w", op.Ticker, op.Address, err)
	}
	bal.Avail = bal.Avail.Add(op.Amount)
	bal.Trans = bal.Trans.Sub(op.Amount)
	if err := i.ledger.PutBalance(ctx, bal); err != nil {
		return fmt.Errorf("put balance %s/%s: %w", op.Ticker, op.Address, err)
	}
	if err := i.ledger.DeletePendingTransfer(ctx, inscriptionID); err != nil {
		return fmt.Errorf("delete pending transfer %s: %w", inscriptionID, err)
	}
	i.markTouched(op.Ticker, op.Address)
	return i.ledger.DeleteOp(ctx, inscriptionID, model.OperationTransfer)
}

// UndoTransferSend reverses a completed send: the transferred amount moves
// back from the recipient to the sender's trans balance, and the
// pending-transfer binding this send consumed is restored so a later
// rollback of the TransferInscribe it came from still finds it.
func (i *Interpreter) UndoTransferSend(ctx context.Context, inscriptionID string) error {
	send, err := i.ledger.GetOp(ctx, inscriptionID, model.OperationTransferSend)
	if err != nil {
		return fmt.Errorf("lookup transfer_send op %s: %w", inscriptionID, err)
	}
	if send == nil {
		return nil // send was rejected at apply time (ErrDoubleSend); nothing to undo.
	}
	if send.ToAddress == nil {
		return fmt.Errorf("undo transfer_send %s: logged op missing to_address", inscriptionID)
	}
	fromAddr, toAddr := send.Address, *send.ToAddress

	if fromAddr == toAddr {
		bal, err := i.ledger.GetBalance(ctx, send.Ticker, fromAddr)
		if err != nil {
			return fmt.Errorf("lookup balance %s/%s: %w", send.Ticker, fromAddr, err)
		}
		bal.Avail = bal.Avail.Sub(send.Amount)
		bal.Trans = bal.Trans.Add(send.Amount)
		if err := i.ledger.PutBalance(ctx, bal); err != nil {
			return fmt.Errorf("put balance %s/%s: %w", send.Ticker, fromAddr, err)
		}
	} else {
		senderBal, err := i.ledger.GetBalance(ctx, send.Ticker, fromAddr)
		if err != nil {
			return fmt.Errorf("lookup sender balance %s/%s: %w", send.Ticker, fromAddr, err)
		}
		senderBal.Trans = senderBal.Trans.Add(send.Amount)
		if err := i.ledger.PutBalance(ctx, senderBal); err != nil {
			return fmt.Errorf("put sender balance %s/%s: %w", send.Ticker, fromAddr, err)
		}

		recvBal, err := i.ledger.GetBalance(ctx, send.Ticker, toAddr)
		if err != nil {
			return fmt.Errorf("lookup recipient balance %s/%s: %w", send.Ticker, toAddr, err)
		}
		recvBal.Avail = recvBal.Avail.Sub(send.Amount)
		if err := i.ledger.PutBalance(ctx, recvBal); err != nil {
			return fmt.Errorf("put recipient balance %s/%s: %w", send.Ticker, toAddr, err)
		}
		i.markTouched(send.Ticker, toAddr)
	}
	i.markTouched(send.Ticker, fromAddr)

	if err := i.ledger.PutPendingTransfer(ctx, model.PendingTransfer{
		InscriptionID: inscriptionID, Ticker: send.Ticker, Amount: send.Amount, OwnerAddress: fromAddr,
	}); err != nil {
		return fmt.Errorf("restore pending transfer %s: %w", inscriptionID, err)
	}
	if err := i.ledger.IncrTxCount(ctx, send.Ticker, -1); err != nil {
		return fmt.Errorf("decr tx_count %s: %w", send.Ticker, err)
	}

	if err := i.ledger.DeleteOp(ctx, inscriptionID, model.OperationTransferReceive); err != nil {
		return fmt.Errorf("delete transfer_receive op %s: %w", inscriptionID, err)
	}
	return i.ledger.DeleteOp(ctx, inscriptionID, model.OperationTransferSend)
}
