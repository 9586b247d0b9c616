package interpreter

import (
	"context"
	"testing"

	"github.com/rawblock/ordinals-index/internal/brc20/model"
)

// TestRollbackUndoesDeployMintTransferSend exercises the reorg controller's
// descending-rollback path: every apply in this test has an exact undo,
// applied in reverse order, that brings the ledger back to empty.
func TestRollbackUndoesDeployMintTransferSend(t *testing.T) {
	interp, ledger := newTestInterpreter()
	ctx := context.Background()

	if _, err := interp.Deploy(ctx, model.DeployOp{
		Ticker: "PEPE", InscriptionID: "deploy-i0", BlockHeight: 767430,
		Address: "A", Max: "1000", Limit: "1000", Decimals: 0,
	}); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := interp.Mint(ctx, model.MintOp{
		Ticker: "pepe", InscriptionID: "mint-a", BlockHeight: 767431, Address: "A", Amount: "400",
	}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := interp.TransferInscribe(ctx, model.TransferInscribeOp{
		Ticker: "pepe", InscriptionID: "xfer-i0", BlockHeight: 767432, Address: "A", Amount: "150",
	}); err != nil {
		t.Fatalf("transfer-inscribe: %v", err)
	}
	if _, _, err := interp.TransferSend(ctx, model.TransferSendOp{
		InscriptionID: "xfer-i0", BlockHeight: 767433, FromAddress: "A", ToAddress: "B",
	}); err != nil {
		t.Fatalf("transfer-send: %v", err)
	}

	balA, _ := ledger.GetBalance(ctx, "pepe", "A")
	balB, _ := ledger.GetBalance(ctx, "pepe", "B")
	if balA.Avail.String() != "250" || balA.Trans.Sign() != 0 {
		t.Fatalf("pre-rollback A = avail %s trans %s, want 250/0", balA.Avail.String(), balA.Trans.String())
	}
	if balB.Avail.String() != "150" {
		t.Fatalf("pre-rollback B avail = %s, want 150", balB.Avail.String())
	}

	// Undo in strict reverse order of application.
	if err := interp.UndoTransferSend(ctx, "xfer-i0"); err != nil {
		t.Fatalf("undo transfer-send: %v", err)
	}
	if err := interp.UndoTransferInscribe(ctx, "xfer-i0"); err != nil {
		t.Fatalf("undo transfer-inscribe: %v", err)
	}
	if err := interp.UndoMint(ctx, "mint-a"); err != nil {
		t.Fatalf("undo mint: %v", err)
	}
	if err := interp.UndoDeploy(ctx, "deploy-i0"); err != nil {
		t.Fatalf("undo deploy: %v", err)
	}

	if tok, _ := ledger.GetToken(ctx, "pepe"); tok != nil {
		t.Errorf("expected token to be gone after full rollback, got %+v", tok)
	}
	balA, _ = ledger.GetBalance(ctx, "pepe", "A")
	balB, _ = ledger.GetBalance(ctx, "pepe", "B")
	if !balA.Avail.IsZero() || !balA.Trans.IsZero() {
		t.Errorf("expected A balance zeroed, got avail=%s trans=%s", balA.Avail.String(), balA.Trans.String())
	}
	if !balB.Avail.IsZero() {
		t.Errorf("expected B balance zeroed, got avail=%s", balB.Avail.String())
	}
	if len(ledger.ops) != 0 {
		t.Errorf("expected empty op log after full rollback, got %d", len(ledger.ops))
	}
	if len(ledger.pending) != 0 {
		t.Errorf("expected no pending transfers after full rollback, got %d", len(ledger.pending))
	}
}

// TestRollbackTransferSendSelfTransfer covers the from==to shortcut path.
func TestRollbackTransferSendSelfTransfer(t *testing.T) {
	interp, ledger := newTestInterpreter()
	ctx := context.Background()

	interp.Deploy(ctx, model.DeployOp{Ticker: "ABCD", InscriptionID: "d0", BlockHeight: testGenesis, Address: "A", Max: "100", Limit: "100", Decimals: 0})
	interp.Mint(ctx, model.MintOp{Ticker: "abcd", InscriptionID: "m0", BlockHeight: testGenesis, Address: "A", Amount: "100"})
	interp.TransferInscribe(ctx, model.TransferInscribeOp{Ticker: "abcd", InscriptionID: "x0", BlockHeight: testGenesis, Address: "A", Amount: "30"})
	if _, _, err := interp.TransferSend(ctx, model.TransferSendOp{InscriptionID: "x0", BlockHeight: testGenesis, FromAddress: "A", ToAddress: "A"}); err != nil {
		t.Fatalf("self-send: %v", err)
	}

	balBefore, _ := ledger.GetBalance(ctx, "abcd", "A")
	if balBefore.Avail.String() != "100" || !balBefore.Trans.IsZero() {
		t.Fatalf("after self-send A = avail %s trans %s, want 100/0", balBefore.Avail.String(), balBefore.Trans.String())
	}

	if err := interp.UndoTransferSend(ctx, "x0"); err != nil {
		t.Fatalf("undo self-send: %v", err)
	}
	balAfter, _ := ledger.GetBalance(ctx, "abcd", "A")
	if balAfter.Avail.String() != "70" || balAfter.Trans.String() != "30" {
		t.Errorf("after undo A = avail %s trans %s, want 70/30", balAfter.Avail.String(), balAfter.Trans.String())
	}
	pending, _ := ledger.GetPendingTransfer(ctx, "x0")
	if pending == nil || pending.Amount.String() != "30" {
		t.Errorf("expected pending transfer of 30 restored, got %+v", pending)
	}
}
