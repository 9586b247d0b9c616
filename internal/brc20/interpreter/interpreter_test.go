package interpreter

import (
	"context"
	"errors"
	"testing"

	"github.com/rawblock/ordinals-index/internal/brc20/model"
)

const testGenesis = int64(700000)
const testSelfMint = int64(900000)

func newTestInterpreter() (*Interpreter, *memLedger) {
	ledger := newMemLedger()
	return New(ledger, Config{GenesisBlock: testGenesis, SelfMintActivationHeight: testSelfMint}), ledger
}

// TestScenario3DeployMintTransferSend exercises spec §8 scenario 3:
// deploy PEPE, two mints, an inscribed transfer, and a send.
func TestScenario3DeployMintTransferSend(t *testing.T) {
	interp, ledger := newTestInterpreter()
	ctx := context.Background()

	_, err := interp.Deploy(ctx, model.DeployOp{
		Ticker: "PEPE", InscriptionID: "deploy-i0", BlockHeight: 767430,
		Address: "A", Max: "21000000", Limit: "21000000", Decimals: 18,
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	if _, err := interp.Mint(ctx, model.MintOp{
		Ticker: "pepe", InscriptionID: "mint-a", BlockHeight: 767431, Address: "A", Amount: "10000",
	}); err != nil {
		t.Fatalf("mint A: %v", err)
	}
	if err := interp.FlushBalanceHistory(ctx, 767431); err != nil {
		t.Fatalf("flush 767431: %v", err)
	}

	if _, err := interp.Mint(ctx, model.MintOp{
		Ticker: "pepe", InscriptionID: "mint-b", BlockHeight: 767432, Address: "B", Amount: "10000",
	}); err != nil {
		t.Fatalf("mint B: %v", err)
	}

	// as-of block 767432 check happens against the snapshot written at the
	// END of 767431 for A (10000 avail), matching spec scenario 3's
	// `/balances/A?block_height=767432` expectation.
	if err := interp.FlushBalanceHistory(ctx, 767432); err != nil {
		t.Fatalf("flush 767432: %v", err)
	}

	if _, err := interp.TransferInscribe(ctx, model.TransferInscribeOp{
		Ticker: "pepe", InscriptionID: "transfer-a", BlockHeight: 767433, Address: "A", Amount: "9000",
	}); err != nil {
		t.Fatalf("transfer inscribe: %v", err)
	}

	send, receive, err := interp.TransferSend(ctx, model.TransferSendOp{
		InscriptionID: "transfer-a", BlockHeight: 767434, FromAddress: "A", ToAddress: "B",
	})
	if err != nil {
		t.Fatalf("transfer send: %v", err)
	}
	if send.Operation != model.OperationTransferSend || receive.Operation != model.OperationTransferReceive {
		t.Fatalf("unexpected op kinds: %s / %s", send.Operation, receive.Operation)
	}
	if send.Address != "A" || receive.Address != "B" {
		t.Fatalf("unexpected addresses on send/receive: %s / %s", send.Address, receive.Address)
	}

	balA, _ := ledger.GetBalance(ctx, "pepe", "A")
	balB, _ := ledger.GetBalance(ctx, "pepe", "B")

	if balA.Total().String() != "1000000000000000000000" {
		t.Errorf("A total = %s, want 1000e18", balA.Total().String())
	}
	if balA.Avail.String() != "1000000000000000000000" || balA.Trans.Sign() != 0 {
		t.Errorf("A avail/trans = %s/%s, want 1000e18/0", balA.Avail.String(), balA.Trans.String())
	}
	if balB.Total().String() != "19000000000000000000000" {
		t.Errorf("B total = %s, want 19000e18", balB.Total().String())
	}
	if balB.Avail.String() != "19000000000000000000000" || balB.Trans.Sign() != 0 {
		t.Errorf("B avail/trans = %s/%s, want 19000e18/0", balB.Avail.String(), balB.Trans.String())
	}

	tok, _ := ledger.GetToken(ctx, "pepe")
	if tok.TxCount != 4 { // deploy(1) + mintA(1) + mintB(1) + transfer_send(1); transfer_receive is not counted
		t.Errorf("tx_count = %d, want 4", tok.TxCount)
	}

	var sawDeploy, sawMintA, sawTransfer, sawSend bool
	for _, op := range ledger.ops {
		switch op.Operation {
		case model.OperationDeploy:
			sawDeploy = true
		case model.OperationMint:
			if op.Address == "A" {
				sawMintA = true
			}
		case model.OperationTransfer:
			sawTransfer = true
		case model.OperationTransferSend:
			sawSend = true
			if op.Address != "A" || op.ToAddress == nil || *op.ToAddress != "B" {
				t.Errorf("transfer_send from/to = %s/%v, want A/B", op.Address, op.ToAddress)
			}
		}
	}
	if !sawDeploy || !sawMintA || !sawTransfer || !sawSend {
		t.Errorf("activity log missing expected ops: deploy=%v mintA=%v transfer=%v send=%v", sawDeploy, sawMintA, sawTransfer, sawSend)
	}

	// A is only touched in block 767431 (its mint); it is not touched again
	// in 767432, so no new snapshot is written for it there — the
	// "as-of 767432" query layer resolves to the latest snapshot at or
	// before that height, which is the one written at 767431.
	var latest *model.BalanceSnapshot
	for idx := range ledger.snapshots {
		s := ledger.snapshots[idx]
		if s.Ticker != "pepe" || s.Address != "A" || s.BlockHeight > 767432 {
			continue
		}
		if latest == nil || s.BlockHeight > latest.BlockHeight {
			latest = &s
		}
	}
	if latest == nil {
		t.Fatal("expected a balances_history snapshot for A at or before block 767432")
	}
	if latest.Avail.String() != "10000000000000000000000" || latest.Trans.Sign() != 0 {
		t.Errorf("as-of-767432 snapshot for A = avail %s trans %s, want 10000e18/0", latest.Avail.String(), latest.Trans.String())
	}
}

// TestScenario4MintLimitClamp exercises spec §8 scenario 4: three mints of
// 50 against max=100, limit=50; the third clamps to zero and is rejected.
func TestScenario4MintLimitClamp(t *testing.T) {
	interp, ledger := newTestInterpreter()
	ctx := context.Background()

	if _, err := interp.Deploy(ctx, model.DeployOp{
		Ticker: "TICK", InscriptionID: "deploy-i0", BlockHeight: 767430,
		Address: "A", Max: "100", Limit: "50", Decimals: 0,
	}); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	if _, err := interp.Mint(ctx, model.MintOp{Ticker: "tick", InscriptionID: "m1", BlockHeight: 1, Address: "A", Amount: "50"}); err != nil {
		t.Fatalf("mint 1: %v", err)
	}
	if _, err := interp.Mint(ctx, model.MintOp{Ticker: "tick", InscriptionID: "m2", BlockHeight: 1, Address: "A", Amount: "50"}); err != nil {
		t.Fatalf("mint 2: %v", err)
	}

	_, err := interp.Mint(ctx, model.MintOp{Ticker: "tick", InscriptionID: "m3", BlockHeight: 1, Address: "A", Amount: "50"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for third mint, got %v", err)
	}

	tok, _ := ledger.GetToken(ctx, "tick")
	if tok.MintedSupply.String() != "100" {
		t.Errorf("minted_supply = %s, want 100", tok.MintedSupply.String())
	}
	if tok.TxCount != 3 { // deploy + mint1 + mint2; the rejected mint3 never increments tx_count
		t.Errorf("tx_count = %d, want 3", tok.TxCount)
	}

	mintOps := 0
	for _, op := range ledger.ops {
		if op.Operation == model.OperationMint {
			mintOps++
		}
	}
	if mintOps != 2 {
		t.Errorf("recorded mint ops = %d, want 2 (rejected mint must not be logged)", mintOps)
	}
}

func TestDeployRejectsDuplicateTicker(t *testing.T) {
	interp, _ := newTestInterpreter()
	ctx := context.Background()
	_, err := interp.Deploy(ctx, model.DeployOp{Ticker: "ABCD", InscriptionID: "i0", BlockHeight: testGenesis, Address: "A", Max: "100", Limit: "10", Decimals: 0})
	if err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	_, err = interp.Deploy(ctx, model.DeployOp{Ticker: "abcd", InscriptionID: "i1", BlockHeight: testGenesis, Address: "B", Max: "100", Limit: "10", Decimals: 0})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for duplicate ticker, got %v", err)
	}
}

func TestDeployRejectsFiveByteTickerBeforeActivation(t *testing.T) {
	interp, _ := newTestInterpreter()
	ctx := context.Background()
	_, err := interp.Deploy(ctx, model.DeployOp{Ticker: "ABCDE", InscriptionID: "i0", BlockHeight: testSelfMint - 1, Address: "A", Max: "100", Limit: "10", Decimals: 0})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for 5-byte ticker pre-activation, got %v", err)
	}
}

func TestDoubleSendRejected(t *testing.T) {
	interp, _ := newTestInterpreter()
	ctx := context.Background()
	interp.Deploy(ctx, model.DeployOp{Ticker: "DBLS", InscriptionID: "i0", BlockHeight: testGenesis, Address: "A", Max: "100", Limit: "100", Decimals: 0})
	interp.Mint(ctx, model.MintOp{Ticker: "dbls", InscriptionID: "m0", BlockHeight: testGenesis, Address: "A", Amount: "100"})
	interp.TransferInscribe(ctx, model.TransferInscribeOp{Ticker: "dbls", InscriptionID: "t0", BlockHeight: testGenesis, Address: "A", Amount: "50"})

	if _, _, err := interp.TransferSend(ctx, model.TransferSendOp{InscriptionID: "t0", BlockHeight: testGenesis, FromAddress: "A", ToAddress: "B"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	_, _, err := interp.TransferSend(ctx, model.TransferSendOp{InscriptionID: "t0", BlockHeight: testGenesis, FromAddress: "A", ToAddress: "B"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for double send, got %v", err)
	}
}
